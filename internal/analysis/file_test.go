package analysis

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/brixfix/brixfix-go/internal/classifier"
	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/errors"
)

type staticBackend struct {
	scores []float32
}

func (b *staticBackend) Name() string { return "static" }

func (b *staticBackend) Run(context.Context, []float32) ([]float32, error) {
	return b.scores, nil
}

func (b *staticBackend) Close() error { return nil }

func newClassifier(t *testing.T, scores ...float32) *classifier.Classifier {
	t.Helper()
	clf, err := classifier.New(context.Background(),
		&conf.ClassifierSettings{Resampler: "bilinear"},
		classifier.WithBackend(&staticBackend{scores: scores}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = clf.Close() })
	return clf
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := range 16 {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func openStore(t *testing.T) datastore.Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Datastore.SQLite.Enabled = true
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "brixfix.db")
	store, err := OpenStore(settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCollectImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "street", "block"), 0o750))
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "street", "block", "b.JPG"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	explicit := filepath.Join(dir, "notes.txt")
	files, err := CollectImages([]string{dir, explicit})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "street", "block", "b.JPG"),
		explicit,
	}, files)

	_, err = CollectImages([]string{t.TempDir()})
	require.ErrorIs(t, err, ErrNoImages)

	_, err = CollectImages([]string{filepath.Join(dir, "missing.png")})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestClassifyFilesPrintsOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "house.png")
	bad := filepath.Join(dir, "broken.png")
	writePNG(t, good)
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))

	clf := newClassifier(t, 0.1, 0.7, 0.2)
	results, err := ClassifyFiles(context.Background(), clf, []string{good, bad}, FileOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.NoError(t, results[0].Err)
	assert.Equal(t, detection.ModerateDamage, results[0].Result.Label)
	assert.InDelta(t, 70.0, results[0].Result.Confidence, 1e-4)
	assert.Zero(t, results[0].DetectionID)
	require.ErrorIs(t, results[1].Err, classifier.ErrDecode)

	var out bytes.Buffer
	require.NoError(t, WriteResults(&out, results, language.Indonesian))
	assert.Contains(t, out.String(), "Rusak Menengah")
	assert.Contains(t, out.String(), "70.00%")
	assert.Contains(t, out.String(), "error:")
}

func TestClassifyFilesRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "house.png")
	writePNG(t, path)
	store := openStore(t)

	clf := newClassifier(t, 0.9, 0.05, 0.05)
	results, err := ClassifyFiles(context.Background(), clf, []string{path, path}, FileOptions{
		Email: "surveyor@example.com", Store: store, StoreImages: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotZero(t, results[0].DetectionID)
	assert.NotEqual(t, results[0].DetectionID, results[1].DetectionID)

	records, err := store.ListDetections(context.Background(), "surveyor@example.com")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, detection.SevereDamage, records[0].Label)
	assert.True(t, records[0].HasImage)

	stats, err := store.AggregateByLabel(context.Background(), nil)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, WriteStats(&out, stats, language.English))
	assert.Contains(t, out.String(), "Severe Damage")
	assert.Contains(t, out.String(), "TOTAL")
}

func TestClassifyFilesRequiresStoreForEmail(t *testing.T) {
	t.Parallel()

	_, err := ClassifyFiles(context.Background(), newClassifier(t, 1, 0, 0), []string{"x.png"}, FileOptions{Email: "a@example.com"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestClassifyFilesCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "house.png")
	writePNG(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := ClassifyFiles(ctx, newClassifier(t, 1, 0, 0), []string{path}, FileOptions{})
	require.ErrorIs(t, err, ErrAnalysisCanceled)
	assert.Empty(t, results)
}

func TestClassifyFilesModelUnavailable(t *testing.T) {
	t.Parallel()

	clf, err := classifier.New(context.Background(), &conf.ClassifierSettings{
		ModelPath: filepath.Join(t.TempDir(), "missing.tflite"),
		Resampler: "bicubic",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = clf.Close() })

	_, err = ClassifyFiles(context.Background(), clf, []string{"x.png"}, FileOptions{})
	require.ErrorIs(t, err, classifier.ErrModelUnavailable)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Datastore.SQLite.Enabled = true
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "brixfix.db")
	settings.Classifier.ModelPath = filepath.Join(t.TempDir(), "missing.tflite")
	settings.Classifier.Resampler = "bicubic"
	settings.WebServer.Listen = "127.0.0.1:0"
	settings.WebServer.MaxUpload = "1MB"
	settings.WebServer.ShutdownTimeout = time.Second
	settings.Security.SessionSecret = "serve-test"
	settings.Security.BcryptCost = 4

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, settings, nil) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
