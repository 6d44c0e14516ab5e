package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/httpclient"
)

const modelURL = "https://models.example.com/damage.tflite"

func mockedClient(t *testing.T) *httpclient.Client {
	t.Helper()
	client := httpclient.New(nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestEnsureModelDownloadsAndVerifies(t *testing.T) {
	client := mockedClient(t)
	payload := []byte("tflite-flatbuffer")
	sum := sha256.Sum256(payload)

	httpmock.RegisterResponder(http.MethodGet, modelURL, httpmock.NewBytesResponder(http.StatusOK, payload))

	path := filepath.Join(t.TempDir(), "models", "damage.tflite")
	require.NoError(t, EnsureModel(context.Background(), client, path, modelURL, hex.EncodeToString(sum[:])))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// present files are not fetched again
	require.NoError(t, EnsureModel(context.Background(), client, path, modelURL, "ignored"))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestEnsureModelChecksumMismatch(t *testing.T) {
	client := mockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, modelURL, httpmock.NewStringResponder(http.StatusOK, "tampered"))

	dir := t.TempDir()
	path := filepath.Join(dir, "damage.tflite")
	err := EnsureModel(context.Background(), client, path, modelURL, "00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file removed")
}

func TestEnsureModelHTTPError(t *testing.T) {
	client := mockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, modelURL, httpmock.NewStringResponder(http.StatusNotFound, "missing"))

	err := EnsureModel(context.Background(), client, filepath.Join(t.TempDir(), "m.tflite"), modelURL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestEnsureModelWithoutURL(t *testing.T) {
	t.Parallel()

	err := EnsureModel(context.Background(), nil, filepath.Join(t.TempDir(), "m.tflite"), "", "")
	require.Error(t, err)
}

func TestNewDownloadFailureLeavesModelUnavailable(t *testing.T) {
	client := mockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, modelURL, httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	settings := defaultTestSettings(filepath.Join(t.TempDir(), "m.tflite"))
	settings.ModelURL = modelURL

	c, err := New(context.Background(), settings, WithHTTPClient(client))
	require.NoError(t, err)
	assert.False(t, c.Ready())
	assert.ErrorIs(t, c.LoadError(), ErrModelUnavailable)
}

func defaultTestSettings(modelPath string) *conf.ClassifierSettings {
	return &conf.ClassifierSettings{ModelPath: modelPath, Resampler: ResamplerBicubic}
}
