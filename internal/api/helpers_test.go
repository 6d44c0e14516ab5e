package api

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/brixfix/brixfix-go/internal/auth"
	"github.com/brixfix/brixfix-go/internal/buildinfo"
	"github.com/brixfix/brixfix-go/internal/classifier"
	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/errors"
)

// fakeClassifier decodes with the real decoder and returns a fixed result.
type fakeClassifier struct {
	mu       sync.Mutex
	ready    bool
	result   detection.Result
	inferErr error
	calls    int
}

func (f *fakeClassifier) Ready() bool { return f.ready }

func (f *fakeClassifier) Available() error {
	if f.ready {
		return nil
	}
	return errors.New(classifier.ErrModelUnavailable).
		Component("classifier").
		Category(errors.CategoryModelInit).
		Build()
}

func (f *fakeClassifier) BackendName() string { return "fake" }

func (f *fakeClassifier) DecodeImage(r io.Reader) (image.Image, string, error) {
	return classifier.DecodeImage(r, 0)
}

func (f *fakeClassifier) ClassifyImage(_ context.Context, _ image.Image) (detection.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.inferErr != nil {
		return detection.Result{}, f.inferErr
	}
	return f.result, nil
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Datastore.SQLite.Enabled = true
	s.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "brixfix.db")
	s.WebServer.Listen = ":0"
	s.WebServer.MaxUpload = "2MB"
	s.WebServer.StoreImages = true
	s.Security.SessionSecret = "test-session-secret"
	s.Security.SessionMaxAge = time.Hour
	s.Security.BcryptCost = bcrypt.MinCost
	s.Security.LoginRate = 1000
	s.Security.LoginBurst = 1000
	s.Dashboard.Enabled = true
	s.Dashboard.Locale = "en"
	s.Classifier.MaxConcurrent = 2
	return s
}

type testEnv struct {
	ctrl  *Controller
	store datastore.Interface
	clf   *fakeClassifier
}

func newTestEnv(t *testing.T, mutate ...func(*conf.Settings)) *testEnv {
	t.Helper()

	settings := testSettings(t)
	for _, m := range mutate {
		m(settings)
	}

	store, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	clf := &fakeClassifier{
		ready: true,
		result: detection.Result{
			Label:      detection.LightDamage,
			Confidence: 87.456,
			Scores:     []float32{0.05, 0.07546, 0.87456},
		},
	}

	ctrl, err := New(settings, store, clf, auth.NewService(store, bcrypt.MinCost),
		WithBuildInfo(&buildinfo.Context{Version: "1.2.3", StartTime: time.Now()}),
		withMemoryFunc(func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 8 << 30, Available: 4 << 30, UsedPercent: 50}, nil
		}))
	require.NoError(t, err)

	return &testEnv{ctrl: ctrl, store: store, clf: clf}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ctrl.Echo.ServeHTTP(rec, req)
	return rec
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// uploadFile is one multipart file part.
type uploadFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

// multipartBody encodes fields and files. Empty field values are
// omitted.
func multipartBody(t *testing.T, fields map[string]string, files ...uploadFile) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if v == "" {
			continue
		}
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func predictRequest(t *testing.T, email string, files ...uploadFile) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{"email": email}, files...)
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set("Content-Type", ct)
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// browser keeps cookies between dashboard requests.
type browser struct {
	t       *testing.T
	env     *testEnv
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, env *testEnv) *browser {
	return &browser{t: t, env: env, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := b.env.do(req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

// csrf returns the token issued by the last dashboard GET.
func (b *browser) csrf() string {
	b.t.Helper()
	c, ok := b.cookies["_csrf"]
	require.True(b.t, ok, "no csrf cookie issued")
	return c.Value
}

func (b *browser) postForm(target string, values url.Values) *httptest.ResponseRecorder {
	if values.Get("_csrf") == "" {
		values.Set("_csrf", b.csrf())
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postMultipart(target string, files ...uploadFile) *httptest.ResponseRecorder {
	body, ct := multipartBody(b.t, map[string]string{"_csrf": b.csrf()}, files...)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", ct)
	return b.do(req)
}

// signup registers and logs in email through the dashboard forms.
func (b *browser) signup(email, password string) {
	b.t.Helper()
	b.get("/dashboard/register")
	rec := b.postForm("/dashboard/register", url.Values{
		"email": {email}, "password": {password}, "confirm_password": {password},
	})
	require.Equal(b.t, http.StatusSeeOther, rec.Code)
	require.Equal(b.t, "/dashboard/login", rec.Header().Get("Location"))

	rec = b.postForm("/dashboard/login", url.Values{"email": {email}, "password": {password}})
	require.Equal(b.t, http.StatusSeeOther, rec.Code)
	require.Equal(b.t, "/dashboard", rec.Header().Get("Location"))
}
