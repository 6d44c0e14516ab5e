package httpclient

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetsUserAgentAndCallsHook(t *testing.T) {
	c := New(&Config{UserAgent: "brixfix-test"})
	httpmock.ActivateNonDefault(c.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodGet, "https://models.example.com/m.tflite",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "brixfix-test", req.Header.Get("User-Agent"))
			_, hasDeadline := req.Context().Deadline()
			assert.True(t, hasDeadline, "default timeout applies")
			return httpmock.NewStringResponse(http.StatusOK, "model-bytes"), nil
		})

	var hookStatus int
	c.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error) {
		require.NoError(t, err)
		hookStatus = resp.StatusCode
	})

	resp, cancel, err := c.Get(context.Background(), "https://models.example.com/m.tflite")
	require.NoError(t, err)
	defer cancel()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(body))
	assert.Equal(t, http.StatusOK, hookStatus)
}

func TestGetTransportError(t *testing.T) {
	c := New(nil)
	httpmock.ActivateNonDefault(c.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodGet, "https://models.example.com/m.tflite",
		httpmock.NewErrorResponder(assert.AnError))

	ctx, cancelCtx := context.WithTimeout(context.Background(), time.Second)
	defer cancelCtx()

	_, _, err := c.Get(ctx, "https://models.example.com/m.tflite")
	require.ErrorIs(t, err, assert.AnError)
}

func TestGetInvalidURL(t *testing.T) {
	t.Parallel()

	_, _, err := New(nil).Get(context.Background(), "://bad")
	require.Error(t, err)
}
