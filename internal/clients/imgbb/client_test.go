package imgbb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashionlens/fashion-lens-be/internal/clients/upstream"
)

func stageImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "human.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0o600))
	return path
}

func TestHostReturnsURL(t *testing.T) {
	var gotKey, gotName string
	var gotBytes []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		gotName = hdr.Filename
		gotBytes, _ = io.ReadAll(f)
		_, _ = w.Write([]byte(`{"success": true, "status": 200, "data": {"url": "https://i.ibb.co/abc/human.png"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/1/upload", "k3y", srv.Client())
	url, err := c.Host(context.Background(), stageImage(t))
	require.NoError(t, err)
	assert.Equal(t, "https://i.ibb.co/abc/human.png", url)
	assert.Equal(t, "k3y", gotKey)
	assert.Equal(t, "human.png", gotName)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nfake"), gotBytes)
}

func TestHostMissingKeyMakesNoCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, " ", srv.Client())
	_, err := c.Host(context.Background(), stageImage(t))
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, called)
}

func TestHostFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"http error":     {http.StatusBadRequest, `{"error": {"message": "Invalid API v1 key."}}`},
		"not successful": {http.StatusOK, `{"success": false, "data": {"url": "https://x"}}`},
		"missing url":    {http.StatusOK, `{"success": true, "data": {}}`},
		"malformed json": {http.StatusOK, `not json`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "k3y", srv.Client())
			_, err := c.Host(context.Background(), stageImage(t))
			require.Error(t, err)
			assert.True(t, upstream.Is(err))
			assert.NotContains(t, err.Error(), "k3y")
		})
	}
}
