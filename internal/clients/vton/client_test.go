package vton

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashionlens/fashion-lens-be/internal/clients/upstream"
)

var defaultParams = Params{Category: "dresses", Steps: 30, Seed: 42}

func TestComposeSendsRequestAndReturnsImage(t *testing.T) {
	var got map[string]any
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "vt-key", defaultParams, srv.Client())
	img, err := c.Compose(context.Background(), "https://i.ibb.co/h.png", "https://i.ibb.co/g.png")
	require.NoError(t, err)

	assert.Equal(t, "vt-key", gotKey)
	assert.Equal(t, "image/jpeg", img.ContentType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xe0}, img.Data)

	assert.Equal(t, "https://i.ibb.co/h.png", got["human_img"])
	assert.Equal(t, "https://i.ibb.co/g.png", got["garm_img"])
	assert.Equal(t, "dresses", got["category"])
	assert.EqualValues(t, 30, got["steps"])
	assert.EqualValues(t, 42, got["seed"])
	assert.Equal(t, false, got["crop"])
	assert.Equal(t, false, got["force_dc"])
	assert.Equal(t, false, got["mask_only"])
}

func TestComposeDefaultsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "vt-key", defaultParams, srv.Client())
	img, err := c.Compose(context.Background(), "h", "g")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
}

func TestComposeDetectsHTML(t *testing.T) {
	cases := map[string]struct {
		status      int
		contentType string
		body        string
	}{
		"html content type": {http.StatusOK, "text/html; charset=utf-8", "<!DOCTYPE html><html></html>"},
		"html error page":   {http.StatusBadGateway, "text/html", "<html>502 Bad Gateway</html>"},
		"unlabelled markup": {http.StatusOK, "", "  <html><body>login</body></html>"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.contentType != "" {
					w.Header().Set("Content-Type", tc.contentType)
				} else {
					w.Header()["Content-Type"] = nil
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "vt-key", defaultParams, srv.Client())
			_, err := c.Compose(context.Background(), "h", "g")
			require.ErrorIs(t, err, ErrHTMLResponse)

			var ue *upstream.Error
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tc.status, ue.Status)
		})
	}
}

func TestComposeFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error": "insufficient credits"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "vt-key", defaultParams, srv.Client())
	_, err := c.Compose(context.Background(), "h", "g")
	var ue *upstream.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusPaymentRequired, ue.Status)
	assert.Contains(t, ue.Body, "insufficient credits")
	assert.NotErrorIs(t, err, ErrHTMLResponse)
}

func TestComposeEmptyImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "vt-key", defaultParams, srv.Client())
	_, err := c.Compose(context.Background(), "h", "g")
	require.ErrorIs(t, err, ErrEmptyImage)
}

func TestComposeRejectsOversizedImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(bytes.Repeat([]byte{0x42}, 65))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "vt-key", defaultParams, srv.Client())
	c.maxImage = 64
	_, err := c.Compose(context.Background(), "h", "g")
	require.ErrorIs(t, err, ErrImageTooLarge)
	var ue *upstream.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusOK, ue.Status)
}

func TestComposeAcceptsImageAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(bytes.Repeat([]byte{0x42}, 64))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "vt-key", defaultParams, srv.Client())
	c.maxImage = 64
	img, err := c.Compose(context.Background(), "h", "g")
	require.NoError(t, err)
	assert.Len(t, img.Data, 64)
}

func TestComposeMissingKeyMakesNoCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", defaultParams, srv.Client())
	_, err := c.Compose(context.Background(), "h", "g")
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, called)
}
