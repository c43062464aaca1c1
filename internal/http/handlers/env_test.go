package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fashionlens/fashion-lens-be/internal/auth"
	"github.com/fashionlens/fashion-lens-be/internal/clients/imgbb"
	"github.com/fashionlens/fashion-lens-be/internal/clients/predict"
	"github.com/fashionlens/fashion-lens-be/internal/clients/vton"
	"github.com/fashionlens/fashion-lens-be/internal/http/respond"
	"github.com/fashionlens/fashion-lens-be/internal/middleware"
	"github.com/fashionlens/fashion-lens-be/internal/relay"
	"github.com/fashionlens/fashion-lens-be/internal/staging"
)

const testPrefix = "/business"

// fakeUpstream stands in for the prediction service, ImgBB and the try-on API.
type fakeUpstream struct {
	mu sync.Mutex

	predictStatus int
	predictBody   string
	predictCalls  int
	lastUserID    string
	lastModelType string

	recommendCalls int
	hostCalls      int
	composeCalls   int
	composeBody    []byte
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict/", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		f.mu.Lock()
		f.predictCalls++
		f.lastUserID = r.FormValue("user_id")
		f.lastModelType = r.FormValue("model_type")
		status, body := f.predictStatus, f.predictBody
		f.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("/recommend-binary/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.recommendCalls++
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"recommended_images": ["b64-one", "b64-two"]}`)
	})
	mux.HandleFunc("/imgbb", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hostCalls++
		n := f.hostCalls
		f.mu.Unlock()
		fmt.Fprintf(w, `{"success": true, "data": {"url": "https://i.ibb.co/%d.png"}}`, n)
	})
	mux.HandleFunc("/vton", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.composeCalls++
		f.composeBody = body
		f.mu.Unlock()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("composed"))
	})
	return mux
}

func (f *fakeUpstream) setPredict(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.predictStatus, f.predictBody = status, body
}

// upstreamCalls is a point-in-time copy of what fakeUpstream received.
type upstreamCalls struct {
	predictCalls   int
	lastUserID     string
	lastModelType  string
	recommendCalls int
	hostCalls      int
	composeCalls   int
	composeBody    []byte
}

func (f *fakeUpstream) calls() upstreamCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return upstreamCalls{
		predictCalls:   f.predictCalls,
		lastUserID:     f.lastUserID,
		lastModelType:  f.lastModelType,
		recommendCalls: f.recommendCalls,
		hostCalls:      f.hostCalls,
		composeCalls:   f.composeCalls,
		composeBody:    f.composeBody,
	}
}

type testEnv struct {
	handler  http.Handler
	store    *memStore
	tokens   *auth.TokenManager
	upstream *fakeUpstream
	area     *staging.Area
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	up := &fakeUpstream{predictStatus: http.StatusOK, predictBody: `{"status": "ok"}`}
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)

	area, err := staging.NewArea(t.TempDir())
	require.NoError(t, err)

	store := newMemStore()
	tokens := auth.NewTokenManager("test-secret", "fashion-lens", 24*time.Hour)
	authn := middleware.NewAuthenticator(store, tokens, "token")

	predictor := predict.NewClient(srv.URL, srv.Client())
	host := imgbb.NewClient(srv.URL+"/imgbb", "img-key", srv.Client())
	composer := vton.NewClient(srv.URL+"/vton", "vt-key", vton.Params{Category: "dresses", Steps: 30, Seed: 42}, srv.Client())

	mux := http.NewServeMux()
	NewAuthHandler(store, tokens, authn, SessionOptions{CookieName: "token", InitialCoins: 100}, nil).Register(mux, testPrefix)
	NewRelayHandler(
		relay.NewUploader(area, predictor, []string{".zip", ".rar"}, nil),
		relay.NewRecommender(area, predictor),
		relay.NewTryOn(area, host, composer, "dresses", nil),
		authn,
		RelayOptions{MaxUploadBytes: 1 << 20, AnonymousUserID: "anonymous"},
	).Register(mux, testPrefix)

	return &testEnv{handler: mux, store: store, tokens: tokens, upstream: up, area: area}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, testPrefix+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) newUploadRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, testPrefix+path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

type envelope struct {
	Code    int                  `json:"code"`
	Message string               `json:"message"`
	Error   string               `json:"error"`
	Token   string               `json:"token"`
	User    json.RawMessage      `json:"user"`
	Data    json.RawMessage      `json:"data"`
	Errors  []respond.FieldError `json:"errors"`
	Details string               `json:"details"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}
