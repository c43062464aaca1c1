package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/fashionlens/fashion-lens-be/internal/auth"
	"github.com/fashionlens/fashion-lens-be/internal/middleware"
	"github.com/fashionlens/fashion-lens-be/internal/models/dto"
	"github.com/fashionlens/fashion-lens-be/internal/storage"
	"github.com/fashionlens/fashion-lens-be/internal/storage/mongo"
	"github.com/fashionlens/fashion-lens-be/internal/storage/postgres"
)

// TestAuthIntegration exercises register/login/profile against the database named by DATABASE_URL.
func TestAuthIntegration(t *testing.T) {
	if os.Getenv("RUN_AUTH_INTEGRATION") != "true" {
		t.Skip("set RUN_AUTH_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := mustGetEnv(t, "DATABASE_URL")

	ctx := context.Background()
	store, err := openIntegrationStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	defer store.Close()

	secret := mustGetEnv(t, "JWT_SECRET")
	tokens := auth.NewTokenManager(secret, "fashion-lens", 24*time.Hour)
	authn := middleware.NewAuthenticator(store, tokens, "token")

	mux := http.NewServeMux()
	authHandler := NewAuthHandler(store, tokens, authn, SessionOptions{CookieName: "token", InitialCoins: 100}, nil)
	authHandler.Register(mux, testPrefix)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	email := fmt.Sprintf("apitest_%d@example.com", time.Now().UnixNano())
	password := fmt.Sprintf("Pass!%d", time.Now().UnixNano())

	registered := requestAuth(t, ts.URL+testPrefix+"/register", http.StatusCreated, map[string]any{
		"fullname":     map[string]string{"firstname": "Integration"},
		"email":        email,
		"password":     password,
		"organization": "Acme",
		"role":         "Manager",
	})
	if registered.User.Email != email || registered.User.Coins != 100 {
		t.Fatalf("register mismatch: got %+v", registered.User)
	}

	loggedIn := requestAuth(t, ts.URL+testPrefix+"/login", http.StatusOK, map[string]any{
		"email":    email,
		"password": password,
	})
	if loggedIn.User.ID != registered.User.ID {
		t.Fatalf("login returned wrong user id: want %s got %s", registered.User.ID, loggedIn.User.ID)
	}
	if strings.TrimSpace(loggedIn.Token) == "" {
		t.Fatal("login response missing token")
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+testPrefix+"/profile", nil)
	if err != nil {
		t.Fatalf("build profile request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+loggedIn.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("profile request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d", resp.StatusCode)
	}

	t.Logf("created user %s (id=%s) and successfully logged in via /login", email, registered.User.ID)
}

type authResponseBody struct {
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Data    dto.AuthResponse `json:"data"`
}

func requestAuth(t *testing.T, url string, wantStatus int, payload map[string]any) dto.AuthResponse {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("%s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}

	var out authResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out.Data
}

func openIntegrationStore(ctx context.Context, dbURL string) (storage.UserStore, error) {
	if mongo.IsMongoURL(dbURL) {
		return mongo.NewUserStore(ctx, dbURL)
	}
	return postgres.NewUserStore(ctx, dbURL)
}

func mustGetEnv(t *testing.T, key string) string {
	t.Helper()
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		t.Fatalf("%s is required", key)
	}
	return val
}

func loadDotEnv() {
	paths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
		"../../../../.env",
	}
	for _, path := range paths {
		_ = godotenv.Overload(path)
	}
}
