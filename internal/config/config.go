package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string   `envconfig:"PORT" default:"4000"`
	RoutePrefix string   `envconfig:"ROUTE_PREFIX"`
	DatabaseURL string   `envconfig:"DATABASE_URL"`
	CORSOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	JWTSecret     string        `envconfig:"JWT_SECRET"`
	JWTIssuer     string        `envconfig:"JWT_ISSUER" default:"fashion-lens"`
	JWTTTL        time.Duration `envconfig:"JWT_TTL" default:"24h"`
	CookieName    string        `envconfig:"SESSION_COOKIE_NAME" default:"token"`
	CookieSecure  bool          `envconfig:"SESSION_COOKIE_SECURE" default:"false"`
	InitialCoins  int64         `envconfig:"INITIAL_COINS" default:"100"`
	ServiceName   string        `envconfig:"SERVICE_NAME" default:"fashion-lens-be"`
	OTLPEndpoint  string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Environment   string        `envconfig:"ENV" default:"dev"`
	RabbitURL     string        `envconfig:"RABBIT_URL"`
	EventExchange string        `envconfig:"EVENT_EXCHANGE" default:"fashionlens.activity"`

	Relay Relay
}

// Relay groups the settings of the upload, recommendation and try-on relays.
type Relay struct {
	UploadDir         string        `envconfig:"UPLOAD_DIR" default:"uploads"`
	MaxUploadMB       int64         `envconfig:"MAX_UPLOAD_MB" default:"64"`
	ArchiveExtensions []string      `envconfig:"UPLOAD_ALLOWED_EXT" default:".zip,.rar"`
	UpstreamTimeout   time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"120s"`

	PredictBaseURL  string `envconfig:"PREDICT_BASE_URL" default:"http://127.0.0.1:8000"`
	AnonymousUserID string `envconfig:"PREDICT_ANON_USER_ID" default:"anonymous"`

	ImgBBUploadURL string `envconfig:"IMGBB_UPLOAD_URL" default:"https://api.imgbb.com/1/upload"`
	ImgBBAPIKey    string `envconfig:"IMGBB_API_KEY"`

	VTONURL    string `envconfig:"VTON_API_URL" default:"https://api.segmind.com/v1/idm-vton"`
	VTONAPIKey string `envconfig:"VTON_API_KEY"`
	VTON       VTONParams
}

// VTONParams are the generation knobs sent with every try-on request.
type VTONParams struct {
	Category string `envconfig:"VTON_CATEGORY" default:"dresses"`
	Steps    int    `envconfig:"VTON_STEPS" default:"30"`
	Seed     int64  `envconfig:"VTON_SEED" default:"42"`
	Crop     bool   `envconfig:"VTON_CROP" default:"false"`
	ForceDC  bool   `envconfig:"VTON_FORCE_DC" default:"false"`
	MaskOnly bool   `envconfig:"VTON_MASK_ONLY" default:"false"`
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.RoutePrefix = strings.TrimRight(strings.TrimSpace(cfg.RoutePrefix), "/")
	cfg.CORSOrigins = normalizeList(cfg.CORSOrigins, "http://localhost:3000")
	cfg.Relay.ArchiveExtensions = normalizeExtensions(cfg.Relay.ArchiveExtensions)

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 24 * time.Hour
	}
	if cfg.InitialCoins < 0 {
		return Config{}, errors.New("INITIAL_COINS must not be negative")
	}
	if cfg.Relay.MaxUploadMB <= 0 {
		cfg.Relay.MaxUploadMB = 64
	}
	if cfg.Relay.VTON.Steps <= 0 {
		return Config{}, errors.New("VTON_STEPS must be positive")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// MaxUploadBytes is the request body limit applied to relay endpoints.
func (r Relay) MaxUploadBytes() int64 {
	return r.MaxUploadMB << 20
}

func normalizeList(values []string, def string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{def}
	}
	return out
}

func normalizeExtensions(values []string) []string {
	var out []string
	for _, v := range values {
		ext := strings.ToLower(strings.TrimSpace(v))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return []string{".zip", ".rar"}
	}
	return out
}
