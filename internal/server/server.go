package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fashionlens/fashion-lens-be/internal/auth"
	"github.com/fashionlens/fashion-lens-be/internal/clients/imgbb"
	"github.com/fashionlens/fashion-lens-be/internal/clients/predict"
	"github.com/fashionlens/fashion-lens-be/internal/clients/vton"
	"github.com/fashionlens/fashion-lens-be/internal/config"
	"github.com/fashionlens/fashion-lens-be/internal/events"
	"github.com/fashionlens/fashion-lens-be/internal/http/handlers"
	"github.com/fashionlens/fashion-lens-be/internal/middleware"
	"github.com/fashionlens/fashion-lens-be/internal/relay"
	"github.com/fashionlens/fashion-lens-be/internal/staging"
	"github.com/fashionlens/fashion-lens-be/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store storage.UserStore, pub events.Publisher) (*Server, error) {
	handler, err := NewHandler(cfg, store, pub)
	if err != nil {
		return nil, err
	}

	// Relays wait on slow upstreams, so the write deadline follows the upstream timeout.
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.Relay.UpstreamTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}, nil
}

// NewHandler builds the full middleware and route stack.
func NewHandler(cfg config.Config, store storage.UserStore, pub events.Publisher) (http.Handler, error) {
	if pub == nil {
		pub = events.Nop{}
	}
	area, err := staging.NewArea(cfg.Relay.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("init staging area: %w", err)
	}
	upstreamHTTP := &http.Client{Timeout: cfg.Relay.UpstreamTimeout}

	predictor := predict.NewClient(cfg.Relay.PredictBaseURL, upstreamHTTP)
	hoster := imgbb.NewClient(cfg.Relay.ImgBBUploadURL, cfg.Relay.ImgBBAPIKey, upstreamHTTP)
	composer := vton.NewClient(cfg.Relay.VTONURL, cfg.Relay.VTONAPIKey, vton.Params{
		Category: cfg.Relay.VTON.Category,
		Steps:    cfg.Relay.VTON.Steps,
		Seed:     cfg.Relay.VTON.Seed,
		Crop:     cfg.Relay.VTON.Crop,
		ForceDC:  cfg.Relay.VTON.ForceDC,
		MaskOnly: cfg.Relay.VTON.MaskOnly,
	}, upstreamHTTP)

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	authn := middleware.NewAuthenticator(store, tokenManager, cfg.CookieName)

	mux := http.NewServeMux()
	health := handlers.NewHealthHandler(time.Now())
	health.Register(mux)

	authHandler := handlers.NewAuthHandler(store, tokenManager, authn, handlers.SessionOptions{
		CookieName:   cfg.CookieName,
		CookieSecure: cfg.CookieSecure,
		InitialCoins: cfg.InitialCoins,
	}, pub)
	authHandler.Register(mux, cfg.RoutePrefix)

	relays := handlers.NewRelayHandler(
		relay.NewUploader(area, predictor, cfg.Relay.ArchiveExtensions, pub),
		relay.NewRecommender(area, predictor),
		relay.NewTryOn(area, hoster, composer, cfg.Relay.VTON.Category, pub),
		authn,
		handlers.RelayOptions{
			MaxUploadBytes:  cfg.Relay.MaxUploadBytes(),
			AnonymousUserID: cfg.Relay.AnonymousUserID,
		},
	)
	relays.Register(mux, cfg.RoutePrefix)

	return middleware.CORS(cfg.CORSOrigins, middleware.Logging(middleware.Recover(mux))), nil
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
