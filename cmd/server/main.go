package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fashionlens/fashion-lens-be/internal/config"
	"github.com/fashionlens/fashion-lens-be/internal/events"
	"github.com/fashionlens/fashion-lens-be/internal/obs"
	"github.com/fashionlens/fashion-lens-be/internal/server"
	"github.com/fashionlens/fashion-lens-be/internal/storage"
	"github.com/fashionlens/fashion-lens-be/internal/storage/mongo"
	"github.com/fashionlens/fashion-lens-be/internal/storage/postgres"
)

const version = "0.1.0"

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	shutdownTracer, err := obs.InitTracer(ctx, cfg.ServiceName, version, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("init tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("tracer shutdown error: %v", err)
		}
	}()

	userStore, err := openUserStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	defer userStore.Close()

	publisher := openPublisher(cfg)
	defer publisher.Close()

	srv, err := server.New(cfg, userStore, publisher)
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	go func() {
		log.Printf("Fashion Lens backend listening on %s", cfg.HTTPAddress())
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}

// openUserStore picks MongoDB or Postgres from the connection string scheme.
func openUserStore(ctx context.Context, databaseURL string) (storage.UserStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if mongo.IsMongoURL(databaseURL) {
		log.Println("using MongoDB user store")
		return mongo.NewUserStore(ctx, databaseURL)
	}
	log.Println("using Postgres user store")
	return postgres.NewUserStore(ctx, databaseURL)
}

func openPublisher(cfg config.Config) events.Publisher {
	if cfg.RabbitURL == "" {
		return events.Nop{}
	}
	pub, err := events.NewAMQPPublisher(cfg.RabbitURL, cfg.EventExchange)
	if err != nil {
		log.Printf("activity events disabled: %v", err)
		return events.Nop{}
	}
	return pub
}
