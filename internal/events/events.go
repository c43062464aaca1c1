// Package events publishes best-effort activity notifications.
package events

import (
	"context"
	"log"
	"time"
)

// Routing keys.
const (
	KeyBusinessRegistered  = "business.registered"
	KeyPredictionCompleted = "prediction.completed"
	KeyTryOnCompleted      = "tryon.completed"
)

// Publisher sends JSON-encoded events under a routing key.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishJSON(context.Context, string, any) error { return nil }
func (Nop) Close() error                                   { return nil }

type BusinessRegistered struct {
	Event        string    `json:"event"`
	OccurredAt   time.Time `json:"occurred_at"`
	UserID       string    `json:"user_id"`
	Organization string    `json:"organization"`
	Role         string    `json:"role"`
}

type PredictionCompleted struct {
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	UserID     string    `json:"user_id"`
	ModelType  string    `json:"model_type"`
	RequestID  string    `json:"request_id"`
}

type TryOnCompleted struct {
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	RequestID  string    `json:"request_id"`
	Category   string    `json:"category"`
	Bytes      int       `json:"bytes"`
}

// Emit publishes v and only logs failures; activity events never fail a request.
func Emit(ctx context.Context, p Publisher, key string, v any) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.PublishJSON(ctx, key, v); err != nil {
		log.Printf("events: publish %s: %v", key, err)
	}
}
