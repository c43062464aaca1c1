package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fashionlens/fashion-lens-be/internal/events"
	"github.com/fashionlens/fashion-lens-be/internal/obs"
	"github.com/fashionlens/fashion-lens-be/internal/staging"
)

// DefaultModelType is used when the client does not name a model.
const DefaultModelType = "all_in_one"

// ModelTypes are the prediction models the ML service runs.
var ModelTypes = []string{"garment", "color", "pattern", "textile", DefaultModelType}

// Predictor forwards a staged archive to the prediction service.
type Predictor interface {
	Predict(ctx context.Context, userID, modelType, path string) (json.RawMessage, error)
}

// UploadInput is one archive submitted for prediction.
type UploadInput struct {
	UserID    string
	ModelType string
	Filename  string
	Body      io.Reader
}

// Uploader relays archives to the prediction service.
type Uploader struct {
	area      *staging.Area
	predictor Predictor
	allowed   []string
	events    events.Publisher
}

// NewUploader builds an Uploader accepting the given archive extensions.
func NewUploader(area *staging.Area, predictor Predictor, allowed []string, pub events.Publisher) *Uploader {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Uploader{area: area, predictor: predictor, allowed: allowed, events: pub}
}

// Accepts checks filename against the archive allow-list without touching disk.
func (u *Uploader) Accepts(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return ErrNoFile
	}
	ext, ok := allowExtension(filename, u.allowed)
	if !ok {
		return fmt.Errorf("%w %q: only %s allowed", ErrUnsupportedFile, ext, strings.Join(u.allowed, ", "))
	}
	return nil
}

// Upload stages the archive, forwards it and returns the service's JSON as is.
// The staged file is removed on every return path.
func (u *Uploader) Upload(ctx context.Context, in UploadInput) (_ json.RawMessage, err error) {
	ctx, span := obs.Start(ctx, "relay.upload")
	defer func() { obs.End(span, err) }()

	if in.Body == nil {
		return nil, ErrNoFile
	}
	if err := u.Accepts(in.Filename); err != nil {
		return nil, err
	}
	modelType, err := normalizeModelType(in.ModelType)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("relay.model_type", modelType))

	session, err := u.area.Begin()
	if err != nil {
		return nil, err
	}
	defer session.Cleanup()

	ext, _ := allowExtension(in.Filename, u.allowed)
	path, err := session.Write(ext, in.Body)
	if err != nil {
		return nil, err
	}

	result, err := u.predictor.Predict(ctx, in.UserID, modelType, path)
	if err != nil {
		return nil, fmt.Errorf("forward archive: %w", err)
	}

	events.Emit(ctx, u.events, events.KeyPredictionCompleted, events.PredictionCompleted{
		Event:      events.KeyPredictionCompleted,
		OccurredAt: time.Now().UTC(),
		UserID:     in.UserID,
		ModelType:  modelType,
		RequestID:  session.ID(),
	})
	return result, nil
}

func normalizeModelType(raw string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(raw))
	if mt == "" {
		return DefaultModelType, nil
	}
	for _, known := range ModelTypes {
		if mt == known {
			return mt, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrInvalidModelType, raw)
}
