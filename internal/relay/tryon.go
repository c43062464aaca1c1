package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fashionlens/fashion-lens-be/internal/clients/vton"
	"github.com/fashionlens/fashion-lens-be/internal/events"
	"github.com/fashionlens/fashion-lens-be/internal/obs"
	"github.com/fashionlens/fashion-lens-be/internal/staging"
)

// ImageHost publishes a local image and returns its public URL.
type ImageHost interface {
	Host(ctx context.Context, path string) (string, error)
}

// Composer produces the try-on image from two hosted images.
type Composer interface {
	Compose(ctx context.Context, humanURL, garmentURL string) (vton.Image, error)
}

// TryOn orchestrates a virtual try-on: stage, host, compose, encode.
type TryOn struct {
	area     *staging.Area
	host     ImageHost
	composer Composer
	category string
	events   events.Publisher
}

// NewTryOn wires the orchestrator. category is only reported in events.
func NewTryOn(area *staging.Area, host ImageHost, composer Composer, category string, pub events.Publisher) *TryOn {
	if pub == nil {
		pub = events.Nop{}
	}
	return &TryOn{area: area, host: host, composer: composer, category: category, events: pub}
}

// Compose returns the composed image as a base64 data URI.
func (t *TryOn) Compose(ctx context.Context, humanB64, garmentB64 string) (_ string, err error) {
	ctx, span := obs.Start(ctx, "relay.tryon")
	defer func() { obs.End(span, err) }()

	if strings.TrimSpace(humanB64) == "" || strings.TrimSpace(garmentB64) == "" {
		return "", ErrMissingImages
	}
	human, err := decodeImage(humanB64)
	if err != nil {
		return "", fmt.Errorf("human image: %w", err)
	}
	garment, err := decodeImage(garmentB64)
	if err != nil {
		return "", fmt.Errorf("garment image: %w", err)
	}

	session, err := t.area.Begin()
	if err != nil {
		return "", err
	}
	defer session.Cleanup()

	humanPath, err := session.WriteNamed("human"+imageExt(human), bytes.NewReader(human))
	if err != nil {
		return "", err
	}
	garmentPath, err := session.WriteNamed("garment"+imageExt(garment), bytes.NewReader(garment))
	if err != nil {
		return "", err
	}

	humanURL, err := t.host.Host(ctx, humanPath)
	if err != nil {
		return "", fmt.Errorf("host human image: %w", err)
	}
	garmentURL, err := t.host.Host(ctx, garmentPath)
	if err != nil {
		return "", fmt.Errorf("host garment image: %w", err)
	}

	// Local copies are no longer needed once both are hosted.
	for _, p := range []string{humanPath, garmentPath} {
		if err := session.Remove(p); err != nil {
			log.Printf("tryon: %v", err)
		}
	}

	img, err := t.composer.Compose(ctx, humanURL, garmentURL)
	if err != nil {
		if errors.Is(err, vton.ErrHTMLResponse) {
			log.Printf("tryon: request %s: upstream answered with HTML: %v", session.ID(), err)
		} else {
			log.Printf("tryon: request %s: compose failed: %v", session.ID(), err)
		}
		return "", fmt.Errorf("compose: %w", err)
	}

	events.Emit(ctx, t.events, events.KeyTryOnCompleted, events.TryOnCompleted{
		Event:      events.KeyTryOnCompleted,
		OccurredAt: time.Now().UTC(),
		RequestID:  session.ID(),
		Category:   t.category,
		Bytes:      len(img.Data),
	})
	return DataURI(img.ContentType, img.Data), nil
}

// DataURI encodes data as a base64 data URI.
func DataURI(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "image/png"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// decodeImage accepts plain base64 (standard or URL alphabet, padded or not)
// or a data URI.
func decodeImage(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "data:") {
		comma := strings.Index(s, ",")
		if comma < 0 || !strings.Contains(s[:comma], ";base64") {
			return nil, ErrInvalidImage
		}
		s = s[comma+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			if len(b) == 0 {
				return nil, ErrInvalidImage
			}
			return b, nil
		}
	}
	return nil, ErrInvalidImage
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}
