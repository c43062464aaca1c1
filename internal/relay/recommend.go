package relay

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fashionlens/fashion-lens-be/internal/obs"
	"github.com/fashionlens/fashion-lens-be/internal/staging"
)

// RecommendationSource returns images similar to a staged one.
type RecommendationSource interface {
	Recommend(ctx context.Context, path string) ([]string, error)
}

// Recommender relays an image to the recommendation endpoint.
type Recommender struct {
	area   *staging.Area
	source RecommendationSource
}

func NewRecommender(area *staging.Area, source RecommendationSource) *Recommender {
	return &Recommender{area: area, source: source}
}

// Accepts checks filename against the image allow-list without touching disk.
func (r *Recommender) Accepts(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return ErrNoFile
	}
	if ext, ok := allowExtension(filename, ImageExtensions); !ok {
		return fmt.Errorf("%w %q: only images allowed", ErrUnsupportedFile, ext)
	}
	return nil
}

// Recommend stages the image, asks for recommendations and removes the file.
func (r *Recommender) Recommend(ctx context.Context, filename string, body io.Reader) (_ []string, err error) {
	ctx, span := obs.Start(ctx, "relay.recommend")
	defer func() { obs.End(span, err) }()

	if body == nil {
		return nil, ErrNoFile
	}
	if err := r.Accepts(filename); err != nil {
		return nil, err
	}

	session, err := r.area.Begin()
	if err != nil {
		return nil, err
	}
	defer session.Cleanup()

	ext, _ := allowExtension(filename, ImageExtensions)
	path, err := session.Write(ext, body)
	if err != nil {
		return nil, err
	}

	images, err := r.source.Recommend(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("forward image: %w", err)
	}
	return images, nil
}
