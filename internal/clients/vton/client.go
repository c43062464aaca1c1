// Package vton calls the IDM-VTON try-on API, which composes a garment onto a
// person image and answers with the raw image bytes.
package vton

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fashionlens/fashion-lens-be/internal/clients/upstream"
	"github.com/fashionlens/fashion-lens-be/internal/obs"
)

const (
	serviceName  = "vton"
	maxImageSize = 32 << 20
	defaultMIME  = "image/png"
)

var (
	// ErrMissingAPIKey is returned before any network call when no key is configured.
	ErrMissingAPIKey = errors.New("vton: api key is not configured")
	// ErrHTMLResponse marks the upstream answering with an HTML page instead of an image.
	ErrHTMLResponse = errors.New("vton: upstream returned an HTML page")
	// ErrEmptyImage marks a successful response with no body.
	ErrEmptyImage = errors.New("vton: upstream returned an empty image")
	// ErrImageTooLarge marks a response body over the size limit.
	ErrImageTooLarge = errors.New("vton: upstream image exceeds size limit")
)

// Params are the generation settings sent with every request.
type Params struct {
	Category string
	Steps    int
	Seed     int64
	Crop     bool
	ForceDC  bool
	MaskOnly bool
}

type composeRequest struct {
	Crop     bool   `json:"crop"`
	Seed     int64  `json:"seed"`
	Steps    int    `json:"steps"`
	Category string `json:"category"`
	ForceDC  bool   `json:"force_dc"`
	HumanImg string `json:"human_img"`
	GarmImg  string `json:"garm_img"`
	MaskOnly bool   `json:"mask_only"`
}

// Image is a composed try-on result.
type Image struct {
	Data        []byte
	ContentType string
}

// Client posts compose requests to the try-on endpoint.
type Client struct {
	endpoint string
	apiKey   string
	params   Params
	http     *http.Client
	maxImage int64
}

// NewClient returns a Client for endpoint authenticated with apiKey.
func NewClient(endpoint, apiKey string, params Params, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(apiKey),
		params:   params,
		http:     httpClient,
		maxImage: maxImageSize,
	}
}

// Compose asks the API to dress the person at humanURL in the garment at garmentURL.
func (c *Client) Compose(ctx context.Context, humanURL, garmentURL string) (_ Image, err error) {
	ctx, span := obs.Start(ctx, "vton.compose", trace.WithAttributes(
		attribute.String("vton.category", c.params.Category),
		attribute.Int("vton.steps", c.params.Steps),
	))
	defer func() { obs.End(span, err) }()

	if c.apiKey == "" {
		return Image{}, ErrMissingAPIKey
	}
	payload, err := json.Marshal(composeRequest{
		Crop:     c.params.Crop,
		Seed:     c.params.Seed,
		Steps:    c.params.Steps,
		Category: c.params.Category,
		ForceDC:  c.params.ForceDC,
		HumanImg: humanURL,
		GarmImg:  garmentURL,
		MaskOnly: c.params.MaskOnly,
	})
	if err != nil {
		return Image{}, fmt.Errorf("vton: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Image{}, upstream.Wrap(serviceName, "compose", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Image{}, upstream.Wrap(serviceName, "compose", err)
	}
	defer resp.Body.Close()

	// One byte past the limit tells a full-size image from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImage+1))
	if err != nil {
		return Image{}, upstream.Wrap(serviceName, "compose", fmt.Errorf("read response: %w", err))
	}
	contentType := mediaType(resp.Header.Get("Content-Type"))
	if isHTML(contentType, body) {
		return Image{}, &upstream.Error{
			Service: serviceName,
			Op:      "compose",
			Status:  resp.StatusCode,
			Body:    excerpt(body),
			Err:     ErrHTMLResponse,
		}
	}
	if !upstream.OK(resp.StatusCode) {
		return Image{}, &upstream.Error{Service: serviceName, Op: "compose", Status: resp.StatusCode, Body: excerpt(body)}
	}
	if int64(len(body)) > c.maxImage {
		return Image{}, &upstream.Error{Service: serviceName, Op: "compose", Status: resp.StatusCode, Err: ErrImageTooLarge}
	}
	if len(body) == 0 {
		return Image{}, upstream.Wrap(serviceName, "compose", ErrEmptyImage)
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = defaultMIME
	}
	return Image{Data: body, ContentType: contentType}, nil
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

func isHTML(contentType string, body []byte) bool {
	if contentType == "text/html" || contentType == "application/xhtml+xml" {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '<' && !strings.HasPrefix(contentType, "image/")
}

func excerpt(body []byte) string {
	const limit = 2 << 10
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
