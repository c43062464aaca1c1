// Package predict talks to the external ML service that classifies uploaded
// archives and recommends similar images.
package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fashionlens/fashion-lens-be/internal/clients/upstream"
	"github.com/fashionlens/fashion-lens-be/internal/obs"
)

const (
	serviceName   = "predict"
	predictPath   = "/predict/"
	recommendPath = "/recommend-binary/"
	maxResponse   = 64 << 20
)

// Client posts staged files to the prediction service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for baseURL (for example http://127.0.0.1:8000).
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Predict forwards the archive at path together with the user id and model
// type and returns the service's JSON body untouched.
func (c *Client) Predict(ctx context.Context, userID, modelType, path string) (_ json.RawMessage, err error) {
	ctx, span := obs.Start(ctx, "predict.post", trace.WithAttributes(
		attribute.String("predict.model_type", modelType),
	))
	defer func() { obs.End(span, err) }()

	fields := map[string]string{"user_id": userID, "model_type": modelType}
	body, err := c.post(ctx, "predict", predictPath, fields, path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, upstream.Wrap(serviceName, "predict", errors.New("response is not valid JSON"))
	}
	return json.RawMessage(body), nil
}

// Recommend forwards the image at path and returns the recommended images
// (base64 strings) the service suggests.
func (c *Client) Recommend(ctx context.Context, path string) (_ []string, err error) {
	ctx, span := obs.Start(ctx, "predict.recommend")
	defer func() { obs.End(span, err) }()

	body, err := c.post(ctx, "recommend", recommendPath, nil, path)
	if err != nil {
		return nil, err
	}
	var out struct {
		RecommendedImages []string `json:"recommended_images"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, upstream.Wrap(serviceName, "recommend", fmt.Errorf("decode response: %w", err))
	}
	if out.RecommendedImages == nil {
		out.RecommendedImages = []string{}
	}
	span.SetAttributes(attribute.Int("predict.recommended", len(out.RecommendedImages)))
	return out.RecommendedImages, nil
}

func (c *Client) post(ctx context.Context, op, endpoint string, fields map[string]string, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(writer, fields, filepath.Base(path), f))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, upstream.Wrap(serviceName, op, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, upstream.Wrap(serviceName, op, err)
	}
	defer resp.Body.Close()

	if !upstream.OK(resp.StatusCode) {
		return nil, upstream.FromResponse(serviceName, op, resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, upstream.Wrap(serviceName, op, fmt.Errorf("read response: %w", err))
	}
	return body, nil
}

func writeForm(w *multipart.Writer, fields map[string]string, filename string, src io.Reader) error {
	for _, key := range []string{"user_id", "model_type"} {
		if v, ok := fields[key]; ok {
			if err := w.WriteField(key, v); err != nil {
				return err
			}
		}
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return w.Close()
}
