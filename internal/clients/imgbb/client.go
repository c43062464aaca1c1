// Package imgbb uploads local images to ImgBB and returns their public URL.
package imgbb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fashionlens/fashion-lens-be/internal/clients/upstream"
	"github.com/fashionlens/fashion-lens-be/internal/obs"
)

const serviceName = "imgbb"

// ErrMissingAPIKey is returned before any network call when no key is configured.
var ErrMissingAPIKey = errors.New("imgbb: api key is not configured")

// Client uploads images to an ImgBB-compatible endpoint.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient returns a Client posting to endpoint with apiKey.
func NewClient(endpoint, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, apiKey: strings.TrimSpace(apiKey), http: httpClient}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"data"`
}

// Host uploads the file at path and returns its hosted URL.
func (c *Client) Host(ctx context.Context, path string) (_ string, err error) {
	ctx, span := obs.Start(ctx, "imgbb.host")
	defer func() { obs.End(span, err) }()

	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("imgbb: parse endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", c.apiKey)
	endpoint.RawQuery = q.Encode()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("imgbb: open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("imgbb: create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("imgbb: copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("imgbb: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), &buf)
	if err != nil {
		return "", upstream.Wrap(serviceName, "upload", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", upstream.Wrap(serviceName, "upload", redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	if !upstream.OK(resp.StatusCode) {
		return "", upstream.FromResponse(serviceName, "upload", resp)
	}
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", upstream.Wrap(serviceName, "upload", fmt.Errorf("decode response: %w", err))
	}
	if !out.Success || strings.TrimSpace(out.Data.URL) == "" {
		return "", upstream.Wrap(serviceName, "upload", errors.New("response carries no image url"))
	}
	return out.Data.URL, nil
}

// redactKey keeps the API key out of error strings that embed the request URL.
func redactKey(err error, key string) error {
	msg := err.Error()
	if key == "" || !strings.Contains(msg, key) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, key, "***"))
}
