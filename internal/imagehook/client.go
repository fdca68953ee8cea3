// Package imagehook talks to the external image-generation backend through
// its fire-and-forget webhook pair: one endpoint accepts a generation
// request, a second one is polled for the finished image URLs. Both are
// plain POSTs with JSON bodies; the correlation id is the only link between
// the two.
package imagehook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SubmitError wraps a non-2xx response from the submit endpoint with its
// HTTP status code. Submits are never retried; the caller treats this as
// terminal for the request.
type SubmitError struct {
	StatusCode int
	Body       string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("image submit returned status %d", e.StatusCode)
}

// Client implements the webhook pair.
type Client struct {
	httpClient  *http.Client
	submitURL   string
	retrieveURL string
}

// NewClient creates a webhook client. baseURL is joined with the two paths;
// timeout applies to each request as a whole.
func NewClient(baseURL, submitPath, retrievePath string, timeout time.Duration) *Client {
	base := strings.TrimSuffix(baseURL, "/")
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		submitURL:   base + submitPath,
		retrieveURL: base + retrievePath,
	}
}

// submitRequest is the submit endpoint's body.
type submitRequest struct {
	ImageData string `json:"imageData"`
	UniqueID  string `json:"uniqueId"`
}

// retrieveRequest is the retrieve endpoint's body.
type retrieveRequest struct {
	UniqueID string `json:"uniqueId"`
}

// retrieveResponse is the retrieve endpoint's response. A missing or empty
// images list means the job is still pending.
type retrieveResponse struct {
	Images []string `json:"images"`
}

// Submit sends one image-generation request. One POST, no retry; any
// failure is terminal for the corresponding tool call.
func (c *Client) Submit(ctx context.Context, correlationID, visualizationText string) error {
	body, err := json.Marshal(submitRequest{
		ImageData: visualizationText,
		UniqueID:  correlationID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal submit payload: %w", err)
	}

	resp, err := c.post(ctx, c.submitURL, body)
	if err != nil {
		return fmt.Errorf("failed to send submit request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SubmitError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	log.Info().
		Str("correlation_id", correlationID).
		Int("status_code", resp.StatusCode).
		Msg("Image request accepted")

	return nil
}

// Poll asks the retrieve endpoint for the images belonging to a correlation
// id. It returns an empty slice while the job is pending: a response with
// no "images" key, an empty list, or only malformed entries all mean "not
// ready yet", because the backend may still be warming up. Returned URLs
// are always well-formed absolute http(s) URLs.
func (c *Client) Poll(ctx context.Context, correlationID string) ([]string, error) {
	body, err := json.Marshal(retrieveRequest{UniqueID: correlationID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal retrieve payload: %w", err)
	}

	resp, err := c.post(ctx, c.retrieveURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to send retrieve request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image retrieve returned status %d", resp.StatusCode)
	}

	var result retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode retrieve response: %w", err)
	}

	urls := filterImageURLs(result.Images)
	if len(urls) < len(result.Images) {
		log.Warn().
			Str("correlation_id", correlationID).
			Int("dropped", len(result.Images)-len(urls)).
			Msg("Dropped malformed image URLs from retrieve response")
	}

	return urls, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Designer-Webhook/1.0")
	return c.httpClient.Do(req)
}

// filterImageURLs keeps only well-formed absolute http(s) URLs.
func filterImageURLs(in []string) []string {
	var out []string
	for _, raw := range in {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		out = append(out, raw)
	}
	return out
}
