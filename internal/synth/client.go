package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Generation request knobs are fixed: code generation wants low temperature
// and a context window large enough for the schema preamble.
const (
	optTemperature = 0.1
	optTopP        = 0.9
	optNumCtx      = 4096
)

// Client is a minimal HTTP client for an Ollama-compatible /api/generate
// backend. Calls carry a bounded retry budget with fixed exponential backoff.
type Client struct {
	httpClient  *http.Client
	probeClient *http.Client
	host        string
	retryMax    int
	baseDelay   time.Duration
}

// NewClient creates a client targeting host (e.g. http://127.0.0.1:11434).
func NewClient(host string, requestTimeout, probeTimeout time.Duration, retryMax int, baseDelay time.Duration) *Client {
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	if requestTimeout <= 0 {
		requestTimeout = 300 * time.Second
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: requestTimeout},
		probeClient: &http.Client{Timeout: probeTimeout},
		host:        strings.TrimRight(host, "/"),
		retryMax:    retryMax,
		baseDelay:   baseDelay,
	}
}

// Host returns the configured backend base URL.
func (c *Client) Host() string { return c.host }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Available probes the backend version endpoint with the short probe timeout.
func (c *Client) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	return resp.StatusCode == http.StatusOK
}

// Generate sends the prompt to /api/generate and returns the raw response
// text. It retries up to the configured attempt budget, sleeping the fixed
// backoff sequence (base, 2*base, ...) between attempts.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		return "", errors.New("model cannot be empty")
	}
	payload, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": optTemperature,
			"top_p":       optTopP,
			"num_ctx":     optNumCtx,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.host + "/api/generate"

	var lastErr error
	backoff := c.baseDelay
	for attempt := 1; attempt <= c.retryMax; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		out, err := c.generateOnce(ctx, endpoint, payload)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt < c.retryMax {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
		}
	}
	return "", lastErr
}

func (c *Client) generateOnce(ctx context.Context, endpoint string, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return "", &TimeoutError{Err: err}
		}
		return "", &UnreachableError{Host: c.host, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var raw map[string]any
		if json.Unmarshal(body, &raw) == nil {
			if msg, ok := raw["error"].(string); ok {
				apiErr.Message = msg
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return "", apiErr
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Response == "" {
		return "", errors.New("unexpected response format: missing response field")
	}
	return out.Response, nil
}
