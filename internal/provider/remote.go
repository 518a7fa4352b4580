// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// maxResponseSize caps a non-streaming response body (10 MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxEventSize caps a single SSE event (64 KB).
	maxEventSize = 64 * 1024

	// userAgent identifies this client to the gateways.
	userAgent = "meltdown/1.0"

	defaultMaxRetries  = 3
	baseBackoff        = 500 * time.Millisecond
	maxBackoff         = 10 * time.Second
	defaultHTTPTimeout = 60 * time.Second
)

// baseURLs maps each provider onto its OpenAI-compatible gateway root.
var baseURLs = map[string]string{
	ProviderOpenAI:    "https://api.openai.com/v1",
	ProviderGemini:    "https://generativelanguage.googleapis.com/v1beta/openai",
	ProviderAnthropic: "https://api.anthropic.com/v1",
}

// Shared HTTP clients with connection pooling. The streaming client has
// no request timeout; cancellation and deadlines flow through contexts.
var (
	sharedClient = &http.Client{
		Timeout: defaultHTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	sharedStreamClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
)

// =============================================================================
// REMOTE CLIENT
// =============================================================================

// Remote is an InferenceClient over an OpenAI-compatible HTTP gateway.
type Remote struct {
	provider   string
	key        string
	baseURL    string
	maxRetries int
	httpClient *http.Client
	streamer   *http.Client
}

// RemoteOption adjusts a Remote at construction.
type RemoteOption func(*Remote)

// WithBaseURL overrides the gateway root, mainly for tests.
func WithBaseURL(url string) RemoteOption {
	return func(r *Remote) { r.baseURL = strings.TrimRight(url, "/") }
}

// WithMaxRetries overrides the non-streaming retry budget.
func WithMaxRetries(n int) RemoteOption {
	return func(r *Remote) { r.maxRetries = n }
}

// NewRemote builds a client for one provider with its API key.
func NewRemote(providerName, key string, opts ...RemoteOption) *Remote {
	r := &Remote{
		provider:   providerName,
		key:        key,
		baseURL:    baseURLs[providerName],
		maxRetries: defaultMaxRetries,
		httpClient: sharedClient,
		streamer:   sharedStreamClient,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Provider returns the provider this client talks to.
func (r *Remote) Provider() string { return r.provider }

// Tokenize is unsupported on remote clients; prompts pass through
// untrimmed.
func (r *Remote) Tokenize(string) ([]int, error) { return nil, ErrNoTokenizer }

// Detokenize is unsupported on remote clients.
func (r *Remote) Detokenize([]int) (string, error) { return "", ErrNoTokenizer }

// wireModel qualifies the model name with the provider for the gateway.
func (r *Remote) wireModel(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	return r.provider + "/" + model
}

// Complete implements InferenceClient. Streaming requests never retry:
// partial output has already reached the caller.
func (r *Remote) Complete(ctx context.Context, cfg GenConfig, onChunk ChunkHandler) (*Response, error) {
	if r.key == "" {
		return nil, ErrNoKey
	}
	cfg.Model = r.wireModel(cfg.Model)
	if cfg.Stream && onChunk != nil {
		return r.completeStream(ctx, cfg, onChunk)
	}
	cfg.Stream = false
	return r.completeOnce(ctx, cfg)
}

func (r *Remote) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+r.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

func (r *Remote) newRequest(ctx context.Context, cfg GenConfig) (*http.Request, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	r.setHeaders(req)
	return req, nil
}

// =============================================================================
// NON-STREAMING
// =============================================================================

func (r *Remote) completeOnce(ctx context.Context, cfg GenConfig) (*Response, error) {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		req, err := r.newRequest(ctx, cfg)
		if err != nil {
			return nil, err
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := readBody(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := r.apiError(resp.StatusCode, body)
			if !apiErr.Retryable() {
				return nil, apiErr
			}
			lastErr = apiErr
			continue
		}

		var out Response
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		out.Stats = Stats{Total: time.Since(start), Chunks: 1}
		return &out, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// readBody reads a response body with a hard size cap.
func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("response too large: over %d bytes", maxResponseSize)
	}
	return data, nil
}

// apiError extracts the gateway's error message when the body carries
// the usual {"error": {"message": ...}} envelope.
func (r *Remote) apiError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		msg = envelope.Error.Message
	}
	return &APIError{Provider: r.provider, Status: status, Message: msg}
}

func backoff(attempt int) time.Duration {
	d := baseBackoff << (attempt - 1)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// =============================================================================
// STREAMING
// =============================================================================

func (r *Remote) completeStream(ctx context.Context, cfg GenConfig, onChunk ChunkHandler) (*Response, error) {
	req, err := r.newRequest(ctx, cfg)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.streamer.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := readBody(resp.Body)
		return nil, r.apiError(resp.StatusCode, body)
	}

	acc := NewAccumulator()
	reader := newEventReader(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return acc.Response(), ctx.Err()
		default:
		}

		data, err := reader.next()
		if err != nil {
			if err == io.EOF {
				return acc.Response(), nil
			}
			if ctx.Err() != nil {
				return acc.Response(), ctx.Err()
			}
			return acc.Response(), fmt.Errorf("stream read: %w", err)
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			return acc.Response(), nil
		}

		var chunk Chunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed chunks rather than abort the stream.
			continue
		}

		acc.Add(chunk)
		onChunk(chunk)

		if chunk.Done() {
			return acc.Response(), nil
		}
	}
}

// =============================================================================
// SSE READER
// =============================================================================

// eventReader parses data fields out of a Server-Sent Events stream.
type eventReader struct {
	r *bufio.Reader
}

func newEventReader(r io.Reader) *eventReader {
	return &eventReader{r: bufio.NewReader(r)}
}

// next returns the data payload of the next event. Multi-line data
// fields are joined with newlines; non-data fields are ignored.
// Returns io.EOF when the stream ends.
func (e *eventReader) next() ([]byte, error) {
	var dataLines [][]byte
	size := 0

	for {
		line, err := e.r.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			data := bytes.TrimSpace(line[5:])
			size += len(data)
			if size > maxEventSize {
				return nil, fmt.Errorf("event too large: over %d bytes", maxEventSize)
			}
			dataLines = append(dataLines, data)
		}
		// id:, event:, retry: and comment lines are ignored.
	}
}
