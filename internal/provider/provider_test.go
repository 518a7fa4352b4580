// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferProvider(t *testing.T) {
	tests := []struct {
		model   string
		want    string
		wantErr bool
	}{
		{"gpt-4o", ProviderOpenAI, false},
		{"gpt-3.5-turbo", ProviderOpenAI, false},
		{"o1-preview", ProviderOpenAI, false},
		{"o3-mini", ProviderOpenAI, false},
		{"gemini-1.5-pro", ProviderGemini, false},
		{"claude-3-opus", ProviderAnthropic, false},
		{"  GPT-4o  ", ProviderOpenAI, false},
		{"llama-3-8b", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := InferProvider(tt.model)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownProvider, tt.model)
			continue
		}
		require.NoError(t, err, tt.model)
		assert.Equal(t, tt.want, got, tt.model)
	}
}

func TestKeyName(t *testing.T) {
	assert.Equal(t, "openai", KeyName(ProviderOpenAI))
	assert.Equal(t, "google", KeyName(ProviderGemini))
	assert.Equal(t, "anthropic", KeyName(ProviderAnthropic))
}

func TestReadKey(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "openai_key.txt")
	require.NoError(t, os.WriteFile(path, []byte("  sk-test-123\n"), 0o600))

	key, err := ReadKey(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", key)

	_, err = ReadKey(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, ErrNoKey)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	_, err = ReadKey(empty)
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestFunctionTool(t *testing.T) {
	tool := FunctionTool("web_search", "search the web", map[string]string{"query": "string"})

	assert.Equal(t, "function", tool.Type)
	assert.Equal(t, "web_search", tool.Function.Name)

	props, ok := tool.Function.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "query")
	assert.Equal(t, []string{"query"}, tool.Function.Parameters["required"])
}

func TestAccumulatorMergesToolCallFragments(t *testing.T) {
	acc := NewAccumulator()

	acc.Add(Chunk{Choices: []ChunkChoice{{Delta: Delta{Role: "assistant", Content: "Hel"}}}})
	acc.Add(Chunk{Choices: []ChunkChoice{{Delta: Delta{Content: "lo"}}}})

	first := ToolCallDelta{Index: 0, ID: "call_1", Type: "function"}
	first.Function.Name = "web_search"
	first.Function.Arguments = `{"que`
	acc.Add(Chunk{Choices: []ChunkChoice{{Delta: Delta{ToolCalls: []ToolCallDelta{first}}}}})

	rest := ToolCallDelta{Index: 0}
	rest.Function.Arguments = `ry":"x"}`
	acc.Add(Chunk{Choices: []ChunkChoice{{Delta: Delta{ToolCalls: []ToolCallDelta{rest}}, FinishReason: "tool_calls"}}})

	require.True(t, acc.HasToolCalls())
	resp := acc.Response()
	assert.Equal(t, "Hello", resp.Text())
	assert.Equal(t, "tool_calls", resp.FinishReason())

	calls := resp.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "web_search", calls[0].Function.Name)
	assert.Equal(t, `{"query":"x"}`, calls[0].Function.Arguments)
}

func TestRemoteCompleteNonStreaming(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req GenConfig
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		require.False(t, req.Stream)

		resp := Response{
			Model: req.Model,
			Choices: []Choice{{
				Message:      Message{Role: "assistant", Content: "Harare."},
				FinishReason: "stop",
			}},
			Usage: Usage{TotalTokens: 12},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewRemote(ProviderOpenAI, "sk-test", WithBaseURL(srv.URL))
	resp, err := client.Complete(context.Background(), GenConfig{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "capital of Zimbabwe"}},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", gotModel)
	assert.Equal(t, "Harare.", resp.Text())
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestRemoteCompleteStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenConfig
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		send := func(v any) {
			data, err := json.Marshal(v)
			require.NoError(t, err)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}

		send(Chunk{Choices: []ChunkChoice{{Delta: Delta{Role: "assistant", Content: "Hel"}}}})
		send(Chunk{Choices: []ChunkChoice{{Delta: Delta{Content: "lo there"}}}})
		send(Chunk{Choices: []ChunkChoice{{FinishReason: "stop"}}})
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	client := NewRemote(ProviderAnthropic, "sk-test", WithBaseURL(srv.URL))

	var got strings.Builder
	resp, err := client.Complete(context.Background(), GenConfig{
		Model:    "claude-3-opus",
		Messages: []Message{{Role: "user", Content: "hi"}},
		Stream:   true,
	}, func(c Chunk) { got.WriteString(c.Content()) })

	require.NoError(t, err)
	assert.Equal(t, "Hello there", got.String())
	assert.Equal(t, "Hello there", resp.Text())
	assert.Equal(t, "stop", resp.FinishReason())
	assert.Equal(t, 3, resp.Stats.Chunks)
}

func TestRemoteStreamingToolCallDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		first := ToolCallDelta{Index: 0, ID: "call_9", Type: "function"}
		first.Function.Name = "web_search"
		first.Function.Arguments = `{"query":`
		rest := ToolCallDelta{Index: 0}
		rest.Function.Arguments = `"capital of Zimbabwe"}`

		for _, chunk := range []Chunk{
			{Choices: []ChunkChoice{{Delta: Delta{Role: "assistant", ToolCalls: []ToolCallDelta{first}}}}},
			{Choices: []ChunkChoice{{Delta: Delta{ToolCalls: []ToolCallDelta{rest}}, FinishReason: "tool_calls"}}},
		} {
			data, err := json.Marshal(chunk)
			require.NoError(t, err)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := NewRemote(ProviderOpenAI, "sk-test", WithBaseURL(srv.URL))
	resp, err := client.Complete(context.Background(), GenConfig{
		Model:  "gpt-4o",
		Stream: true,
		Tools:  []Tool{FunctionTool("web_search", "", map[string]string{"query": "string"})},
	}, func(Chunk) {})

	require.NoError(t, err)
	calls := resp.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_9", calls[0].ID)
	assert.Equal(t, "web_search", calls[0].Function.Name)
	assert.Equal(t, `{"query":"capital of Zimbabwe"}`, calls[0].Function.Arguments)
	assert.Equal(t, "tool_calls", resp.FinishReason())
}

func TestRemoteErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusForbidden, ErrAuthFailed},
		{http.StatusNotFound, ErrModelNotFound},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			fmt.Fprint(w, `{"error":{"message":"nope"}}`)
		}))

		client := NewRemote(ProviderOpenAI, "sk-bad", WithBaseURL(srv.URL), WithMaxRetries(0))
		_, err := client.Complete(context.Background(), GenConfig{Model: "gpt-4o"}, nil)
		srv.Close()

		require.Error(t, err, tt.status)
		assert.ErrorIs(t, err, tt.want, tt.status)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "nope", apiErr.Message)
	}
}

func TestRemoteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := Response{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewRemote(ProviderOpenAI, "sk-test", WithBaseURL(srv.URL))
	resp, err := client.Complete(context.Background(), GenConfig{Model: "gpt-4o"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteStreamCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		data, err := json.Marshal(Chunk{Choices: []ChunkChoice{{Delta: Delta{Content: "part"}}}})
		require.NoError(t, err)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewRemote(ProviderOpenAI, "sk-test", WithBaseURL(srv.URL))

	resp, err := client.Complete(ctx, GenConfig{Model: "gpt-4o", Stream: true}, func(c Chunk) {
		cancel()
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, resp)
	assert.Equal(t, "part", resp.Text())
}

func TestRemoteWithoutKey(t *testing.T) {
	client := NewRemote(ProviderOpenAI, "")
	_, err := client.Complete(context.Background(), GenConfig{Model: "gpt-4o"}, nil)
	assert.ErrorIs(t, err, ErrNoKey)
}
