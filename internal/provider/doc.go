// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the inference transport: the client
// interface the model engine talks to, and the remote HTTP client that
// speaks the OpenAI-compatible chat completions surface for the openai,
// gemini and anthropic gateways.
//
// # Key Types
//
//   - InferenceClient: what the engine requires from any backend
//   - GenConfig: one completion request (messages, sampling, tools)
//   - Chunk: one streaming delta (content and/or tool-call fragments)
//   - Response: the assembled completion, streaming or not
//   - Remote: the HTTP implementation with per-provider key files
//
// # Usage
//
//	key, err := provider.ReadKey(paths.KeyFile("openai"))
//	client := provider.NewRemote("openai", key)
//	resp, err := client.Complete(ctx, cfg, func(c provider.Chunk) {
//		fmt.Print(c.Content())
//	})
//
// Streaming and non-streaming requests share one entry point: when
// cfg.Stream is set the callback receives each delta and the returned
// Response carries the accumulated result, including tool calls merged
// by index.
package provider
