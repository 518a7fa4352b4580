// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import "context"

// InferenceClient is the contract the model engine requires from any
// backend, local or remote.
//
// Complete performs one chat completion. When cfg.Stream is set and
// onChunk is non-nil, each delta is delivered to onChunk as it arrives
// and the returned Response holds the accumulated result; otherwise the
// whole completion is returned at once. Cancellation flows through ctx.
//
// Tokenize and Detokenize expose the backend tokenizer for prompt
// budget trimming; clients without one return ErrNoTokenizer.
type InferenceClient interface {
	Complete(ctx context.Context, cfg GenConfig, onChunk ChunkHandler) (*Response, error)
	Tokenize(text string) ([]int, error)
	Detokenize(tokens []int) (string, error)
}
