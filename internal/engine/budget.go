// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"errors"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/jeranaias/meltdown/internal/provider"
)

// =============================================================================
// TOKEN BUDGET
// =============================================================================

var (
	cl100kOnce  sync.Once
	cl100kCodec tokenizer.Codec
	cl100kErr   error
)

func cl100k() (tokenizer.Codec, error) {
	cl100kOnce.Do(func() {
		cl100kCodec, cl100kErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return cl100kCodec, cl100kErr
}

// trimBudget trims text to at most max_tokens x token_limit tokens.
// Local models use their own tokenizer when they have one, falling back
// to a cl100k estimate; remote prompts pass through unchanged.
func (e *Engine) trimBudget(text string) string {
	e.mu.Lock()
	client := e.client
	local := e.loaded.Type == "local"
	e.mu.Unlock()

	if !local || client == nil || text == "" {
		return text
	}
	max := int(float64(e.cfg.MaxTokens) * e.cfg.TokenLimit)
	if max <= 0 {
		return text
	}

	tokens, err := client.Tokenize(text)
	if err == nil {
		if len(tokens) <= max {
			return text
		}
		if out, derr := client.Detokenize(tokens[:max]); derr == nil {
			return out
		}
		return text
	}
	if !errors.Is(err, provider.ErrNoTokenizer) {
		e.log.Error("tokenize", err)
		return text
	}

	codec, err := cl100k()
	if err != nil {
		return text
	}
	ids, _, err := codec.Encode(text)
	if err != nil || len(ids) <= max {
		return text
	}
	out, err := codec.Decode(ids[:max])
	if err != nil {
		return text
	}
	return out
}
