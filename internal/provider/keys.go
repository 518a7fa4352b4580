// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"fmt"
	"os"
	"strings"
)

// =============================================================================
// PROVIDER INFERENCE
// =============================================================================

// Providers recognized by this package.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// InferProvider maps a model name onto its provider by prefix:
// gpt-*/o1*/o3*/o4* belong to openai, gemini-* to gemini and claude-*
// to anthropic. Anything else returns ErrUnknownProvider.
func InferProvider(model string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(name, "gpt-"),
		strings.HasPrefix(name, "o1"),
		strings.HasPrefix(name, "o3"),
		strings.HasPrefix(name, "o4"):
		return ProviderOpenAI, nil
	case strings.HasPrefix(name, "gemini-"):
		return ProviderGemini, nil
	case strings.HasPrefix(name, "claude-"):
		return ProviderAnthropic, nil
	}
	return "", fmt.Errorf("%w for model %q", ErrUnknownProvider, model)
}

// KeyName returns the key-file owner for a provider. Gemini keys live
// in google_key.txt; the others match their provider name.
func KeyName(providerName string) string {
	if providerName == ProviderGemini {
		return "google"
	}
	return providerName
}

// =============================================================================
// KEY FILES
// =============================================================================

// ReadKey reads an API key from a plain-text file, trimming whitespace.
// A missing or empty file yields ErrNoKey.
func ReadKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNoKey, path)
		}
		return "", fmt.Errorf("read key %s: %w", path, err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoKey, path)
	}
	return key, nil
}
