// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// ERROR SENTINELS
// =============================================================================

var (
	// ErrNoKey indicates the provider key file is missing or empty.
	ErrNoKey = errors.New("no API key configured")

	// ErrUnknownProvider indicates the model name matches no provider.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrAuthFailed indicates the key was rejected (HTTP 401/403).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrNoTokenizer indicates the client cannot tokenize locally.
	ErrNoTokenizer = errors.New("client has no tokenizer")
)

// =============================================================================
// API ERROR
// =============================================================================

// APIError is a non-2xx response from a provider gateway.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Provider, e.Status)
}

// Is maps well-known status codes onto the package sentinels so callers
// can use errors.Is without inspecting Status directly.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrModelNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Retryable reports whether the request may succeed on retry.
func (e *APIError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}
