// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logs renders conversations to the saved log formats: plain
// text, JSON and markdown. The JSON form is the full conversation
// object and round-trips back into the session store.
package logs
