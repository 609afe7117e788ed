// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers: rune-safe truncation,
// inbound reply-prefix stripping, and atomic file writes used by the
// transcript export.
package util
