// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history reconciles the server's conversation history with
// the local cache at session start: it adopts the server's identity,
// purges the cache on identity changes, and normalizes server roles
// into the client's vocabulary.
package history
