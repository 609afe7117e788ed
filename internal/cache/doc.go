// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache persists the last known identity and timeline in a
// local SQLite database so restarts can render the prior conversation
// immediately. The cache is advisory: the server history remains the
// source of truth and a mismatched identity purges everything.
package cache
