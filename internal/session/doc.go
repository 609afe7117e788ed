// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session is the conversation engine: it owns the timeline,
// routes user turns through the pending-offer classifier, ships chat
// over the duplex channel, runs uploads and document analysis, and
// reconciles history and cache at sign-in. A single run loop serializes
// every mutation; the UI consumes a typed update stream.
package session
