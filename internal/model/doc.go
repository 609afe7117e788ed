// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the conversation data structures: the Message
// turn type with its user/assistant roles and in-flight placeholder
// state, and the Timeline, the ordered append-only log of turns shared
// by every other component of the client.
//
// The Timeline is the only shared mutable state in the engine. All
// mutation goes through its operations (append, in-place placeholder
// resolution, placeholder cleanup, replace), each atomic on its own,
// so callers never need external locking.
package model
