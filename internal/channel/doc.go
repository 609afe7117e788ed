// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package channel maintains the duplex WebSocket connection to the
// backend and exposes it as a typed event stream (opened, message,
// closed). Reconnects supersede the old connection via a generation
// counter so stale events are identifiable by consumers.
package channel
