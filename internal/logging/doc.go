// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the process zap logger: JSON output to a
// size-rotated file with an optional console tee.
package logging
