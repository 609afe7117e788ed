// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pending tracks the document-analysis offer: after a lab
// report upload the assistant offers to analyze it, and the user's
// next turn is classified as a confirmation, a refusal, or ordinary
// chat. At most one offer is armed at a time and every armed offer is
// consumed by exactly one turn.
package pending
