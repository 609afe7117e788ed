// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend implements the HTTP side of the backend collaborator:
// chat-history retrieval, multipart document upload, and lab-report
// analysis. Failures surface as typed *APIError values or the
// ErrUnavailable sentinel so callers can distinguish "server said no"
// from "server unreachable".
package backend
