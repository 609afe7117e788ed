// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package intake validates documents (size ceiling, extension
// allow-list) and uploads them to the backend, one at a time. PDF
// uploads are flagged as lab reports so the session can offer
// analysis.
package intake
