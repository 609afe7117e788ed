// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the client configuration from TOML with
// environment-variable overrides and built-in defaults.
//
// Configuration sources (in order of precedence):
//   - MEDASSIST_* environment variables
//   - the TOML file passed to Load (default ~/.medassist/config.toml)
//   - built-in defaults
//
// A .env file in the working directory is folded into the environment
// before overrides are applied.
package config
