// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "strings"

// ReplyPrefix is the conventional literal tag the backend prepends to
// some inbound chat frames.
const ReplyPrefix = "Bot: "

// StripReplyPrefix removes the conventional role prefix from an inbound
// payload when present. The comparison is exact: only the fixed literal
// tag is stripped, never user content that happens to mention it later
// in the text.
func StripReplyPrefix(s string) string {
	return strings.TrimPrefix(s, ReplyPrefix)
}

// TruncateRunes truncates a string to a maximum number of runes,
// appending "..." when it shortens the input. Rune-based so multi-byte
// characters are never split.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// Singleline collapses newlines into spaces for previews and logs.
func Singleline(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}
