// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStripReplyPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bot: hello", "hello"},
		{"hello", "hello"},
		{"Bot: Bot: nested", "Bot: nested"}, // only the leading tag
		{"bot: hello", "bot: hello"},        // exact match only
		{"say Bot: to me", "say Bot: to me"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripReplyPrefix(tt.in); got != tt.want {
			t.Errorf("StripReplyPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestSingleline(t *testing.T) {
	if got := Singleline("a\r\nb\nc"); got != "a b c" {
		t.Errorf("Singleline = %q", got)
	}
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "out.md")

	if err := AtomicWriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first" {
		t.Errorf("content = %q", data)
	}

	// Overwrite in place.
	if err := AtomicWriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("content after overwrite = %q", data)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory should hold only the target, found %d entries", len(entries))
	}
}
