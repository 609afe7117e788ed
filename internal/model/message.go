// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// NormalizeRole maps server-side role spellings onto the client roles.
// The history endpoint labels assistant turns "bot".
func NormalizeRole(s string) Role {
	if s == "user" {
		return RoleUser
	}
	return RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in the conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`

	// IsPlaceholder marks an assistant reply still in flight. A
	// placeholder carries no text until it is resolved.
	IsPlaceholder bool `json:"is_placeholder,omitempty"`

	// IsAnalyzing distinguishes a document-analysis placeholder from an
	// ordinary chat placeholder.
	IsAnalyzing bool `json:"is_analyzing,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, text string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(text string) *Message {
	return NewMessage(RoleUser, text)
}

// NewAssistantMessage creates a new resolved assistant message.
func NewAssistantMessage(text string) *Message {
	return NewMessage(RoleAssistant, text)
}

// NewPlaceholder creates an unresolved assistant placeholder.
func NewPlaceholder() *Message {
	msg := NewMessage(RoleAssistant, "")
	msg.IsPlaceholder = true
	return msg
}

// NewAnalyzingPlaceholder creates a placeholder flagged as a
// document-analysis turn in flight.
func NewAnalyzingPlaceholder() *Message {
	msg := NewPlaceholder()
	msg.IsAnalyzing = true
	return msg
}

// Resolve fills an in-flight placeholder with its final text.
// Resolving a message that is not a placeholder is a no-op.
func (m *Message) Resolve(text string) {
	if !m.IsPlaceholder {
		return
	}
	m.Text = text
	m.IsPlaceholder = false
	m.IsAnalyzing = false
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return m.Text == ""
}

// Preview returns a truncated single-line preview of the message text.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Text)
	if len(runes) <= maxLen {
		return m.Text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
