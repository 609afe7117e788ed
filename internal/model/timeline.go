// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"time"
)

// =============================================================================
// TIMELINE TYPE
// =============================================================================

// Timeline is the ordered in-memory log of exchanged turns. It is the
// single piece of shared mutable state in the client: every component
// mutates it only through the operations below, each of which is
// individually atomic. Messages are never reordered after append.
type Timeline struct {
	mu       sync.Mutex
	messages []*Message
	updated  time.Time
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		messages: make([]*Message, 0),
	}
}

// =============================================================================
// MUTATION OPERATIONS
// =============================================================================

// Append adds a message to the end of the timeline.
func (t *Timeline) Append(msg *Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	t.updated = time.Now()
}

// AppendUser creates and appends a user message.
func (t *Timeline) AppendUser(text string) *Message {
	msg := NewUserMessage(text)
	t.Append(msg)
	return msg
}

// AppendAssistant creates and appends a resolved assistant message.
func (t *Timeline) AppendAssistant(text string) *Message {
	msg := NewAssistantMessage(text)
	t.Append(msg)
	return msg
}

// ResolvePlaceholder resolves the newest unresolved assistant
// placeholder in place, or appends a new assistant message when no
// placeholder is outstanding. Resolution never changes the timeline
// length: exactly one visible assistant turn per completed
// request/response cycle regardless of network timing.
//
// The scan runs from the tail because at most one unresolved
// placeholder may exist at a time.
func (t *Timeline) ResolvePlaceholder(text string) *Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.messages); n > 0 {
		last := t.messages[n-1]
		if last.Role == RoleAssistant && last.IsPlaceholder {
			last.Resolve(text)
			t.updated = time.Now()
			return last
		}
	}

	msg := NewAssistantMessage(text)
	t.messages = append(t.messages, msg)
	t.updated = time.Now()
	return msg
}

// DropPlaceholders removes every unresolved placeholder from the
// timeline. Used to clean up after a failed send or a dropped
// connection so the UI does not hang on a turn that will never arrive.
// Returns the number of messages removed.
func (t *Timeline) DropPlaceholders() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.messages[:0]
	dropped := 0
	for _, msg := range t.messages {
		if msg.IsPlaceholder {
			dropped++
			continue
		}
		kept = append(kept, msg)
	}
	if dropped > 0 {
		t.messages = kept
		t.updated = time.Now()
	}
	return dropped
}

// Replace swaps the entire timeline content. Used by the history
// loader when seeding from the server-of-record.
func (t *Timeline) Replace(msgs []*Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(make([]*Message, 0, len(msgs)), msgs...)
	t.updated = time.Now()
}

// Clear removes all messages.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = make([]*Message, 0)
	t.updated = time.Now()
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Snapshot returns a copy of the message slice in insertion order.
// The returned slice is safe to iterate while the timeline mutates;
// the messages themselves are shared.
func (t *Timeline) Snapshot() []*Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the most recent message, or nil if the timeline is empty.
func (t *Timeline) Last() *Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

// HasPendingPlaceholder reports whether an unresolved placeholder is
// outstanding anywhere in the timeline.
func (t *Timeline) HasPendingPlaceholder() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].IsPlaceholder {
			return true
		}
	}
	return false
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// IsEmpty returns true if there are no messages.
func (t *Timeline) IsEmpty() bool {
	return t.Len() == 0
}

// UpdatedAt returns the time of the last mutation.
func (t *Timeline) UpdatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updated
}
