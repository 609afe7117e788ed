// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"go.uber.org/zap"

	"github.com/medassist/medassist-client/internal/model"
)

// =============================================================================
// UPDATE STREAM
// =============================================================================

// UpdateKind discriminates session updates.
type UpdateKind int

const (
	// UpdateMessage carries a timeline change: a newly appended turn
	// or a placeholder that just resolved (same ID, new text).
	UpdateMessage UpdateKind = iota
	// UpdateStatus carries a connection or identity status line.
	UpdateStatus
)

// Update is one observable session change, consumed by the UI.
type Update struct {
	Kind    UpdateKind
	Message *model.Message
	Status  string
}

// Updates returns the session's update stream.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

func (s *Session) emitMessage(msg *model.Message) {
	s.emit(Update{Kind: UpdateMessage, Message: msg})
}

func (s *Session) emitStatus(status string) {
	s.emit(Update{Kind: UpdateStatus, Status: status})
}

// emit never blocks the run loop: with a full buffer the oldest update
// is dropped. The timeline remains the source of truth; updates are a
// change feed, not the record.
func (s *Session) emit(u Update) {
	for {
		select {
		case s.updates <- u:
			return
		default:
			select {
			case <-s.updates:
				s.log.Warn("update buffer full, dropping oldest",
					zap.Int("kind", int(u.Kind)))
			default:
			}
		}
	}
}
