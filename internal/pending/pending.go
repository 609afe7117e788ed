// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pending

import (
	"strings"
	"sync"
)

// =============================================================================
// OUTCOMES
// =============================================================================

// Outcome is the result of classifying a user turn against the
// coordinator state.
type Outcome int

const (
	// OutcomeNone means no offer was armed; the turn is ordinary chat.
	OutcomeNone Outcome = iota
	// OutcomeAnalyze means the user confirmed the armed offer.
	OutcomeAnalyze
	// OutcomeDecline means the user turned the armed offer down.
	OutcomeDecline
	// OutcomeFallthrough means an offer was armed but the turn matched
	// neither vocabulary; the offer is withdrawn and the turn proceeds
	// as ordinary chat.
	OutcomeFallthrough
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnalyze:
		return "analyze"
	case OutcomeDecline:
		return "decline"
	case OutcomeFallthrough:
		return "fallthrough"
	default:
		return "none"
	}
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator tracks whether a document-analysis offer is awaiting the
// user's answer. At most one offer is armed at a time; arming a new one
// replaces the old (last offer wins).
type Coordinator struct {
	mu          sync.Mutex
	armed       bool
	subjectRef  string
	affirmative []string
	rejection   []string
}

// New creates a coordinator with the given vocabularies. Tokens are
// matched case-insensitively by containment.
func New(affirmative, rejection []string) *Coordinator {
	return &Coordinator{
		affirmative: lowerAll(affirmative),
		rejection:   lowerAll(rejection),
	}
}

// Arm records an offer for the document identified by subjectRef. Any
// previously armed offer is silently replaced.
func (c *Coordinator) Arm(subjectRef string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = true
	c.subjectRef = subjectRef
}

// Disarm withdraws any armed offer.
func (c *Coordinator) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = false
	c.subjectRef = ""
}

// Armed reports whether an offer is currently awaiting an answer.
func (c *Coordinator) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Classify interprets a user turn. When an offer is armed it is always
// consumed, whatever the outcome: a confirmation returns OutcomeAnalyze
// with the subject reference, a refusal returns OutcomeDecline, and
// anything else falls through to ordinary chat. With nothing armed the
// turn is never inspected.
//
// Confirmation is checked before refusal, so a reply containing tokens
// from both vocabularies ("yes, no problem") reads as confirmation.
func (c *Coordinator) Classify(reply string) (Outcome, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed {
		return OutcomeNone, ""
	}

	subject := c.subjectRef
	c.armed = false
	c.subjectRef = ""

	lower := strings.ToLower(reply)
	if containsAny(lower, c.affirmative) {
		return OutcomeAnalyze, subject
	}
	if containsAny(lower, c.rejection) {
		return OutcomeDecline, ""
	}
	return OutcomeFallthrough, ""
}

// =============================================================================
// MATCHING
// =============================================================================

// containsAny reports whether any token occurs as a substring of the
// already-lowercased reply.
func containsAny(lower string, tokens []string) bool {
	for _, tok := range tokens {
		if tok != "" && strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func lowerAll(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
