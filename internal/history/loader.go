// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/medassist/medassist-client/internal/backend"
	"github.com/medassist/medassist-client/internal/cache"
	"github.com/medassist/medassist-client/internal/model"
)

// =============================================================================
// LOADER
// =============================================================================

// Loader reconciles the server's conversation history with the local
// cache at session start.
type Loader struct {
	backend *backend.Client
	cache   *cache.Store
	log     *zap.Logger
}

// New creates a loader.
func New(b *backend.Client, c *cache.Store, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{backend: b, cache: c, log: log}
}

// Result is the outcome of a history load.
type Result struct {
	// Identity is the party the timeline belongs to: the server's
	// name on success, the supplied fallback otherwise.
	Identity string
	// Messages is the reconciled timeline, oldest first.
	Messages []*model.Message
	// Loaded is true when the server history was actually fetched.
	// False means the session starts empty and unmirrored.
	Loaded bool
}

// Load fetches the server history and reconciles the cache.
//
// On success: the server's user_name becomes the identity; if it
// differs from the cached identity the cache is purged first, then the
// fresh history and identity are stored. Server roles are normalized
// ("bot" becomes assistant).
//
// On failure the session must not show another account's conversation,
// so the cache is purged, the timeline starts empty, and the fallback
// identity is used. The transport error is reported alongside the
// usable Result.
func (l *Loader) Load(ctx context.Context, fallbackIdentity string) (*Result, error) {
	resp, err := l.backend.History(ctx)
	if err != nil {
		l.log.Warn("history load failed, starting empty", zap.Error(err))
		if perr := l.cache.Purge(); perr != nil {
			l.log.Warn("cache purge failed", zap.Error(perr))
		}
		return &Result{Identity: fallbackIdentity}, err
	}

	identity := resp.UserName
	if identity == "" {
		identity = fallbackIdentity
	}

	cached, cerr := l.cache.Identity()
	switch {
	case errors.Is(cerr, cache.ErrNotFound):
		// First run on this machine.
	case cerr != nil:
		l.log.Warn("cache identity read failed", zap.Error(cerr))
	case cached != identity:
		l.log.Info("identity changed, purging cache",
			zap.String("cached", cached),
			zap.String("current", identity))
		if perr := l.cache.Purge(); perr != nil {
			l.log.Warn("cache purge failed", zap.Error(perr))
		}
	}

	msgs := make([]*model.Message, 0, len(resp.Messages))
	for _, hm := range resp.Messages {
		if hm.Text == "" {
			continue
		}
		msgs = append(msgs, model.NewMessage(model.NormalizeRole(hm.Role), hm.Text))
	}

	if err := l.cache.SaveIdentity(identity); err != nil {
		l.log.Warn("cache identity write failed", zap.Error(err))
	}
	if err := l.cache.SaveMessages(msgs); err != nil {
		l.log.Warn("cache messages write failed", zap.Error(err))
	}

	l.log.Info("history loaded",
		zap.String("identity", identity),
		zap.Int("messages", len(msgs)))

	return &Result{Identity: identity, Messages: msgs, Loaded: true}, nil
}
