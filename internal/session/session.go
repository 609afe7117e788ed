// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/medassist/medassist-client/internal/backend"
	"github.com/medassist/medassist-client/internal/cache"
	"github.com/medassist/medassist-client/internal/channel"
	"github.com/medassist/medassist-client/internal/history"
	"github.com/medassist/medassist-client/internal/intake"
	"github.com/medassist/medassist-client/internal/model"
	"github.com/medassist/medassist-client/internal/pending"
	"github.com/medassist/medassist-client/internal/util"
)

// =============================================================================
// FIXED PHRASES
// =============================================================================

const (
	offerAnalysis = "I've received your lab report. Would you like me to analyze it?"
	declineAck    = "Alright, I won't analyze it. Let me know if you change your mind."

	analysisFallback = "I received the analysis but it came back empty. You may want to try again."
	analysisFailed   = "I couldn't analyze the document right now. Please try again later."

	connectionLost = "Connection lost. Your message may not have been delivered."
	notConnected   = "I can't reach the assistant right now. Please check your connection and try again."
)

// ErrClosed is returned when the session has been shut down.
var ErrClosed = errors.New("session closed")

// =============================================================================
// SESSION
// =============================================================================

// Session is the conversation engine. A single goroutine (the run
// loop) owns all timeline mutation: commands from the UI and events
// from the duplex channel are serialized through it, and network
// operations run in spawned goroutines whose results re-enter the loop
// as closures. This keeps the ordering invariants without fine-grained
// locking across components.
type Session struct {
	timeline *model.Timeline
	channel  *channel.Channel
	backend  *backend.Client
	intake   *intake.Intake
	loader   *history.Loader
	cache    *cache.Store
	pending  *pending.Coordinator
	log      *zap.Logger

	fallbackName string

	cmds    chan func()
	updates chan Update
	done    chan struct{}
	once    sync.Once

	ctx context.Context

	// Loop-owned state. Only the run loop touches these after Start.
	identity string
	loaded   bool
	gen      uint64
}

// Deps bundles the session's collaborators.
type Deps struct {
	Channel      *channel.Channel
	Backend      *backend.Client
	Intake       *intake.Intake
	Loader       *history.Loader
	Cache        *cache.Store
	Pending      *pending.Coordinator
	FallbackName string
	Logger       *zap.Logger
}

// New creates a session. Call Start before using it.
func New(d Deps) *Session {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		timeline:     model.NewTimeline(),
		channel:      d.Channel,
		backend:      d.Backend,
		intake:       d.Intake,
		loader:       d.Loader,
		cache:        d.Cache,
		pending:      d.Pending,
		fallbackName: d.FallbackName,
		log:          log,
		cmds:         make(chan func(), 16),
		updates:      make(chan Update, 64),
		done:         make(chan struct{}),
	}
}

// Start loads the history, opens the duplex channel, and launches the
// run loop. Network failures during startup are not fatal: the session
// comes up offline and reports the condition as a status update.
func (s *Session) Start(ctx context.Context) {
	s.ctx = ctx

	res, err := s.loader.Load(ctx, s.fallbackName)
	s.identity = res.Identity
	s.loaded = res.Loaded
	s.timeline.Replace(res.Messages)
	if err != nil {
		s.emitStatus("offline: conversation history unavailable")
	}

	s.connect(ctx)

	go s.run()
}

// connect dials the channel for the current identity and records the
// generation. Loop-owned state; called from Start and from within the
// loop only.
func (s *Session) connect(ctx context.Context) {
	gen, err := s.channel.Connect(ctx, s.identity)
	s.gen = gen
	if err != nil {
		s.log.Warn("channel connect failed", zap.Error(err))
		s.emitStatus("offline: assistant unreachable")
	}
}

// Close shuts the session down. Idempotent.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.channel.Close()
	})
}

// =============================================================================
// PUBLIC API
// =============================================================================

// Identity returns the party the current timeline belongs to.
func (s *Session) Identity() string {
	type reply struct{ id string }
	ch := make(chan reply, 1)
	if err := s.do(func() { ch <- reply{s.identity} }); err != nil {
		return s.fallbackName
	}
	select {
	case r := <-ch:
		return r.id
	case <-s.done:
		return s.fallbackName
	}
}

// Connected reports whether the duplex channel is open.
func (s *Session) Connected() bool {
	return s.channel.Connected()
}

// Snapshot returns a copy of the current timeline.
func (s *Session) Snapshot() []*model.Message {
	return s.timeline.Snapshot()
}

// Send submits a user turn. The turn is classified against any armed
// analysis offer first; ordinary chat goes out over the duplex
// channel with a placeholder holding its spot in the timeline.
func (s *Session) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.do(func() { s.handleSend(text) })
}

// Upload validates and uploads the document at path. A lab report
// arms the analysis offer for the user's next turn.
func (s *Session) Upload(path, description string) error {
	return s.do(func() { s.handleUpload(path, description) })
}

// SwitchIdentity reloads the session for a different party: the
// channel reconnects and the history is fetched fresh, purging the
// cache if the server names someone new.
func (s *Session) SwitchIdentity(name string) error {
	return s.do(func() { s.handleSwitch(name) })
}

// SignOut disconnects, clears the timeline, and purges the cache.
func (s *Session) SignOut() error {
	return s.do(func() { s.handleSignOut() })
}

// Reconnect re-dials the duplex channel for the current identity.
func (s *Session) Reconnect() error {
	return s.do(func() { s.connect(s.ctx) })
}

// ExportTranscript writes the conversation as Markdown to path. Safe
// to call from any goroutine; the write is atomic.
func (s *Session) ExportTranscript(path string) error {
	msgs := s.timeline.Snapshot()
	if len(msgs) == 0 {
		return errors.New("nothing to export")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation transcript\n\nExported %s\n\n",
		time.Now().Format("2006-01-02 15:04"))
	for _, m := range msgs {
		if m.IsPlaceholder {
			continue
		}
		fmt.Fprintf(&b, "**%s:** %s\n\n", m.Role.DisplayName(), m.Text)
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("export transcript: %w", err)
	}
	return nil
}

// =============================================================================
// RUN LOOP
// =============================================================================

// do posts a closure to the run loop.
func (s *Session) do(fn func()) error {
	select {
	case s.cmds <- fn:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case ev := <-s.channel.Events():
			s.handleChannelEvent(ev)
		case <-s.done:
			return
		}
	}
}

// =============================================================================
// COMMAND HANDLERS (run-loop goroutine only)
// =============================================================================

func (s *Session) handleSend(text string) {
	// Input is gated while a reply is pending. Checked before
	// classification so a gated turn cannot consume an armed offer.
	if s.timeline.HasPendingPlaceholder() {
		s.emitStatus("still waiting for the previous reply")
		return
	}

	outcome, subject := s.pending.Classify(text)

	switch outcome {
	case pending.OutcomeAnalyze:
		s.appendAndEmit(model.NewUserMessage(text))
		ph := model.NewAnalyzingPlaceholder()
		s.appendAndEmit(ph)
		s.mirror()
		s.startAnalysis(subject)

	case pending.OutcomeDecline:
		s.appendAndEmit(model.NewUserMessage(text))
		s.appendAndEmit(model.NewAssistantMessage(declineAck))
		s.mirror()

	default: // OutcomeNone, OutcomeFallthrough
		s.appendAndEmit(model.NewUserMessage(text))
		s.appendAndEmit(model.NewPlaceholder())
		s.mirror()
		s.startSend(text)
	}
}

// startSend ships a chat turn over the channel off-loop. Failure purges
// the placeholder and surfaces as a conversational error turn.
func (s *Session) startSend(text string) {
	go func() {
		err := s.channel.Send(s.ctx, text)
		if err == nil {
			return
		}
		s.log.Warn("send failed", zap.Error(err))
		_ = s.do(func() {
			s.timeline.DropPlaceholders()
			s.appendAndEmit(model.NewAssistantMessage(notConnected))
			s.mirror()
		})
	}()
}

// startAnalysis runs the document analysis off-loop and resolves the
// analyzing placeholder with the result.
func (s *Session) startAnalysis(subject string) {
	go func() {
		resp, err := s.backend.Analyze(s.ctx, subject)

		var text string
		switch {
		case err != nil:
			s.log.Warn("analysis failed", zap.Error(err))
			var apiErr *backend.APIError
			if errors.As(err, &apiErr) && apiErr.Message != "" {
				text = "The analysis failed: " + apiErr.Message
			} else {
				text = analysisFailed
			}
		case resp.Analysis == "":
			text = analysisFallback
		default:
			text = resp.Analysis
		}

		_ = s.do(func() {
			s.emitMessage(s.timeline.ResolvePlaceholder(text))
			s.mirror()
		})
	}()
}

func (s *Session) handleUpload(path, description string) {
	go func() {
		res, err := s.intake.Upload(s.ctx, path, description)

		_ = s.do(func() {
			if err != nil {
				s.log.Warn("upload failed", zap.Error(err))
				s.appendAndEmit(model.NewAssistantMessage(uploadErrorText(err)))
				s.mirror()
				return
			}
			if res.LabReport {
				s.pending.Arm(res.FilePath)
				s.appendAndEmit(model.NewAssistantMessage(offerAnalysis))
			} else {
				s.appendAndEmit(model.NewAssistantMessage(
					fmt.Sprintf("Your document %q was uploaded successfully.", res.Filename)))
			}
			s.mirror()
		})
	}()
}

// uploadErrorText phrases an upload failure for the timeline.
func uploadErrorText(err error) string {
	var oe *intake.OversizeError
	switch {
	case errors.As(err, &oe):
		return "I couldn't upload that: " + oe.Error() + "."
	case errors.Is(err, intake.ErrUploadInFlight):
		return "Another upload is still in progress. Please wait for it to finish."
	case errors.Is(err, intake.ErrUnsupportedType):
		return "I can't accept that file type. Supported: png, jpg, jpeg, gif, pdf, doc, docx."
	default:
		return "The upload failed. Please try again."
	}
}

func (s *Session) handleSwitch(name string) {
	s.pending.Disarm()
	s.channel.Close()

	res, err := s.loader.Load(s.ctx, name)
	s.identity = res.Identity
	s.loaded = res.Loaded
	s.timeline.Replace(res.Messages)
	if err != nil {
		s.emitStatus("offline: conversation history unavailable")
	}
	s.emitStatus("signed in as " + s.identity)

	s.connect(s.ctx)
}

func (s *Session) handleSignOut() {
	s.pending.Disarm()
	s.channel.Close()
	s.timeline.Clear()
	s.identity = ""
	s.loaded = false
	if err := s.cache.Purge(); err != nil {
		s.log.Warn("cache purge failed", zap.Error(err))
	}
	s.emitStatus("signed out")
}

// =============================================================================
// CHANNEL EVENTS (run-loop goroutine only)
// =============================================================================

func (s *Session) handleChannelEvent(ev channel.Event) {
	// Stragglers from a superseded connection must not touch the
	// timeline.
	if ev.Gen != s.gen {
		s.log.Debug("dropping stale channel event",
			zap.Uint64("event_gen", ev.Gen),
			zap.Uint64("current_gen", s.gen))
		return
	}

	switch ev.Kind {
	case channel.EventOpened:
		s.emitStatus("connected")

	case channel.EventMessage:
		text := util.StripReplyPrefix(ev.Text)
		s.emitMessage(s.timeline.ResolvePlaceholder(text))
		s.mirror()

	case channel.EventClosed:
		if ev.Clean {
			s.emitStatus("disconnected")
			return
		}
		dropped := s.timeline.DropPlaceholders()
		s.appendAndEmit(model.NewAssistantMessage(connectionLost))
		s.mirror()
		s.emitStatus("connection lost")
		s.log.Warn("channel dropped",
			zap.String("reason", ev.Reason),
			zap.Int("placeholders_dropped", dropped))
	}
}

// =============================================================================
// INTERNAL HELPERS (run-loop goroutine only)
// =============================================================================

func (s *Session) appendAndEmit(msg *model.Message) {
	s.timeline.Append(msg)
	s.emitMessage(msg)
}

// mirror copies the timeline into the cache. Skipped until a real
// history load succeeds so a transient empty session cannot clobber
// the cached conversation.
func (s *Session) mirror() {
	if !s.loaded || s.timeline.IsEmpty() {
		return
	}
	if err := s.cache.SaveMessages(s.timeline.Snapshot()); err != nil {
		s.log.Warn("cache mirror failed", zap.Error(err))
	}
}
