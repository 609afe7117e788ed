// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// medassist-client is a terminal client for the MedAssist conversational
// healthcare assistant: live chat over a duplex channel, document
// upload, and lab-report analysis.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/medassist/medassist-client/internal/backend"
	"github.com/medassist/medassist-client/internal/cache"
	"github.com/medassist/medassist-client/internal/channel"
	"github.com/medassist/medassist-client/internal/config"
	"github.com/medassist/medassist-client/internal/history"
	"github.com/medassist/medassist-client/internal/intake"
	"github.com/medassist/medassist-client/internal/logging"
	"github.com/medassist/medassist-client/internal/model"
	"github.com/medassist/medassist-client/internal/pending"
	"github.com/medassist/medassist-client/internal/session"
)

// Build-time variables, set via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("medassist-client %s (built %s)\n", Version, BuildTime)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{
		Path:    cfg.Log.Path,
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Sync()

	log.Info("starting", zap.String("version", Version))

	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	bc := backend.New(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.RequestTimeout()),
		backend.WithSessionCookie(cfg.Backend.SessionCookie),
		backend.WithLogger(log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := session.New(session.Deps{
		Channel:      channel.New(cfg.Backend.WebSocketURL, cfg.DialTimeout(), log),
		Backend:      bc,
		Intake:       intake.New(bc, log),
		Loader:       history.New(bc, store, log),
		Cache:        store,
		Pending:      pending.New(cfg.Session.Affirmative, cfg.Session.Rejection),
		FallbackName: cfg.Session.UserName,
		Logger:       log,
	})
	sess.Start(ctx)
	defer sess.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		sess.Close()
		os.Exit(0)
	}()

	printHistory(sess.Snapshot())
	go printUpdates(sess)

	return repl(sess)
}

// =============================================================================
// OUTPUT
// =============================================================================

func printHistory(msgs []*model.Message) {
	for _, m := range msgs {
		printTurn(m)
	}
}

func printTurn(m *model.Message) {
	if m.IsPlaceholder {
		if m.IsAnalyzing {
			fmt.Println("[analyzing your document...]")
		} else {
			fmt.Println("[waiting for reply...]")
		}
		return
	}
	fmt.Printf("%s: %s\n", m.Role.DisplayName(), m.Text)
}

func printUpdates(sess *session.Session) {
	for u := range sess.Updates() {
		switch u.Kind {
		case session.UpdateMessage:
			// The REPL already echoes the user's own input.
			if u.Message.Role == model.RoleUser {
				continue
			}
			printTurn(u.Message)
		case session.UpdateStatus:
			fmt.Printf("[%s]\n", u.Status)
		}
	}
}

// =============================================================================
// REPL
// =============================================================================

const helpText = `Commands:
  /upload <path> [description]  upload a document
  /export [path]                write the transcript as Markdown
  /history                      reprint the conversation
  /whoami                       show the current identity
  /reconnect                    re-dial the assistant
  /signout                      disconnect and clear local state
  /quit                         exit
Anything else is sent to the assistant.`

func repl(sess *session.Session) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyFile := filepath.Join(os.TempDir(), ".medassist_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			// Ctrl-C or EOF ends the session.
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := command(sess, input); quit {
				return nil
			}
			continue
		}

		if err := sess.Send(input); err != nil {
			fmt.Println("[session closed]")
			return nil
		}
	}
}

// command dispatches a slash command; returns true to exit.
func command(sess *session.Session, input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(helpText)

	case "/history":
		printHistory(sess.Snapshot())

	case "/whoami":
		id := sess.Identity()
		if id == "" {
			fmt.Println("[not signed in]")
		} else {
			fmt.Printf("[signed in as %s]\n", id)
		}

	case "/reconnect":
		if err := sess.Reconnect(); err != nil {
			fmt.Println("[session closed]")
		}

	case "/signout":
		if err := sess.SignOut(); err != nil {
			fmt.Println("[session closed]")
		}

	case "/upload":
		if len(fields) < 2 {
			fmt.Println("usage: /upload <path> [description]")
			return false
		}
		description := strings.Join(fields[2:], " ")
		if err := sess.Upload(fields[1], description); err != nil {
			fmt.Println("[session closed]")
		}

	case "/export":
		path := fmt.Sprintf("transcript-%s.md", time.Now().Format("20060102-150405"))
		if len(fields) > 1 {
			path = fields[1]
		}
		if err := sess.ExportTranscript(path); err != nil {
			fmt.Println("export failed:", err)
		} else {
			fmt.Println("transcript written to", path)
		}

	default:
		fmt.Printf("unknown command %s (try /help)\n", fields[0])
	}
	return false
}
