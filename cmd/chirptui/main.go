package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/chirp-chat/chirp/internal/api"
	"github.com/chirp-chat/chirp/internal/app"
	"github.com/chirp-chat/chirp/internal/bus"
	"github.com/chirp-chat/chirp/internal/config"
	"github.com/chirp-chat/chirp/internal/creds"
	"github.com/chirp-chat/chirp/internal/ingest"
	"github.com/chirp-chat/chirp/internal/lock"
	"github.com/chirp-chat/chirp/internal/outbox"
	"github.com/chirp-chat/chirp/internal/realtime"
	"github.com/chirp-chat/chirp/internal/roster"
	"github.com/chirp-chat/chirp/internal/session"
	"github.com/chirp-chat/chirp/internal/status"
	"github.com/chirp-chat/chirp/internal/store"
	"github.com/chirp-chat/chirp/internal/tui"
	"github.com/chirp-chat/chirp/internal/typing"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	serverFlag := flag.String("server", "", "server URL (overrides config)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		cfg = nil // missing config file, run on defaults
	}
	serverURL := cfg.ServerURLOrDefault()
	if *serverFlag != "" {
		serverURL = *serverFlag
	}

	params := app.Params{
		SessionName:    sessionName,
		ServerURL:      serverURL,
		TypingCooldown: cfg.TypingCooldown(),
	}

	var ui *tui.App
	fxApp := fx.New(
		fx.NopLogger,
		app.Module(params),
		fx.Provide(newUI(sessionName)),
		fx.Populate(&ui),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = fxApp.Start(startCtx)
	cancel()
	if err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			fmt.Fprintf(os.Stderr, "error: session %q is already in use by pid %d\n", sessionName, held.PID)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}

	runErr := ui.Run()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = fxApp.Stop(stopCtx)
	cancel()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}

func newUI(sessionName string) func(
	b *bus.Bus,
	db *store.DB,
	cs *creds.Store,
	auth *api.Authenticator,
	channel *realtime.Channel,
	machine *status.Machine,
	rm *roster.Manager,
	sender *outbox.Sender,
	engine *ingest.Engine,
	coordinator *typing.Coordinator,
	logger *zap.Logger,
) *tui.App {
	return func(
		b *bus.Bus,
		db *store.DB,
		cs *creds.Store,
		auth *api.Authenticator,
		channel *realtime.Channel,
		machine *status.Machine,
		rm *roster.Manager,
		sender *outbox.Sender,
		engine *ingest.Engine,
		coordinator *typing.Coordinator,
		logger *zap.Logger,
	) *tui.App {
		return tui.New(tui.Deps{
			SessionName: sessionName,
			Bus:         b,
			DB:          db,
			Creds:       cs,
			Auth:        auth,
			Channel:     channel,
			Machine:     machine,
			Roster:      rm,
			Sender:      sender,
			Engine:      engine,
			Typing:      coordinator,
			Logger:      logger,
		})
	}
}
