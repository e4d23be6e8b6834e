package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/chirp-chat/chirp/internal/api"
	"github.com/chirp-chat/chirp/internal/bus"
	"github.com/chirp-chat/chirp/internal/creds"
	"github.com/chirp-chat/chirp/internal/ingest"
	"github.com/chirp-chat/chirp/internal/lock"
	"github.com/chirp-chat/chirp/internal/logging"
	"github.com/chirp-chat/chirp/internal/outbox"
	"github.com/chirp-chat/chirp/internal/presence"
	"github.com/chirp-chat/chirp/internal/realtime"
	"github.com/chirp-chat/chirp/internal/roster"
	"github.com/chirp-chat/chirp/internal/session"
	"github.com/chirp-chat/chirp/internal/status"
	"github.com/chirp-chat/chirp/internal/store"
	"github.com/chirp-chat/chirp/internal/typing"
)

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	SessionName    string
	ServerURL      string
	TypingCooldown time.Duration
	// ConsoleLog tees logs to stderr. Off for the TUI, which owns the
	// terminal.
	ConsoleLog bool
}

// Module returns the fx module composing every client component.
func Module(p Params) fx.Option {
	return fx.Module("chirp",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCreds,
			provideAPIClient,
			provideAuthenticator,
			provideStore,
			provideChannel,
			provideTyping,
			provideSender,
			provideIngestEngine,
			providePresenceTracker,
			provideRosterManager,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.ConsoleLog {
		return logging.New(session.LogPath(p.SessionName), p.SessionName)
	}
	return logging.NewFileOnly(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	return l, nil
}

func provideCreds(p Params) *creds.Store {
	return creds.NewStore(session.CredsPath(p.SessionName))
}

func provideAPIClient(p Params, store *creds.Store) *api.Client {
	return api.NewClient(p.ServerURL, store)
}

func provideAuthenticator(client *api.Client, cs *creds.Store, db *store.DB, logger *zap.Logger) *api.Authenticator {
	return api.NewAuthenticator(client, cs, db, logger)
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideChannel(p Params, store *creds.Store, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *realtime.Channel {
	return realtime.NewChannel(p.ServerURL, store, realtime.SocketIO{}, machine, b, logger)
}

func provideTyping(p Params, channel *realtime.Channel) *typing.Coordinator {
	return typing.NewCoordinator(channel, p.TypingCooldown)
}

func provideSender(db *store.DB, channel *realtime.Channel, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, channel, b, logger)
}

func provideIngestEngine(db *store.DB, b *bus.Bus, client *api.Client, cs *creds.Store, logger *zap.Logger) *ingest.Engine {
	return ingest.NewEngine(db, b, client, cs.UserID, logger)
}

func providePresenceTracker(db *store.DB, b *bus.Bus, logger *zap.Logger) *presence.Tracker {
	return presence.NewTracker(db, b, logger)
}

func provideRosterManager(db *store.DB, client *api.Client, b *bus.Bus, logger *zap.Logger) *roster.Manager {
	return roster.NewManager(db, client, b, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	lk *lock.Lock,
	db *store.DB,
	cs *creds.Store,
	channel *realtime.Channel,
	engine *ingest.Engine,
	tracker *presence.Tracker,
	sender *outbox.Sender,
	rm *roster.Manager,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			tracker.Start(context.Background())
			sender.Start(context.Background())

			// A stored session goes straight online; otherwise the UI
			// shows the auth flow and connects after login.
			if _, ok := cs.Load(); ok {
				if err := channel.Connect(); err != nil {
					logger.Warn("auto-connect failed", zap.Error(err))
				}
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
					defer cancel()
					if err := rm.Refresh(ctx); err != nil {
						logger.Warn("roster refresh failed", zap.Error(err))
					}
				}()
			} else {
				logger.Info("no stored credentials, login required")
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			sender.Stop()
			tracker.Stop()
			engine.Stop()
			channel.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
