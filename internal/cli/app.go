package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"observe/dashboard/internal/action"
	"observe/dashboard/internal/activity"
	"observe/dashboard/internal/config"
	"observe/dashboard/internal/fetch"
	"observe/dashboard/internal/model"
	"observe/dashboard/internal/repository"
	"observe/dashboard/internal/service"
	"observe/dashboard/internal/session"
)

var errNoToken = errors.New("no access token: pass --token or set observe.access_token")

// app holds the dependencies shared by serve and the resource commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	api     *action.API
	audit   repository.AuditRepository
	loading  *activity.Indicator
	prompter *Prompter
	closers  []func() error
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, loading: activity.New(), prompter: &Prompter{}}

	httpClient := &http.Client{Timeout: cfg.Observe.HTTPTimeout}
	a.api = action.NewAPI(cfg.Observe.APIURL, fetch.NewClient(httpClient, logger)).
		WithJOSM(cfg.Observe.JOSMURL)

	audit, err := a.openAudit()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.audit = audit
	return a, nil
}

func (a *app) openAudit() (repository.AuditRepository, error) {
	if a.cfg.Audit.Backend != "postgres" {
		a.logger.Info("using in-memory audit trail")
		return repository.NewMemoryAuditRepository(), nil
	}

	db, err := config.NewPostgresDB(a.cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if a.cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
		a.logger.Info("database migration completed")
	}
	return repository.NewPGAuditRepository(db), nil
}

func (a *app) openSessionStore() (repository.SessionStore, error) {
	if a.cfg.Session.Backend != "redis" {
		a.logger.Info("using in-memory session store")
		return repository.NewMemorySessionStore(), nil
	}

	client, err := config.NewRedisClient(a.cfg.Database.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	a.logger.Info("using Redis session store")
	return repository.NewRedisSessionStore(client), nil
}

// Close releases database connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	a.closers = nil
}

// commandSession is a single logged-in session for the lifetime of one
// command. It is never persisted and never refreshed.
type commandSession struct {
	*app
	sessions *session.Manager
	svc      service.DashboardService
	sess     *session.Session
}

func openCommandSession(ctx context.Context) (*commandSession, error) {
	a, err := newCommandApp()
	if err != nil {
		return nil, err
	}
	return a.login(ctx)
}

// newCommandApp builds the app for a resource command from the config
// file and flags.
func newCommandApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Observe.AccessToken == "" {
		return nil, errNoToken
	}
	logger, err := commandLogger(cfg)
	if err != nil {
		return nil, err
	}

	return newApp(cfg, logger)
}

// login opens the command's session. The app is closed on failure.
func (a *app) login(ctx context.Context) (*commandSession, error) {
	sessions := session.NewManager(a.api, repository.NewMemorySessionStore(),
		session.Options{TTL: time.Hour}, a.logger)

	sess, err := sessions.Open(ctx, a.cfg.Observe.AccessToken)
	if err != nil {
		sessions.Shutdown()
		a.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	return &commandSession{
		app:      a,
		sessions: sessions,
		svc:      service.NewDashboardService(a.api, sessions, a.audit, nil, a.loading, a.logger),
		sess:     sess,
	}, nil
}

func (c *commandSession) Close() {
	c.sessions.Shutdown()
	c.app.Close()
}
