// Package app wires configuration, storage, the context store and the
// transports into a runnable relay. The CLI commands share it so that
// operator subcommands see exactly the store the server uses.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-context-relay/internal/cache"
	"github.com/tbourn/go-context-relay/internal/completion"
	"github.com/tbourn/go-context-relay/internal/config"
	"github.com/tbourn/go-context-relay/internal/domain"
	"github.com/tbourn/go-context-relay/internal/gate"
	httpapi "github.com/tbourn/go-context-relay/internal/http"
	"github.com/tbourn/go-context-relay/internal/repo"
	"github.com/tbourn/go-context-relay/internal/services"
	"github.com/tbourn/go-context-relay/internal/telegram"
)

// shutdownGrace bounds how long in-flight HTTP requests may take after a
// stop signal.
const shutdownGrace = 10 * time.Second

// contextRepoShim adapts the repository free functions to the
// services.ContextRepo interface expected by the ContextService.
type contextRepoShim struct{}

// AppendContext proxies repo.AppendContext.
func (contextRepoShim) AppendContext(ctx context.Context, db *gorm.DB, userID int64, text string) (*domain.ContextEntry, error) {
	return repo.AppendContext(ctx, db, userID, text)
}

// LastContext proxies repo.LastContext.
func (contextRepoShim) LastContext(ctx context.Context, db *gorm.DB, userID int64) (*domain.ContextEntry, error) {
	return repo.LastContext(ctx, db, userID)
}

// PurgeContext proxies repo.PurgeContext.
func (contextRepoShim) PurgeContext(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	return repo.PurgeContext(ctx, db, userID)
}

// App is a fully wired relay.
type App struct {
	Config  config.Config
	DB      *gorm.DB
	Context *services.ContextService
	Relay   *services.RelayService
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	// Backend replaces the OpenAI-compatible completion client.
	Backend services.Completer
	// Now replaces the wall clock used by the hot cache and the rate gate.
	Now func() time.Time
}

// New opens and migrates the database and builds the context and relay
// services from cfg.
func New(cfg config.Config, opts Options) (*App, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", cfg.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ctxSvc := services.NewContextService(db, contextRepoShim{},
		cache.New(cfg.Context.HotCacheTTL, now),
		gate.New(cfg.Context.RateLimitInterval, gate.Scope(cfg.Context.GateScope), now),
	)
	ctxSvc.DropScope = cfg.Context.DropScope

	backend := opts.Backend
	if backend == nil {
		backend = completion.NewClient(cfg.Completion, nil)
	}

	relay := &services.RelayService{
		Context:           ctxSvc,
		Backend:           backend,
		Access:            services.NewAllowlist(cfg.Context.AllowedUsers),
		MaxMessageLength:  cfg.Context.MaxMessageLength,
		CompletionTimeout: cfg.Completion.Timeout,
	}

	return &App{Config: cfg, DB: db, Context: ctxSvc, Relay: relay}, nil
}

// Close releases the database.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Handler builds the Gin engine serving the HTTP API.
func (a *App) Handler() *gin.Engine {
	gin.SetMode(a.Config.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, a.Relay, a.Context, a.Config)
	return r
}

// HTTPServer returns the HTTP server with the configured timeouts.
func (a *App) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           a.Handler(),
		ReadTimeout:       a.Config.ReadTimeout,
		ReadHeaderTimeout: a.Config.ReadHeaderTimeout,
		WriteTimeout:      a.Config.WriteTimeout,
		IdleTimeout:       a.Config.IdleTimeout,
	}
}

// Poller returns the Telegram long-poll loop bound to the relay.
func (a *App) Poller() *telegram.Poller {
	client := telegram.NewClient(a.Config.Telegram, nil)
	return telegram.NewPoller(client, a.Relay, a.Config.Telegram.PollTimeout)
}

// Run starts the enabled transports and blocks until ctx is cancelled or a
// transport fails. On return every transport has stopped.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	report := func(err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		once.Do(func() { firstErr = err })
		cancel()
	}

	if a.Config.HTTPEnabled {
		srv := a.HTTPServer()
		wg.Add(2)
		go func() {
			defer wg.Done()
			log.Info().Str("addr", srv.Addr).Msg("http server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				report(fmt.Errorf("http server: %w", err))
			}
		}()
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownGrace)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("http server shutdown")
			}
		}()
	}

	if a.Config.Telegram.Enabled {
		p := a.Poller()
		wg.Add(1)
		go func() {
			defer wg.Done()
			report(p.Run(ctx))
		}()
	}

	log.Info().
		Bool("http", a.Config.HTTPEnabled).
		Bool("telegram", a.Config.Telegram.Enabled).
		Int("allowed_users", a.Relay.Access.Len()).
		Str("gate_scope", a.Config.Context.GateScope).
		Str("drop_scope", a.Config.Context.DropScope).
		Msg("relay started")

	<-ctx.Done()
	wg.Wait()
	log.Info().Msg("relay stopped")
	return firstErr
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
