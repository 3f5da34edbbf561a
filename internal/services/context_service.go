// Package services – ContextService
//
// This file implements ContextService, the resolver over the two-tier context
// store. Given a user and a new message it decides which prior context (if
// any) to prepend, builds the outbound prompt, and keeps the hot cache in
// step with durable history:
//
//  1. The rate gate is consulted (and updated) once per accepted message.
//  2. Inside a session, a fresh hot-cache entry wins.
//  3. Otherwise the durable store's latest entry is used and the cache is
//     refreshed with the combined prompt.
//  4. After a lull the message is sent without prior context.
//
// Only the raw message text is ever persisted; multi-turn context is rebuilt
// by chaining the latest entry with the in-flight message.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-context-relay/internal/cache"
	"github.com/tbourn/go-context-relay/internal/config"
	"github.com/tbourn/go-context-relay/internal/domain"
	"github.com/tbourn/go-context-relay/internal/gate"
	"github.com/tbourn/go-context-relay/internal/repo"
)

// contextSeparator joins prior context and the new message.
const contextSeparator = "\n"

// ContextRepo defines the durable-store contract required by ContextService.
type ContextRepo interface {
	// AppendContext inserts a new immutable entry for the user.
	AppendContext(ctx context.Context, db *gorm.DB, userID int64, text string) (*domain.ContextEntry, error)

	// LastContext returns the user's most recent entry or repo.ErrNotFound.
	LastContext(ctx context.Context, db *gorm.DB, userID int64) (*domain.ContextEntry, error)

	// PurgeContext deletes all of the user's entries; idempotent.
	PurgeContext(ctx context.Context, db *gorm.DB, userID int64) (int64, error)
}

// Resolution is the outcome of context resolution for one message.
type Resolution struct {
	// Prompt is the text to send to the completion backend.
	Prompt string
	// Source names the tier that supplied prior context (see Source* consts).
	Source string
}

// ContextUsed reports whether prior context was prepended to the message.
func (r Resolution) ContextUsed() bool {
	return r.Source == SourceCache || r.Source == SourceStore
}

// ContextService resolves prompts over the hot cache and the durable store.
// It is the only writer of the hot cache.
type ContextService struct {
	// DB is the GORM handle (connection pool) used for persistence.
	DB *gorm.DB
	// Repo is the durable-store repository.
	Repo ContextRepo
	// Cache is the in-memory tier.
	Cache *cache.HotCache
	// Gate decides whether a message continues a session.
	Gate *gate.Gate
	// DropScope selects what Invalidate clears from the hot cache:
	// config.DropScopeAll (every user, the default) or config.DropScopeUser.
	DropScope string
}

// NewContextService constructs a ContextService that clears the whole hot
// cache on invalidation.
func NewContextService(db *gorm.DB, r ContextRepo, c *cache.HotCache, g *gate.Gate) *ContextService {
	return &ContextService{
		DB:        db,
		Repo:      r,
		Cache:     c,
		Gate:      g,
		DropScope: config.DropScopeAll,
	}
}

// Resolve builds the outbound prompt for text sent by userID. It records the
// request with the rate gate. A durable read failure degrades to "no history"
// and is logged; Resolve itself never fails.
func (s *ContextService) Resolve(ctx context.Context, userID int64, text string) Resolution {
	tr := otel.Tracer("services/ContextService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	res := s.resolve(ctx, userID, text)
	contextLookups.WithLabelValues(res.Source).Inc()
	span.SetAttributes(attribute.String("context.source", res.Source))
	return res
}

func (s *ContextService) resolve(ctx context.Context, userID int64, text string) Resolution {
	if !s.Gate.Admit(userID) {
		return Resolution{Prompt: text, Source: SourceReset}
	}

	if cached, ok := s.Cache.Fresh(userID); ok {
		return Resolution{Prompt: cached + contextSeparator + text, Source: SourceCache}
	}

	last, err := s.Repo.LastContext(ctx, s.DB, userID)
	switch {
	case err == nil:
		prompt := last.Text + contextSeparator + text
		s.Cache.Put(userID, prompt)
		return Resolution{Prompt: prompt, Source: SourceStore}
	case errors.Is(err, repo.ErrNotFound):
		s.Cache.Put(userID, text)
		return Resolution{Prompt: text, Source: SourceNone}
	default:
		loggerFrom(ctx).Warn().
			Err(&StorageError{Stage: StageResolve, Err: err}).
			Int64("user_id", userID).
			Str("stage", string(StageResolve)).
			Msg("context read failed; continuing without history")
		return Resolution{Prompt: text, Source: SourceStoreError}
	}
}

// Persist appends the raw message text to the durable store.
func (s *ContextService) Persist(ctx context.Context, userID int64, text string) (*domain.ContextEntry, error) {
	tr := otel.Tracer("services/ContextService")
	ctx, span := tr.Start(ctx, "Persist",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	e, err := s.Repo.AppendContext(ctx, s.DB, userID, text)
	if err != nil {
		span.RecordError(err)
		return nil, &StorageError{Stage: StagePersist, Err: err}
	}
	return e, nil
}

// Last returns the user's most recent durable entry, or repo.ErrNotFound.
func (s *ContextService) Last(ctx context.Context, userID int64) (*domain.ContextEntry, error) {
	e, err := s.Repo.LastContext(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, repo.ErrNotFound
		}
		return nil, &StorageError{Stage: StageResolve, Err: err}
	}
	return e, nil
}

// Prime loads the user's latest durable entry into the hot cache. It reports
// whether an entry was found.
func (s *ContextService) Prime(ctx context.Context, userID int64) (bool, error) {
	e, err := s.Repo.LastContext(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, &StorageError{Stage: StagePrime, Err: err}
	}
	s.Cache.Put(userID, e.Text)
	return true, nil
}

// Invalidate purges the user's durable history and clears the hot cache
// according to DropScope. The cache is cleared even when the purge fails, so
// no possibly-corrupted context is reused. It is idempotent.
func (s *ContextService) Invalidate(ctx context.Context, userID int64) error {
	tr := otel.Tracer("services/ContextService")
	ctx, span := tr.Start(ctx, "Invalidate",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("cache.scope", s.dropScope()),
		),
	)
	defer span.End()

	_, err := s.Repo.PurgeContext(ctx, s.DB, userID)

	scope := s.dropScope()
	if scope == config.DropScopeAll {
		s.Cache.ClearAll()
	} else {
		s.Cache.Delete(userID)
	}
	invalidations.WithLabelValues(scope).Inc()

	if err != nil {
		span.RecordError(err)
		return &StorageError{Stage: StagePurge, Err: err}
	}
	return nil
}

func (s *ContextService) dropScope() string {
	if s.DropScope == config.DropScopeUser {
		return config.DropScopeUser
	}
	return config.DropScopeAll
}

// loggerFrom returns the logger attached to ctx, or the global logger.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
