// Package services – RelayService
//
// This file implements RelayService, which drives one inbound message through
// the resolution state machine:
//
//	RECEIVED -> CONTEXT_RESOLVED -> PROMPT_SENT -> COMPLETION_RECEIVED -> PERSISTED
//
// with FAILED reachable from any state. It also serves the operator commands
// (start, help, drop_cache) and owns the user-facing reply texts. Transports
// (Telegram, HTTP) supply a Replier for outbound delivery; the completion
// backend is an opaque Completer.
//
// Every failure inside a resolution is caught here, logged with the user id,
// resolution id and failing stage, and turned into at most one user-facing
// message.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-context-relay/internal/utils"
)

// User-facing reply texts.
const (
	MsgDenied          = "You do not have access to this bot."
	MsgAccepted        = "Request accepted for processing, please wait."
	MsgFailure         = "An error occurred while processing the request. Please try again later."
	MsgGreeting        = "Hi, I'm your helper, ready to work with the OpenAI API!"
	MsgHelp            = "You can send requests to the OpenAI API through me. Just send me your request and I will pass it on for processing."
	MsgCacheDropped    = "Cache dropped."
	MsgEmptyCompletion = "The model returned an empty response."
)

// DefaultMaxMessageLength is the largest reply chunk, in runes.
const DefaultMaxMessageLength = 4096

// Operator command names, without the leading slash.
const (
	CmdStart     = "start"
	CmdHelp      = "help"
	CmdDropCache = "drop_cache"
)

// Replier delivers text to a user over some transport.
type Replier interface {
	Reply(ctx context.Context, userID int64, text string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, userID int64, text string) error

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, userID int64, text string) error {
	return f(ctx, userID, text)
}

// Completer is the completion backend: one prompt in, one completion out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// State is a step of the per-message resolution state machine.
type State string

const (
	StateReceived           State = "received"
	StateContextResolved    State = "context_resolved"
	StatePromptSent         State = "prompt_sent"
	StateCompletionReceived State = "completion_received"
	StatePersisted          State = "persisted"
	StateFailed             State = "failed"
)

// Outcome describes how far a message got and what it was resolved to.
type Outcome struct {
	ResolutionID string
	State        State
	// FailedAt is the stage that moved the resolution to StateFailed.
	FailedAt    Stage
	Prompt      string
	Source      string
	ContextUsed bool
	Persisted   bool
}

// RelayService orchestrates message resolution and operator commands.
type RelayService struct {
	Context *ContextService
	Backend Completer
	Access  *Allowlist

	// MaxMessageLength bounds each reply chunk, in runes. Zero means
	// DefaultMaxMessageLength.
	MaxMessageLength int

	// CompletionTimeout bounds a single backend call. Zero means no timeout.
	CompletionTimeout time.Duration
}

// IsAuthorized reports whether userID may use context-mutating operations.
func (s *RelayService) IsAuthorized(userID int64) bool {
	return s.Access.Allows(userID)
}

// Dispatch routes raw inbound text: "/command" messages go to the operator
// commands, everything else to HandleMessage. A trailing "@botname" on the
// command is ignored. Unrecognized commands return ErrUnknownCommand without
// replying.
func (s *RelayService) Dispatch(ctx context.Context, userID int64, text string, out Replier) error {
	cmd, ok := ParseCommand(text)
	if !ok {
		_, err := s.HandleMessage(ctx, userID, text, out)
		return err
	}

	switch cmd {
	case CmdStart:
		_, err := s.Start(ctx, userID, out)
		return err
	case CmdHelp:
		return s.Help(ctx, userID, out)
	case CmdDropCache:
		return s.DropCache(ctx, userID, out)
	default:
		return ErrUnknownCommand
	}
}

// ParseCommand extracts the lower-cased command name from text that starts
// with "/". It reports false for plain messages.
func ParseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text[1:])
	if len(name) == 0 {
		return "", true
	}
	cmd, _, _ := strings.Cut(name[0], "@")
	return strings.ToLower(cmd), true
}

// HandleMessage relays one user message through the resolution state machine.
//
// It returns ErrUnauthorized (after a denial reply) or ErrEmptyMessage without
// touching any state. A backend failure replies MsgFailure, invalidates the
// user's context and returns a *BackendError. Delivery and persistence
// failures are logged and reflected in the Outcome but not returned, since
// the reply has already been handed to the transport. The text is resolved
// and persisted exactly as received.
func (s *RelayService) HandleMessage(ctx context.Context, userID int64, text string, out Replier) (*Outcome, error) {
	if !s.IsAuthorized(userID) {
		s.deliver(ctx, out, userID, MsgDenied)
		return nil, ErrUnauthorized
	}
	if utils.NormalizeText(text) == "" {
		return nil, ErrEmptyMessage
	}

	o := &Outcome{ResolutionID: uuid.NewString(), State: StateReceived}

	l := loggerFrom(ctx).With().
		Str("resolution_id", o.ResolutionID).
		Int64("user_id", userID).
		Logger()
	ctx = l.WithContext(ctx)

	tr := otel.Tracer("services/RelayService")
	ctx, span := tr.Start(ctx, "HandleMessage",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("resolution.id", o.ResolutionID),
		),
	)
	defer span.End()
	defer func() {
		resolutions.WithLabelValues(string(o.State)).Inc()
		span.SetAttributes(attribute.String("resolution.state", string(o.State)))
	}()

	s.deliver(ctx, out, userID, MsgAccepted)

	res := s.Context.Resolve(ctx, userID, text)
	o.Prompt, o.Source, o.ContextUsed = res.Prompt, res.Source, res.ContextUsed()
	o.State = StateContextResolved

	completion, err := s.complete(ctx, res.Prompt, o)
	if err != nil {
		o.State, o.FailedAt = StateFailed, StageComplete
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		l.Error().Err(err).Str("stage", string(StageComplete)).Msg("completion backend failed")

		s.deliver(ctx, out, userID, MsgFailure)
		if errors.Is(err, context.Canceled) {
			// The caller went away; the backend did not fail.
			return o, &BackendError{Err: err}
		}
		if ierr := s.Context.Invalidate(ctx, userID); ierr != nil {
			l.Error().Err(ierr).Str("stage", string(StagePurge)).Msg("context invalidation after backend failure failed")
		}
		return o, &BackendError{Err: err}
	}
	o.State = StateCompletionReceived

	if strings.TrimSpace(completion) == "" {
		completion = MsgEmptyCompletion
	}
	if err := ReplyChunked(ctx, out, userID, completion, s.maxMessageLength()); err != nil {
		l.Warn().Err(err).Str("stage", string(StageDeliver)).Msg("reply delivery failed")
	}

	if _, err := s.Context.Persist(ctx, userID, text); err != nil {
		o.State, o.FailedAt = StateFailed, StagePersist
		span.RecordError(err)
		// The cache must not serve a message the store never recorded.
		s.Context.Cache.Delete(userID)
		l.Error().Err(err).Str("stage", string(StagePersist)).Msg("persisting message failed; reply already delivered")
		return o, nil
	}
	o.State, o.Persisted = StatePersisted, true

	l.Debug().
		Str("source", o.Source).
		Bool("context_used", o.ContextUsed).
		Msg("message relayed")
	return o, nil
}

func (s *RelayService) complete(ctx context.Context, prompt string, o *Outcome) (string, error) {
	if s.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CompletionTimeout)
		defer cancel()
	}

	o.State = StatePromptSent
	start := time.Now()
	completion, err := s.Backend.Complete(ctx, prompt)
	completionLatency.Observe(time.Since(start).Seconds())
	return completion, err
}

// Start greets the user and primes the hot cache from their latest durable
// entry. It reports whether prior context was found. A priming failure is
// logged and returned after the greeting has been sent.
func (s *RelayService) Start(ctx context.Context, userID int64, out Replier) (bool, error) {
	if !s.IsAuthorized(userID) {
		s.deliver(ctx, out, userID, MsgDenied)
		return false, ErrUnauthorized
	}

	s.deliver(ctx, out, userID, MsgGreeting)

	primed, err := s.Context.Prime(ctx, userID)
	if err != nil {
		loggerFrom(ctx).Error().Err(err).
			Int64("user_id", userID).
			Str("stage", string(StagePrime)).
			Msg("priming hot cache failed")
		return false, err
	}
	return primed, nil
}

// Help sends the static help text. It is available to every user.
func (s *RelayService) Help(ctx context.Context, userID int64, out Replier) error {
	s.deliver(ctx, out, userID, MsgHelp)
	return nil
}

// DropCache purges the user's durable history and hot-cache state, then
// confirms. It is idempotent.
func (s *RelayService) DropCache(ctx context.Context, userID int64, out Replier) error {
	if !s.IsAuthorized(userID) {
		s.deliver(ctx, out, userID, MsgDenied)
		return ErrUnauthorized
	}

	if err := s.Context.Invalidate(ctx, userID); err != nil {
		loggerFrom(ctx).Error().Err(err).
			Int64("user_id", userID).
			Str("stage", string(StagePurge)).
			Msg("dropping context failed")
		s.deliver(ctx, out, userID, MsgFailure)
		return err
	}

	s.deliver(ctx, out, userID, MsgCacheDropped)
	return nil
}

// deliver sends one reply and logs, rather than returns, a delivery failure.
func (s *RelayService) deliver(ctx context.Context, out Replier, userID int64, text string) {
	if out == nil {
		return
	}
	if err := out.Reply(ctx, userID, text); err != nil {
		loggerFrom(ctx).Warn().Err(err).
			Int64("user_id", userID).
			Str("stage", string(StageDeliver)).
			Msg("reply delivery failed")
	}
}

func (s *RelayService) maxMessageLength() int {
	if s.MaxMessageLength > 0 {
		return s.MaxMessageLength
	}
	return DefaultMaxMessageLength
}

// ReplyChunked delivers text in order as pieces of at most max runes. It stops
// at the first delivery error.
func ReplyChunked(ctx context.Context, out Replier, userID int64, text string, max int) error {
	if out == nil {
		return nil
	}
	for _, chunk := range utils.ChunkText(text, max) {
		if err := out.Reply(ctx, userID, chunk); err != nil {
			return err
		}
	}
	return nil
}
