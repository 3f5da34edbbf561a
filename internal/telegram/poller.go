package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-context-relay/internal/services"
)

// Dispatcher routes one inbound message. services.RelayService implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64, text string, out services.Replier) error
}

// Source is the subset of Client the poller needs.
type Source interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Poller long-polls the Bot API and dispatches every text message on its own
// goroutine. Messages from different users are processed concurrently.
type Poller struct {
	Source      Source
	Relay       Dispatcher
	PollTimeout time.Duration
	// RetryDelay is the pause after a failed getUpdates call.
	RetryDelay time.Duration
	Logger     zerolog.Logger

	wg sync.WaitGroup
}

// NewPoller returns a Poller with the global logger and a 3s retry delay.
func NewPoller(src Source, relay Dispatcher, pollTimeout time.Duration) *Poller {
	return &Poller{
		Source:      src,
		Relay:       relay,
		PollTimeout: pollTimeout,
		RetryDelay:  3 * time.Second,
		Logger:      log.Logger.With().Str("component", "telegram").Logger(),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight messages to
// finish. In-flight messages do not inherit the cancellation, so a shutdown
// lets them complete and persist instead of failing mid-request. It always
// returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	defer p.wg.Wait()

	msgCtx := context.WithoutCancel(ctx)
	var offset int64
	p.Logger.Info().Dur("poll_timeout", p.PollTimeout).Msg("telegram polling started")
	for {
		if ctx.Err() != nil {
			p.Logger.Info().Msg("telegram polling stopped")
			return ctx.Err()
		}

		updates, err := p.Source.GetUpdates(ctx, offset, int(p.PollTimeout/time.Second))
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.Logger.Warn().Err(err).Msg("getUpdates failed")
			p.sleep(ctx, p.RetryDelay)
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			m := u.Message
			if m == nil || m.From == nil || m.Text == "" {
				continue
			}
			p.wg.Add(1)
			go func(updateID int64, m *Message) {
				defer p.wg.Done()
				p.handle(msgCtx, updateID, m)
			}(u.UpdateID, m)
		}
	}
}

func (p *Poller) handle(ctx context.Context, updateID int64, m *Message) {
	l := p.Logger.With().
		Int64("update_id", updateID).
		Int64("user_id", m.From.ID).
		Int64("chat_id", m.Chat.ID).
		Logger()
	ctx = l.WithContext(ctx)

	chatID := m.Chat.ID
	out := services.ReplierFunc(func(ctx context.Context, _ int64, text string) error {
		return p.Source.SendMessage(ctx, chatID, text)
	})

	err := p.Relay.Dispatch(ctx, m.From.ID, m.Text, out)
	var be *services.BackendError
	switch {
	case err == nil:
	case errors.Is(err, services.ErrUnknownCommand), errors.Is(err, services.ErrEmptyMessage):
		l.Debug().Err(err).Msg("message ignored")
	case errors.Is(err, services.ErrUnauthorized):
		l.Info().Msg("access denied")
	case errors.As(err, &be):
		// already logged and answered by the relay
	default:
		l.Error().Err(err).Msg("message handling failed")
	}
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
