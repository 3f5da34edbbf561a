package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-context-relay/internal/services"
)

type fakeSource struct {
	mu      sync.Mutex
	batches [][]Update
	offsets []int64
	sent    map[int64][]string
	failOne bool
}

func (f *fakeSource) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if f.failOne {
		f.failOne = false
		f.mu.Unlock()
		return nil, errors.New("network down")
	}
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return b, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSource) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[int64][]string{}
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

type echoRelay struct {
	mu    sync.Mutex
	users []int64
	done  chan struct{}
	want  int
}

func (e *echoRelay) Dispatch(ctx context.Context, userID int64, text string, out services.Replier) error {
	e.mu.Lock()
	e.users = append(e.users, userID)
	n := len(e.users)
	e.mu.Unlock()
	err := out.Reply(ctx, userID, "echo: "+text)
	if n == e.want {
		close(e.done)
	}
	return err
}

func msg(updateID, userID int64, text string) Update {
	return Update{UpdateID: updateID, Message: &Message{From: &User{ID: userID}, Chat: Chat{ID: userID}, Text: text}}
}

func TestPoller_DispatchesAndAdvancesOffset(t *testing.T) {
	src := &fakeSource{
		failOne: true,
		batches: [][]Update{
			{msg(10, 1, "a"), {UpdateID: 11}, msg(12, 2, "b")},
			{msg(13, 1, "c")},
		},
	}
	relay := &echoRelay{done: make(chan struct{}), want: 3}

	p := NewPoller(src, relay, 30*time.Second)
	p.RetryDelay = time.Millisecond
	p.Logger = zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()

	select {
	case <-relay.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for dispatch")
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	// the last poll (offset 14) races with cancellation
	want := []int64{0, 0, 13, 14}
	if len(src.offsets) < 3 || len(src.offsets) > len(want) {
		t.Fatalf("offsets = %v; want prefix of %v", src.offsets, want)
	}
	for i := range src.offsets {
		if src.offsets[i] != want[i] {
			t.Fatalf("offsets = %v; want prefix of %v", src.offsets, want)
		}
	}
	if len(src.sent[1]) != 2 || len(src.sent[2]) != 1 || src.sent[2][0] != "echo: b" {
		t.Fatalf("sent = %#v", src.sent)
	}
}

type blockingRelay struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingRelay) Dispatch(ctx context.Context, userID int64, text string, out services.Replier) error {
	close(b.started)
	<-b.release
	b.ctxErr <- ctx.Err()
	return out.Reply(ctx, userID, "done")
}

func TestPoller_ShutdownLetsInFlightMessageFinish(t *testing.T) {
	src := &fakeSource{batches: [][]Update{{msg(1, 7, "slow question")}}}
	relay := &blockingRelay{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}

	p := NewPoller(src, relay, 30*time.Second)
	p.Logger = zerolog.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()

	select {
	case <-relay.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for dispatch")
	}
	cancel()

	select {
	case err := <-errc:
		t.Fatalf("Run returned %v before the in-flight message finished", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(relay.release)
	if err := <-relay.ctxErr; err != nil {
		t.Fatalf("in-flight message saw a cancelled context: %v", err)
	}
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if got := src.sent[7]; len(got) != 1 || got[0] != "done" {
		t.Fatalf("sent = %#v", src.sent)
	}
}
