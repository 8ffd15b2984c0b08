package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Dispatcher delivers events to users.
type Dispatcher interface {
	Dispatch(ctx context.Context, e *Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Dispatch(context.Context, *Event) error { return nil }

// Async runs each dispatch in its own goroutine with a fresh timeout so a
// slow or failing channel never reaches the caller. Failures are logged.
type Async struct {
	next    Dispatcher
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Dispatcher, timeout time.Duration) *Async {
	if next == nil {
		next = Nop{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, timeout: timeout}
}

// Dispatch always returns nil; the request context is not used because the
// event must outlive the request that produced it.
func (a *Async) Dispatch(_ context.Context, e *Event) error {
	if e == nil {
		return nil
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("type", string(e.Type)).Msg("notification dispatch panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Dispatch(ctx, e); err != nil {
			log.Warn().Err(err).
				Str("user_id", e.UserID.String()).
				Str("type", string(e.Type)).
				Msg("notification dispatch failed")
		}
	}()
	return nil
}

// Wait blocks until in-flight dispatches finish. Used on shutdown.
func (a *Async) Wait() {
	a.wg.Wait()
}
