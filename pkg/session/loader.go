package session

import (
	"context"
	"sync"
)

// Token identifies one load attempt.
type Token uint64

// Loader tracks which image load is the latest. Decodes can run on any
// goroutine; only the result whose token is still current gets installed, so
// a slow load never overwrites a newer one.
type Loader struct {
	mu     sync.Mutex
	gen    Token
	cancel context.CancelFunc
}

// Begin starts a new load, cancelling the context of the previous one, and
// returns the context the new load should run under.
func (l *Loader) Begin(ctx context.Context) (context.Context, Token) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.gen++
	return ctx, l.gen
}

// Current reports whether t belongs to the most recent load.
func (l *Loader) Current(t Token) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return t == l.gen
}

// Finish releases the context of load t if it is still the latest.
func (l *Loader) Finish(t Token) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t == l.gen && l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Result is the outcome of one asynchronous load.
type Result[T any] struct {
	Token Token
	Value T
	Err   error
}

// Go runs fn on its own goroutine under a fresh load token. The returned
// channel yields exactly one Result and is then closed.
func Go[T any](ctx context.Context, l *Loader, fn func(context.Context) (T, error)) <-chan Result[T] {
	ctx, token := l.Begin(ctx)
	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		v, err := fn(ctx)
		if err == nil {
			err = ctx.Err()
		}
		out <- Result[T]{Token: token, Value: v, Err: err}
	}()
	return out
}
