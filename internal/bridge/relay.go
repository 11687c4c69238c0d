package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/tempo/internal/core/servicenow"
)

// Handler executes one bridge request inside a session's context. The
// Agent is the production implementation.
type Handler interface {
	Handle(ctx context.Context, env Envelope) Response
}

// HandlerFactory builds a handler bound to one session.
type HandlerFactory func(sess servicenow.Session) (Handler, error)

// Relay is tier 2 of the bridge. It checks that a candidate session's
// origin matches the configured instance before relaying anything, starts
// at most one agent per session, and enforces a hard per-request timeout.
// A handler answer arriving after the timeout is dropped.
type Relay struct {
	origin     string
	newHandler HandlerFactory
	timeout    time.Duration
	log        zerolog.Logger

	mu     sync.Mutex
	agents map[string]Handler
}

var _ Transport = (*Relay)(nil)

// NewRelay creates a relay for the given instance origin. timeoutMs is the
// per-request deadline; values <= 0 fall back to DefaultTimeoutMs.
func NewRelay(origin string, timeoutMs int64, factory HandlerFactory, log zerolog.Logger) *Relay {
	if timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}
	return &Relay{
		origin:     origin,
		newHandler: factory,
		timeout:    time.Duration(timeoutMs) * time.Millisecond,
		log:        log,
		agents:     map[string]Handler{},
	}
}

// Send relays one envelope to the session's agent.
func (r *Relay) Send(ctx context.Context, sess servicenow.Session, env Envelope) (Response, error) {
	if sess.Origin != r.origin {
		return ErrResponse(servicenow.NewError(servicenow.CodeNoTab,
			"session %s belongs to %s, not the configured instance %s", sess.ID, sess.Origin, r.origin)), nil
	}

	handler, err := r.handlerFor(sess)
	if err != nil {
		return Response{}, err
	}

	timeout := r.timeout
	if env.TimeoutMs > 0 {
		timeout = time.Duration(env.TimeoutMs) * time.Millisecond
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so a late handler answer never blocks its goroutine; it is
	// simply never read once the request id stops being pending.
	answer := make(chan Response, 1)
	go func() {
		answer <- handler.Handle(reqCtx, env)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-answer:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-timer.C:
		r.log.Warn().
			Str("session", sess.ID).
			Str("action", env.Action).
			Str("request_id", env.RequestID).
			Dur("timeout", timeout).
			Msg("bridge request timed out, dropping pending response")
		return ErrResponse(servicenow.NewError(servicenow.CodeAPIError,
			"request %s timed out after %s", env.RequestID, timeout)), nil
	}
}

// handlerFor returns the session's agent, starting it on first use.
func (r *Relay) handlerFor(sess servicenow.Session) (Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.agents[sess.ID]; ok {
		return h, nil
	}

	h, err := r.newHandler(sess)
	if err != nil {
		return nil, err
	}
	r.agents[sess.ID] = h
	return h, nil
}
