// Package bridgetest provides an in-memory bridge transport for tests.
package bridgetest

import (
	"context"
	"sync"

	"github.com/colonyops/tempo/internal/bridge"
	"github.com/colonyops/tempo/internal/core/servicenow"
)

// Call records one delivery attempt.
type Call struct {
	SessionID string
	Action    string
}

// Transport is a scripted bridge.Transport. Sessions answer with their
// scripted response; sessions scripted with an error are unreachable.
type Transport struct {
	mu        sync.Mutex
	responses map[string]bridge.Response
	failures  map[string]error
	calls     []Call
}

var _ bridge.Transport = (*Transport)(nil)

func New() *Transport {
	return &Transport{
		responses: map[string]bridge.Response{},
		failures:  map[string]error{},
	}
}

// Respond scripts a session's response.
func (t *Transport) Respond(sessionID string, resp bridge.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses[sessionID] = resp
}

// Fail scripts a session as unreachable.
func (t *Transport) Fail(sessionID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[sessionID] = err
}

// Send implements bridge.Transport.
func (t *Transport) Send(_ context.Context, sess servicenow.Session, env bridge.Envelope) (bridge.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, Call{SessionID: sess.ID, Action: env.Action})

	if err, ok := t.failures[sess.ID]; ok {
		return bridge.Response{}, err
	}
	if resp, ok := t.responses[sess.ID]; ok {
		return resp, nil
	}
	return bridge.ErrResponse(servicenow.NewError(servicenow.CodeAPIError, "no scripted response for session %s", sess.ID)), nil
}

// Calls returns the delivery attempts made so far.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}
