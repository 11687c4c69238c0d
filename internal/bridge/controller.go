package bridge

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/colonyops/tempo/internal/core/aggregate"
	"github.com/colonyops/tempo/internal/core/servicenow"
)

// Controller is tier 1 of the bridge: it resolves the ranked candidate
// sessions and walks them until one serves the request. A candidate that
// is unreachable or not logged in forwards the request to the next one;
// any other failure is final. The session that succeeds is remembered so
// it ranks first next time.
type Controller struct {
	gate      *servicenow.Gate
	store     servicenow.Store
	transport Transport
	log       zerolog.Logger
}

// NewController wires the controller over a gate, store, and transport.
func NewController(gate *servicenow.Gate, store servicenow.Store, transport Transport, log zerolog.Logger) *Controller {
	return &Controller{gate: gate, store: store, transport: transport, log: log}
}

// Do sends one action through the first candidate session that can serve
// it.
func (c *Controller) Do(ctx context.Context, action string, payload any) (Response, error) {
	cfg, candidates, err := c.gate.FindSessionCandidates(ctx)
	if err != nil {
		return Response{}, err
	}

	if err := c.gate.EnsurePermission(ctx, cfg.InstanceURL); err != nil {
		return Response{}, err
	}

	env, err := NewEnvelope(action, payload)
	if err != nil {
		return Response{}, err
	}

	var last Response
	haveLast := false
	for _, sess := range candidates {
		resp, err := c.transport.Send(ctx, sess, env)
		if err != nil {
			c.log.Warn().
				Str("session", sess.ID).
				Str("action", action).
				Err(err).
				Msg("session unreachable, trying next candidate")
			continue
		}

		if !resp.OK && resp.Code == servicenow.CodeNotLoggedIn {
			c.log.Debug().
				Str("session", sess.ID).
				Str("action", action).
				Msg("session not logged in, trying next candidate")
			last, haveLast = resp, true
			continue
		}

		if resp.OK {
			if err := c.store.SetLastGoodSession(ctx, sess.ID); err != nil {
				c.log.Warn().Err(err).Msg("failed to remember last good session")
			}
		}
		return resp, nil
	}

	if haveLast {
		return last, nil
	}
	return Response{}, servicenow.NewError(servicenow.CodeNoTab, "no candidate session could serve %s", action).
		WithHint("Open and log in to your instance, then register the session with 'tempo sn connect'.")
}

// CheckSession resolves the authenticated remote user.
func (c *Controller) CheckSession(ctx context.Context) (servicenow.SessionUser, error) {
	resp, err := c.Do(ctx, ActionCheckSession, nil)
	if err != nil {
		return servicenow.SessionUser{}, err
	}

	var user servicenow.SessionUser
	if err := resp.Decode(&user); err != nil {
		return servicenow.SessionUser{}, err
	}
	return user, nil
}

// FetchLookups retrieves fresh reference data from the instance.
func (c *Controller) FetchLookups(ctx context.Context) (servicenow.LookupSet, error) {
	resp, err := c.Do(ctx, ActionFetchLookups, nil)
	if err != nil {
		return servicenow.LookupSet{}, err
	}

	var lookups servicenow.LookupSet
	if err := resp.Decode(&lookups); err != nil {
		return servicenow.LookupSet{}, err
	}
	return lookups, nil
}

// SyncPayload is the syncTimeCards request body.
type SyncPayload struct {
	Groups []aggregate.SyncGroup `json:"groups"`
}

// SyncTimeCards uploads weekly aggregate groups to the instance.
func (c *Controller) SyncTimeCards(ctx context.Context, groups []aggregate.SyncGroup) (servicenow.SyncReport, error) {
	resp, err := c.Do(ctx, ActionSyncTimeCards, SyncPayload{Groups: groups})
	if err != nil {
		return servicenow.SyncReport{}, err
	}

	var report servicenow.SyncReport
	if err := resp.Decode(&report); err != nil {
		return servicenow.SyncReport{}, err
	}
	return report, nil
}
