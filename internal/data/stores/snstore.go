package stores

import (
	"context"
	"fmt"

	"github.com/colonyops/tempo/internal/core/kv"
	"github.com/colonyops/tempo/internal/core/servicenow"
)

const (
	snConfigKey      = "snConfig"
	snLookupCacheKey = "snLookupCache"
	snSessionsKey    = "snSessions"
	snOriginsKey     = "snGrantedOrigins"
	snLastGoodKey    = "snLastGoodSession"
)

// SNStore persists ServiceNow integration state in the shared KV
// namespace. Missing keys read as zero values so a fresh install behaves
// like a disabled integration.
type SNStore struct {
	kv kv.KV
}

var _ servicenow.Store = (*SNStore)(nil)

func NewSNStore(store kv.KV) *SNStore {
	return &SNStore{kv: store}
}

func (s *SNStore) GetConfig(ctx context.Context) (servicenow.Config, error) {
	var cfg servicenow.Config
	if err := s.kv.Get(ctx, snConfigKey, &cfg); err != nil {
		if kv.IsNotFound(err) {
			return servicenow.Config{}, nil
		}
		return servicenow.Config{}, err
	}
	return cfg, nil
}

func (s *SNStore) SaveConfig(ctx context.Context, cfg servicenow.Config) error {
	return s.kv.Set(ctx, snConfigKey, cfg)
}

func (s *SNStore) GetLookups(ctx context.Context) (servicenow.LookupSet, error) {
	var lookups servicenow.LookupSet
	if err := s.kv.Get(ctx, snLookupCacheKey, &lookups); err != nil {
		if kv.IsNotFound(err) {
			return servicenow.LookupSet{}, nil
		}
		return servicenow.LookupSet{}, err
	}
	return lookups, nil
}

func (s *SNStore) SaveLookups(ctx context.Context, lookups servicenow.LookupSet) error {
	return s.kv.Set(ctx, snLookupCacheKey, lookups)
}

func (s *SNStore) ListSessions(ctx context.Context) ([]servicenow.Session, error) {
	var sessions []servicenow.Session
	if err := s.kv.Get(ctx, snSessionsKey, &sessions); err != nil {
		if kv.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return sessions, nil
}

// SaveSession inserts or replaces a session by id.
func (s *SNStore) SaveSession(ctx context.Context, sess servicenow.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id is required")
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range sessions {
		if sessions[i].ID == sess.ID {
			sessions[i] = sess
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append(sessions, sess)
	}

	return s.kv.Set(ctx, snSessionsKey, sessions)
}

// RemoveSession deletes a session by id. Removing a missing session is a
// no-op.
func (s *SNStore) RemoveSession(ctx context.Context, id string) error {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return err
	}

	kept := sessions[:0]
	for _, sess := range sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	if len(kept) == len(sessions) {
		return nil
	}

	return s.kv.Set(ctx, snSessionsKey, kept)
}

func (s *SNStore) GrantedOrigins(ctx context.Context) ([]string, error) {
	var origins []string
	if err := s.kv.Get(ctx, snOriginsKey, &origins); err != nil {
		if kv.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return origins, nil
}

// GrantOrigin records an origin as permitted. Granting twice is a no-op.
func (s *SNStore) GrantOrigin(ctx context.Context, origin string) error {
	origins, err := s.GrantedOrigins(ctx)
	if err != nil {
		return err
	}

	for _, o := range origins {
		if o == origin {
			return nil
		}
	}

	return s.kv.Set(ctx, snOriginsKey, append(origins, origin))
}

// LastGoodSession returns the id of the session that most recently served
// a request successfully, or "" when none has.
func (s *SNStore) LastGoodSession(ctx context.Context) (string, error) {
	var id string
	if err := s.kv.Get(ctx, snLastGoodKey, &id); err != nil {
		if kv.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

func (s *SNStore) SetLastGoodSession(ctx context.Context, id string) error {
	return s.kv.Set(ctx, snLastGoodKey, id)
}
