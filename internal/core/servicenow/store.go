package servicenow

import "context"

// Store persists the ServiceNow integration state: config, the lookup
// cache, registered browser sessions, and granted host origins.
type Store interface {
	GetConfig(ctx context.Context) (Config, error)
	SaveConfig(ctx context.Context, cfg Config) error

	GetLookups(ctx context.Context) (LookupSet, error)
	SaveLookups(ctx context.Context, lookups LookupSet) error

	ListSessions(ctx context.Context) ([]Session, error)
	SaveSession(ctx context.Context, sess Session) error
	RemoveSession(ctx context.Context, id string) error

	GrantedOrigins(ctx context.Context) ([]string, error)
	GrantOrigin(ctx context.Context, origin string) error

	LastGoodSession(ctx context.Context) (string, error)
	SetLastGoodSession(ctx context.Context, id string) error
}
