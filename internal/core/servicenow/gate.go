package servicenow

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
)

// Prompter asks the user to approve a host-permission grant. The command
// layer supplies an interactive implementation; tests supply a fake.
type Prompter interface {
	Confirm(title, description string) (bool, error)
}

// Gate validates the configured instance, manages host-permission grants,
// and locates candidate authenticated sessions for the configured origin.
type Gate struct {
	store  Store
	prompt Prompter
	log    zerolog.Logger
}

// NewGate creates a permission gate over the given store and prompter.
func NewGate(store Store, prompt Prompter, log zerolog.Logger) *Gate {
	return &Gate{store: store, prompt: prompt, log: log}
}

// SaveConfig normalizes and persists the integration config. When enabled,
// the instance URL must normalize to a bare HTTPS origin.
func (g *Gate) SaveConfig(ctx context.Context, enabled bool, rawURL string) (Config, error) {
	normalized := NormalizeInstanceURL(rawURL)
	if enabled && normalized == "" {
		return Config{}, NewError(CodeNoConfig, "invalid ServiceNow instance URL %q", rawURL).
			WithHint("Use an HTTPS origin only, for example https://your-instance.service-now.com.")
	}

	cfg := Config{Enabled: enabled, InstanceURL: normalized}
	if err := g.store.SaveConfig(ctx, cfg); err != nil {
		return Config{}, fmt.Errorf("save servicenow config: %w", err)
	}

	g.log.Info().Bool("enabled", enabled).Str("instance", normalized).Msg("servicenow config saved")
	return cfg, nil
}

// EnsurePermission checks whether origin is already granted and, if not,
// asks the user interactively. A refusal fails with SN_PERMISSION_DENIED.
func (g *Gate) EnsurePermission(ctx context.Context, origin string) error {
	if NormalizeInstanceURL(origin) == "" {
		return NewError(CodeNoConfig, "invalid instance origin %q", origin)
	}

	granted, err := g.store.GrantedOrigins(ctx)
	if err != nil {
		return fmt.Errorf("read granted origins: %w", err)
	}
	if slices.Contains(granted, origin) {
		return nil
	}

	ok, err := g.prompt.Confirm(
		"Grant ServiceNow host access?",
		fmt.Sprintf("tempo needs permission to reach %s through your browser session.", origin),
	)
	if err != nil {
		return NewError(CodePermissionDenied, "host permission request failed: %v", err)
	}
	if !ok {
		return NewError(CodePermissionDenied, "host permission was not granted for %s", origin).
			WithHint("Re-run connect and accept the permission prompt.")
	}

	if err := g.store.GrantOrigin(ctx, origin); err != nil {
		return fmt.Errorf("persist granted origin: %w", err)
	}

	g.log.Info().Str("origin", origin).Msg("host permission granted")
	return nil
}

// FindSessionCandidates returns the enabled config plus all registered
// sessions for the configured origin, ordered by authentication likelihood:
// the previously-successful session first, then focused sessions, then
// most-recently-accessed.
func (g *Gate) FindSessionCandidates(ctx context.Context) (Config, []Session, error) {
	cfg, err := g.store.GetConfig(ctx)
	if err != nil {
		return Config{}, nil, fmt.Errorf("read servicenow config: %w", err)
	}
	if !cfg.Enabled || cfg.InstanceURL == "" {
		return Config{}, nil, NewError(CodeNoConfig, "ServiceNow integration is not configured").
			WithHint("Run 'tempo sn config' with an instance URL first.")
	}

	sessions, err := g.store.ListSessions(ctx)
	if err != nil {
		return Config{}, nil, fmt.Errorf("list servicenow sessions: %w", err)
	}

	matching := sessions[:0:0]
	for _, sess := range sessions {
		if sess.Origin == cfg.InstanceURL {
			matching = append(matching, sess)
		}
	}
	if len(matching) == 0 {
		return Config{}, nil, NewError(CodeNoTab, "no browser session found for %s", cfg.InstanceURL).
			WithHint("Open and log in to your instance, then register the session with 'tempo sn connect'.")
	}

	lastGood, err := g.store.LastGoodSession(ctx)
	if err != nil {
		return Config{}, nil, fmt.Errorf("read last good session: %w", err)
	}

	return cfg, RankSessions(matching, lastGood), nil
}
