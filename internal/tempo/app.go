// Package tempo wires the stores, timer engine, permission gate, and sync
// bridge into the operation surface the commands call.
package tempo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/tempo/internal/bridge"
	"github.com/colonyops/tempo/internal/core/aggregate"
	"github.com/colonyops/tempo/internal/core/config"
	"github.com/colonyops/tempo/internal/core/eventbus"
	"github.com/colonyops/tempo/internal/core/logging"
	"github.com/colonyops/tempo/internal/core/servicenow"
	"github.com/colonyops/tempo/internal/core/timeblock"
	"github.com/colonyops/tempo/internal/core/timer"
	"github.com/colonyops/tempo/internal/data/stores"
	"github.com/colonyops/tempo/pkg/randid"
)

// App owns the wired application graph.
type App struct {
	cfg *config.Config
	log zerolog.Logger
	bus *eventbus.EventBus

	blocks  timeblock.Store
	runtime timer.Store
	sn      servicenow.Store

	engine *timer.Engine
	gate   *servicenow.Gate
}

// New builds the application graph over the config's data directory.
func New(cfg *config.Config, prompt servicenow.Prompter, bus *eventbus.EventBus, log zerolog.Logger) *App {
	kvs := stores.NewKVStore(cfg.DataDir)
	blocks := stores.NewBlockStore(kvs)
	runtime := stores.NewRuntimeStore(kvs)
	sn := stores.NewSNStore(kvs)

	return &App{
		cfg:     cfg,
		log:     log,
		bus:     bus,
		blocks:  blocks,
		runtime: runtime,
		sn:      sn,
		engine:  timer.NewEngine(runtime, blocks, bus, logging.Component("timer")),
		gate:    servicenow.NewGate(sn, prompt, logging.Component("sn.gate")),
	}
}

// Restore reloads persisted timer state. Call once before serving
// operations.
func (a *App) Restore(ctx context.Context) error {
	return a.engine.Restore(ctx)
}

// Close releases the timer engine's background tick.
func (a *App) Close() {
	a.engine.Close()
}

// Bus exposes the event bus for display collaborators.
func (a *App) Bus() *eventbus.EventBus { return a.bus }

// WatchRefresh is the configured live-view poll interval. Values <= 0
// fall back to one second.
func (a *App) WatchRefresh() time.Duration {
	if a.cfg.Watch.RefreshMs <= 0 {
		return time.Second
	}
	return time.Duration(a.cfg.Watch.RefreshMs) * time.Millisecond
}

// Start begins or resumes the timer. With the ServiceNow integration
// enabled, the assignment metadata must be complete.
func (a *App) Start(ctx context.Context, task string, asgn timeblock.Assignment) error {
	validate, err := a.shouldValidateAssignment(ctx)
	if err != nil {
		return err
	}
	return a.engine.Start(ctx, task, asgn, validate)
}

// Stop pauses the timer, closing the live segment into a block.
func (a *App) Stop(ctx context.Context) error {
	return a.engine.Stop(ctx)
}

// Finish stops the timer and resets it, returning the final elapsed time.
func (a *App) Finish(ctx context.Context) (int64, error) {
	return a.engine.Finish(ctx)
}

// Status returns the current timer snapshot.
func (a *App) Status(ctx context.Context) (timer.Snapshot, error) {
	return a.engine.Status(ctx)
}

// SaveManualSession records a hand-entered block.
func (a *App) SaveManualSession(ctx context.Context, task string, startMs, endMs int64, asgn timeblock.Assignment) (timeblock.TimeBlock, error) {
	validate, err := a.shouldValidateAssignment(ctx)
	if err != nil {
		return timeblock.TimeBlock{}, err
	}
	if validate {
		if err := asgn.Validate(); err != nil {
			return timeblock.TimeBlock{}, err
		}
	}

	block, err := timeblock.New(task, startMs, endMs, timeblock.SourceManual, asgn)
	if err != nil {
		return timeblock.TimeBlock{}, err
	}
	if err := a.blocks.Append(ctx, block); err != nil {
		return timeblock.TimeBlock{}, err
	}

	a.log.Info().Str("task", block.Task).Int64("duration_ms", block.DurationMs).Msg("manual block saved")
	return block, nil
}

// UpdateTimeBlock edits a block's mutable fields.
func (a *App) UpdateTimeBlock(ctx context.Context, id string, u timeblock.Update) (timeblock.TimeBlock, error) {
	return a.blocks.Update(ctx, id, u)
}

// DeleteTimeBlock removes a block.
func (a *App) DeleteTimeBlock(ctx context.Context, id string) error {
	return a.blocks.Delete(ctx, id)
}

// GetTimeBlocks lists blocks inside a range window, newest first.
func (a *App) GetTimeBlocks(ctx context.Context, window Window) ([]timeblock.TimeBlock, error) {
	blocks, err := a.blocks.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := window.Filter(blocks)

	// Newest first for display.
	for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}
	return filtered, nil
}

// AggregatedSessions returns the by-task report for a range window,
// folding in the legacy aggregate rows.
func (a *App) AggregatedSessions(ctx context.Context, window Window) ([]aggregate.TaskSummary, error) {
	blocks, err := a.blocks.List(ctx)
	if err != nil {
		return nil, err
	}

	legacy, err := a.blocks.ListLegacySessions(ctx)
	if err != nil {
		return nil, err
	}
	if !window.Unbounded() {
		// Legacy rows have no interval and only belong in all-time views.
		legacy = nil
	}

	return aggregate.ByTask(window.Filter(blocks), legacy), nil
}

// AggregatedByPeriod returns the day or week report for a range window.
func (a *App) AggregatedByPeriod(ctx context.Context, window Window, period string) ([]aggregate.PeriodSummary, error) {
	blocks, err := a.blocks.List(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.ByPeriod(window.Filter(blocks), period), nil
}

// ClearSessions wipes every block and the legacy aggregate rows.
func (a *App) ClearSessions(ctx context.Context) error {
	if err := a.blocks.Clear(ctx); err != nil {
		return err
	}
	a.log.Info().Msg("all recorded sessions cleared")
	return nil
}

// SNConfig returns the stored integration config.
func (a *App) SNConfig(ctx context.Context) (servicenow.Config, error) {
	return a.sn.GetConfig(ctx)
}

// SaveSNConfig normalizes and persists the integration config.
func (a *App) SaveSNConfig(ctx context.Context, enabled bool, rawURL string) (servicenow.Config, error) {
	return a.gate.SaveConfig(ctx, enabled, rawURL)
}

// Connect registers a browser session for the configured instance and
// verifies it can authenticate.
func (a *App) Connect(ctx context.Context, label, cookieFile string) (servicenow.Session, servicenow.SessionUser, error) {
	cfg, err := a.sn.GetConfig(ctx)
	if err != nil {
		return servicenow.Session{}, servicenow.SessionUser{}, err
	}
	if !cfg.Enabled || cfg.InstanceURL == "" {
		return servicenow.Session{}, servicenow.SessionUser{}, servicenow.NewError(servicenow.CodeNoConfig,
			"ServiceNow integration is not configured").
			WithHint("Run 'tempo sn config --enable --instance <url>' first.")
	}

	if err := a.gate.EnsurePermission(ctx, cfg.InstanceURL); err != nil {
		return servicenow.Session{}, servicenow.SessionUser{}, err
	}

	sess := servicenow.Session{
		ID:             randid.Generate(12),
		Origin:         cfg.InstanceURL,
		Label:          label,
		CookieFile:     cookieFile,
		Focused:        true,
		LastAccessedMs: time.Now().UnixMilli(),
	}

	// Only the newest registration counts as focused.
	existing, err := a.sn.ListSessions(ctx)
	if err != nil {
		return servicenow.Session{}, servicenow.SessionUser{}, err
	}
	for _, s := range existing {
		if s.Focused {
			s.Focused = false
			if err := a.sn.SaveSession(ctx, s); err != nil {
				return servicenow.Session{}, servicenow.SessionUser{}, err
			}
		}
	}

	if err := a.sn.SaveSession(ctx, sess); err != nil {
		return servicenow.Session{}, servicenow.SessionUser{}, err
	}

	user, err := a.controller().CheckSession(ctx)
	if err != nil {
		return sess, servicenow.SessionUser{}, err
	}
	return sess, user, nil
}

// CheckSession resolves the authenticated remote user through the bridge.
func (a *App) CheckSession(ctx context.Context) (servicenow.SessionUser, error) {
	return a.controller().CheckSession(ctx)
}

// FetchLookups refreshes the lookup cache from the instance.
func (a *App) FetchLookups(ctx context.Context) (servicenow.LookupSet, error) {
	lookups, err := a.controller().FetchLookups(ctx)
	if err != nil {
		return servicenow.LookupSet{}, err
	}

	if err := a.sn.SaveLookups(ctx, lookups); err != nil {
		return servicenow.LookupSet{}, fmt.Errorf("cache lookups: %w", err)
	}

	a.bus.PublishLookupsRefreshed(eventbus.LookupsRefreshedPayload{
		Tasks:      len(lookups.Tasks),
		Categories: len(lookups.Categories),
		TimeCodes:  len(lookups.TimeCodes),
	})
	return lookups, nil
}

// CachedLookups returns the last fetched lookup set without touching the
// network.
func (a *App) CachedLookups(ctx context.Context) (servicenow.LookupSet, error) {
	return a.sn.GetLookups(ctx)
}

// SyncResult pairs the upload report with the grouping that produced it.
type SyncResult struct {
	Grouping aggregate.GroupingResult `json:"grouping"`
	Report   servicenow.SyncReport    `json:"report"`
}

// SyncVisibleBlocks aggregates the blocks in a range window and uploads
// the resulting weekly groups. Syncing everything ever recorded is
// refused; pick a bounded range. An explicit id list further narrows the
// candidate set.
func (a *App) SyncVisibleBlocks(ctx context.Context, window Window, blockIDs []string) (SyncResult, error) {
	if window.Unbounded() {
		return SyncResult{}, servicenow.NewError(servicenow.CodeInvalidGroup,
			"refusing to sync the unbounded 'all' range").
			WithHint("Pick today, this-week, this-month, or a custom range.")
	}

	blocks, err := a.blocks.List(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	candidates := window.Filter(blocks)

	if len(blockIDs) > 0 {
		wanted := make(map[string]bool, len(blockIDs))
		for _, id := range blockIDs {
			wanted[id] = true
		}
		kept := candidates[:0]
		for _, b := range candidates {
			if wanted[b.ID] {
				kept = append(kept, b)
			}
		}
		candidates = kept
	}

	grouping := aggregate.BuildSyncGroups(candidates)
	if len(grouping.Groups) == 0 {
		return SyncResult{Grouping: grouping}, nil
	}

	report, err := a.controller().SyncTimeCards(ctx, grouping.Groups)
	if err != nil {
		return SyncResult{Grouping: grouping}, err
	}

	for _, r := range report.Results {
		a.bus.PublishSyncProgress(eventbus.SyncProgressPayload{
			GroupKey: r.GroupKey,
			Outcome:  r.Outcome,
			Message:  r.Message,
		})
	}

	return SyncResult{Grouping: grouping, Report: report}, nil
}

// controller assembles the bridge tiers over the currently stored config.
// Rebuilt per call so a config change takes effect immediately.
func (a *App) controller() *bridge.Controller {
	factory := func(sess servicenow.Session) (bridge.Handler, error) {
		return bridge.NewAgent(sess, a.log)
	}

	// The relay's origin check runs against whatever instance is configured
	// at send time; candidates come pre-filtered by the gate.
	relayFor := func(origin string) *bridge.Relay {
		return bridge.NewRelay(origin, a.cfg.Sync.TimeoutMs, factory, a.log)
	}
	return bridge.NewController(a.gate, a.sn, &lazyRelay{build: relayFor, sn: a.sn}, a.log)
}

// lazyRelay defers relay construction until the first send, when the
// configured origin is known.
type lazyRelay struct {
	build func(origin string) *bridge.Relay
	sn    servicenow.Store

	relay *bridge.Relay
}

func (l *lazyRelay) Send(ctx context.Context, sess servicenow.Session, env bridge.Envelope) (bridge.Response, error) {
	if l.relay == nil {
		cfg, err := l.sn.GetConfig(ctx)
		if err != nil {
			return bridge.Response{}, err
		}
		l.relay = l.build(cfg.InstanceURL)
	}
	return l.relay.Send(ctx, sess, env)
}

// shouldValidateAssignment reports whether assignment metadata must be
// complete. With the integration enabled every new entry needs a full
// linkage, empty ones included, so it can sync later without repair.
func (a *App) shouldValidateAssignment(ctx context.Context) (bool, error) {
	cfg, err := a.sn.GetConfig(ctx)
	if err != nil {
		return false, err
	}
	return cfg.Enabled, nil
}
