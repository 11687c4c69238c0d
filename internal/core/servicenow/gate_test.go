package servicenow_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/tempo/internal/core/servicenow"
	"github.com/colonyops/tempo/internal/data/stores"
)

type scriptedPrompter struct {
	answer bool
	asked  int
}

func (p *scriptedPrompter) Confirm(title, description string) (bool, error) {
	p.asked++
	return p.answer, nil
}

func newGate(t *testing.T, answer bool) (*servicenow.Gate, *scriptedPrompter, servicenow.Store) {
	t.Helper()
	store := stores.NewSNStore(stores.NewKVStore(t.TempDir()))
	prompt := &scriptedPrompter{answer: answer}
	return servicenow.NewGate(store, prompt, zerolog.Nop()), prompt, store
}

const gateOrigin = "https://acme.service-now.com"

func TestGateSaveConfig(t *testing.T) {
	t.Run("normalizes and persists", func(t *testing.T) {
		gate, _, store := newGate(t, true)

		cfg, err := gate.SaveConfig(context.Background(), true, gateOrigin+"/")
		require.NoError(t, err)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, gateOrigin, cfg.InstanceURL)

		stored, err := store.GetConfig(context.Background())
		require.NoError(t, err)
		assert.Equal(t, cfg, stored)
	})

	t.Run("rejects invalid URL when enabling", func(t *testing.T) {
		gate, _, _ := newGate(t, true)

		_, err := gate.SaveConfig(context.Background(), true, "http://plain.example.com")
		require.Error(t, err)
		assert.True(t, servicenow.IsCode(err, servicenow.CodeNoConfig))
	})

	t.Run("allows disabling without URL", func(t *testing.T) {
		gate, _, _ := newGate(t, true)

		cfg, err := gate.SaveConfig(context.Background(), false, "")
		require.NoError(t, err)
		assert.False(t, cfg.Enabled)
	})
}

func TestGateEnsurePermission(t *testing.T) {
	t.Run("prompts once then remembers the grant", func(t *testing.T) {
		gate, prompt, _ := newGate(t, true)
		ctx := context.Background()

		require.NoError(t, gate.EnsurePermission(ctx, gateOrigin))
		require.NoError(t, gate.EnsurePermission(ctx, gateOrigin))
		assert.Equal(t, 1, prompt.asked)
	})

	t.Run("refusal fails with permission denied", func(t *testing.T) {
		gate, _, _ := newGate(t, false)

		err := gate.EnsurePermission(context.Background(), gateOrigin)
		require.Error(t, err)
		assert.True(t, servicenow.IsCode(err, servicenow.CodePermissionDenied))
		assert.NotEmpty(t, servicenow.HintOf(err))
	})
}

func TestGateFindSessionCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		gate, _, _ := newGate(t, true)

		_, _, err := gate.FindSessionCandidates(ctx)
		require.Error(t, err)
		assert.True(t, servicenow.IsCode(err, servicenow.CodeNoConfig))
	})

	t.Run("no session for the origin", func(t *testing.T) {
		gate, _, store := newGate(t, true)
		require.NoError(t, store.SaveConfig(ctx, servicenow.Config{Enabled: true, InstanceURL: gateOrigin}))
		require.NoError(t, store.SaveSession(ctx, servicenow.Session{ID: "other", Origin: "https://other.service-now.com"}))

		_, _, err := gate.FindSessionCandidates(ctx)
		require.Error(t, err)
		assert.True(t, servicenow.IsCode(err, servicenow.CodeNoTab))
	})

	t.Run("ranks matching sessions", func(t *testing.T) {
		gate, _, store := newGate(t, true)
		require.NoError(t, store.SaveConfig(ctx, servicenow.Config{Enabled: true, InstanceURL: gateOrigin}))
		require.NoError(t, store.SaveSession(ctx, servicenow.Session{ID: "a", Origin: gateOrigin, LastAccessedMs: 10}))
		require.NoError(t, store.SaveSession(ctx, servicenow.Session{ID: "b", Origin: gateOrigin, LastAccessedMs: 20}))
		require.NoError(t, store.SaveSession(ctx, servicenow.Session{ID: "other", Origin: "https://other.service-now.com"}))
		require.NoError(t, store.SetLastGoodSession(ctx, "a"))

		cfg, sessions, err := gate.FindSessionCandidates(ctx)
		require.NoError(t, err)
		assert.Equal(t, gateOrigin, cfg.InstanceURL)
		require.Len(t, sessions, 2)
		assert.Equal(t, "a", sessions[0].ID)
		assert.Equal(t, "b", sessions[1].ID)
	})
}
