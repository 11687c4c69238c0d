package stores

import (
	"context"

	"github.com/colonyops/tempo/internal/core/kv"
	"github.com/colonyops/tempo/internal/core/timer"
)

const timerRuntimeKey = "timerRuntime"

// RuntimeStore persists the timer runtime snapshot in the shared KV
// namespace so a timer left running survives process restarts.
type RuntimeStore struct {
	kv kv.KV
}

var _ timer.Store = (*RuntimeStore)(nil)

func NewRuntimeStore(store kv.KV) *RuntimeStore {
	return &RuntimeStore{kv: store}
}

// Load returns the persisted runtime and whether one exists.
func (s *RuntimeStore) Load(ctx context.Context) (timer.Runtime, bool, error) {
	var rt timer.Runtime
	err := s.kv.Get(ctx, timerRuntimeKey, &rt)
	if err != nil {
		if kv.IsNotFound(err) {
			return timer.Runtime{}, false, nil
		}
		return timer.Runtime{}, false, err
	}
	return rt, true, nil
}

func (s *RuntimeStore) Save(ctx context.Context, rt timer.Runtime) error {
	return s.kv.Set(ctx, timerRuntimeKey, rt)
}

func (s *RuntimeStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, timerRuntimeKey)
}
