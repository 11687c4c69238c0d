package timeblock

import "context"

// LegacySession is a pre-block aggregate row kept for continuity with data
// recorded before per-block storage existed. It is read-only except for
// Clear, which wipes it together with the block collection.
type LegacySession struct {
	Task      string `json:"task"`
	Duration  int64  `json:"duration"`
	LastSaved string `json:"lastSaved"`
}

// Store owns the ordered collection of time blocks. Every mutation is a
// whole-collection read-modify-write; callers must not assume finer-grained
// atomicity.
type Store interface {
	List(ctx context.Context) ([]TimeBlock, error)
	Get(ctx context.Context, id string) (TimeBlock, error)
	Append(ctx context.Context, block TimeBlock) error
	Update(ctx context.Context, id string, u Update) (TimeBlock, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	ListLegacySessions(ctx context.Context) ([]LegacySession, error)
}
