package stores

import (
	"context"
	"fmt"

	"github.com/colonyops/tempo/internal/core/kv"
	"github.com/colonyops/tempo/internal/core/timeblock"
)

// Storage keys for the block collection and the legacy aggregate rows.
const (
	timeBlocksKey     = "timeBlocks"
	legacySessionsKey = "timeSessions"
)

// BlockStore implements timeblock.Store on the KV namespace. The whole
// collection is read and replaced on every mutation.
type BlockStore struct {
	kv kv.KV
}

var _ timeblock.Store = (*BlockStore)(nil)

// NewBlockStore creates a block store over the given KV namespace.
func NewBlockStore(store kv.KV) *BlockStore {
	return &BlockStore{kv: store}
}

// List returns all blocks in insertion order.
func (s *BlockStore) List(ctx context.Context) ([]timeblock.TimeBlock, error) {
	var blocks []timeblock.TimeBlock
	if err := s.kv.Get(ctx, timeBlocksKey, &blocks); err != nil {
		if kv.IsNotFound(err) {
			return []timeblock.TimeBlock{}, nil
		}
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return blocks, nil
}

// Get returns a block by id. Returns ErrNotFound if absent.
func (s *BlockStore) Get(ctx context.Context, id string) (timeblock.TimeBlock, error) {
	blocks, err := s.List(ctx)
	if err != nil {
		return timeblock.TimeBlock{}, err
	}

	for _, b := range blocks {
		if b.ID == id {
			return b, nil
		}
	}

	return timeblock.TimeBlock{}, fmt.Errorf("block %q: %w", id, ErrNotFound)
}

// Append validates and appends a block to the collection.
func (s *BlockStore) Append(ctx context.Context, block timeblock.TimeBlock) error {
	if err := block.Validate(); err != nil {
		return err
	}

	blocks, err := s.List(ctx)
	if err != nil {
		return err
	}

	blocks = append(blocks, block)
	if err := s.kv.Set(ctx, timeBlocksKey, blocks); err != nil {
		return fmt.Errorf("append block: %w", err)
	}

	return nil
}

// Update applies u to the block with the given id, re-validating with the
// same rules as creation and recomputing the duration. Returns ErrNotFound
// if the id is absent and a ValidationError on bad input.
func (s *BlockStore) Update(ctx context.Context, id string, u timeblock.Update) (timeblock.TimeBlock, error) {
	blocks, err := s.List(ctx)
	if err != nil {
		return timeblock.TimeBlock{}, err
	}

	for i, b := range blocks {
		if b.ID != id {
			continue
		}

		updated, err := b.Apply(u)
		if err != nil {
			return timeblock.TimeBlock{}, err
		}

		blocks[i] = updated
		if err := s.kv.Set(ctx, timeBlocksKey, blocks); err != nil {
			return timeblock.TimeBlock{}, fmt.Errorf("update block: %w", err)
		}
		return updated, nil
	}

	return timeblock.TimeBlock{}, fmt.Errorf("block %q: %w", id, ErrNotFound)
}

// Delete removes a block by id. Returns ErrNotFound if absent.
func (s *BlockStore) Delete(ctx context.Context, id string) error {
	blocks, err := s.List(ctx)
	if err != nil {
		return err
	}

	for i, b := range blocks {
		if b.ID != id {
			continue
		}

		blocks = append(blocks[:i], blocks[i+1:]...)
		if err := s.kv.Set(ctx, timeBlocksKey, blocks); err != nil {
			return fmt.Errorf("delete block: %w", err)
		}
		return nil
	}

	return fmt.Errorf("block %q: %w", id, ErrNotFound)
}

// Clear wipes the block collection and the legacy aggregate rows.
// Destructive and irreversible.
func (s *BlockStore) Clear(ctx context.Context) error {
	if err := s.kv.Set(ctx, timeBlocksKey, []timeblock.TimeBlock{}); err != nil {
		return fmt.Errorf("clear blocks: %w", err)
	}
	if err := s.kv.Set(ctx, legacySessionsKey, []timeblock.LegacySession{}); err != nil {
		return fmt.Errorf("clear legacy sessions: %w", err)
	}
	return nil
}

// ListLegacySessions returns the pre-block aggregate rows, if any.
func (s *BlockStore) ListLegacySessions(ctx context.Context) ([]timeblock.LegacySession, error) {
	var sessions []timeblock.LegacySession
	if err := s.kv.Get(ctx, legacySessionsKey, &sessions); err != nil {
		if kv.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list legacy sessions: %w", err)
	}
	return sessions, nil
}
