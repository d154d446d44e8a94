package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/porter/pkg/types"
)

// State returns the lifecycle state recorded for the entity, or
// StatePending when no row exists yet.
func (s *Store) State(ctx context.Context, entity types.EntityType) (types.LifecycleState, error) {
	var state string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM entity_progress WHERE entity = ?", string(entity),
	).Scan(&state)
	if err == sql.ErrNoRows {
		return types.StatePending, nil
	}
	if err != nil {
		return "", fmt.Errorf("read progress for %s: %w", entity, err)
	}
	ls := types.LifecycleState(state)
	if !ls.Valid() {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidState, state)
	}
	return ls, nil
}

// Advance records that the entity reached the given state. The recorded
// state only moves forward: advancing to a state at or below the current
// one is a no-op, which makes every phase transition idempotent.
func (s *Store) Advance(ctx context.Context, entity types.EntityType, state types.LifecycleState) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidState, state)
	}
	current, err := s.State(ctx, entity)
	if err != nil {
		return err
	}
	if state.Rank() <= current.Rank() {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO entity_progress (entity, state, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(entity) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		string(entity), string(state), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("advance %s to %s: %w", entity, state, err)
	}
	return nil
}

// States returns the lifecycle state of every entity type.
func (s *Store) States(ctx context.Context) (map[types.EntityType]types.LifecycleState, error) {
	states := make(map[types.EntityType]types.LifecycleState, len(types.AllEntities))
	for _, e := range types.AllEntities {
		st, err := s.State(ctx, e)
		if err != nil {
			return nil, err
		}
		states[e] = st
	}
	return states, nil
}
