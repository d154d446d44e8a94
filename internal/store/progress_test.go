package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/porter/internal/store/storetest"
	"github.com/mesh-intelligence/porter/pkg/types"
)

func TestStateDefaultsToPending(t *testing.T) {
	s := storetest.Open(t, "")

	state, err := s.State(context.Background(), types.EntityCustomers)
	require.NoError(t, err)
	assert.Equal(t, types.StatePending, state)
}

func TestAdvanceIsMonotone(t *testing.T) {
	s := storetest.Open(t, "")
	ctx := context.Background()

	require.NoError(t, s.Advance(ctx, types.EntityCustomers, types.StateLoaded))

	// Re-entering an earlier or equal state is a no-op.
	require.NoError(t, s.Advance(ctx, types.EntityCustomers, types.StateSeeded))
	require.NoError(t, s.Advance(ctx, types.EntityCustomers, types.StateLoaded))

	state, err := s.State(ctx, types.EntityCustomers)
	require.NoError(t, err)
	assert.Equal(t, types.StateLoaded, state)

	require.NoError(t, s.Advance(ctx, types.EntityCustomers, types.StateReconciled))
	state, err = s.State(ctx, types.EntityCustomers)
	require.NoError(t, err)
	assert.Equal(t, types.StateReconciled, state)
}

func TestAdvanceRejectsUnknownState(t *testing.T) {
	s := storetest.Open(t, "")
	err := s.Advance(context.Background(), types.EntityCustomers, "finished")
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestStatesCoversAllEntities(t *testing.T) {
	s := storetest.Open(t, "")
	ctx := context.Background()

	require.NoError(t, s.Advance(ctx, types.EntityPlans, types.StateSeeded))

	states, err := s.States(ctx)
	require.NoError(t, err)
	assert.Len(t, states, len(types.AllEntities))
	assert.Equal(t, types.StateSeeded, states[types.EntityPlans])
	assert.Equal(t, types.StatePending, states[types.EntityUsage])
}
