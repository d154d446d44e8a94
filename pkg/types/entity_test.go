package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    EntityType
		wantErr error
	}{
		{"known entity", "customers", EntityCustomers, nil},
		{"windowed entity", "usage", EntityUsage, nil},
		{"unknown entity", "widgets", "", ErrUnknownEntity},
		{"empty name", "", "", ErrUnknownEntity},
		{"case sensitive", "Customers", "", ErrUnknownEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntity(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntityTableNames(t *testing.T) {
	assert.Equal(t, "staging_invoices", EntityInvoices.StagingTable())
	assert.Equal(t, "map_invoices", EntityInvoices.MappingTable())
}

func TestLifecycleStateRank(t *testing.T) {
	assert.Less(t, StatePending.Rank(), StateSeeded.Rank())
	assert.Less(t, StateSeeded.Rank(), StateLoaded.Rank())
	assert.Less(t, StateLoaded.Rank(), StateReconciled.Rank())
	assert.Equal(t, -1, LifecycleState("bogus").Rank())
}

func TestLifecycleStateValid(t *testing.T) {
	for _, s := range []LifecycleState{StatePending, StateSeeded, StateLoaded, StateReconciled} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, LifecycleState("").Valid())
	assert.False(t, LifecycleState("done").Valid())
}
