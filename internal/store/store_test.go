package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/internal/store/storetest"
	"github.com/mesh-intelligence/porter/pkg/types"
)

func TestOpenCreatesSchema(t *testing.T) {
	s := storetest.Open(t, "")

	// Every staging, mapping, and target table must exist.
	for _, table := range []string{
		"staging_customers", "staging_usage",
		"map_customers", "map_devices",
		"customers", "devices", "usage_records", "revenue_rollups",
		"entity_progress",
	} {
		n := storetest.Count(t, s.DB(),
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		assert.Equal(t, int64(1), n, table)
	}
}

func TestOpenIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{DataDir: dir}

	s1, err := store.Open(cfg)
	require.NoError(t, err)
	storetest.Exec(t, s1.DB(),
		"INSERT INTO map_plans (source_id, target_id) VALUES (1, 'abc')")
	require.NoError(t, s1.Close())

	// Re-opening must keep existing data: the working database is
	// durable state, not a scratch file.
	s2, err := store.Open(cfg)
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, int64(1), storetest.Count(t, s2.DB(), "SELECT COUNT(*) FROM map_plans"))
}

func TestOpenMissingSourceIsConnectivityError(t *testing.T) {
	cfg := types.Config{
		DataDir:  t.TempDir(),
		SourceDB: filepath.Join(t.TempDir(), "nope.db"),
	}
	_, err := store.Open(cfg)
	assert.ErrorIs(t, err, types.ErrSourceUnavailable)
}

func TestSourceAttachment(t *testing.T) {
	srcPath, srcDB := storetest.NewSource(t, t.TempDir())
	storetest.Exec(t, srcDB,
		"INSERT INTO plans (plan_id, code, name, monthly_cents, download_kbps, status) VALUES (1, 'basic', 'Basic', 1999, 10000, 'A')")

	s := storetest.Open(t, srcPath)
	require.True(t, s.HasSource())
	require.NoError(t, s.RequireSource())

	assert.Equal(t, int64(1), storetest.Count(t, s.DB(), "SELECT COUNT(*) FROM src.plans"))
}

func TestRequireSourceWithoutAttachment(t *testing.T) {
	s := storetest.Open(t, "")
	assert.False(t, s.HasSource())
	assert.ErrorIs(t, s.RequireSource(), types.ErrSourceNotAttached)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := store.Open(types.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
