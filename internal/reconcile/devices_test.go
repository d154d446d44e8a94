package reconcile_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/porter/internal/logging"
	"github.com/mesh-intelligence/porter/internal/pipeline"
	"github.com/mesh-intelligence/porter/internal/reconcile"
	"github.com/mesh-intelligence/porter/internal/snapshot"
	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/internal/store/storetest"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// fillDevices stages four legacy devices whose target rows already
// exist in one form or another, so the plain load can place none of
// them.
func fillDevices(t *testing.T, db *sql.DB) {
	t.Helper()
	storetest.Exec(t, db, `INSERT INTO devices
    (device_id, subscription_id, mac, ip_addr, hostname, model, installed_on) VALUES
    (1, NULL, 'aa:aa:aa:aa:aa:01', '10.0.0.1', NULL, 'CPE-100', '2020-01-01'),
    (2, NULL, 'bb:bb:bb:bb:bb:02', '10.0.0.2', NULL, 'CPE-100', '2020-01-02'),
    (3, NULL, NULL, '10.0.0.3', 'CPE3.Example.NET.', 'CPE-200', '2020-01-03'),
    (4, NULL, NULL, '10.0.0.4', NULL, 'CPE-200', '2020-01-04')`)
}

// mappedID reads the generated target identifier for a staged device.
func mappedID(t *testing.T, s *store.Store, sourceID int64) string {
	t.Helper()
	var id string
	require.NoError(t, s.DB().QueryRow(
		"SELECT target_id FROM map_devices WHERE source_id = ?", sourceID).Scan(&id))
	return id
}

func TestReconcileDevicesResolvesGapsBySecondaryKeys(t *testing.T) {
	ctx := context.Background()

	src, srcDB := storetest.NewSource(t, t.TempDir())
	fillDevices(t, srcDB)

	s := storetest.Open(t, src)
	_, err := snapshot.New(s, logging.Nop()).SnapshotAll(ctx)
	require.NoError(t, err)
	pipe := pipeline.New(s, logging.Nop(), types.Config{}.WithDefaults())
	_, err = pipe.SeedAll(ctx)
	require.NoError(t, err)

	// The target already holds provisioned rows before the load runs:
	// one linkable by MAC, one claimed by a different source record, and
	// two occupying the mapped identifiers with no source linkage.
	storetest.Exec(t, s.DB(), `INSERT INTO devices
    (device_id, source_ref, mac, ip_addr, hostname) VALUES
    ('prov-0001', NULL, 'aa:aa:aa:aa:aa:01', NULL, NULL),
    ('prov-0002', 902, 'bb:bb:bb:bb:bb:02', NULL, NULL)`)
	storetest.Exec(t, s.DB(), `INSERT INTO devices
    (device_id, source_ref, mac, ip_addr, hostname) VALUES (?, NULL, NULL, NULL, 'cpe3.example.net')`,
		mappedID(t, s, 3))
	storetest.Exec(t, s.DB(), `INSERT INTO devices
    (device_id, source_ref, mac, ip_addr, hostname) VALUES (?, NULL, NULL, '10.0.0.4', NULL)`,
		mappedID(t, s, 4))

	rec := reconcile.New(s, pipe, logging.Nop())
	n, err := rec.Reconcile(ctx, types.EntityDevices)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// MAC match adopts the unclaimed provisioned row.
	var origin string
	var ref sql.NullInt64
	require.NoError(t, s.DB().QueryRow(
		"SELECT source_ref, match_origin FROM devices WHERE device_id = 'prov-0001'",
	).Scan(&ref, &origin))
	require.True(t, ref.Valid)
	assert.Equal(t, int64(1), ref.Int64)
	assert.Equal(t, "mac", origin)

	// A MAC match already claimed by another source record covers the
	// staged row without a write.
	require.NoError(t, s.DB().QueryRow(
		"SELECT source_ref, match_origin FROM devices WHERE device_id = 'prov-0002'",
	).Scan(&ref, &origin))
	assert.Equal(t, int64(902), ref.Int64)
	assert.Equal(t, "mapped", origin)
	assert.Equal(t, int64(0),
		storetest.Count(t, s.DB(), "SELECT COUNT(*) FROM devices WHERE source_ref = 2"))

	// Hostname match is case- and trailing-dot-insensitive.
	require.NoError(t, s.DB().QueryRow(
		"SELECT match_origin FROM devices WHERE source_ref = 3").Scan(&origin))
	assert.Equal(t, "hostname", origin)

	// IP match is the last resort before orphan creation.
	require.NoError(t, s.DB().QueryRow(
		"SELECT match_origin FROM devices WHERE source_ref = 4").Scan(&origin))
	assert.Equal(t, "ip", origin)

	// No duplicate rows were created for any staged device.
	assert.Equal(t, int64(4), storetest.Count(t, s.DB(), "SELECT COUNT(*) FROM devices"))

	// A second sweep finds the same claimed-elsewhere gap and still
	// writes nothing.
	n, err = rec.Reconcile(ctx, types.EntityDevices)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(4), storetest.Count(t, s.DB(), "SELECT COUNT(*) FROM devices"))
}
