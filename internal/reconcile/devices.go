package reconcile

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/porter/internal/pipeline"
	"github.com/mesh-intelligence/porter/internal/transform"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// Match origins recorded on device rows resolved during reconciliation.
// MAC, IP, and hostname matches are heuristics: reassigned
// infrastructure can legitimately produce a wrong match, so the origin
// is kept on the row for later review rather than silently trusted.
const (
	originMAC      = "mac"
	originIP       = "ip"
	originHostname = "hostname"
	originOrphan   = "orphan"
)

// gapDevice is one staged device with no target row carrying its
// source key.
type gapDevice struct {
	sourceID       int64
	targetID       string
	subscriptionID sql.NullString
	mac            sql.NullString
	ip             sql.NullString
	hostname       sql.NullString
	model          sql.NullString
	installedOn    sql.NullString
}

// reconcileDevices closes device gaps in three steps: a plain backfill
// re-run of the load stage, then per-row resolution of the remainder by
// (a) exact MAC match, (b) normalized hostname or exact IP match, and
// (c) orphan creation. Matched target rows that already carry a source
// key are treated as covering the staged row and left untouched.
func (r *Reconciler) reconcileDevices(ctx context.Context) (int64, error) {
	backfilled, err := r.pipe.Migrate(ctx, types.EntityDevices, pipeline.Window{})
	if err != nil {
		return 0, err
	}

	gaps, err := r.deviceGaps(ctx)
	if err != nil {
		return backfilled, err
	}
	if len(gaps) == 0 {
		return backfilled, nil
	}

	var covered int64
	err = r.store.ExecTx(ctx, func(tx *sql.Tx) error {
		for _, g := range gaps {
			resolved, strategy, err := r.resolveDevice(ctx, tx, g)
			if err != nil {
				return fmt.Errorf("resolve device %d: %w", g.sourceID, err)
			}
			if resolved {
				backfilled++
			} else {
				covered++
			}
			r.logger.Debug("device gap resolved",
				zap.Int64("source_id", g.sourceID),
				zap.String("strategy", strategy),
				zap.Bool("written", resolved))
		}
		return nil
	})
	if err != nil {
		return backfilled, err
	}

	if covered > 0 {
		r.logger.Info("device gaps covered by existing target rows",
			zap.Int64("covered", covered))
	}
	return backfilled, nil
}

// deviceGaps finds staged devices with no target row by source_ref.
func (r *Reconciler) deviceGaps(ctx context.Context) ([]gapDevice, error) {
	rows, err := r.store.DB().QueryContext(ctx, `SELECT
    s.device_id, m.target_id, ms.target_id,
    NULLIF(TRIM(COALESCE(s.mac, '')), ''),
    NULLIF(TRIM(COALESCE(s.ip_addr, '')), ''),
    NULLIF(TRIM(COALESCE(s.hostname, '')), ''),
    s.model, s.installed_on
FROM staging_devices s
JOIN map_devices m ON m.source_id = s.device_id
LEFT JOIN map_subscriptions ms ON ms.source_id = s.subscription_id
WHERE NOT EXISTS (SELECT 1 FROM devices d WHERE d.source_ref = s.device_id)
ORDER BY s.device_id`)
	if err != nil {
		return nil, fmt.Errorf("find device gaps: %w", err)
	}
	defer rows.Close()

	var gaps []gapDevice
	for rows.Next() {
		var g gapDevice
		if err := rows.Scan(&g.sourceID, &g.targetID, &g.subscriptionID,
			&g.mac, &g.ip, &g.hostname, &g.model, &g.installedOn); err != nil {
			return nil, fmt.Errorf("scan device gap: %w", err)
		}
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

// resolveDevice applies the three strategies in priority order. Returns
// whether a row was written and which strategy applied.
func (r *Reconciler) resolveDevice(ctx context.Context, tx *sql.Tx, g gapDevice) (bool, string, error) {
	// (a) exact secondary key: MAC address.
	if g.mac.Valid {
		written, found, err := r.adoptBy(ctx, tx, g.sourceID, originMAC,
			"mac = ?", g.mac.String)
		if err != nil || found {
			return written, originMAC, err
		}
	}

	// (b) normalized fallback keys: hostname first, then raw IP.
	if g.hostname.Valid {
		written, found, err := r.adoptBy(ctx, tx, g.sourceID, originHostname,
			"hostname IS NOT NULL AND LOWER(RTRIM(hostname, '.')) = ?",
			transform.NormalizeHostname(g.hostname.String))
		if err != nil || found {
			return written, originHostname, err
		}
	}
	if g.ip.Valid {
		written, found, err := r.adoptBy(ctx, tx, g.sourceID, originIP,
			"ip_addr = ?", g.ip.String)
		if err != nil || found {
			return written, originIP, err
		}
	}

	// (c) no match anywhere: create the device, flagged as migrated from
	// an orphaned source record. The target key comes from the mapping
	// registry, so usage rows joined through map_devices line up.
	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO devices
    (device_id, source_ref, subscription_id, mac, ip_addr, hostname, model, installed_at, match_origin)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.targetID, g.sourceID, g.subscriptionID, g.mac, g.ip, g.hostname,
		g.model, g.installedOn, originOrphan)
	if err != nil {
		return false, originOrphan, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, originOrphan, err
	}
	return n > 0, originOrphan, nil
}

// adoptBy looks for a target device matching cond. When the match has
// no source key yet it is adopted: source_ref and match_origin are set.
// A match that already carries a source key covers the staged row
// without a write. Returns (written, matchFound, error).
func (r *Reconciler) adoptBy(ctx context.Context, tx *sql.Tx, sourceID int64, origin, cond string, arg any) (bool, bool, error) {
	var (
		deviceID  string
		sourceRef sql.NullInt64
	)
	err := tx.QueryRowContext(ctx,
		"SELECT device_id, source_ref FROM devices WHERE "+cond+" ORDER BY device_id LIMIT 1",
		arg,
	).Scan(&deviceID, &sourceRef)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}

	if sourceRef.Valid {
		return false, true, nil
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE devices SET source_ref = ?, match_origin = ? WHERE device_id = ?",
		sourceID, origin, deviceID)
	if err != nil {
		return false, true, err
	}
	return true, true, nil
}
