package types

import "time"

// EntityCounts holds the verification figures for one entity type.
// Checksum is the sum of source keys present in the target (via the
// source_ref traceability column); equal counts with unequal checksums
// mean the target holds the wrong rows, not just the wrong number.
type EntityCounts struct {
	Entity         EntityType     `json:"entity"`
	State          LifecycleState `json:"state"`
	Staged         int64          `json:"staged"`
	Mapped         int64          `json:"mapped"`
	Target         int64          `json:"target"`
	Orphaned       int64          `json:"orphaned"`
	StagedChecksum int64          `json:"staged_checksum"`
	TargetChecksum int64          `json:"target_checksum"`
}

// Drifted reports whether the entity has coverage gaps: mapped source
// keys (or, for unmapped entities, staged rows) without a target row.
func (c EntityCounts) Drifted() bool {
	return c.Orphaned > 0
}

// VerifyReport is the read-only output of the verify phase.
type VerifyReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Entities    []EntityCounts `json:"entities"`
}
