package types

import "errors"

// Phase-level errors. Only connectivity and schema-contract failures are
// fatal to a phase; data-quality problems are resolved row-locally and
// surface in the verification report instead.
var (
	ErrSourceUnavailable = errors.New("source database unavailable")
	ErrSourceNotAttached = errors.New("no source database attached")
	ErrStoreClosed       = errors.New("store is closed")
	ErrNotSeeded         = errors.New("entity mappings not seeded")
)
