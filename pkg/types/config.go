package types

import "errors"

// Config holds the migration engine's runtime parameters. Loaded from
// porter.yaml by the CLI; flag values override file values.
type Config struct {
	// SourceDB is the path to the legacy source database file, attached
	// read-only. May be empty for phases that only read local state
	// (status, verify).
	SourceDB string `json:"source_db" yaml:"source_db"`

	// DataDir holds the working database (staging, mappings, target).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// StageWindowMonths is the window width for pulling oversized
	// time-series tables from the source into staging.
	StageWindowMonths int `json:"stage_window_months" yaml:"stage_window_months"`

	// LoadWindowMonths is the window width for loading oversized tables
	// from staging into the target schema.
	LoadWindowMonths int `json:"load_window_months" yaml:"load_window_months"`

	// Workers bounds how many independent entity pipelines run
	// concurrently. The source connection degrades when oversubscribed,
	// so this is a hard cap, not a hint.
	Workers int `json:"workers" yaml:"workers"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Config defaults.
const (
	DefaultStageWindowMonths = 3
	DefaultLoadWindowMonths  = 1
	DefaultWorkers           = 4
	DefaultLogLevel          = "info"
)

// Config validation errors.
var (
	ErrDataDirEmpty    = errors.New("data_dir must not be empty")
	ErrWindowInvalid   = errors.New("window width must be a positive number of months")
	ErrWorkersInvalid  = errors.New("workers must be positive")
	ErrLogLevelUnknown = errors.New("unknown log level")
)

// knownLogLevels lists the levels Validate accepts.
var knownLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// the package defaults.
func (c Config) WithDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.StageWindowMonths == 0 {
		c.StageWindowMonths = DefaultStageWindowMonths
	}
	if c.LoadWindowMonths == 0 {
		c.LoadWindowMonths = DefaultLoadWindowMonths
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return c
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	if c.StageWindowMonths <= 0 || c.LoadWindowMonths <= 0 {
		return ErrWindowInvalid
	}
	if c.Workers <= 0 {
		return ErrWorkersInvalid
	}
	if !knownLogLevels[c.LogLevel] {
		return ErrLogLevelUnknown
	}
	return nil
}
