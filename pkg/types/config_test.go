package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()

	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, DefaultStageWindowMonths, cfg.StageWindowMonths)
	assert.Equal(t, DefaultLoadWindowMonths, cfg.LoadWindowMonths)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Empty(t, cfg.SourceDB)
}

func TestConfigWithDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		SourceDB:          "legacy.db",
		DataDir:           "/tmp/work",
		StageWindowMonths: 6,
		LoadWindowMonths:  2,
		Workers:           1,
		LogLevel:          "debug",
	}.WithDefaults()

	assert.Equal(t, "legacy.db", cfg.SourceDB)
	assert.Equal(t, "/tmp/work", cfg.DataDir)
	assert.Equal(t, 6, cfg.StageWindowMonths)
	assert.Equal(t, 2, cfg.LoadWindowMonths)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{}.WithDefaults()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"defaults are valid", func(c *Config) {}, nil},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, ErrDataDirEmpty},
		{"zero stage window", func(c *Config) { c.StageWindowMonths = 0 }, ErrWindowInvalid},
		{"negative load window", func(c *Config) { c.LoadWindowMonths = -1 }, ErrWindowInvalid},
		{"zero workers", func(c *Config) { c.Workers = 0 }, ErrWorkersInvalid},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }, ErrLogLevelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
