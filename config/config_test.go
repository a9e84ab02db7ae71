package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/handletable/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 64, cfg.HandleBits)
	assert.Equal(t, 9, cfg.InfoBits())
	assert.Equal(t, 32, cfg.NumClasses())
	assert.Equal(t, 512, cfg.Fanout())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mutate func(c *Config)
		name   string
		ok     bool
	}{
		{name: "default", mutate: func(c *Config) {}, ok: true},
		{name: "zero arena and size bits", mutate: func(c *Config) { c.ArenaBits, c.SizeBits = 0, 0 }, ok: true},
		{name: "handle too wide", mutate: func(c *Config) { c.HandleBits = 65 }},
		{name: "handle zero", mutate: func(c *Config) { c.HandleBits = 0 }},
		{name: "no fan-out", mutate: func(c *Config) { c.BitsPerLevel = 0 }},
		{name: "fan-out too wide", mutate: func(c *Config) { c.BitsPerLevel = 33 }},
		{name: "no levels", mutate: func(c *Config) { c.MaxLevels = 0 }},
		{name: "negative size bits", mutate: func(c *Config) { c.SizeBits = -1 }},
		{name: "negative arena bits", mutate: func(c *Config) { c.ArenaBits = -1 }},
		{name: "base one", mutate: func(c *Config) { c.SizeBase = 1 }},
		{name: "min above max", mutate: func(c *Config) { c.MinLevels = 4 }},
		{name: "min zero", mutate: func(c *Config) { c.MinLevels = 0 }},
		{name: "info fills handle", mutate: func(c *Config) { c.HandleBits = 9 }},
		{name: "too many classes", mutate: func(c *Config) { c.SizeBits = 17; c.HandleBits = 64 }},
		{name: "bad enumeration", mutate: func(c *Config) { c.Enumeration = "sometimes" }},
		{name: "stop early", mutate: func(c *Config) { c.Enumeration = StopAtFirstInfeasible }, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}
}

func TestNumClassesSaturates(t *testing.T) {
	cfg := Default()
	cfg.SizeBase = 3
	cfg.SizeBits = 20
	assert.Equal(t, MaxClasses+1, cfg.NumClasses())

	cfg.SizeBits = 0
	assert.Equal(t, 1, cfg.NumClasses())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte("size_bits: 0\narena_bits: 0\nmax_levels: 5\nmin_levels: 2\nenumeration: stop_at_first_infeasible\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.SizeBits)
	assert.Equal(t, 0, cfg.ArenaBits)
	assert.Equal(t, 5, cfg.MaxLevels)
	assert.Equal(t, 2, cfg.MinLevels)
	assert.Equal(t, StopAtFirstInfeasible, cfg.Enumeration)
	assert.Equal(t, 9, cfg.BitsPerLevel, "unset keys keep defaults")
}

func TestParseRejects(t *testing.T) {
	_, err := Parse([]byte("handle_bits: [1, 2]"))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidData})

	_, err = Parse([]byte("handle_bits: 65"))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drill.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bits_per_level: 10\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.BitsPerLevel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
