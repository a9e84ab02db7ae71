package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/handletable/errors"
)

// Enumeration selects how the planner walks the size-class index space.
type Enumeration string

const (
	// EnumerateAll tests every index independently.
	EnumerateAll Enumeration = "all"
	// StopAtFirstInfeasible stops computing classes after the first
	// infeasible index; later classes are reported infeasible.
	StopAtFirstInfeasible Enumeration = "stop_at_first_infeasible"
)

const (
	// MaxHandleBits is the widest handle the planner accepts.
	MaxHandleBits = 64
	// MaxBitsPerLevel bounds node fan-out to 2^32 slots.
	MaxBitsPerLevel = 32
	// MaxClasses caps the dispatch table length.
	MaxClasses = 1 << 16
	// OffsetBitsBase is added to the class index to get its offset width.
	OffsetBitsBase = 6
)

// Config holds the generation-time constants for one planning run.
type Config struct {
	Enumeration  Enumeration `yaml:"enumeration"`
	HandleBits   int         `yaml:"handle_bits"`
	BitsPerLevel int         `yaml:"bits_per_level"`
	MaxLevels    int         `yaml:"max_levels"`
	SizeBits     int         `yaml:"size_bits"`
	ArenaBits    int         `yaml:"arena_bits"`
	SizeBase     int         `yaml:"size_base"`
	MinLevels    int         `yaml:"min_levels"`
}

// Default returns the configuration the runtime ships with: 64-bit handles,
// 512-slot nodes, at most three levels, 32 size classes and 8 arenas.
func Default() Config {
	return Config{
		Enumeration:  EnumerateAll,
		HandleBits:   64,
		BitsPerLevel: 9,
		MaxLevels:    3,
		SizeBits:     5,
		ArenaBits:    3,
		SizeBase:     2,
		MinLevels:    1,
	}
}

// InfoBits is the width of the present flag, arena tag and size tag.
func (c Config) InfoBits() int {
	return 1 + c.SizeBits + c.ArenaBits
}

// NumClasses returns size_base^size_bits, or MaxClasses+1 when that
// would exceed the dispatch cap.
func (c Config) NumClasses() int {
	n := 1
	for i := 0; i < c.SizeBits; i++ {
		n *= c.SizeBase
		if n > MaxClasses {
			return MaxClasses + 1
		}
	}
	return n
}

// Fanout is the number of slots in one table node.
func (c Config) Fanout() int {
	return 1 << c.BitsPerLevel
}

// Validate checks that the configuration can be planned.
func (c Config) Validate() error {
	switch {
	case c.HandleBits < 1 || c.HandleBits > MaxHandleBits:
		return invalid("handle_bits %d outside [1, %d]", c.HandleBits, MaxHandleBits)
	case c.BitsPerLevel < 1 || c.BitsPerLevel > MaxBitsPerLevel:
		return invalid("bits_per_level %d outside [1, %d]", c.BitsPerLevel, MaxBitsPerLevel)
	case c.MaxLevels < 1:
		return invalid("max_levels must be positive, got %d", c.MaxLevels)
	case c.SizeBits < 0:
		return invalid("size_bits must not be negative, got %d", c.SizeBits)
	case c.ArenaBits < 0:
		return invalid("arena_bits must not be negative, got %d", c.ArenaBits)
	case c.SizeBase < 2:
		return invalid("size_base must be at least 2, got %d", c.SizeBase)
	case c.MinLevels < 1 || c.MinLevels > c.MaxLevels:
		return invalid("min_levels %d outside [1, max_levels=%d]", c.MinLevels, c.MaxLevels)
	case c.InfoBits() >= c.HandleBits:
		return invalid("info bits %d leave no room in a %d-bit handle", c.InfoBits(), c.HandleBits)
	case c.NumClasses() > MaxClasses:
		return invalid("%d^%d size classes exceed the %d entry dispatch cap", c.SizeBase, c.SizeBits, MaxClasses)
	}

	switch c.Enumeration {
	case EnumerateAll, StopAtFirstInfeasible:
	default:
		return invalid("unknown enumeration %q", c.Enumeration)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).Detail(format, args...).Build()
}

// Parse decodes a YAML document on top of Default and validates the result.
// Keys that are absent keep their default values.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.InvalidData(errors.PhaseConfig, "parse yaml", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}
