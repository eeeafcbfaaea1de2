package hierarchy

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cachesim/mem/cache"
)

// LevelConfig describes one cache level.
type LevelConfig struct {
	Size    int `yaml:"size"`
	Ways    int `yaml:"ways"`
	Latency int `yaml:"latency"`
}

// Config describes a whole hierarchy. Levels are ordered from the level
// closest to the requester to the one closest to memory.
type Config struct {
	BlockSize            int               `yaml:"block_size"`
	Policy               cache.WritePolicy `yaml:"policy"`
	MaxOutstandingMisses int               `yaml:"max_outstanding_misses"` // 0 = unlimited
	MemoryLatency        int               `yaml:"memory_latency"`
	Levels               []LevelConfig     `yaml:"levels"`
}

// DefaultConfig returns a small two-level write-back hierarchy.
func DefaultConfig() Config {
	return Config{
		BlockSize:            2,
		Policy:               cache.WriteBackAllocate,
		MaxOutstandingMisses: 5,
		MemoryLatency:        100,
		Levels: []LevelConfig{
			{Size: 8, Ways: 4, Latency: 1},
			{Size: 16, Ways: 4, Latency: 5},
		},
	}
}

// LoadConfig reads a YAML configuration file. Settings that the file omits
// keep their default values, except for the levels, which the file must list.
// Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading hierarchy config: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Levels = nil

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing hierarchy config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that every level can be built. The first problem found is
// returned as a *ConfigurationError.
func (c Config) Validate() error {
	if len(c.Levels) == 0 {
		return &ConfigurationError{
			Level: -1, Field: "levels", Reason: "at least one level is required",
		}
	}

	if !cache.IsPowerOfTwo(c.BlockSize) {
		return &ConfigurationError{
			Level:  -1,
			Field:  "block_size",
			Reason: fmt.Sprintf("%d is not a power of 2", c.BlockSize),
		}
	}

	if c.Policy != cache.WriteBackAllocate &&
		c.Policy != cache.WriteThroughNoAllocate {
		return &ConfigurationError{
			Level: -1, Field: "policy", Reason: c.Policy.String() + " is unknown",
		}
	}

	if c.MaxOutstandingMisses < 0 {
		return &ConfigurationError{
			Level: -1, Field: "max_outstanding_misses", Reason: "must not be negative",
		}
	}

	if c.MemoryLatency < 0 {
		return &ConfigurationError{
			Level: -1, Field: "memory_latency", Reason: "must not be negative",
		}
	}

	for i, l := range c.Levels {
		if err := l.validate(i); err != nil {
			return err
		}
	}

	return nil
}

func (l LevelConfig) validate(level int) error {
	if !cache.IsPowerOfTwo(l.Ways) {
		return &ConfigurationError{
			Level:  level,
			Field:  "ways",
			Reason: fmt.Sprintf("%d is not a power of 2", l.Ways),
		}
	}

	if l.Size <= 0 || l.Size%l.Ways != 0 {
		return &ConfigurationError{
			Level:  level,
			Field:  "size",
			Reason: fmt.Sprintf("%d lines cannot be split into %d ways", l.Size, l.Ways),
		}
	}

	if l.Latency < 1 {
		return &ConfigurationError{
			Level:  level,
			Field:  "latency",
			Reason: fmt.Sprintf("%d is less than 1 cycle", l.Latency),
		}
	}

	return nil
}

func (c Config) totalLatency() int {
	sum := 0
	for _, l := range c.Levels {
		sum += l.Latency
	}

	return sum
}
