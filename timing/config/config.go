// Package config holds the run-time parameters of a HIST simulation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sugawarayuuta/sonnet"

	"github.com/sarchlab/histsim/timing/addrmap"
	"github.com/sarchlab/histsim/timing/cache"
	"github.com/sarchlab/histsim/timing/topology"
)

// Admission policy names.
const (
	PolicyWidth = "width"
	PolicyRange = "range"
)

// EnvPrefix is the prefix of environment variables that override
// configuration fields.
const EnvPrefix = "HIST_"

// Config holds the parameters of the directory, its admission policy and
// the harness around it.
type Config struct {
	// LineSize is the cache line size in bytes. Must be a power of two.
	// Default: 64.
	LineSize int `json:"line_size"`

	// SetCount is the number of sets per home directory. Must be a power
	// of two. Default: 64.
	SetCount int `json:"set_count"`

	// Associativity is the number of ways per set. Default: 4.
	Associativity int `json:"associativity"`

	// NodeCount is the number of nodes, each one a home for a slice of the
	// address space. Default: 16.
	NodeCount int `json:"node_count"`

	// Policy selects the admission policy, "width" or "range".
	// Default: "width".
	Policy string `json:"policy"`

	// AdmissionWidth is the neighborhood half-width of the width policy.
	// Default: 2.
	AdmissionWidth int `json:"admission_width"`

	// AdmissionRange is the number of closest nodes admitted by the range
	// policy. Default: 8.
	AdmissionRange int `json:"admission_range"`

	// BaseDelay is the fixed delivery delay added to the distance to the
	// home. Default: 4 cycles.
	BaseDelay uint64 `json:"base_delay"`

	// MemoryLatency is the backing store latency seen by a miss.
	// Default: 100 cycles.
	MemoryLatency uint64 `json:"memory_latency"`

	// L1Size is the size of each private L1 in bytes. Default: 16KB.
	L1Size int `json:"l1_size"`

	// L1Associativity is the number of ways of each private L1. Default: 4.
	L1Associativity int `json:"l1_associativity"`

	// L1HitLatency is the private L1 hit latency. Default: 1 cycle.
	L1HitLatency uint64 `json:"l1_hit_latency"`

	// MaxOutstanding is the number of misses a node may have in flight.
	// Default: 4.
	MaxOutstanding int `json:"max_outstanding"`

	// FreqGHz is the node clock frequency. Default: 1.
	FreqGHz float64 `json:"freq_ghz"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LineSize:        64,
		SetCount:        64,
		Associativity:   4,
		NodeCount:       16,
		Policy:          PolicyWidth,
		AdmissionWidth:  2,
		AdmissionRange:  8,
		BaseDelay:       4,
		MemoryLatency:   100,
		L1Size:          16 * 1024,
		L1Associativity: 4,
		L1HitLatency:    1,
		MaxOutstanding:  4,
		FreqGHz:         1,
	}
}

// Load reads a configuration from a JSON file. Fields absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := sonnet.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	data, err := c.JSON()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// JSON returns the indented JSON form of the configuration.
func (c *Config) JSON() ([]byte, error) {
	data, err := sonnet.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}

	return data, nil
}

// ApplyEnv loads the given .env files, skipping the ones that do not exist,
// and then applies HIST_* overrides from the process environment. Variables
// already set in the environment take precedence over .env files.
func (c *Config) ApplyEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		_, err := os.Stat(f)
		if err == nil {
			existing = append(existing, f)
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat env file %s: %w", f, err)
		}
	}

	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return fmt.Errorf("failed to load env files: %w", err)
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"LINE_SIZE", &c.LineSize},
		{"SET_COUNT", &c.SetCount},
		{"ASSOCIATIVITY", &c.Associativity},
		{"NODE_COUNT", &c.NodeCount},
		{"ADMISSION_WIDTH", &c.AdmissionWidth},
		{"ADMISSION_RANGE", &c.AdmissionRange},
		{"L1_SIZE", &c.L1Size},
		{"L1_ASSOCIATIVITY", &c.L1Associativity},
		{"MAX_OUTSTANDING", &c.MaxOutstanding},
	}
	for _, f := range ints {
		if err := envInt(f.name, f.dst); err != nil {
			return err
		}
	}

	uints := []struct {
		name string
		dst  *uint64
	}{
		{"BASE_DELAY", &c.BaseDelay},
		{"MEMORY_LATENCY", &c.MemoryLatency},
		{"L1_HIT_LATENCY", &c.L1HitLatency},
	}
	for _, f := range uints {
		if err := envUint(f.name, f.dst); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "POLICY"); ok {
		c.Policy = v
	}

	if v, ok := os.LookupEnv(EnvPrefix + "FREQ_GHZ"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sFREQ_GHZ: %w", EnvPrefix, err)
		}
		c.FreqGHz = f
	}

	return nil
}

func envInt(name string, dst *int) error {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
	}
	*dst = n

	return nil
}

func envUint(name string, dst *uint64) error {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return nil
	}

	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
	}
	*dst = n

	return nil
}

// Validate checks that the configuration describes a buildable system.
func (c *Config) Validate() error {
	if _, err := c.Mapper(); err != nil {
		return err
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be > 0")
	}
	if _, err := c.AdmissionPolicy(); err != nil {
		return err
	}
	if c.BaseDelay == 0 {
		return fmt.Errorf("base_delay must be > 0")
	}
	if c.MemoryLatency == 0 {
		return fmt.Errorf("memory_latency must be > 0")
	}
	if c.L1Associativity <= 0 {
		return fmt.Errorf("l1_associativity must be > 0")
	}
	if c.L1Size <= 0 || c.L1Size%(c.L1Associativity*c.LineSize) != 0 {
		return fmt.Errorf("l1_size must be a positive multiple of l1_associativity * line_size")
	}
	if c.L1HitLatency == 0 {
		return fmt.Errorf("l1_hit_latency must be > 0")
	}
	if c.MaxOutstanding <= 0 {
		return fmt.Errorf("max_outstanding must be > 0")
	}
	if c.FreqGHz <= 0 {
		return fmt.Errorf("freq_ghz must be > 0")
	}
	return nil
}

// Mapper returns the address mapper the configuration describes.
func (c *Config) Mapper() (addrmap.Mapper, error) {
	m, err := addrmap.NewMapper(c.LineSize, c.SetCount, c.NodeCount)
	if err != nil {
		return addrmap.Mapper{}, fmt.Errorf("invalid address mapping: %w", err)
	}

	return m, nil
}

// AdmissionPolicy returns the admission policy the configuration describes.
func (c *Config) AdmissionPolicy() (topology.Policy, error) {
	switch c.Policy {
	case PolicyWidth:
		p, err := topology.NewWidthPolicy(c.NodeCount, c.AdmissionWidth)
		if err != nil {
			return nil, fmt.Errorf("invalid width policy: %w", err)
		}
		return p, nil
	case PolicyRange:
		p, err := topology.NewRangePolicy(topology.NewGrid(c.NodeCount), c.AdmissionRange)
		if err != nil {
			return nil, fmt.Errorf("invalid range policy: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", c.Policy)
	}
}

// L1Config returns the configuration of each private L1.
func (c *Config) L1Config() cache.Config {
	return cache.Config{
		Size:          c.L1Size,
		Associativity: c.L1Associativity,
		BlockSize:     c.LineSize,
		HitLatency:    c.L1HitLatency,
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
