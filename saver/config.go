package saver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ClusterConfig holds the screen-off frequency policy for one cluster.
// Frequencies are clamped into the hardware range, so a zero value selects the
// hardware minimum.
type ClusterConfig struct {
	CPUs             []int  `yaml:"cpus"`               // CPUs sharing this frequency domain
	MinFreq          uint32 `yaml:"min_freq"`           // kHz floor while the screen is on
	MaxFreq          uint32 `yaml:"max_freq"`           // kHz ceiling while the screen is off
	MaxFreqStreaming uint32 `yaml:"max_freq_streaming"` // kHz ceiling while the screen is off and audio plays
}

// Trivial reports whether neither MinFreq nor MaxFreq is configured.
// The worker never re-evaluates trivial clusters; MaxFreqStreaming alone does
// not enable a cluster.
func (c ClusterConfig) Trivial() bool {
	return c.MinFreq == 0 && c.MaxFreq == 0
}

// CategoryConfig holds the screen-off ceilings for one bandwidth category.
// A zero floor leaves the device unrestricted.
type CategoryConfig struct {
	FloorNormal    uint64 `yaml:"floor_normal"`
	FloorStreaming uint64 `yaml:"floor_streaming"`
}

// Config is the full engine configuration. It is fixed once the engine is built.
type Config struct {
	RampingStepDelayMs    int64                     `yaml:"ramping_step_delay_ms"`
	MaxDevicesPerCategory int                       `yaml:"max_devices_per_category"` // 0 = unlimited
	Clusters              map[Cluster]ClusterConfig `yaml:"clusters"`
	Bandwidth             map[string]CategoryConfig `yaml:"bandwidth"`
}

// DefaultConfig returns the configuration used when no file is given:
// a 4+3+1 layout with conservative screen-off limits.
func DefaultConfig() Config {
	return Config{
		RampingStepDelayMs:    40,
		MaxDevicesPerCategory: 16,
		Clusters: map[Cluster]ClusterConfig{
			ClusterLittle: {CPUs: []int{0, 1, 2, 3}, MinFreq: 691200, MaxFreq: 1094400, MaxFreqStreaming: 1324800},
			ClusterBig:    {CPUs: []int{4, 5, 6}, MinFreq: 710400, MaxFreq: 825600, MaxFreqStreaming: 1171200},
			ClusterPrime:  {CPUs: []int{7}, MinFreq: 844800, MaxFreq: 844800, MaxFreqStreaming: 1075200},
		},
		Bandwidth: map[string]CategoryConfig{
			CategoryCPULLCCBandwidth.String(): {FloorNormal: 2288, FloorStreaming: 4577},
			CategoryLLCCDDRBandwidth.String(): {FloorNormal: 1017, FloorStreaming: 2092},
			CategoryDDRLatencyFloor.String():  {FloorNormal: 1017, FloorStreaming: 1804},
			CategoryL3Latency.String():        {FloorNormal: 300000, FloorStreaming: 576000},
			CategoryNPUDDRBandwidth.String():  {FloorNormal: 1017, FloorStreaming: 1017},
		},
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
// Unknown fields are rejected so typos surface as errors.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks cluster and category names, CPU assignment and ranges.
func (c *Config) Validate() error {
	if c.RampingStepDelayMs < 0 {
		return fmt.Errorf("ramping_step_delay_ms must be non-negative, got %d", c.RampingStepDelayMs)
	}
	if c.MaxDevicesPerCategory < 0 {
		return fmt.Errorf("max_devices_per_category must be non-negative, got %d", c.MaxDevicesPerCategory)
	}
	owner := make(map[int]Cluster)
	for name, cc := range c.Clusters {
		if !ValidClusters[name] {
			return fmt.Errorf("unknown cluster %q", name)
		}
		for _, cpu := range cc.CPUs {
			if cpu < 0 {
				return fmt.Errorf("cluster %s: negative cpu id %d", name, cpu)
			}
			if prev, dup := owner[cpu]; dup {
				return fmt.Errorf("cpu %d assigned to both %s and %s", cpu, prev, name)
			}
			owner[cpu] = name
		}
		if !cc.Trivial() && len(cc.CPUs) == 0 {
			return fmt.Errorf("cluster %s has frequencies configured but no cpus", name)
		}
	}
	for name := range c.Bandwidth {
		if _, err := ParseCategory(name); err != nil {
			return err
		}
	}
	return nil
}

// RampingStepDelay returns the debounce delay between ramp steps.
func (c *Config) RampingStepDelay() time.Duration {
	return time.Duration(c.RampingStepDelayMs) * time.Millisecond
}

// Cluster returns the configuration of the named cluster (zero value if absent).
func (c *Config) Cluster(cl Cluster) ClusterConfig {
	return c.Clusters[cl]
}

// Category returns the ceilings of the given category (zero value if absent).
func (c *Config) Category(cat Category) CategoryConfig {
	return c.Bandwidth[cat.String()]
}

// ClusterOf resolves the cluster owning a CPU.
func (c *Config) ClusterOf(cpu int) (Cluster, bool) {
	for _, cl := range Clusters {
		for _, id := range c.Clusters[cl].CPUs {
			if id == cpu {
				return cl, true
			}
		}
	}
	return "", false
}
