package oracle

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the Oracle Adapter's tunables, loaded from YAML in the same
// convention as the teacher's config/models.yaml.
type Config struct {
	ActiveProvider   string                     `yaml:"active_provider"`
	DefaultTimeout   time.Duration              `yaml:"default_timeout"`
	OperationTimeout map[string]time.Duration   `yaml:"operation_timeout"`
	FailureThreshold int                        `yaml:"failure_threshold"`
	CooldownPeriod   time.Duration              `yaml:"cooldown_period"`
}

// DefaultConfig returns the spec's stated defaults: 10s per-call deadline,
// 3 consecutive failures to open, 30s cooldown before a half-open trial.
func DefaultConfig() Config {
	return Config{
		ActiveProvider:   "mock",
		DefaultTimeout:   10 * time.Second,
		OperationTimeout: map[string]time.Duration{},
		FailureThreshold: 3,
		CooldownPeriod:   30 * time.Second,
	}
}

func (c Config) timeoutFor(op operation) time.Duration {
	if d, ok := c.OperationTimeout[string(op)]; ok && d > 0 {
		return d
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return 10 * time.Second
}

// LoadConfig reads a YAML config file, falling back to DefaultConfig on any
// read/parse error (mirroring the teacher's lenient config loading).
func LoadConfig(path string) Config {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig()
	}
	return cfg
}
