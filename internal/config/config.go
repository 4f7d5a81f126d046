// Package config loads the node's process configuration from a YAML file
// with environment overrides. The detector core itself is configured through
// plain structs; this package only serves the surrounding process.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sdryden/phiwatch/pkg/detector"
	"github.com/sdryden/phiwatch/pkg/monitor"
)

// Duration is a time.Duration that unmarshals from YAML strings like "500ms"
// or "3s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DetectorConfig is the YAML shape of the phi accrual tuning.
type DetectorConfig struct {
	Threshold                float64  `yaml:"threshold"`
	MaxSampleSize            int      `yaml:"max_sample_size"`
	MinStdDeviation          Duration `yaml:"min_std_deviation"`
	AcceptableHeartbeatPause Duration `yaml:"acceptable_heartbeat_pause"`
	FirstHeartbeatEstimate   Duration `yaml:"first_heartbeat_estimate"`
	DeadMultiplier           float64  `yaml:"dead_multiplier"`
}

// Config holds the node's process configuration.
type Config struct {
	NodeID            string         `yaml:"node_id"`
	ListenAddr        string         `yaml:"listen_addr"`
	AdvertiseAddr     string         `yaml:"advertise_addr"`
	EtcdEndpoints     []string       `yaml:"etcd_endpoints"`
	RegistrationTTL   int64          `yaml:"registration_ttl_seconds"`
	HeartbeatInterval Duration       `yaml:"heartbeat_interval"`
	CheckInterval     Duration       `yaml:"check_interval"`
	Detector          DetectorConfig `yaml:"detector"`
}

// DefaultConfig returns the defaults used when a field is absent from the
// file: detector defaults per the reference tuning, a generated node ID, and
// a 1s heartbeat cadence.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	return Config{
		NodeID:            uuid.NewString(),
		ListenAddr:        ":8080",
		EtcdEndpoints:     []string{"http://etcd:2379"},
		RegistrationTTL:   10,
		HeartbeatInterval: Duration(time.Second),
		CheckInterval:     Duration(time.Second),
		Detector: DetectorConfig{
			Threshold:                det.Threshold,
			MaxSampleSize:            det.MaxSampleSize,
			MinStdDeviation:          Duration(det.MinStdDeviation),
			AcceptableHeartbeatPause: Duration(det.AcceptableHeartbeatPause),
			FirstHeartbeatEstimate:   Duration(det.FirstHeartbeatEstimate),
			DeadMultiplier:           2.0,
		},
	}
}

// Load reads the YAML file at path (skipped when empty), then applies
// environment overrides, then validates.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PHIWATCH_NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("PHIWATCH_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PHIWATCH_ADVERTISE_ADDR"); v != "" {
		cfg.AdvertiseAddr = v
	}
	if v := os.Getenv("PHIWATCH_ETCD_ENDPOINTS"); v != "" {
		cfg.EtcdEndpoints = strings.Split(v, ",")
	}
}

// Validate checks the process-level fields and the embedded detector tuning.
func (c Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node id is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen addr is required")
	}
	if len(c.EtcdEndpoints) == 0 {
		return fmt.Errorf("at least one etcd endpoint is required")
	}
	if c.RegistrationTTL <= 0 {
		return fmt.Errorf("registration ttl must be > 0, got %d", c.RegistrationTTL)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be > 0, got %v", c.HeartbeatInterval.Std())
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be > 0, got %v", c.CheckInterval.Std())
	}
	return c.DetectorConfig().Validate()
}

// DetectorConfig converts the YAML shape to the detector package's config.
func (c Config) DetectorConfig() detector.Config {
	return detector.Config{
		Threshold:                c.Detector.Threshold,
		MaxSampleSize:            c.Detector.MaxSampleSize,
		MinStdDeviation:          c.Detector.MinStdDeviation.Std(),
		AcceptableHeartbeatPause: c.Detector.AcceptableHeartbeatPause.Std(),
		FirstHeartbeatEstimate:   c.Detector.FirstHeartbeatEstimate.Std(),
	}
}

// MonitorConfig assembles the monitor tuning from this configuration.
func (c Config) MonitorConfig() monitor.Config {
	return monitor.Config{
		Detector:       c.DetectorConfig(),
		DeadMultiplier: c.Detector.DeadMultiplier,
		CheckInterval:  c.CheckInterval.Std(),
	}
}
