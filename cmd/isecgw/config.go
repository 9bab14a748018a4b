package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// duration parses YAML scalars like "10s" or "5m".
type duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = duration(parsed)
	return nil
}

// std returns the plain time.Duration. Zero means "use the component's
// default".
func (d duration) std() time.Duration {
	return time.Duration(d)
}

// FileConfig is the YAML configuration file layout. It mirrors the
// command-line flags and adds the tunables that have no flag. Flags
// given explicitly on the command line win over file values.
type FileConfig struct {
	Listen    string `yaml:"listen"`
	StateFile string `yaml:"state_file"`
	LogLevel  string `yaml:"log_level"`
	Capture   string `yaml:"capture"`
	Advertise *bool  `yaml:"advertise"`

	// Instance is the mDNS instance name. It has no flag.
	Instance string `yaml:"instance"`

	Cloud struct {
		BaseURL      string   `yaml:"base_url"`
		TokenURL     string   `yaml:"token_url"`
		ClientID     string   `yaml:"client_id"`
		PollInterval duration `yaml:"poll_interval"`
	} `yaml:"cloud"`

	Session struct {
		ConnectTimeout duration `yaml:"connect_timeout"`
		ReadTimeout    duration `yaml:"read_timeout"`
		ArmReadTimeout duration `yaml:"arm_read_timeout"`
		RelayAddrs     []string `yaml:"relay_addrs"`
	} `yaml:"session"`

	Pool struct {
		IdleTimeout   duration `yaml:"idle_timeout"`
		SweepInterval duration `yaml:"sweep_interval"`
	} `yaml:"pool"`

	Store struct {
		ConnInfoTTL duration `yaml:"conn_info_ttl"`
	} `yaml:"store"`
}

// loadFileConfig reads and parses the YAML configuration file.
func loadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parsing %s: %w", path, err)
	}
	return fc, nil
}

// applyFile fills in config fields whose flags were left at their
// defaults. setFlags names the flags given explicitly on the command
// line; those keep their values.
func (c *Config) applyFile(fc FileConfig, setFlags map[string]bool) {
	if !setFlags["listen"] && fc.Listen != "" {
		c.Listen = fc.Listen
	}
	if !setFlags["state-file"] && fc.StateFile != "" {
		c.StateFile = fc.StateFile
	}
	if !setFlags["log-level"] && fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if !setFlags["capture"] && fc.Capture != "" {
		c.Capture = fc.Capture
	}
	if !setFlags["advertise"] && fc.Advertise != nil {
		c.Advertise = *fc.Advertise
	}
	if fc.Instance != "" {
		c.Instance = fc.Instance
	}
}
