// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the daemon looks for its configuration when no
// --config.file flag is given.
const DefaultPath = "/etc/ryzenmon/config.yaml"

// DefaultListenAddress is the default web listen address.
const DefaultListenAddress = ":9399"

// Duration wraps time.Duration so that yaml accepts values like "10s".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config represents the complete application configuration
type (
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}

	// Influx describes the telemetry sink. HostTag and ServiceTag are
	// attached to every written point.
	Influx struct {
		Host       string `yaml:"host"`
		Org        string `yaml:"org"`
		Token      string `yaml:"token"`
		Bucket     string `yaml:"bucket"`
		HostTag    string `yaml:"host_tag"`
		ServiceTag string `yaml:"service_tag"`
	}

	Monitor struct {
		// Interval is the period between sampling cycles
		Interval Duration `yaml:"interval"`
		// Window is the measurement window between the two read passes
		Window Duration `yaml:"window"`
		// ReadConcurrency bounds parallel MSR reads within a pass
		ReadConcurrency int `yaml:"read_concurrency"`
		// Sysfs and MSRPath exist for tests and containers
		Sysfs   string `yaml:"sysfs"`
		MSRPath string `yaml:"msr_path"`
	}

	Web struct {
		ListenAddresses []string `yaml:"listen"`
		ConfigFile      string   `yaml:"config_file"`
		Pprof           bool     `yaml:"pprof"`
	}

	Config struct {
		Log     Log     `yaml:"log"`
		Influx  Influx  `yaml:"influx"`
		Monitor Monitor `yaml:"monitor"`
		Web     Web     `yaml:"web"`
	}
)

const (
	// Flags
	LogLevelFlag        = "log.level"
	LogFormatFlag       = "log.format"
	IntervalFlag        = "monitor.interval"
	WindowFlag          = "monitor.window"
	ReadConcurrencyFlag = "monitor.read-concurrency"
	WebListenFlag       = "web.listen-address"
)

// DefaultConfig returns a Config with default values. The influx
// section is deliberately left blank; it must come from the config
// file.
func DefaultConfig() *Config {
	return &Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Influx: Influx{
			HostTag:    "pvehost",
			ServiceTag: "ryzen-rapl",
		},
		Monitor: Monitor{
			Interval:        Duration(10 * time.Second),
			Window:          Duration(100 * time.Millisecond),
			ReadConcurrency: 1,
			Sysfs:           "/sys",
			MSRPath:         "/dev/cpu/%d/msr",
		},
		Web: Web{
			ListenAddresses: []string{DefaultListenAddress},
		},
	}
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile loads configuration from a file
func FromFile(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Load(file)
}

const configTemplate = `# ryzenmon configuration
log:
  level: info
  format: text

influx:
  host: http://localhost:8086
  org: your_org
  token: your_token
  bucket: your_bucket
  host_tag: pvehost
  service_tag: ryzen-rapl

monitor:
  interval: 10s
  window: 100ms

web:
  listen:
    - ` + DefaultListenAddress + `
`

// WriteTemplate writes a commented example configuration to path,
// creating parent directories as needed. It refuses to overwrite an
// existing file. The file is created 0600 since it will hold the sink
// token.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}
	return nil
}

type ConfigUpdaterFn func(*Config) error

// RegisterFlags registers command-line flags with the kingpin app and
// returns a ConfigUpdaterFn that applies parsed flags on top of the
// config file settings.
func RegisterFlags(app *kingpin.Application) ConfigUpdaterFn {
	// track flags that were explicitly set
	flagsSet := map[string]bool{}

	app.PreAction(func(ctx *kingpin.ParseContext) error {
		// Clear the map in case this function is called multiple times
		flagsSet = map[string]bool{}

		for _, element := range ctx.Elements {
			if flag, ok := element.Clause.(*kingpin.FlagClause); ok && element.Value != nil {
				flagsSet[flag.Model().Name] = true
			}
		}
		return nil
	})

	logLevel := app.Flag(LogLevelFlag, "Logging level: debug, info, warn, error").Default("info").Enum("debug", "info", "warn", "error")
	logFormat := app.Flag(LogFormatFlag, "Logging format: text or json").Default("text").Enum("text", "json")
	interval := app.Flag(IntervalFlag, "Period between sampling cycles").Default("10s").Duration()
	window := app.Flag(WindowFlag, "Measurement window between energy reads").Default("100ms").Duration()
	readConcurrency := app.Flag(ReadConcurrencyFlag, "Bounded parallelism of MSR read passes").Default("1").Int()
	listen := app.Flag(WebListenFlag, "Web listen address, repeatable").Strings()

	return func(cfg *Config) error {
		if flagsSet[LogLevelFlag] {
			cfg.Log.Level = *logLevel
		}
		if flagsSet[LogFormatFlag] {
			cfg.Log.Format = *logFormat
		}
		if flagsSet[IntervalFlag] {
			cfg.Monitor.Interval = Duration(*interval)
		}
		if flagsSet[WindowFlag] {
			cfg.Monitor.Window = Duration(*window)
		}
		if flagsSet[ReadConcurrencyFlag] {
			cfg.Monitor.ReadConcurrency = *readConcurrency
		}
		if flagsSet[WebListenFlag] {
			cfg.Web.ListenAddresses = *listen
		}

		cfg.sanitize()
		return cfg.Validate()
	}
}

func (c *Config) sanitize() {
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.Format = strings.TrimSpace(c.Log.Format)
	c.Influx.Host = strings.TrimSpace(c.Influx.Host)
	c.Influx.Org = strings.TrimSpace(c.Influx.Org)
	c.Influx.Token = strings.TrimSpace(c.Influx.Token)
	c.Influx.Bucket = strings.TrimSpace(c.Influx.Bucket)
}

// Validate checks for configuration errors
func (c *Config) Validate() error {
	var errs []string

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
	}

	for name, value := range map[string]string{
		"influx.host":   c.Influx.Host,
		"influx.org":    c.Influx.Org,
		"influx.token":  c.Influx.Token,
		"influx.bucket": c.Influx.Bucket,
	} {
		if value == "" {
			errs = append(errs, fmt.Sprintf("%s must be set", name))
		}
	}

	if c.Monitor.Interval <= 0 {
		errs = append(errs, "monitor.interval must be positive")
	}
	if c.Monitor.Window <= 0 {
		errs = append(errs, "monitor.window must be positive")
	}
	if c.Monitor.Interval > 0 && c.Monitor.Window >= c.Monitor.Interval {
		errs = append(errs, "monitor.window must be shorter than monitor.interval")
	}
	if c.Monitor.ReadConcurrency < 1 {
		errs = append(errs, "monitor.read_concurrency must be at least 1")
	}
	if !strings.Contains(c.Monitor.MSRPath, "%d") {
		errs = append(errs, "monitor.msr_path must contain a %d placeholder")
	}

	if len(c.Web.ListenAddresses) == 0 {
		errs = append(errs, "web.listen must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, ", "))
	}

	return nil
}

// String renders the configuration as yaml with the sink token
// redacted.
func (c *Config) String() string {
	redacted := *c
	if redacted.Influx.Token != "" {
		redacted.Influx.Token = "***"
	}

	bytes, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Sprintf("<unprintable config: %v>", err)
	}
	return string(bytes)
}
