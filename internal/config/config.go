package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/weft/internal/errors"
)

const (
	// DefaultPort is the default preview server port.
	DefaultPort = 7070

	// DefaultHost is the default preview server host.
	DefaultHost = "localhost"

	// DefaultFrameInterval is the default task queue flush interval.
	DefaultFrameInterval = "16ms"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "weft"

	// DefaultSnapshotDir is the default directory for file snapshots.
	DefaultSnapshotDir = "snapshots"
)

// FileNames lists the configuration file names Load looks for, in order.
var FileNames = []string{"weft.json", "weft.yaml", "weft.yml"}

// Config represents a weft.json or weft.yaml configuration.
type Config struct {
	// Log configures the CLI's slog handler.
	Log LogConfig `json:"log" yaml:"log"`

	// Scheduler configures the task queue run loop.
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`

	// Observation configures what bindings observe.
	Observation ObservationConfig `json:"observation" yaml:"observation"`

	// Metrics configures the Prometheus collectors.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Tracing configures OpenTelemetry spans.
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	// Preview configures the live preview server.
	Preview PreviewConfig `json:"preview" yaml:"preview"`

	// Snapshot configures where rendered output is stored.
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig selects the log level and format.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// SchedulerConfig contains task queue settings.
type SchedulerConfig struct {
	// FrameInterval is how often queued tasks are flushed (e.g. "16ms").
	FrameInterval string `json:"frameInterval,omitempty" yaml:"frameInterval,omitempty"`
}

// ObservationConfig contains observation settings.
type ObservationConfig struct {
	// Collections enables collection observation.
	Collections bool `json:"collections" yaml:"collections"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// TracerName is the name passed to the global tracer provider.
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`
}

// PreviewConfig contains preview server settings.
type PreviewConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// SnapshotConfig contains snapshot storage settings. Snapshots go to S3
// when Bucket is set and to Dir otherwise.
type SnapshotConfig struct {
	Dir       string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Bucket    string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty" yaml:"pathStyle,omitempty"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Scheduler: SchedulerConfig{
			FrameInterval: DefaultFrameInterval,
		},
		Observation: ObservationConfig{
			Collections: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: "weft",
		},
		Preview: PreviewConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Snapshot: SnapshotConfig{
			Dir: DefaultSnapshotDir,
		},
	}
}

// Find returns the path of the first configuration file in dir, or "" if
// there is none.
func Find(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Load reads the configuration file in dir. Without a configuration file
// it returns the defaults.
func Load(dir string) (*Config, error) {
	path := Find(dir)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads and validates the configuration at path. The format
// follows the file extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("W201").WithDetail(path).Wrap(err)
	}

	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("W201").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is valid").
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to path, as YAML or JSON depending on
// the extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("W201").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("W201").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Scheduler.FrameInterval == "" {
		c.Scheduler.FrameInterval = DefaultFrameInterval
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Preview.Host == "" {
		c.Preview.Host = DefaultHost
	}
	if c.Preview.Port == 0 {
		c.Preview.Port = DefaultPort
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = DefaultSnapshotDir
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Preview.Port < 0 || c.Preview.Port > 65535 {
		return errors.New("W202").
			WithDetail("preview.port must be between 0 and 65535")
	}
	if d, err := time.ParseDuration(c.Scheduler.FrameInterval); err != nil || d <= 0 {
		return errors.New("W202").
			WithDetailf("scheduler.frameInterval %q is not a positive duration", c.Scheduler.FrameInterval)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return errors.New("W202").WithDetail(err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("W202").
			WithDetailf("log.format %q must be text or json", c.Log.Format)
	}
	if c.Snapshot.Bucket != "" && c.Snapshot.Region == "" {
		return errors.New("W202").
			WithDetail("snapshot.region is required with snapshot.bucket")
	}
	return nil
}

// FrameInterval returns the parsed scheduler interval.
func (c *Config) FrameInterval() time.Duration {
	d, err := time.ParseDuration(c.Scheduler.FrameInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultFrameInterval)
	}
	return d
}

// PreviewAddress returns the host:port the preview server listens on.
func (c *Config) PreviewAddress() string {
	return c.Preview.Host + ":" + strconv.Itoa(c.Preview.Port)
}

// SnapshotPath returns the snapshot directory, resolved against the
// config file's directory.
func (c *Config) SnapshotPath() string {
	if filepath.IsAbs(c.Snapshot.Dir) {
		return c.Snapshot.Dir
	}
	return filepath.Join(c.Dir(), c.Snapshot.Dir)
}

// NewLogger builds a logger writing to w with the configured level and
// format.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}
