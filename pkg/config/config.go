package config

import (
	"os"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/itohio/sscd/pkg/link"
)

// Scan strategies.
const (
	StrategyTable        = "table"
	StrategyInterpolated = "interpolated"
	StrategyComputed     = "computed"
)

// Config represents the application configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Devices  DevicesConfig `yaml:"devices"`
	LIA      LIAConfig     `yaml:"lia"`
	Stage    StageConfig   `yaml:"stage"`
	Scan     ScanConfig    `yaml:"scan"`
	Store    StoreConfig   `yaml:"store"`
	Mock     MockConfig    `yaml:"mock"`
}

// DevicesConfig holds the serial link of every instrument. An empty pump
// port means the rig has no pump laser attached.
type DevicesConfig struct {
	LIA     link.Options `yaml:"lia"`
	PEM     link.Options `yaml:"pem"`
	Stepper link.Options `yaml:"stepper"`
	Pump    link.Options `yaml:"pump"`
}

// LIAConfig contains lock-in amplifier setup.
type LIAConfig struct {
	Channels []string `yaml:"channels"` // Data channels assigned to slots 1..4
}

// StageConfig contains motion parameters.
type StageConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // Delay between position polls (0 = tight loop)
	Backoff      int32         `yaml:"backoff"`       // Park offset below the first scan position
}

// ScanConfig contains scan parameters.
type ScanConfig struct {
	Strategy         string        `yaml:"strategy"`
	Calibration      string        `yaml:"calibration"`
	OutputDir        string        `yaml:"output_dir"`
	Stub             string        `yaml:"stub"`
	IntegrationTime  time.Duration `yaml:"integration_time"`
	SettleTime       time.Duration `yaml:"settle_time"`
	Count            int           `yaml:"count"` // Number of scans (0 = until interrupted)
	Start            int           `yaml:"start"`
	Stop             int           `yaml:"stop"`
	WavelengthOffset int           `yaml:"wavelength_offset"` // Applied to the PEM code only
	Plot             bool          `yaml:"plot"`              // Render a PNG next to each CSV
}

// StoreConfig contains result persistence parameters.
type StoreConfig struct {
	Database string `yaml:"database"` // SQLite file recording every run ("" = disabled)
}

// MockConfig contains simulated rig configuration.
type MockConfig struct {
	Signal     float64       `yaml:"signal"`      // Peak AC signal (V)
	DC         float64       `yaml:"dc"`          // DC level (V)
	NoiseLevel float64       `yaml:"noise_level"` // Relative noise
	StepsPerMs int32         `yaml:"steps_per_ms"`
	Latency    time.Duration `yaml:"latency"` // Delay per snapshot query
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Devices: DevicesConfig{
			LIA:     link.Options{Port: "COM4", BaudRate: 115200, Timeout: link.DefaultTimeout},
			PEM:     link.Options{Port: "COM3", BaudRate: 2400, Timeout: link.DefaultTimeout},
			Stepper: link.Options{Port: "COM5", BaudRate: 9600, Timeout: link.DefaultTimeout},
			Pump:    link.Options{BaudRate: 115200, Timeout: link.DefaultTimeout},
		},
		LIA: LIAConfig{
			Channels: []string{"X", "R", "XN", "IN3"},
		},
		Stage: StageConfig{
			PollInterval: 0,
			Backoff:      2000,
		},
		Scan: ScanConfig{
			Strategy:        StrategyInterpolated,
			OutputDir:       "data",
			Stub:            "scan",
			IntegrationTime: time.Second,
			SettleTime:      500 * time.Millisecond,
			Count:           1,
			Start:           795,
			Stop:            850,
		},
		Mock: MockConfig{
			Signal:     1e-3,
			DC:         0.5,
			NoiseLevel: 0.01,
			StepsPerMs: 50,
			Latency:    5 * time.Millisecond,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, pkgerrors.Wrapf(err, "failed to read config file %s", filename)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse config file %s", filename)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return pkgerrors.Wrapf(err, "failed to write config file %s", filename)
	}

	return nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Scan.Strategy {
	case StrategyTable, StrategyInterpolated:
		if c.Scan.Calibration == "" {
			return pkgerrors.Errorf("scan strategy %q requires a calibration table", c.Scan.Strategy)
		}
	case StrategyComputed:
	default:
		return pkgerrors.Errorf("unknown scan strategy %q", c.Scan.Strategy)
	}
	if c.Scan.Strategy != StrategyTable && c.Scan.Stop < c.Scan.Start {
		return pkgerrors.Errorf("scan stop %d is below start %d", c.Scan.Stop, c.Scan.Start)
	}
	if c.Scan.Count < 0 {
		return pkgerrors.Errorf("scan count %d is negative", c.Scan.Count)
	}
	if len(c.LIA.Channels) > 4 {
		return pkgerrors.Errorf("lock-in has 4 data slots, got %d channels", len(c.LIA.Channels))
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	ensureLink(&c.Devices.LIA, def.Devices.LIA)
	ensureLink(&c.Devices.PEM, def.Devices.PEM)
	ensureLink(&c.Devices.Stepper, def.Devices.Stepper)
	ensureLink(&c.Devices.Pump, def.Devices.Pump)

	if len(c.LIA.Channels) == 0 {
		c.LIA.Channels = def.LIA.Channels
	}

	if c.Stage.Backoff == 0 {
		c.Stage.Backoff = def.Stage.Backoff
	}

	if c.Scan.Strategy == "" {
		c.Scan.Strategy = def.Scan.Strategy
	}
	if c.Scan.OutputDir == "" {
		c.Scan.OutputDir = def.Scan.OutputDir
	}
	if c.Scan.Stub == "" {
		c.Scan.Stub = def.Scan.Stub
	}
	if c.Scan.IntegrationTime == 0 {
		c.Scan.IntegrationTime = def.Scan.IntegrationTime
	}
	if c.Scan.SettleTime == 0 {
		c.Scan.SettleTime = def.Scan.SettleTime
	}
	if c.Scan.Start == 0 {
		c.Scan.Start = def.Scan.Start
	}
	if c.Scan.Stop == 0 {
		c.Scan.Stop = def.Scan.Stop
	}

	if c.Mock.DC == 0 {
		c.Mock.DC = def.Mock.DC
	}
	if c.Mock.Signal == 0 {
		c.Mock.Signal = def.Mock.Signal
	}
	if c.Mock.StepsPerMs == 0 {
		c.Mock.StepsPerMs = def.Mock.StepsPerMs
	}
}

// ensureLink fills the baud rate and timeout of a device link. The port name
// is only defaulted for devices that have one by default.
func ensureLink(o *link.Options, def link.Options) {
	if o.Port == "" {
		o.Port = def.Port
	}
	if o.BaudRate == 0 {
		o.BaudRate = def.BaudRate
	}
	if o.Timeout == 0 {
		o.Timeout = def.Timeout
	}
}
