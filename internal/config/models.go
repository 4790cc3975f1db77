package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bryanchriswhite/webcamize/internal/logger"
	"github.com/bryanchriswhite/webcamize/internal/pixfmt"
	"gopkg.in/yaml.v3"
)

// Source backends
const (
	BackendGphoto2 = "gphoto2"
	BackendReplay  = "replay"
)

// Sink variants
const (
	SinkAuto   = "auto"
	SinkDevice = "device"
	SinkFile   = "file"
	SinkNone   = "none"
)

// StdoutPath selects standard output for the file sink.
const StdoutPath = "-"

// AutoDevice lets the kernel pick the /dev/video number.
const AutoDevice = -1

// CameraConfig selects the frame source
type CameraConfig struct {
	Name        string `json:"name" yaml:"name"`
	Backend     string `json:"backend" yaml:"backend"`
	Gphoto2Path string `json:"gphoto2_path" yaml:"gphoto2_path"`
	ReplayPath  string `json:"replay_path,omitempty" yaml:"replay_path"`
	ReplayLoop  bool   `json:"replay_loop" yaml:"replay_loop"`
}

// ConvertConfig configures the format converter
type ConvertConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	PixelFormat string `json:"pixel_format" yaml:"pixel_format"`
	Accelerated bool   `json:"accelerated" yaml:"accelerated"`
}

// OutputConfig selects and configures the output sink
type OutputConfig struct {
	Sink          string `json:"sink" yaml:"sink"`
	FilePath      string `json:"file_path,omitempty" yaml:"file_path"`
	LengthPrefix  bool   `json:"length_prefix" yaml:"length_prefix"`
	DeviceNumber  int    `json:"device_number" yaml:"device_number"`
	DeviceLabel   string `json:"device_label,omitempty" yaml:"device_label"`
	ExclusiveCaps bool   `json:"exclusive_caps" yaml:"exclusive_caps"`
	ModprobePath  string `json:"modprobe_path" yaml:"modprobe_path"`
}

// StatusConfig configures the optional status API
type StatusConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr"`
}

// Config represents the application configuration
type Config struct {
	Camera   CameraConfig  `json:"camera" yaml:"camera"`
	Convert  ConvertConfig `json:"convert" yaml:"convert"`
	Output   OutputConfig  `json:"output" yaml:"output"`
	Status   StatusConfig  `json:"status" yaml:"status"`
	FPS      int           `json:"fps" yaml:"fps"`
	LogLevel string        `json:"log_level" yaml:"log_level"`
	NoColor  bool          `json:"no_color" yaml:"no_color"`
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Camera: CameraConfig{
			Backend:     BackendGphoto2,
			Gphoto2Path: "gphoto2",
		},
		Convert: ConvertConfig{
			Enabled:     true,
			PixelFormat: pixfmt.YUYV.String(),
			Accelerated: true,
		},
		Output: OutputConfig{
			Sink:          SinkAuto,
			DeviceNumber:  AutoDevice,
			ExclusiveCaps: true,
			ModprobePath:  "modprobe",
		},
		FPS:      60,
		LogLevel: string(logger.InfoLevel),
	}
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	if c.FPS < 0 {
		return fmt.Errorf("fps must be a non-negative integer, got %d", c.FPS)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level %q (valid options are: DEBUG, INFO, WARN, FATAL)", c.LogLevel)
	}
	if _, err := pixfmt.ParseTarget(c.Convert.PixelFormat); err != nil {
		return err
	}

	switch c.Camera.Backend {
	case BackendGphoto2:
		if c.Camera.Gphoto2Path == "" {
			return fmt.Errorf("camera.gphoto2_path must not be empty")
		}
	case BackendReplay:
		if c.Camera.ReplayPath == "" {
			return fmt.Errorf("camera.replay_path is required for the replay backend")
		}
	default:
		return fmt.Errorf("unknown camera backend %q (use %s or %s)", c.Camera.Backend, BackendGphoto2, BackendReplay)
	}

	switch c.Output.Sink {
	case SinkAuto, SinkDevice, SinkNone:
	case SinkFile:
		if c.Output.FilePath == "" {
			return fmt.Errorf("output.file_path is required for the file sink (use %q for stdout)", StdoutPath)
		}
	default:
		return fmt.Errorf("unknown output sink %q", c.Output.Sink)
	}
	if c.Output.DeviceNumber < AutoDevice {
		return fmt.Errorf("device number must be a non-negative integer, got %d", c.Output.DeviceNumber)
	}
	return nil
}

// TargetFormat returns the parsed conversion target
func (c *Config) TargetFormat() pixfmt.Format {
	f, err := pixfmt.ParseTarget(c.Convert.PixelFormat)
	if err != nil {
		return pixfmt.YUYV
	}
	return f
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/webcamize/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "webcamize", "config.yaml"), nil
}

// NewManager creates a new configuration manager. A missing file is
// created with defaults; failing to write it is only a warning.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	// Try to read config file
	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Debug().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			logger.WithComponent("config").Warn().
				Err(err).
				Str("path", m.configPath).
				Msg("Could not write default config, continuing with defaults")
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk. Keys absent from the file keep
// their default values.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	// Ensure the directory exists
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// Update validates and stores the entire configuration
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the config directory path
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
