package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the audio controller.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Remote    RemoteConfig    `yaml:"remote"`
	Bluetooth BluetoothConfig `yaml:"bluetooth"`
	Amplifier AmplifierConfig `yaml:"amplifier"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite database settings for the pairing audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains settings for the live event stream.
type WebSocketConfig struct {
	Path         string `yaml:"path"`
	PingInterval int    `yaml:"ping_interval"`
	WriteTimeout int    `yaml:"write_timeout"`
	SendBuffer   int    `yaml:"send_buffer"`
}

// PlaybackConfig lists the PCM devices to monitor.
type PlaybackConfig struct {
	Devices []PlaybackDeviceConfig `yaml:"devices"`
}

// PlaybackDeviceConfig describes one monitored ALSA PCM device.
type PlaybackDeviceConfig struct {
	// Card is the ALSA card name as it appears under /proc/asound.
	Card string `yaml:"card"`

	// Subdevice is the PCM playback subdevice index.
	Subdevice int `yaml:"subdevice"`

	// PollInterval is how often the device status is probed, in seconds.
	PollInterval int `yaml:"poll_interval"`
}

// RemoteConfig contains settings for the IR remote key source.
type RemoteConfig struct {
	Enabled bool `yaml:"enabled"`

	// Device is the evdev input device node to read key events from.
	Device string `yaml:"device"`

	// LongPressThreshold is the press duration in seconds after which a
	// keypress is classified as long.
	LongPressThreshold float64 `yaml:"long_press_threshold"`
}

// BluetoothConfig contains settings for the Bluetooth pairing controller.
type BluetoothConfig struct {
	Enabled bool `yaml:"enabled"`

	// Adapter is the hci adapter number (0 for hci0).
	Adapter int `yaml:"adapter"`

	// DiscoverableTimeout is how long a pairing window stays open, in seconds.
	DiscoverableTimeout int `yaml:"discoverable_timeout"`
}

// AmplifierConfig contains settings for the IR-controlled amplifier.
type AmplifierConfig struct {
	Enabled bool `yaml:"enabled"`

	// Remote is the lirc remote profile name.
	Remote string `yaml:"remote"`

	// PowerOnCommand and PowerOffCommand are the lirc command names sent to
	// power the amplifier on and off.
	PowerOnCommand  string `yaml:"power_on_command"`
	PowerOffCommand string `yaml:"power_off_command"`

	// ShutdownDelay is how long to wait after playback stops before powering
	// off, in seconds. Absorbs brief stop/start flapping such as track changes.
	ShutdownDelay int `yaml:"shutdown_delay"`

	// LircSocket is the path to the lircd UNIX socket.
	LircSocket string `yaml:"lirc_socket"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AUDIOCTL_SECTION_KEY
// For example: AUDIOCTL_DATABASE_PATH, AUDIOCTL_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// The defaults match the deployment this controller was written for: one
// USB DAC, a single IR remote, hci0 and an amplifier on the HK970 profile.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Path:        "./data/audioctl.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8372,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:         "/api/v1/ws",
			PingInterval: 30,
			WriteTimeout: 10,
			SendBuffer:   16,
		},
		Playback: PlaybackConfig{
			Devices: []PlaybackDeviceConfig{
				{Card: "DAC", Subdevice: 0, PollInterval: 1},
			},
		},
		Remote: RemoteConfig{
			Enabled:            true,
			Device:             "/dev/input/event0",
			LongPressThreshold: 3.0,
		},
		Bluetooth: BluetoothConfig{
			Enabled:             true,
			Adapter:             0,
			DiscoverableTimeout: 90,
		},
		Amplifier: AmplifierConfig{
			Enabled:         true,
			Remote:          "HK970",
			PowerOnCommand:  "KEY_POWER",
			PowerOffCommand: "KEY_SLEEP",
			ShutdownDelay:   60,
			LircSocket:      "/var/run/lirc/lircd",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AUDIOCTL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUDIOCTL_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUDIOCTL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("AUDIOCTL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("AUDIOCTL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("AUDIOCTL_REMOTE_DEVICE"); v != "" {
		cfg.Remote.Device = v
	}
	if v := os.Getenv("AUDIOCTL_AMPLIFIER_LIRC_SOCKET"); v != "" {
		cfg.Amplifier.LircSocket = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
	}

	for i, dev := range c.Playback.Devices {
		if dev.Card == "" {
			errs = append(errs, fmt.Sprintf("playback.devices[%d].card is required", i))
		}
		if dev.PollInterval < 1 {
			errs = append(errs, fmt.Sprintf("playback.devices[%d].poll_interval must be at least 1 second", i))
		}
		if dev.Subdevice < 0 {
			errs = append(errs, fmt.Sprintf("playback.devices[%d].subdevice must not be negative", i))
		}
	}

	if c.Remote.Enabled {
		if c.Remote.Device == "" {
			errs = append(errs, "remote.device is required when remote is enabled")
		}
		if c.Remote.LongPressThreshold <= 0 {
			errs = append(errs, "remote.long_press_threshold must be positive")
		}
	}

	if c.Bluetooth.Enabled {
		if c.Bluetooth.Adapter < 0 {
			errs = append(errs, "bluetooth.adapter must not be negative")
		}
		if c.Bluetooth.DiscoverableTimeout < 1 {
			errs = append(errs, "bluetooth.discoverable_timeout must be at least 1 second")
		}
	}

	if c.Amplifier.Enabled {
		if c.Amplifier.Remote == "" {
			errs = append(errs, "amplifier.remote is required when amplifier is enabled")
		}
		if c.Amplifier.LircSocket == "" {
			errs = append(errs, "amplifier.lirc_socket is required when amplifier is enabled")
		}
		if c.Amplifier.ShutdownDelay < 0 {
			errs = append(errs, "amplifier.shutdown_delay must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the device poll interval as a Duration.
func (d PlaybackDeviceConfig) GetPollInterval() time.Duration {
	return time.Duration(d.PollInterval) * time.Second
}

// GetLongPressThreshold returns the long press threshold as a Duration.
func (r RemoteConfig) GetLongPressThreshold() time.Duration {
	return time.Duration(r.LongPressThreshold * float64(time.Second))
}

// GetDiscoverableTimeout returns the pairing window duration as a Duration.
func (b BluetoothConfig) GetDiscoverableTimeout() time.Duration {
	return time.Duration(b.DiscoverableTimeout) * time.Second
}

// GetShutdownDelay returns the amplifier power-off debounce as a Duration.
func (a AmplifierConfig) GetShutdownDelay() time.Duration {
	return time.Duration(a.ShutdownDelay) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}
