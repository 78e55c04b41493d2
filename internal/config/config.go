package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	IP             string   `yaml:"ip"`
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// VideoConfig holds the decode and stream pacing settings
type VideoConfig struct {
	Dir           string        `yaml:"dir"`
	DefaultSource string        `yaml:"default_source"`
	FPS           float64       `yaml:"fps"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	JPEGQuality   int           `yaml:"jpeg_quality"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"` // debug, info, warn, error
}

// MQTTConfig enables the event emitter when Broker is set
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type AppConfig struct {
	Server       ServerConfig `yaml:"server"`
	Video        VideoConfig  `yaml:"video"`
	SettingsPath string       `yaml:"settings_path"`
	Log          LogConfig    `yaml:"log"`
	MQTT         MQTTConfig   `yaml:"mqtt"`
}

// Default config
func defaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			IP:   "",
			Port: "8000",
			AllowedOrigins: []string{
				"http://localhost.tiangolo.com",
				"https://localhost.tiangolo.com",
				"http://localhost",
				"http://localhost:3000",
			},
		},
		Video: VideoConfig{
			Dir:           "videos",
			DefaultSource: "test-video.mov",
			FPS:           30,
			RetryDelay:    1 * time.Second,
			JPEGQuality:   95,
		},
		SettingsPath: "settings.json",
		Log: LogConfig{
			File:  "warpframe.log",
			Level: "info",
		},
		MQTT: MQTTConfig{
			ClientID:    "warpframe",
			TopicPrefix: "warpframe",
			QoS:         0,
		},
	}
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return defaultConfig()
}

// DefaultPath follows the XDG convention: ~/.config/warpframe/config.yaml
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user config directory: %w", err)
	}
	return filepath.Join(configDir, "warpframe", "config.yaml"), nil
}

// Load reads the YAML config at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*AppConfig, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Unmarshal into the default config to fill in missing fields
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the values the pipeline cannot run without.
func Validate(c *AppConfig) error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Video.Dir == "" {
		errs = append(errs, errors.New("video.dir is required"))
	}
	if c.Video.DefaultSource == "" {
		errs = append(errs, errors.New("video.default_source is required"))
	}
	if c.Video.FPS <= 0 || c.Video.FPS > 120 {
		errs = append(errs, fmt.Errorf("video.fps must be in (0, 120], got %v", c.Video.FPS))
	}
	if c.Video.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("video.retry_delay must be positive, got %v", c.Video.RetryDelay))
	}
	if c.Video.JPEGQuality < 1 || c.Video.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("video.jpeg_quality must be in [1, 100], got %d", c.Video.JPEGQuality))
	}
	if c.SettingsPath == "" {
		errs = append(errs, errors.New("settings_path is required"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address for the HTTP server.
func (c *AppConfig) Addr() string {
	return c.Server.IP + ":" + c.Server.Port
}

// Save writes the config as YAML, creating the directory if needed.
func Save(path string, config *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
