package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed dlts.toml
var defaultConfigData []byte

// Global state variables holding the validated configuration.
var (
	Port        string
	Baud        int
	ReadTimeout time.Duration

	PositioningTime      time.Duration
	HistorySize          int
	ImageRebuildInterval time.Duration
)

// Config represents the entire TOML configuration structure.
type Config struct {
	Serial Serial `toml:"serial"`
	Scan   Scan   `toml:"scan"`
}

// Serial holds the connection parameters of the DLTS serial port.
type Serial struct {
	Port      string `toml:"port"`
	Baud      int    `toml:"baud"`
	TimeoutMs int    `toml:"timeout_ms"`
}

// Scan holds the default scan engine parameters.
type Scan struct {
	PositioningTimeMs      int `toml:"positioning_time_ms"`
	HistorySize            int `toml:"history_size"`
	ImageRebuildIntervalMs int `toml:"image_rebuild_interval_ms"`
}

// configPath determines the config file path based on the operating system.
func configPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "dltsctl")
	default:
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".dltsctl"), nil
}

// Initialize loads and validates the configuration file.
// If the config file doesn't exist, it creates it from the embedded default.
func Initialize() error {
	configPath, err := configPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
		}
		if err := os.WriteFile(configPath, defaultConfigData, 0644); err != nil {
			return fmt.Errorf("failed to create default config file at %s: %w", configPath, err)
		}
	}

	var conf Config
	if _, err := toml.DecodeFile(configPath, &conf); err != nil {
		return fmt.Errorf("failed to parse TOML config at %s: %w", configPath, err)
	}

	if conf.Serial.Baud <= 0 {
		return fmt.Errorf("serial baud rate %d is invalid (must be positive)", conf.Serial.Baud)
	}
	if conf.Serial.TimeoutMs <= 0 {
		return fmt.Errorf("serial timeout_ms %d is invalid (must be positive)", conf.Serial.TimeoutMs)
	}
	if conf.Scan.PositioningTimeMs < 0 {
		return fmt.Errorf("scan positioning_time_ms %d is invalid (must not be negative)", conf.Scan.PositioningTimeMs)
	}
	if conf.Scan.HistorySize < 0 {
		return fmt.Errorf("scan history_size %d is invalid (must not be negative)", conf.Scan.HistorySize)
	}
	if conf.Scan.ImageRebuildIntervalMs <= 0 {
		return fmt.Errorf("scan image_rebuild_interval_ms %d is invalid (must be positive)", conf.Scan.ImageRebuildIntervalMs)
	}

	Port = conf.Serial.Port
	Baud = conf.Serial.Baud
	ReadTimeout = time.Duration(conf.Serial.TimeoutMs) * time.Millisecond

	PositioningTime = time.Duration(conf.Scan.PositioningTimeMs) * time.Millisecond
	HistorySize = conf.Scan.HistorySize
	ImageRebuildInterval = time.Duration(conf.Scan.ImageRebuildIntervalMs) * time.Millisecond

	return nil
}
