// Package config loads and validates the TOML configuration file.
package config

import (
	"fmt"
	"time"

	"github.com/loykin/appmon/internal/logger"
	"github.com/spf13/viper"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Monitor  MonitorConfig  `toml:"monitor" mapstructure:"monitor"`
	EventLog EventLogConfig `toml:"eventlog" mapstructure:"eventlog"`
	Sink     SinkConfig     `toml:"sink" mapstructure:"sink"`
	Log      logger.Config  `toml:"log" mapstructure:"log"`
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
}

type MonitorConfig struct {
	Interval        time.Duration `toml:"interval" mapstructure:"interval"`
	Heartbeat       time.Duration `toml:"heartbeat" mapstructure:"heartbeat"`
	Mode            string        `toml:"mode" mapstructure:"mode"`
	GUIOnly         bool          `toml:"gui_only" mapstructure:"gui_only"`
	IncludeSystem   bool          `toml:"include_system" mapstructure:"include_system"`
	SnapshotDump    bool          `toml:"snapshot_dump" mapstructure:"snapshot_dump"`
	Ignore          []string      `toml:"ignore" mapstructure:"ignore"`
	Whitelist       []string      `toml:"whitelist" mapstructure:"whitelist"`
	LaunchTitleWait time.Duration `toml:"launch_title_wait" mapstructure:"launch_title_wait"`
}

type EventLogConfig struct {
	Path     string         `toml:"path" mapstructure:"path"`
	Format   string         `toml:"format" mapstructure:"format"`
	Echo     bool           `toml:"echo" mapstructure:"echo"`
	Rotation RotationConfig `toml:"rotation" mapstructure:"rotation"`
}

type RotationConfig struct {
	Trigger      string `toml:"trigger" mapstructure:"trigger"`
	MaxSizeBytes int64  `toml:"max_size_bytes" mapstructure:"max_size_bytes"`
	MaxBackups   int    `toml:"max_backups" mapstructure:"max_backups"`
	Compress     bool   `toml:"compress" mapstructure:"compress"`
}

// SinkConfig selects the segment destination. An empty Type disables
// upload entirely; archives are then retained on disk.
type SinkConfig struct {
	Type      string `toml:"type" mapstructure:"type"`
	Dir       string `toml:"dir" mapstructure:"dir"`
	IndexPath string `toml:"index_path" mapstructure:"index_path"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Load reads the TOML file at path and validates it. Values left at
// their zero value fall back to package defaults downstream.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Validate rejects values that would otherwise misconfigure the
// monitor silently. It runs once at load so a bad file fails startup
// instead of producing a half-working monitor.
func (fc *FileConfig) Validate() error {
	switch fc.Monitor.Mode {
	case "", "active", "process", "both":
	default:
		return fmt.Errorf("config: unknown monitor mode %q", fc.Monitor.Mode)
	}
	if fc.Monitor.Interval < 0 {
		return fmt.Errorf("config: negative monitor interval %s", fc.Monitor.Interval)
	}
	if fc.Monitor.Heartbeat < 0 {
		return fmt.Errorf("config: negative heartbeat %s", fc.Monitor.Heartbeat)
	}
	switch fc.EventLog.Format {
	case "", "kv", "json":
	default:
		return fmt.Errorf("config: unknown eventlog format %q", fc.EventLog.Format)
	}
	switch fc.EventLog.Rotation.Trigger {
	case "", "size", "hourly":
	default:
		return fmt.Errorf("config: unknown rotation trigger %q", fc.EventLog.Rotation.Trigger)
	}
	if fc.EventLog.Rotation.MaxSizeBytes < 0 {
		return fmt.Errorf("config: negative rotation max_size_bytes")
	}
	if fc.EventLog.Rotation.MaxBackups < 0 {
		return fmt.Errorf("config: negative rotation max_backups")
	}
	switch fc.Sink.Type {
	case "", "dir":
	default:
		return fmt.Errorf("config: unknown sink type %q", fc.Sink.Type)
	}
	if fc.Sink.Type == "dir" && fc.Sink.Dir == "" {
		return fmt.Errorf("config: sink type dir requires sink.dir")
	}
	return nil
}
