package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BackupConfig controls the periodic SQLite file backup.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
		// AdminID is the salon owner's chat; admin commands are accepted
		// from this id only.
		AdminID int64 `yaml:"admin_id"`
		// ChannelID/ChannelLink gate booking behind a channel subscription.
		ChannelID   int64  `yaml:"channel_id"`
		ChannelLink string `yaml:"channel_link"`
		// ScheduleChannelID receives booking announcements.
		ScheduleChannelID int64 `yaml:"schedule_channel_id"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Timezone string `yaml:"timezone"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Reminders struct {
		LeadHours int `yaml:"lead_hours"`
	} `yaml:"reminders"`

	// Workday is the default slot grid used by the admin bulk day-opening.
	Workday struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"workday"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram.bot_token is required")
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/nailsbot.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Moscow"
	}
	if cfg.Reminders.LeadHours <= 0 {
		cfg.Reminders.LeadHours = 24
	}
	if cfg.Workday.Start == "" {
		cfg.Workday.Start = "10:00"
	}
	if cfg.Workday.End == "" {
		cfg.Workday.End = "20:00"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location loads the configured salon timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ReminderLead is how long before the appointment reminders fire.
func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.Reminders.LeadHours) * time.Hour
}

// CacheTTL is the availability cache lifetime; zero disables the cache.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}
