package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// NotifyConfig tunes side-effect dispatch, mail fan-out, and the reminder sweep.
type NotifyConfig struct {
	Workers         int     `toml:"workers"`
	RatePerSecond   float64 `toml:"rate_per_second"`
	Burst           int     `toml:"burst"`
	DedupeWindow    string  `toml:"dedupe_window"`
	DispatchTimeout string  `toml:"dispatch_timeout"`
	ReminderAfter   string  `toml:"reminder_after"`
	SweepInterval   string  `toml:"sweep_interval"`
}

func (c *NotifyConfig) DedupeWindowDuration() time.Duration    { return parse(c.DedupeWindow) }
func (c *NotifyConfig) DispatchTimeoutDuration() time.Duration { return parse(c.DispatchTimeout) }
func (c *NotifyConfig) ReminderAfterDuration() time.Duration   { return parse(c.ReminderAfter) }
func (c *NotifyConfig) SweepIntervalDuration() time.Duration   { return parse(c.SweepInterval) }

func (c *NotifyConfig) Finalize() error {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.DedupeWindow == "" {
		c.DedupeWindow = "10m"
	}
	if c.DispatchTimeout == "" {
		c.DispatchTimeout = "2m"
	}
	if c.ReminderAfter == "" {
		c.ReminderAfter = "48h"
	}
	if c.SweepInterval == "" {
		c.SweepInterval = "15m"
	}

	if v := os.Getenv("DOCUPREX_NOTIFY_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("DOCUPREX_NOTIFY_RATE_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RatePerSecond = f
		}
	}
	if v := os.Getenv("DOCUPREX_NOTIFY_REMINDER_AFTER"); v != "" {
		c.ReminderAfter = v
	}
	if v := os.Getenv("DOCUPREX_NOTIFY_SWEEP_INTERVAL"); v != "" {
		c.SweepInterval = v
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("rate_per_second must be positive")
	}
	for name, v := range map[string]string{
		"dedupe_window":    c.DedupeWindow,
		"dispatch_timeout": c.DispatchTimeout,
		"reminder_after":   c.ReminderAfter,
		"sweep_interval":   c.SweepInterval,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func (c *NotifyConfig) Merge(overlay *NotifyConfig) {
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.RatePerSecond != 0 {
		c.RatePerSecond = overlay.RatePerSecond
	}
	if overlay.Burst != 0 {
		c.Burst = overlay.Burst
	}
	if overlay.DedupeWindow != "" {
		c.DedupeWindow = overlay.DedupeWindow
	}
	if overlay.DispatchTimeout != "" {
		c.DispatchTimeout = overlay.DispatchTimeout
	}
	if overlay.ReminderAfter != "" {
		c.ReminderAfter = overlay.ReminderAfter
	}
	if overlay.SweepInterval != "" {
		c.SweepInterval = overlay.SweepInterval
	}
}
