package config

import (
	"errors"
	"fmt"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	HTTPAddr          string        `mapstructure:"http_addr" yaml:"http_addr"`
	Executors         int           `mapstructure:"executors" yaml:"executors"`
	AnswerSenders     int           `mapstructure:"answer_senders" yaml:"answer_senders"`
	QueueCapacity     int           `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	MaxClients        int           `mapstructure:"max_clients" yaml:"max_clients"`
	TimelineMax       int           `mapstructure:"timeline_max" yaml:"timeline_max"`
	MaxMessageBytes   int           `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	Store             StoreConfig   `mapstructure:"store" yaml:"store"`
}

// StoreConfig selects the application state backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":5656",
		HTTPAddr:          ":8080",
		Executors:         4,
		AnswerSenders:     2,
		QueueCapacity:     64,
		MaxClients:        128,
		TimelineMax:       16,
		MaxMessageBytes:   1024,
		WriteTimeout:      5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		Store: StoreConfig{
			Driver: StoreMemory,
			Path:   ":memory:",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.Executors != 0 {
		c.Executors = other.Executors
	}
	if other.AnswerSenders != 0 {
		c.AnswerSenders = other.AnswerSenders
	}
	if other.QueueCapacity != 0 {
		c.QueueCapacity = other.QueueCapacity
	}
	if other.MaxClients != 0 {
		c.MaxClients = other.MaxClients
	}
	if other.TimelineMax != 0 {
		c.TimelineMax = other.TimelineMax
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
}

// Validate reports every setting the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("executors", c.Executors)
	positive("answer_senders", c.AnswerSenders)
	positive("queue_capacity", c.QueueCapacity)
	positive("max_clients", c.MaxClients)
	positive("timeline_max", c.TimelineMax)
	positive("max_message_bytes", c.MaxMessageBytes)

	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}
