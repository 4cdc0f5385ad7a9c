// Package config loads controller configuration from YAML and publishes it
// on the bus, one retained message per top-level section.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"smartport-go/bus"
	"smartport-go/types"
	"smartport-go/x/logx"
	"smartport-go/x/strx"
)

const (
	serviceName  = "config"
	configPrefix = "config"

	DefaultProfile = "v5"
)

// EmbeddedConfigLookup allows overriding how profiles are resolved.
var EmbeddedConfigLookup = func(profile string) ([]byte, bool) {
	b, ok := embeddedConfigs[profile]
	return b, ok
}

// Load reads, defaults and validates a YAML file.
func Load(path string) (types.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.Config{}, err
	}
	return Parse(b)
}

// LoadProfile parses one of the embedded profiles.
func LoadProfile(profile string) (types.Config, error) {
	raw, ok := EmbeddedConfigLookup(profile)
	if !ok || len(raw) == 0 {
		return types.Config{}, errors.New("no embedded config for profile: " + profile)
	}
	return Parse(raw)
}

// Parse decodes YAML, rejecting unknown fields.
func Parse(b []byte) (types.Config, error) {
	var cfg types.Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return types.Config{}, err
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *types.Config) {
	cfg.Controller.Name = strx.Coalesce(cfg.Controller.Name, "brain")
	if cfg.Controller.MaxPorts <= 0 {
		cfg.Controller.MaxPorts = types.MaxPorts
	}
	if cfg.Claim.Redis.Enable {
		cfg.Claim.Redis.Addr = strx.Coalesce(cfg.Claim.Redis.Addr, "127.0.0.1:6379")
		cfg.Claim.Redis.Prefix = strx.Coalesce(cfg.Claim.Redis.Prefix, "smartport:")
		if cfg.Claim.Redis.TTL <= 0 {
			cfg.Claim.Redis.TTL = 2 * time.Second
		}
	}
	if cfg.Status.Enable {
		cfg.Status.Addr = strx.Coalesce(cfg.Status.Addr, "127.0.0.1:8021")
	}
	if cfg.Heartbeat.Interval <= 0 {
		cfg.Heartbeat.Interval = 2 * time.Second
	}
	cfg.Log.Level = strx.Coalesce(cfg.Log.Level, "info")
	cfg.Log.Format = strx.Coalesce(cfg.Log.Format, string(logx.FormatText))
}

// Validate checks a defaulted config.
func Validate(cfg types.Config) error {
	if cfg.Controller.MaxPorts > types.MaxPorts {
		return fmt.Errorf("controller.max_ports must be <= %d", types.MaxPorts)
	}
	seen := map[int]bool{}
	for i, p := range cfg.Ports {
		if p.Port < 1 || p.Port > cfg.Controller.MaxPorts {
			return fmt.Errorf("ports[%d].port must be in 1..%d", i, cfg.Controller.MaxPorts)
		}
		if seen[p.Port] {
			return fmt.Errorf("ports[%d].port %d is listed twice", i, p.Port)
		}
		seen[p.Port] = true
		if p.Type == types.DeviceNone {
			return fmt.Errorf("ports[%d].type is required", i)
		}
	}
	switch logx.Format(cfg.Log.Format) {
	case logx.FormatText, logx.FormatJSON:
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}

// Sections splits a config into the payloads published under config/<name>.
func Sections(cfg types.Config) map[string]any {
	return map[string]any{
		"controller": cfg.Controller,
		"ports":      cfg.Ports,
		"claim":      cfg.Claim,
		"status":     cfg.Status,
		"heartbeat":  cfg.Heartbeat,
		"usd":        cfg.USD,
		"log":        cfg.Log,
	}
}

// Topic is the retained topic for one section.
func Topic(section string) bus.Topic { return bus.T(configPrefix, section) }

// ConfigService publishes a config on the bus.
type ConfigService struct {
	Name   string
	cfg    types.Config
	logger *slog.Logger
}

func NewConfigService(cfg types.Config, logger *slog.Logger) *ConfigService {
	if logger == nil {
		logger = logx.NewNop()
	}
	return &ConfigService{Name: serviceName, cfg: cfg, logger: logx.Component(logger, serviceName)}
}

// Publish sends every section as a retained message.
func (s *ConfigService) Publish(conn *bus.Connection) {
	for k, v := range Sections(s.cfg) {
		conn.Publish(conn.NewMessage(Topic(k), v, true))
	}
	s.logger.Debug("config published", "controller", s.cfg.Controller.Name, "ports", len(s.cfg.Ports))
}

// Start publishes in the background and returns immediately.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if ctx.Err() != nil {
			return
		}
		s.Publish(conn)
	}()
}
