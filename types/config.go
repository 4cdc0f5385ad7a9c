package types

import "time"

// Config is the controller configuration (YAML, or config/<section> on the bus).
type Config struct {
	Controller ControllerConfig `yaml:"controller" json:"controller"`
	Ports      []PortConfig     `yaml:"ports" json:"ports"`
	Claim      ClaimConfig      `yaml:"claim" json:"claim"`
	Status     StatusConfig     `yaml:"status" json:"status"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat" json:"heartbeat"`
	USD        USDConfig        `yaml:"usd" json:"usd"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

type ControllerConfig struct {
	Name     string `yaml:"name" json:"name"`
	MaxPorts int    `yaml:"max_ports" json:"max_ports"`
}

// PortConfig places a (simulated) device on a 1-indexed port.
type PortConfig struct {
	Port   int            `yaml:"port" json:"port"`
	Type   DeviceType     `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

type ClaimConfig struct {
	Redis RedisConfig `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Enable bool          `yaml:"enable" json:"enable"`
	Addr   string        `yaml:"addr" json:"addr"`
	Prefix string        `yaml:"prefix" json:"prefix"`
	TTL    time.Duration `yaml:"ttl" json:"ttl"`
}

type StatusConfig struct {
	Enable bool   `yaml:"enable" json:"enable"`
	Addr   string `yaml:"addr" json:"addr"`
}

type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval" json:"interval"`
}

type USDConfig struct {
	Root string `yaml:"root" json:"root"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}
