// SPDX-License-Identifier: Apache-2.0

// Package config holds the transport configuration surface: endpoint, packet
// size, keep-alive policy, and queue capacity. Values load from a YAML file
// over defaults; the packet size is fixed for the lifetime of a connection
// and must be agreed with the peer out of band.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost       = "127.0.0.1"
	DefaultPort       = 50006
	DefaultPacketSize = 1024
	DefaultQueueSize  = 1024
	DefaultKeepAlive  = true
)

const (
	minPacketSize = 1
	maxPacketSize = 1 << 20
	minQueueSize  = 1
	maxPort       = 65535
)

var (
	ReadErr          = errors.New("unable to read config file")
	ParseErr         = errors.New("unable to parse config file")
	InvalidHostErr   = errors.New("host must not be empty")
	InvalidPortErr   = errors.New("port must be between 0 and 65535")
	InvalidPacketErr = fmt.Errorf("packet_size must be between %d and %d", minPacketSize, maxPacketSize)
	InvalidQueueErr  = errors.New("queue_size must be positive")
)

type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	PacketSize int    `yaml:"packet_size"`
	QueueSize  int    `yaml:"queue_size"`
	KeepAlive  bool   `yaml:"keep_alive"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Host:       DefaultHost,
		Port:       DefaultPort,
		PacketSize: DefaultPacketSize,
		QueueSize:  DefaultQueueSize,
		KeepAlive:  DefaultKeepAlive,
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ReadErr, err)
	}
	cfg := Default()
	err = yaml.Unmarshal(contents, cfg)
	if err != nil {
		return nil, errors.Join(ParseErr, err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return InvalidHostErr
	}
	// Port 0 binds an ephemeral port, used by tests and parallel runs.
	if c.Port < 0 || c.Port > maxPort {
		return InvalidPortErr
	}
	if c.PacketSize < minPacketSize || c.PacketSize > maxPacketSize {
		return InvalidPacketErr
	}
	if c.QueueSize < minQueueSize {
		return InvalidQueueErr
	}
	return nil
}

// Addr renders the endpoint as host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
