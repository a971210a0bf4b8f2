// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package config implements the configuration for the backup client.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/katzenpost/backup/core/log"
	"github.com/katzenpost/backup/core/wire/commands"
	"github.com/katzenpost/backup/internal/proxy"
)

const (
	defaultLogLevel       = "NOTICE"
	defaultReceiveTimeout = 25
	defaultDialTimeout    = 30

	// BackendFile selects the me.info identity file.
	BackendFile = "file"

	// BackendBolt selects the bbolt identity database.
	BackendBolt = "bolt"

	defaultIdentityPath = "me.info"
)

// Server is the backup server connection information.
type Server struct {
	// Address is the server host, either `localhost` or an IP literal.
	Address string

	// Port is the server TCP port.
	Port int
}

func (s *Server) validate() error {
	if s.Address == "" {
		return errors.New("config: Server: Address is not set")
	}
	if s.Address != "localhost" && net.ParseIP(s.Address) == nil {
		return fmt.Errorf("config: Server: Address '%v' is not localhost or an IP address", s.Address)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("config: Server: Port %d is invalid", s.Port)
	}
	return nil
}

// HostPort returns the server address in host:port form.
func (s *Server) HostPort() string {
	return net.JoinHostPort(s.Address, fmt.Sprintf("%d", s.Port))
}

// Transfer names the client and the file to back up.
type Transfer struct {
	// Username is the name registered with the server.
	Username string

	// FilePath is the path of the file to upload.
	FilePath string
}

func (t *Transfer) validate() error {
	if t.Username == "" {
		return errors.New("config: Transfer: Username is not set")
	}
	if len(t.Username) > commands.MaxNameLength {
		return fmt.Errorf("config: Transfer: Username exceeds %d bytes", commands.MaxNameLength)
	}
	if t.FilePath == "" {
		return errors.New("config: Transfer: FilePath is not set")
	}
	return nil
}

// Identity is the persisted client identity configuration.
type Identity struct {
	// Backend is the store type, `file` or `bolt`.
	Backend string

	// Path is the identity file or database path.
	Path string
}

func (i *Identity) fixupAndValidate() error {
	i.Backend = strings.ToLower(i.Backend)
	switch i.Backend {
	case "":
		i.Backend = BackendFile
	case BackendFile, BackendBolt:
	default:
		return fmt.Errorf("config: Identity: Backend '%v' is invalid", i.Backend)
	}
	if i.Path == "" {
		i.Path = defaultIdentityPath
	}
	return nil
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	if lCfg.Level == "" {
		lCfg.Level = defaultLogLevel
	}
	if err := log.ValidLevel(lCfg.Level); err != nil {
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = strings.ToUpper(lCfg.Level)
	return nil
}

// Debug is the debug configuration.
type Debug struct {
	// ReceiveTimeout is the number of seconds to wait for a server
	// response.
	ReceiveTimeout int

	// DialTimeout is the number of seconds that a connection attempt
	// is allowed to take until it is canceled.
	DialTimeout int

	// RetryBaseDelay is the base backoff in milliseconds applied before
	// re-sending a request the server answered with a general error.
	// Zero retries immediately.
	RetryBaseDelay int
}

func (d *Debug) fixup() {
	if d.ReceiveTimeout == 0 {
		d.ReceiveTimeout = defaultReceiveTimeout
	}
	if d.DialTimeout == 0 {
		d.DialTimeout = defaultDialTimeout
	}
}

func (d *Debug) validate() error {
	if d.ReceiveTimeout < 0 || d.DialTimeout < 0 || d.RetryBaseDelay < 0 {
		return errors.New("config: Debug: timeouts must not be negative")
	}
	return nil
}

// ReceiveTimeoutDuration returns ReceiveTimeout as a time.Duration.
func (d *Debug) ReceiveTimeoutDuration() time.Duration {
	return time.Duration(d.ReceiveTimeout) * time.Second
}

// DialTimeoutDuration returns DialTimeout as a time.Duration.
func (d *Debug) DialTimeoutDuration() time.Duration {
	return time.Duration(d.DialTimeout) * time.Second
}

// RetryBaseDelayDuration returns RetryBaseDelay as a time.Duration.
func (d *Debug) RetryBaseDelayDuration() time.Duration {
	return time.Duration(d.RetryBaseDelay) * time.Millisecond
}

// UpstreamProxy is the outgoing connection proxy configuration.
type UpstreamProxy struct {
	// Type is the proxy type (Eg: "none"," socks5", "tor+socks5").
	Type string

	// Network is the proxy address' network (`unix`, `tcp`).
	Network string

	// Address is the proxy's address.
	Address string

	// User is the optional proxy username.
	User string

	// Password is the optional proxy password.
	Password string
}

func (uCfg *UpstreamProxy) toProxyConfig() (*proxy.Config, error) {
	cfg := new(proxy.Config)
	if uCfg != nil {
		cfg.Type = uCfg.Type
		cfg.Network = uCfg.Network
		cfg.Address = uCfg.Address
		cfg.User = uCfg.User
		cfg.Password = uCfg.Password
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Config is the top level client configuration.
type Config struct {
	// Server is the backup server to connect to.
	Server *Server

	// Transfer is the upload job.
	Transfer *Transfer

	// Identity is where the client identity is persisted.
	Identity *Identity

	// Logging
	Logging *Logging

	// UpstreamProxy can be used to setup a SOCKS proxy for use with a VPN or Tor.
	UpstreamProxy *UpstreamProxy

	// Debug is used to set various parameters.
	Debug *Debug

	// MetricsAddress is the optional host:port of the Prometheus
	// listener.
	MetricsAddress string

	upstreamProxy *proxy.Config
}

// UpstreamProxyConfig returns the configured upstream proxy, suitable for
// internal use.
func (c *Config) UpstreamProxyConfig() *proxy.Config {
	return c.upstreamProxy
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration sections.
func (c *Config) FixupAndValidate() error {
	if c.Server == nil {
		return errors.New("config: No Server block was present")
	}
	if c.Transfer == nil {
		return errors.New("config: No Transfer block was present")
	}

	// Handle missing sections if possible.
	if c.Identity == nil {
		c.Identity = new(Identity)
	}
	if c.Logging == nil {
		c.Logging = &Logging{Level: defaultLogLevel}
	}
	if c.Debug == nil {
		c.Debug = new(Debug)
	}
	c.Debug.fixup()

	// Validate/fixup the various sections.
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Transfer.validate(); err != nil {
		return err
	}
	if err := c.Identity.fixupAndValidate(); err != nil {
		return err
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if err := c.Debug.validate(); err != nil {
		return err
	}
	if c.MetricsAddress != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddress); err != nil {
			return fmt.Errorf("config: MetricsAddress '%v' is invalid: %v", c.MetricsAddress, err)
		}
	}
	uCfg, err := c.UpstreamProxy.toProxyConfig()
	if err != nil {
		return err
	}
	c.upstreamProxy = uCfg
	return nil
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses, and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

// Default returns a complete configuration with placeholder server and
// transfer values.
func Default() *Config {
	cfg := &Config{
		Server: &Server{
			Address: "127.0.0.1",
			Port:    1234,
		},
		Transfer: &Transfer{
			Username: "backup",
			FilePath: "backup.dat",
		},
		Identity: &Identity{
			Backend: BackendFile,
			Path:    defaultIdentityPath,
		},
		Logging: &Logging{
			Level: defaultLogLevel,
		},
		Debug: &Debug{
			ReceiveTimeout: defaultReceiveTimeout,
			DialTimeout:    defaultDialTimeout,
		},
		UpstreamProxy: &UpstreamProxy{
			Type: "none",
		},
	}
	if err := cfg.FixupAndValidate(); err != nil {
		panic(err)
	}
	return cfg
}

// Marshal serializes the Config as TOML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
