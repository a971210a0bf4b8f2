// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package proxy routes backup server connections through an optional
// SOCKS5 proxy.
package proxy

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/katzenpost/backup/core/utils"
)

const (
	typeNone      = "none"
	typeTorSocks5 = "tor+socks5"
	typeSocks5    = "socks5"

	netUnix = "unix"
	netTCP  = "tcp"

	maxSocks5AuthLen = 255
)

var (
	// ErrAuthTooLong is returned when the SOCKS5 user or password exceeds
	// 255 bytes.
	ErrAuthTooLong = errors.New("proxy/config: User or Password too long")

	// ErrPartialAuth is returned when only one of User and Password is set.
	ErrPartialAuth = errors.New("proxy/config: Both User and Password must be specified")

	// ErrTorAuth is returned when credentials are set for a tor+socks5
	// proxy, which uses them for stream isolation.
	ErrTorAuth = errors.New("proxy/config: Tor SOCKS5 conflicts with setting User/Password")

	isolationPrefix string
)

// Config is the upstream proxy configuration.
type Config struct {
	// Type is the proxy type, one of "none", "socks5" or "tor+socks5".
	Type string

	// Network is the proxy address network, "tcp" or "unix".
	Network string

	// Address is the proxy address.
	Address string

	// User is the optional proxy username.
	User string

	// Password is the optional proxy password.
	Password string

	auth *proxy.Auth
}

// DialContextFn matches the net.Dialer.DialContext signature.
type DialContextFn func(ctx context.Context, network, address string) (net.Conn, error)

// Enabled returns true iff connections are routed through a proxy.
func (cfg *Config) Enabled() bool {
	return cfg != nil && cfg.Type != typeNone && cfg.Type != ""
}

// FixupAndValidate normalizes the configuration and validates it.
func (cfg *Config) FixupAndValidate() error {
	cfg.Type = strings.ToLower(cfg.Type)
	switch cfg.Type {
	case "":
		cfg.Type = typeNone
		return nil
	case typeNone:
		return nil
	case typeSocks5, typeTorSocks5:
	default:
		return fmt.Errorf("proxy/config: Type '%v' is invalid", cfg.Type)
	}
	if err := cfg.validateAuth(); err != nil {
		return err
	}
	return cfg.validateNetwork()
}

func (cfg *Config) validateAuth() error {
	uLen, pLen := len(cfg.User), len(cfg.Password)
	switch {
	case uLen > maxSocks5AuthLen || pLen > maxSocks5AuthLen:
		return ErrAuthTooLong
	case (uLen == 0) != (pLen == 0):
		return ErrPartialAuth
	case uLen == 0:
		return nil
	case cfg.Type == typeTorSocks5:
		return ErrTorAuth
	}
	cfg.auth = &proxy.Auth{User: cfg.User, Password: cfg.Password}
	return nil
}

func (cfg *Config) validateNetwork() error {
	cfg.Network = strings.ToLower(cfg.Network)
	switch cfg.Network {
	case netTCP:
		if err := utils.EnsureAddrIPPort(cfg.Address); err != nil {
			return fmt.Errorf("proxy/config: Address '%v' is invalid: %v", cfg.Address, err)
		}
	case netUnix:
		fi, err := os.Lstat(cfg.Address)
		if err != nil {
			return fmt.Errorf("proxy/config: Address '%v' failed to stat(): %v", cfg.Address, err)
		}
		if fi.Mode()&os.ModeSocket == 0 {
			return fmt.Errorf("proxy/config: Address '%v' is not a socket", cfg.Address)
		}
	default:
		return fmt.Errorf("proxy/config: Network '%v' is invalid", cfg.Network)
	}
	return nil
}

// isolationAuth derives tor stream isolation credentials from tag, so
// connections to different backup servers use different circuits.
func isolationAuth(tag string) *proxy.Auth {
	sum := sha512.Sum512_256([]byte(tag))
	return &proxy.Auth{
		User:     isolationPrefix + hex.EncodeToString(sum[:16]),
		Password: string([]byte{0x00}),
	}
}

// ToDialContext returns a dial function that routes through the proxy, or
// nil if no proxy is configured.  The forward dialer reaches the proxy
// itself.
func (cfg *Config) ToDialContext(tag string, forward *net.Dialer) DialContextFn {
	if !cfg.Enabled() {
		return nil
	}

	auth := cfg.auth
	if cfg.Type == typeTorSocks5 {
		auth = isolationAuth(tag)
	}
	if forward == nil {
		forward = &net.Dialer{}
	}

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		d, err := proxy.SOCKS5(cfg.Network, cfg.Address, auth, forward)
		if err != nil {
			return nil, err
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, address)
		}
		return d.Dial(network, address)
	}
}

func init() {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:], uint64(os.Getpid()))
	binary.BigEndian.PutUint64(buf[8:], uint64(time.Now().Unix()))
	sum := sha512.Sum512_256(buf[:])
	isolationPrefix = "katzenpost/backup:" + hex.EncodeToString(sum[:8]) + ":"
}
