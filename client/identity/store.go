// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package identity persists the client identity assigned by the backup
// server.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/katzenpost/backup/client/config"
	"github.com/katzenpost/backup/core/wire/commands"
)

var (
	// ErrNoIdentity is returned by Load when no identity has been saved.
	ErrNoIdentity = errors.New("identity: no stored identity")

	// ErrCorrupt is returned by Load when a stored identity can not be
	// parsed.
	ErrCorrupt = errors.New("identity: stored identity is corrupt")
)

// Identity is a registered client: its name, the server assigned UID and
// its RSA private key (PKCS#8 DER).
type Identity struct {
	Name       string
	UID        [commands.UIDLength]byte
	PrivateKey []byte
}

// UIDHex returns the UID as 32 lowercase hex characters.
func (i *Identity) UIDHex() string {
	return hex.EncodeToString(i.UID[:])
}

func (i *Identity) validate() error {
	if i.Name == "" {
		return errors.New("identity: name is empty")
	}
	if len(i.Name) > commands.MaxNameLength {
		return fmt.Errorf("identity: name exceeds %d bytes", commands.MaxNameLength)
	}
	if len(i.PrivateKey) == 0 {
		return errors.New("identity: private key is empty")
	}
	return nil
}

func uidFromHex(s string) ([commands.UIDLength]byte, error) {
	var uid [commands.UIDLength]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return uid, fmt.Errorf("%w: UID: %v", ErrCorrupt, err)
	}
	if len(b) != commands.UIDLength {
		return uid, fmt.Errorf("%w: UID is %d bytes", ErrCorrupt, len(b))
	}
	copy(uid[:], b)
	return uid, nil
}

// Store is a persistent identity store.
type Store interface {
	// Load returns the stored identity, or ErrNoIdentity.
	Load() (*Identity, error)

	// Save replaces the stored identity.
	Save(*Identity) error

	// Close releases the store.
	Close() error
}

// Open returns the Store selected by the Identity section of cfg.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Identity.Backend {
	case config.BackendBolt:
		return NewBoltStore(cfg.Identity.Path)
	case config.BackendFile, "":
		return NewFileStore(cfg.Identity.Path), nil
	default:
		return nil, fmt.Errorf("identity: unknown backend '%v'", cfg.Identity.Backend)
	}
}
