// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package identity

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/katzenpost/backup/core/utils"
)

const (
	// DefaultFile is the conventional identity file name.
	DefaultFile = "me.info"

	keyLineWidth = 64
)

// FileStore keeps the identity in a three section text file: the name,
// the hex UID, then the base64 private key wrapped over one or more
// lines.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (s *FileStore) Load() (*Identity, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoIdentity
	}
	if err != nil {
		return nil, err
	}
	return parseFile(b)
}

func parseFile(b []byte) (*Identity, error) {
	lines := strings.Split(string(b), "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	if len(lines) < 3 {
		return nil, fmt.Errorf("%w: %d lines", ErrCorrupt, len(lines))
	}

	id := &Identity{Name: lines[0]}
	var err error
	if id.UID, err = uidFromHex(strings.TrimSpace(lines[1])); err != nil {
		return nil, err
	}
	encoded := strings.Join(lines[2:], "")
	if id.PrivateKey, err = base64.StdEncoding.DecodeString(strings.TrimSpace(encoded)); err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrCorrupt, err)
	}
	if err = id.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return id, nil
}

// Save implements Store.  The file is replaced atomically.
func (s *FileStore) Save(id *Identity) error {
	if err := id.validate(); err != nil {
		return err
	}
	if strings.ContainsAny(id.Name, "\r\n") {
		return errors.New("identity: name contains a line break")
	}

	var buf bytes.Buffer
	buf.WriteString(id.Name)
	buf.WriteByte('\n')
	buf.WriteString(id.UIDHex())
	buf.WriteByte('\n')
	encoded := base64.StdEncoding.EncodeToString(id.PrivateKey)
	for len(encoded) > keyLineWidth {
		buf.WriteString(encoded[:keyLineWidth])
		buf.WriteByte('\n')
		encoded = encoded[keyLineWidth:]
	}
	buf.WriteString(encoded)
	buf.WriteByte('\n')

	return utils.WriteFileAtomic(s.path, buf.Bytes(), 0600)
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
