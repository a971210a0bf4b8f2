// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katzenpost/hpqc/rand"

	"github.com/katzenpost/backup/client/config"
)

func testIdentity(t *testing.T) *Identity {
	id := &Identity{
		Name:       "alice",
		PrivateKey: make([]byte, 634),
	}
	_, err := rand.Reader.Read(id.UID[:])
	require.NoError(t, err)
	_, err = rand.Reader.Read(id.PrivateKey)
	require.NoError(t, err)
	return id
}

func testStoreRoundTrip(t *testing.T, s Store) {
	require := require.New(t)

	_, err := s.Load()
	require.ErrorIs(err, ErrNoIdentity)

	id := testIdentity(t)
	require.NoError(s.Save(id))
	id2, err := s.Load()
	require.NoError(err)
	require.Equal(id, id2)

	// Saving again replaces the identity.
	id3 := testIdentity(t)
	id3.Name = "alice2"
	require.NoError(s.Save(id3))
	id4, err := s.Load()
	require.NoError(err)
	require.Equal(id3, id4)

	require.Error(s.Save(&Identity{Name: "", PrivateKey: []byte{1}}))
	require.Error(s.Save(&Identity{Name: "bob"}))
	require.Error(s.Save(&Identity{Name: strings.Repeat("b", 101), PrivateKey: []byte{1}}))
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	f := filepath.Join(t.TempDir(), DefaultFile)
	s := NewFileStore(f)
	testStoreRoundTrip(t, s)
	require.NoError(t, s.Close())
}

func TestFileStoreLayout(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := filepath.Join(t.TempDir(), DefaultFile)
	s := NewFileStore(f)
	id := testIdentity(t)
	require.NoError(s.Save(id))

	raw, err := os.ReadFile(f)
	require.NoError(err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Greater(len(lines), 3, "private key must be wrapped")
	require.Equal("alice", lines[0])
	require.Equal(id.UIDHex(), lines[1])
	require.Len(lines[1], 32)
	for _, l := range lines[2 : len(lines)-1] {
		require.Len(l, keyLineWidth)
	}

	fi, err := os.Stat(f)
	require.NoError(err)
	require.Equal(os.FileMode(0600), fi.Mode().Perm())
}

func TestFileStoreParse(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	id, err := parseFile([]byte("bob\r\n000102030405060708090a0b0c0d0e0f\r\nAQID\r\nBAUG\r\n"))
	require.NoError(err)
	require.Equal("bob", id.Name)
	require.Equal(byte(0x0f), id.UID[15])
	require.Equal([]byte{1, 2, 3, 4, 5, 6}, id.PrivateKey)

	for name, body := range map[string]string{
		"short":   "bob\n",
		"bad hex": "bob\nzz\nAQID\n",
		"uid len": "bob\n0001\nAQID\n",
		"no key":  "bob\n000102030405060708090a0b0c0d0e0f\n\n",
		"bad b64": "bob\n000102030405060708090a0b0c0d0e0f\n!!!\n",
		"no name": "\n000102030405060708090a0b0c0d0e0f\nAQID\n",
	} {
		_, err := parseFile([]byte(body))
		require.ErrorIs(err, ErrCorrupt, name)
	}
}

func TestBoltStore(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	f := filepath.Join(t.TempDir(), "identity.db")
	s, err := NewBoltStore(f)
	require.NoError(err)
	testStoreRoundTrip(t, s)
	id, err := s.Load()
	require.NoError(err)
	require.NoError(s.Close())

	// Reopening keeps the identity.
	s, err = NewBoltStore(f)
	require.NoError(err)
	id2, err := s.Load()
	require.NoError(err)
	require.Equal(id, id2)
	require.NoError(s.Close())
}

func TestOpen(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	dir := t.TempDir()
	cfg := config.Default()

	cfg.Identity.Path = filepath.Join(dir, DefaultFile)
	s, err := Open(cfg)
	require.NoError(err)
	require.IsType(&FileStore{}, s)
	require.NoError(s.Close())

	cfg.Identity.Backend = config.BackendBolt
	cfg.Identity.Path = filepath.Join(dir, "identity.db")
	s, err = Open(cfg)
	require.NoError(err)
	require.IsType(&BoltStore{}, s)
	require.NoError(s.Close())

	cfg.Identity.Backend = "sql"
	_, err = Open(cfg)
	require.Error(err)
}
