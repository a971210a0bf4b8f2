// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	dir := t.TempDir()
	f := filepath.Join(dir, "me.info")

	ok, err := Exists(f)
	require.NoError(err)
	require.False(ok)

	require.NoError(WriteFileAtomic(f, []byte("first"), 0600))
	require.NoError(WriteFileAtomic(f, []byte("second"), 0600))

	ok, err = Exists(f)
	require.NoError(err)
	require.True(ok)

	b, err := os.ReadFile(f)
	require.NoError(err)
	require.Equal("second", string(b))

	fi, err := os.Stat(f)
	require.NoError(err)
	require.Equal(os.FileMode(0600), fi.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(err)
	require.Len(entries, 1, "temporary files must not be left behind")
}

func TestEnsureAddrIPPort(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.NoError(EnsureAddrIPPort("127.0.0.1:9050"))
	require.NoError(EnsureAddrIPPort("[::1]:1234"))
	require.Error(EnsureAddrIPPort("localhost:9050"))
	require.Error(EnsureAddrIPPort("127.0.0.1"))
	require.Error(EnsureAddrIPPort("127.0.0.1:0"))
	require.Error(EnsureAddrIPPort("127.0.0.1:70000"))
}
