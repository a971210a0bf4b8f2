// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katzenpost/backup/client/config"
)

func TestGenconfig(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	out := filepath.Join(t.TempDir(), "client.toml")
	cmd := newRootCommand()
	cmd.SetArgs([]string{"genconfig", "--out", out})
	require.NoError(cmd.Execute())

	cfg, err := config.LoadFile(out)
	require.NoError(err)
	require.Equal(config.Default().Server, cfg.Server)

	var buf bytes.Buffer
	cmd = newRootCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"genconfig"})
	require.NoError(cmd.Execute())
	require.Contains(buf.String(), "[Server]")
}

func TestRootFlags(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	cmd := newRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{})
	require.Error(cmd.Execute())

	cmd = newRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--config", "a.toml", "--transfer-info", "transfer.info"})
	require.Error(cmd.Execute())
}

func TestLoadConfigOverride(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	dir := t.TempDir()
	f := filepath.Join(dir, config.TransferInfoFile)
	require.NoError(os.WriteFile(f, []byte("127.0.0.1:1234\nalice\nfile.txt\n"), 0600))

	cfg, err := loadConfig(Config{TransferInfoFile: f, IdentityFile: filepath.Join(dir, "id.info")})
	require.NoError(err)
	require.Equal(filepath.Join(dir, "id.info"), cfg.Identity.Path)

	_, err = loadConfig(Config{ConfigFile: filepath.Join(dir, "missing.toml")})
	require.Error(err)
}
