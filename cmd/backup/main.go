// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// backup protocol client
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/katzenpost/backup/client"
	"github.com/katzenpost/backup/client/config"
	"github.com/katzenpost/backup/client/identity"
	"github.com/katzenpost/backup/client/instrument"
	"github.com/katzenpost/backup/client/transport"
	"github.com/katzenpost/backup/common"
	"github.com/katzenpost/backup/core/crypto"
	"github.com/katzenpost/backup/core/log"
)

// Config holds the command line configuration
type Config struct {
	ConfigFile       string
	TransferInfoFile string
	IdentityFile     string
}

// newRootCommand creates the root cobra command
func newRootCommand() *cobra.Command {
	var cfg Config

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Encrypted file backup client",
		Long: `The backup client uploads one file to a backup server over TCP.

On first use the client registers its username with the server and stores
the assigned identity and RSA private key, on later runs it logs in with the
stored identity.  The server returns an AES session key wrapped with the
client RSA key, the file is encrypted with it and uploaded, and the server
checksum is compared with the local one.  A mismatched checksum causes the
file to be sent again, up to four times.`,
		Example: `
  # Back up the file named in a TOML configuration
  backup --config client.toml

  # Use a legacy transfer.info file and the me.info identity
  backup --transfer-info transfer.info --identity me.info

  # Write a default configuration
  backup genconfig --out client.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCfg, err := loadConfig(cfg)
			if err != nil {
				return err
			}
			return runBackup(cmd.Context(), cmd.OutOrStdout(), clientCfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.ConfigFile, "config", "c", "",
		"path to the client configuration file (TOML format)")
	cmd.Flags().StringVarP(&cfg.TransferInfoFile, "transfer-info", "t", "",
		"path to a legacy three line transfer.info file")
	cmd.Flags().StringVarP(&cfg.IdentityFile, "identity", "i", "",
		"path to the identity file, overriding the configuration")

	cmd.MarkFlagsMutuallyExclusive("config", "transfer-info")
	cmd.MarkFlagsOneRequired("config", "transfer-info")

	cmd.AddCommand(newGenconfigCommand())
	return cmd
}

func newGenconfigCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "genconfig",
		Short: "Write a default client configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := config.Default().Marshal()
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			return os.WriteFile(out, b, 0600)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout if omitted")
	return cmd
}

func main() {
	rootCmd := newRootCommand()
	common.ExecuteWithFang(rootCmd)
}

func loadConfig(cfg Config) (*config.Config, error) {
	var (
		clientCfg *config.Config
		err       error
	)
	if cfg.ConfigFile != "" {
		clientCfg, err = config.LoadFile(cfg.ConfigFile)
	} else {
		clientCfg, err = config.LoadTransferInfo(cfg.TransferInfoFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %v", err)
	}
	if cfg.IdentityFile != "" {
		clientCfg.Identity.Path = cfg.IdentityFile
	}
	return clientCfg, nil
}

// runBackup performs one backup session
func runBackup(ctx context.Context, out io.Writer, cfg *config.Config) error {
	logBackend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %v", err)
	}
	defer logBackend.Close()

	if cfg.MetricsAddress != "" {
		srv, err := instrument.StartPrometheusListener(cfg.MetricsAddress, logBackend.GetLogger("backup/metrics"))
		if err != nil {
			return fmt.Errorf("failed to start metrics listener: %v", err)
		}
		defer srv.Close()
	}

	store, err := identity.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open identity store: %v", err)
	}
	defer store.Close()

	tr := transport.New(cfg, logBackend)
	defer tr.Close()

	s := client.NewSession(client.NewSessionConfig(cfg), tr, store, crypto.New(), logBackend)
	if err = s.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Backup of %v completed successfully.\n", client.BaseName(cfg.Transfer.FilePath))
	return nil
}
