// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package common provides shared utilities for the backup CLI tools.
package common

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"charm.land/lipgloss/v2"
	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// ExecuteWithFang executes a cobra command using fang.  The command
// context is cancelled on SIGINT or SIGTERM.  A failed command exits the
// process with status 1.
func ExecuteWithFang(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := fang.Execute(
		ctx,
		cmd,
		fang.WithVersion(versioninfo.Short()),
		fang.WithErrorHandler(ErrorHandlerWithUsage(cmd)),
	)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// ErrorHandlerWithUsage creates an error handler that follows usage
// errors with the command help, and prints every other error as a fatal
// error.
func ErrorHandlerWithUsage(cmd *cobra.Command) fang.ErrorHandler {
	return func(w io.Writer, styles fang.Styles, err error) {
		if !isUsageError(err) {
			_, _ = fmt.Fprintln(w, lipgloss.JoinHorizontal(
				lipgloss.Left,
				styles.ErrorHeader.SetString("Fatal Error:").String(),
				styles.ErrorText.UnsetWidth().PaddingLeft(1).Render(err.Error()),
			))
			_, _ = fmt.Fprintln(w)
			return
		}

		_, _ = fmt.Fprintln(w, styles.ErrorHeader.String())
		_, _ = fmt.Fprintln(w, styles.ErrorText.Render(err.Error()+"."))
		_, _ = fmt.Fprintln(w)
		if helpFunc := cmd.HelpFunc(); helpFunc != nil {
			cmd.SetOut(colorprofile.NewWriter(w, os.Environ()))
			helpFunc(cmd, []string{})
		}
	}
}

// isUsageError determines if an error is related to CLI usage and should
// trigger display of the usage help.
func isUsageError(err error) bool {
	s := err.Error()
	for _, prefix := range []string{
		"flag needs an argument:",
		"unknown flag:",
		"unknown shorthand flag:",
		"unknown command",
		"invalid argument",
		"required flag",
		"accepts",
		"arg(s), received",
		"if any flags in the group",
		"none of the others can be",
		"at least one of the flags",
	} {
		if strings.Contains(s, prefix) {
			return true
		}
	}
	return false
}
