// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package utils provides small file and address helpers.
package utils

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
)

// Exists returns true if f exists.  Errors other than non-existence are
// returned to the caller.
func Exists(f string) (bool, error) {
	_, err := os.Stat(f)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// WriteFileAtomic writes b to a temporary file next to f and renames it
// over f, so that readers never observe a partial file.
func WriteFileAtomic(f string, b []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(f), "."+filepath.Base(f)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err = tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, f)
}

// EnsureAddrIPPort returns nil iff the address is a raw IP + Port combination.
func EnsureAddrIPPort(a string) error {
	host, port, err := net.SplitHostPort(a)
	if err != nil {
		return err
	}
	if net.ParseIP(host) == nil {
		return fmt.Errorf("address '%v' is not an IP", host)
	}
	return EnsurePort(port)
}

// EnsurePort returns nil iff p is a decimal port in 1-65535.
func EnsurePort(p string) error {
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return fmt.Errorf("port '%v' is invalid: %v", p, err)
	}
	if n == 0 {
		return fmt.Errorf("port '%v' is invalid", p)
	}
	return nil
}
