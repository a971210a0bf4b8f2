// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// TransferInfoFile is the conventional name of the legacy transfer file.
const TransferInfoFile = "transfer.info"

// LoadTransferInfo reads a legacy three line transfer file:
//
//	host:port
//	username
//	file path
//
// Trailing CR and LF are stripped per line, so the last line need not be
// terminated.  The remaining sections take their defaults.
func LoadTransferInfo(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return ParseTransferInfo(b)
}

// ParseTransferInfo parses the body of a legacy transfer file.
func ParseTransferInfo(b []byte) (*Config, error) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() && len(lines) < 3 {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r\n"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < 3 {
		return nil, fmt.Errorf("config: transfer info has %d lines, expected 3", len(lines))
	}

	host, port, err := net.SplitHostPort(lines[0])
	if err != nil {
		return nil, fmt.Errorf("config: transfer info server '%v' is invalid: %v", lines[0], err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("config: transfer info port '%v' is invalid", port)
	}

	cfg := &Config{
		Server: &Server{
			Address: host,
			Port:    p,
		},
		Transfer: &Transfer{
			Username: lines[1],
			FilePath: lines[2],
		},
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
