// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/katzenpost/backup/core/wire/commands"
)

var errFrame = errors.New("failed to frame file")

// BaseName returns the final element of path, accepting both `/` and `\`
// as separators.
func BaseName(path string) string {
	return path[strings.LastIndexAny(path, `/\`)+1:]
}

// Framer splits a FileSend request into its header and body so that the
// body can be written in packet sized segments.
type Framer struct {
	req *commands.FileSend
}

// NewFramer returns a Framer uploading ciphertext under the base name of
// path.
func NewFramer(path string, ciphertext []byte) *Framer {
	return &Framer{
		req: &commands.FileSend{
			FileName: BaseName(path),
			Content:  ciphertext,
		},
	}
}

// FileName returns the file name sent on the wire.
func (f *Framer) FileName() string {
	return f.req.FileName
}

// Frame returns the serialized request header and body.
func (f *Framer) Frame(uid [commands.UIDLength]byte) ([]byte, []byte, error) {
	body, err := f.req.Payload()
	if err != nil {
		return nil, nil, err
	}
	h, err := commands.NewRequestHeader(uid, f.req.Code(), len(body))
	if err != nil {
		return nil, nil, err
	}
	return h.ToBytes(), body, nil
}

// Send writes the header as one unit, then the body in segments of at
// most commands.PacketLength bytes.
func (f *Framer) Send(t Transport, uid [commands.UIDLength]byte) error {
	header, body, err := f.Frame(uid)
	if err != nil {
		return fmt.Errorf("%w: %w", errFrame, err)
	}
	return t.SendChunked(header, body, commands.PacketLength)
}
