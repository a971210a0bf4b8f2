// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package commands

import (
	"encoding/binary"
	"fmt"
	"math"
)

func namePayload(name string) ([]byte, error) {
	if len(name) > MaxNameLength {
		return nil, fmt.Errorf("%w: username is %d bytes, limit %d", ErrFieldTooLong, len(name), MaxNameLength)
	}
	out := make([]byte, NameLength)
	if err := putString(out, name); err != nil {
		return nil, err
	}
	return out, nil
}

func fileNamePayload(fileName string) ([]byte, error) {
	out := make([]byte, FileNameLength)
	if err := putString(out, fileName); err != nil {
		return nil, fmt.Errorf("%w: file name '%v'", err, fileName)
	}
	return out, nil
}

// Registration asks the server to register a new client.
type Registration struct {
	Name string
}

// Code implements the Request interface.
func (r *Registration) Code() RequestCode { return RegistrationCode }

// Payload implements the Request interface.
func (r *Registration) Payload() ([]byte, error) { return namePayload(r.Name) }

// Login asks the server to resume a previously registered client.  The
// client UID travels in the header.
type Login struct {
	Name string
}

// Code implements the Request interface.
func (r *Login) Code() RequestCode { return LoginCode }

// Payload implements the Request interface.
func (r *Login) Payload() ([]byte, error) { return namePayload(r.Name) }

// PublicKey sends the client RSA public key so that the server can
// return a wrapped session key.
type PublicKey struct {
	Name string
	Key  []byte
}

// Code implements the Request interface.
func (r *PublicKey) Code() RequestCode { return PublicKeyCode }

// Payload implements the Request interface.
func (r *PublicKey) Payload() ([]byte, error) {
	if len(r.Key) != PublicKeyLength {
		return nil, fmt.Errorf("wire: public key is %d bytes, expected %d", len(r.Key), PublicKeyLength)
	}
	name, err := namePayload(r.Name)
	if err != nil {
		return nil, err
	}
	return append(name, r.Key...), nil
}

// FileSend carries the encrypted file.
type FileSend struct {
	FileName string
	Content  []byte
}

// Code implements the Request interface.
func (r *FileSend) Code() RequestCode { return FileSendCode }

// Payload implements the Request interface.
func (r *FileSend) Payload() ([]byte, error) {
	if uint64(fileSendBaseLength)+uint64(len(r.Content)) > math.MaxUint32 {
		return nil, fmt.Errorf("wire: file content of %d bytes exceeds the protocol limit", len(r.Content))
	}
	out := make([]byte, fileSendBaseLength, fileSendBaseLength+len(r.Content))
	binary.LittleEndian.PutUint32(out[:ContentSizeLength], uint32(len(r.Content)))
	if err := putString(out[ContentSizeLength:], r.FileName); err != nil {
		return nil, fmt.Errorf("%w: file name '%v'", err, r.FileName)
	}
	return append(out, r.Content...), nil
}

// CRCValid acknowledges that the server checksum matched.
type CRCValid struct {
	FileName string
}

// Code implements the Request interface.
func (r *CRCValid) Code() RequestCode { return CRCValidCode }

// Payload implements the Request interface.
func (r *CRCValid) Payload() ([]byte, error) { return fileNamePayload(r.FileName) }

// CRCFailed notifies the server that the checksum did not match and
// that the file will be sent again.  The server does not answer it.
type CRCFailed struct {
	FileName string
}

// Code implements the Request interface.
func (r *CRCFailed) Code() RequestCode { return CRCFailedCode }

// Payload implements the Request interface.
func (r *CRCFailed) Payload() ([]byte, error) { return fileNamePayload(r.FileName) }

// FourFailedCRC notifies the server that the client is giving up on the
// file after the last checksum mismatch.
type FourFailedCRC struct {
	FileName string
}

// Code implements the Request interface.
func (r *FourFailedCRC) Code() RequestCode { return FourFailedCRCCode }

// Payload implements the Request interface.
func (r *FourFailedCRC) Payload() ([]byte, error) { return fileNamePayload(r.FileName) }
