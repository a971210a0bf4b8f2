// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package commands

import "encoding/binary"

// RegistrationSuccessFromBytes returns the UID assigned by a
// RegistrationSuccess payload.
func RegistrationSuccessFromBytes(b []byte) ([UIDLength]byte, error) {
	var uid [UIDLength]byte
	if len(b) < UIDLength {
		return uid, ErrShortPayload
	}
	copy(uid[:], b[:UIDLength])
	return uid, nil
}

// KeyResponse is the payload of SendAESKey and LoginSuccessSendAES.
type KeyResponse struct {
	UID          [UIDLength]byte
	EncryptedKey []byte
}

// KeyResponseFromBytes de-serializes a KeyResponse.
func KeyResponseFromBytes(b []byte) (*KeyResponse, error) {
	if len(b) <= UIDLength {
		return nil, ErrShortPayload
	}
	r := new(KeyResponse)
	copy(r.UID[:], b[:UIDLength])
	r.EncryptedKey = make([]byte, len(b)-UIDLength)
	copy(r.EncryptedKey, b[UIDLength:])
	return r, nil
}

// ToBytes serializes the KeyResponse.
func (r *KeyResponse) ToBytes() []byte {
	out := make([]byte, UIDLength, UIDLength+len(r.EncryptedKey))
	copy(out, r.UID[:])
	return append(out, r.EncryptedKey...)
}

// FileCRCResponse is the payload of FileCRC: the server's view of the
// received file and its checksum of the decrypted content.
type FileCRCResponse struct {
	UID         [UIDLength]byte
	ContentSize uint32
	FileName    string
	CRC         uint32
}

// FileCRCFromBytes de-serializes a FileCRCResponse.
func FileCRCFromBytes(b []byte) (*FileCRCResponse, error) {
	if len(b) < FileCRCLength {
		return nil, ErrShortPayload
	}
	r := new(FileCRCResponse)
	copy(r.UID[:], b[:UIDLength])
	b = b[UIDLength:]
	r.ContentSize = binary.LittleEndian.Uint32(b[:ContentSizeLength])
	b = b[ContentSizeLength:]
	r.FileName = getString(b[:FileNameLength])
	r.CRC = binary.LittleEndian.Uint32(b[FileNameLength : FileNameLength+CRCLength])
	return r, nil
}

// ToBytes serializes the FileCRCResponse.
func (r *FileCRCResponse) ToBytes() ([]byte, error) {
	out := make([]byte, FileCRCLength)
	copy(out[:UIDLength], r.UID[:])
	off := UIDLength
	binary.LittleEndian.PutUint32(out[off:off+ContentSizeLength], r.ContentSize)
	off += ContentSizeLength
	if err := putString(out[off:off+FileNameLength], r.FileName); err != nil {
		return nil, err
	}
	off += FileNameLength
	binary.LittleEndian.PutUint32(out[off:], r.CRC)
	return out, nil
}

// FileSendFromBytes de-serializes a FileSend payload.
func FileSendFromBytes(b []byte) (*FileSend, error) {
	if len(b) < fileSendBaseLength {
		return nil, ErrShortPayload
	}
	size := binary.LittleEndian.Uint32(b[:ContentSizeLength])
	r := &FileSend{
		FileName: getString(b[ContentSizeLength:fileSendBaseLength]),
	}
	b = b[fileSendBaseLength:]
	if uint64(len(b)) < uint64(size) {
		return nil, ErrShortPayload
	}
	r.Content = make([]byte, size)
	copy(r.Content, b[:size])
	return r, nil
}

// NameFromBytes returns the NUL terminated name at the start of a
// Registration, Login or PublicKey payload.
func NameFromBytes(b []byte) (string, error) {
	if len(b) < NameLength {
		return "", ErrShortPayload
	}
	return getString(b[:NameLength]), nil
}
