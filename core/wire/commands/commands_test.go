// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package commands

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katzenpost/hpqc/rand"
	"github.com/katzenpost/hpqc/util"
)

func testUID(t *testing.T) [UIDLength]byte {
	var uid [UIDLength]byte
	_, err := rand.Reader.Read(uid[:])
	require.NoError(t, err)
	return uid
}

func TestRequestHeader(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	uid := testUID(t)
	h, err := NewRequestHeader(uid, LoginCode, 255)
	require.NoError(err)

	b := h.ToBytes()
	require.Len(b, RequestHeaderLength)
	require.Equal(uid[:], b[:UIDLength])
	require.Equal(byte(Version), b[16])
	require.Equal(uint16(1102), binary.LittleEndian.Uint16(b[17:19]))
	require.Equal(uint32(255), binary.LittleEndian.Uint32(b[19:23]))

	h2, err := RequestHeaderFromBytes(b)
	require.NoError(err)
	require.Equal(h, h2)

	_, err = RequestHeaderFromBytes(b[:RequestHeaderLength-1])
	require.ErrorIs(err, ErrShortRequest)

	_, err = NewRequestHeader(uid, LoginCode, -1)
	require.Error(err)
}

func TestRegistration(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	var zero [UIDLength]byte
	b, err := Encode(zero, &Registration{Name: "alice"})
	require.NoError(err)
	require.Len(b, RequestHeaderLength+NameLength)
	require.True(util.CtIsZero(b[:UIDLength]), "Registration: UID must be zero")

	h, err := RequestHeaderFromBytes(b)
	require.NoError(err)
	require.Equal(RegistrationCode, h.Code)
	require.Equal(uint32(NameLength), h.PayloadSize)

	payload := b[RequestHeaderLength:]
	require.Equal([]byte("alice"), payload[:5])
	require.True(util.CtIsZero(payload[5:]), "Registration: name padding must be zero")

	name, err := NameFromBytes(payload)
	require.NoError(err)
	require.Equal("alice", name)
}

func TestNameLimits(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	_, err := (&Login{Name: strings.Repeat("a", MaxNameLength)}).Payload()
	require.NoError(err)

	_, err = (&Login{Name: strings.Repeat("a", MaxNameLength+1)}).Payload()
	require.ErrorIs(err, ErrFieldTooLong)

	_, err = (&Registration{Name: strings.Repeat("a", MaxNameLength+1)}).Payload()
	require.ErrorIs(err, ErrFieldTooLong)
}

func TestPublicKey(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	key := make([]byte, PublicKeyLength)
	_, err := rand.Reader.Read(key)
	require.NoError(err)

	uid := testUID(t)
	b, err := Encode(uid, &PublicKey{Name: "bob", Key: key})
	require.NoError(err)
	require.Len(b, RequestHeaderLength+NameLength+PublicKeyLength)
	require.Equal(uid[:], b[:UIDLength])
	require.Equal(key, b[RequestHeaderLength+NameLength:])

	_, err = (&PublicKey{Name: "bob", Key: key[:PublicKeyLength-1]}).Payload()
	require.Error(err)
}

func TestFileSend(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	content := make([]byte, 5000)
	_, err := rand.Reader.Read(content)
	require.NoError(err)

	req := &FileSend{FileName: "report.pdf", Content: content}
	payload, err := req.Payload()
	require.NoError(err)
	require.Len(payload, ContentSizeLength+FileNameLength+len(content))
	require.Equal(uint32(len(content)), binary.LittleEndian.Uint32(payload[:4]))
	require.True(util.CtIsZero(payload[4+len("report.pdf"):4+FileNameLength]), "FileSend: name padding must be zero")

	req2, err := FileSendFromBytes(payload)
	require.NoError(err)
	require.Equal(req, req2)

	_, err = FileSendFromBytes(payload[:len(payload)-1])
	require.ErrorIs(err, ErrShortPayload)

	_, err = (&FileSend{FileName: strings.Repeat("f", FileNameLength)}).Payload()
	require.ErrorIs(err, ErrFieldTooLong)
}

func TestCRCNotices(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	for _, req := range []Request{
		&CRCValid{FileName: "a.txt"},
		&CRCFailed{FileName: "a.txt"},
		&FourFailedCRC{FileName: "a.txt"},
	} {
		b, err := req.Payload()
		require.NoError(err, req.Code().String())
		require.Len(b, FileNameLength, req.Code().String())
		require.Equal("a.txt", getString(b))
	}
	require.Equal(CRCValidCode, (&CRCValid{}).Code())
	require.Equal(CRCFailedCode, (&CRCFailed{}).Code())
	require.Equal(FourFailedCRCCode, (&FourFailedCRC{}).Code())
}

func TestDecode(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	uid := testUID(t)
	b := EncodeResponse(RegistrationSuccess, uid[:])
	packet := make([]byte, PacketLength)
	copy(packet, b)

	r, err := Decode(packet, len(packet))
	require.NoError(err)
	require.Equal(RegistrationSuccess, r.Code())
	require.Equal(uint32(UIDLength), r.Header.PayloadSize)
	require.Equal(uid[:], r.Payload)

	uid2, err := RegistrationSuccessFromBytes(r.Payload)
	require.NoError(err)
	require.Equal(uid, uid2)
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	payload := bytes.Repeat([]byte{0xa5}, 100)
	b := EncodeResponse(SendAESKey, payload)

	// Only 20 payload bytes arrived; the declared size is larger.
	r, err := Decode(b, ResponseHeaderLength+20)
	require.NoError(err)
	require.Equal(uint32(100), r.Header.PayloadSize)
	require.Equal(payload[:20], r.Payload)

	// n beyond the buffer is clamped.
	r, err = Decode(b, len(b)+100)
	require.NoError(err)
	require.Equal(payload, r.Payload)

	_, err = Decode(b, ResponseHeaderLength-1)
	require.ErrorIs(err, ErrShortResponse)

	_, err = Decode(nil, 0)
	require.ErrorIs(err, ErrShortResponse)
}

func TestDecodeVersionMismatch(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	b := EncodeResponse(Ack, nil)
	b[0] = Version + 1
	_, err := Decode(b, len(b))
	require.ErrorIs(err, ErrInvalidVersion)
}

func TestKeyResponse(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	r := &KeyResponse{
		UID:          testUID(t),
		EncryptedKey: bytes.Repeat([]byte{0x42}, 128),
	}
	r2, err := KeyResponseFromBytes(r.ToBytes())
	require.NoError(err)
	require.Equal(r, r2)

	_, err = KeyResponseFromBytes(r.UID[:])
	require.ErrorIs(err, ErrShortPayload)
}

func TestFileCRC(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	r := &FileCRCResponse{
		UID:         testUID(t),
		ContentSize: 4096,
		FileName:    "backup.tar",
		CRC:         0xdeadbeef,
	}
	b, err := r.ToBytes()
	require.NoError(err)
	require.Len(b, FileCRCLength)
	require.Equal(uint32(0xdeadbeef), binary.LittleEndian.Uint32(b[275:279]))

	r2, err := FileCRCFromBytes(b)
	require.NoError(err)
	require.Equal(r, r2)

	_, err = FileCRCFromBytes(b[:FileCRCLength-1])
	require.ErrorIs(err, ErrShortPayload)
}

func TestCodeStrings(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal("FileSend", FileSendCode.String())
	require.Equal("GeneralError", GeneralError.String())
	require.Equal("RequestCode(42)", RequestCode(42).String())
	require.Equal("ResponseCode(42)", ResponseCode(42).String())
}
