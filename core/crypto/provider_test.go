// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package crypto

import (
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katzenpost/hpqc/rand"
)

func TestKeypair(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	p := New()
	public, private, err := p.GenerateKeypair()
	require.NoError(err)
	require.Len(public, PublicKeySize)

	derived, err := p.PublicKey(private)
	require.NoError(err)
	require.Equal(public, derived)

	key := make([]byte, SessionKeySize)
	_, err = rand.Reader.Read(key)
	require.NoError(err)

	ct, err := p.WrapKey(public, key)
	require.NoError(err)
	require.Len(ct, KeyBits/8)

	key2, err := p.DecryptKey(private, ct)
	require.NoError(err)
	require.Equal(key, key2)

	ct[0] ^= 0xff
	_, err = p.DecryptKey(private, ct)
	require.Error(err)

	_, err = p.PublicKey([]byte("not a key"))
	require.Error(err)
}

func TestDecryptKeyRejectsWrongSize(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	p := New()
	public, private, err := p.GenerateKeypair()
	require.NoError(err)

	ct, err := p.WrapKey(public, make([]byte, 32))
	require.NoError(err)
	_, err = p.DecryptKey(private, ct)
	require.ErrorIs(err, ErrInvalidKeySize)
}

func TestEncrypt(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	p := New()
	key := make([]byte, SessionKeySize)
	_, err := rand.Reader.Read(key)
	require.NoError(err)

	for _, n := range []int{0, 1, 15, 16, 17, 4096, 5000} {
		pt := make([]byte, n)
		_, err = rand.Reader.Read(pt)
		require.NoError(err)

		ct, err := p.Encrypt(key, pt)
		require.NoError(err)
		require.NotZero(len(ct))
		require.Zero(len(ct) % aes.BlockSize)
		require.Equal((n/aes.BlockSize+1)*aes.BlockSize, len(ct))

		pt2, err := p.Decrypt(key, ct)
		require.NoError(err)
		require.Equal(pt, pt2)
	}

	_, err = p.Encrypt(key[:8], []byte("x"))
	require.ErrorIs(err, ErrInvalidKeySize)
}

func TestEncryptDeterministic(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	// A zero IV makes identical inputs encrypt identically.
	p := New()
	key := make([]byte, SessionKeySize)
	a, err := p.Encrypt(key, []byte("hello world"))
	require.NoError(err)
	b, err := p.Encrypt(key, []byte("hello world"))
	require.NoError(err)
	require.Equal(a, b)
}

func TestChecksum(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	p := New()
	require.Equal(uint32(0), p.Checksum(nil))
	require.Equal(uint32(0xcbf43926), p.Checksum([]byte("123456789")))

	buf := make([]byte, 1024)
	_, err := rand.Reader.Read(buf)
	require.NoError(err)
	sum := p.Checksum(buf)
	require.Equal(sum, p.Checksum(buf))

	for i := range buf {
		buf[i] ^= 0x01
		require.NotEqual(sum, p.Checksum(buf), "flip at %d", i)
		buf[i] ^= 0x01
	}
}
