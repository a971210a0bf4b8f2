// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package crypto provides the primitives used by the backup client:
// RSA-1024 key wrapping, AES-128-CBC file encryption and CRC32 checksums.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math/big"

	"github.com/katzenpost/hpqc/rand"
)

const (
	// KeyBits is the RSA modulus size.
	KeyBits = 1024

	// PublicExponent is the RSA public exponent.  With a 1024 bit
	// modulus it yields a 160 byte SubjectPublicKeyInfo encoding.
	PublicExponent = 17

	// PublicKeySize is the size of the DER encoded public key.
	PublicKeySize = 160

	// SessionKeySize is the AES-128 key size.
	SessionKeySize = 16
)

var (
	// ErrInvalidKeySize is returned when a session key is not 16 bytes.
	ErrInvalidKeySize = errors.New("crypto: invalid session key size")

	// ErrNotRSAKey is returned when a decoded private key is not RSA.
	ErrNotRSAKey = errors.New("crypto: private key is not RSA")

	zeroIV [aes.BlockSize]byte
)

// Provider implements the client crypto operations.
type Provider struct {
	rng io.Reader
}

// New returns a Provider drawing entropy from the hpqc reader.
func New() *Provider {
	return &Provider{rng: rand.Reader}
}

// NewWithReader returns a Provider drawing entropy from r.
func NewWithReader(r io.Reader) *Provider {
	return &Provider{rng: r}
}

// GenerateKeypair returns a fresh DER SubjectPublicKeyInfo public key and
// the matching PKCS#8 private key.
func (p *Provider) GenerateKeypair() ([]byte, []byte, error) {
	priv, err := generateKey(p.rng, KeyBits)
	if err != nil {
		return nil, nil, err
	}
	public, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	if len(public) != PublicKeySize {
		return nil, nil, fmt.Errorf("crypto: public key encodes to %d bytes, expected %d", len(public), PublicKeySize)
	}
	private, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	return public, private, nil
}

// PublicKey derives the DER public key from a PKCS#8 private key.
func (p *Provider) PublicKey(private []byte) ([]byte, error) {
	priv, err := parsePrivateKey(private)
	if err != nil {
		return nil, err
	}
	return x509.MarshalPKIXPublicKey(&priv.PublicKey)
}

// DecryptKey unwraps a session key with RSA-OAEP (SHA-1).
func (p *Provider) DecryptKey(private, ciphertext []byte) ([]byte, error) {
	priv, err := parsePrivateKey(private)
	if err != nil {
		return nil, err
	}
	key, err := rsa.DecryptOAEP(sha1.New(), nil, priv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to decrypt session key: %w", err)
	}
	if len(key) != SessionKeySize {
		return nil, ErrInvalidKeySize
	}
	return key, nil
}

// WrapKey encrypts a session key to a DER public key with RSA-OAEP
// (SHA-1).  It is the server side counterpart of DecryptKey.
func (p *Provider) WrapKey(public, key []byte) ([]byte, error) {
	pub, err := x509.ParsePKIXPublicKey(public)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return rsa.EncryptOAEP(sha1.New(), p.rng, rsaPub, key, nil)
}

// Encrypt encrypts plaintext with AES-128-CBC, a zero IV and PKCS#7
// padding.  The output is always a non-zero multiple of the block size.
func (p *Provider) Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}
	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	out := make([]byte, len(plaintext)+padLen)
	copy(out, plaintext)
	for i := len(plaintext); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	cipher.NewCBCEncrypter(block, zeroIV[:]).CryptBlocks(out, out)
	return out, nil
}

// Decrypt reverses Encrypt.
func (p *Provider) Decrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("crypto: ciphertext is not a multiple of the block size")
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV[:]).CryptBlocks(out, ciphertext)
	padLen := int(out[len(out)-1])
	if padLen == 0 || padLen > aes.BlockSize {
		return nil, errors.New("crypto: invalid padding")
	}
	for _, b := range out[len(out)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("crypto: invalid padding")
		}
	}
	return out[:len(out)-padLen], nil
}

// Checksum returns the CRC-32 (IEEE) of b.
func (p *Provider) Checksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

func newCipher(key []byte) (cipher.Block, error) {
	if len(key) != SessionKeySize {
		return nil, ErrInvalidKeySize
	}
	return aes.NewCipher(key)
}

func parsePrivateKey(private []byte) (*rsa.PrivateKey, error) {
	k, err := x509.ParsePKCS8PrivateKey(private)
	if err != nil {
		return nil, err
	}
	priv, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return priv, nil
}

// generateKey builds a two prime RSA key with PublicExponent, which
// crypto/rsa.GenerateKey does not allow choosing.
func generateKey(r io.Reader, bits int) (*rsa.PrivateKey, error) {
	e := big.NewInt(PublicExponent)
	one := big.NewInt(1)
	for {
		p, err := crand.Prime(r, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := crand.Prime(r, bits-bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		if n.BitLen() != bits {
			continue
		}
		pm1 := new(big.Int).Sub(p, one)
		qm1 := new(big.Int).Sub(q, one)
		phi := new(big.Int).Mul(pm1, qm1)
		d := new(big.Int).ModInverse(e, phi)
		if d == nil {
			continue
		}
		priv := &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: n, E: PublicExponent},
			D:         d,
			Primes:    []*big.Int{p, q},
		}
		priv.Precompute()
		if err := priv.Validate(); err != nil {
			return nil, err
		}
		return priv, nil
	}
}
