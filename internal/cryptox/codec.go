// Package cryptox implements the credential codec: authenticated symmetric
// encryption of user secrets and verification of presented plaintexts.
//
// Secrets are sealed, not hashed, so anyone holding the process key can
// recover them. That recoverability is a deliberate property of the current
// product behavior; see README before changing it.
package cryptox

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"github.com/avasiliev/accountkeeper/internal/logging"
	"golang.org/x/crypto/argon2"
)

// KeySize is the required codec key length (AES-256).
const KeySize = 32

const nonceSize = 12

// ErrInvalidKeySize is returned by NewCodec for keys that are not KeySize bytes.
var ErrInvalidKeySize = errors.New("codec key must be 32 bytes")

// DeriveKey stretches a configured passphrase into a KeySize-byte codec key
// using Argon2id. Same inputs always produce the same key, so already-sealed
// secrets stay verifiable across restarts.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// Codec seals and verifies user secrets under a single process-wide key.
// It is safe for concurrent use.
type Codec struct {
	aead   cipher.AEAD
	logger logging.Logger
}

// NewCodec builds a Codec from a KeySize-byte key. The key is expected to be
// present at startup; missing or short keys are a configuration error, never
// something to generate on the fly.
func NewCodec(key []byte, logger logging.Logger) (*Codec, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Codec{aead: aead, logger: logger.With("module", "codec")}, nil
}

// Seal encrypts plaintext with AES-GCM under the codec key and returns
// base64(nonce || ciphertext). A fresh random nonce is used per call.
func (c *Codec) Seal(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Verify decrypts the sealed blob and compares it against plaintext in
// constant time. Any failure along the way (bad base64, truncated blob,
// wrong key, tampering) is logged and reported as false; Verify never
// returns an error to the caller.
func (c *Codec) Verify(ctx context.Context, plaintext string, sealed string) bool {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		c.logger.Warn(ctx, "sealed secret is not valid base64", "error", err.Error())
		return false
	}
	if len(raw) < nonceSize {
		c.logger.Warn(ctx, "sealed secret too short")
		return false
	}

	decrypted, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		c.logger.Debug(ctx, "secret decryption failed", "error", err.Error())
		return false
	}

	return subtle.ConstantTimeCompare(decrypted, []byte(plaintext)) == 1
}
