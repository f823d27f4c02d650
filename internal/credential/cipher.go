package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	cipherTag       = "aesgcm"
	cipherVersion   = "v=1"
	defaultIVLength = 16
	minIVLength     = 12
)

// Cipher is the reversible strategy: AES-256-GCM with the key derived as the
// SHA-256 digest of the operator key string. Tokens look like
//
//	$aesgcm$v=1$<nonce>$<ciphertext>
//
// The nonce is random per call and is not secret.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the key from secretKey. ivLength of 0 means 16 bytes.
func NewCipher(secretKey string, ivLength int) (*Cipher, error) {
	if secretKey == "" {
		return nil, ErrMissingKey
	}
	if ivLength == 0 {
		ivLength = defaultIVLength
	}
	if ivLength < minIVLength {
		return nil, fmt.Errorf("%w: iv length %d is below %d", ErrInvalidConfig, ivLength, minIVLength)
	}

	key := sha256.Sum256([]byte(secretKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) tag() string { return cipherTag }

func (c *Cipher) protect(secret string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	ct := c.aead.Seal(nil, nonce, []byte(secret), nil)

	return fmt.Sprintf("$%s$%s$%s$%s",
		cipherTag,
		cipherVersion,
		base64.RawStdEncoding.EncodeToString(nonce),
		base64.RawStdEncoding.EncodeToString(ct),
	), nil
}

func (c *Cipher) reveal(fields []string) (string, error) {
	if len(fields) != 3 || fields[0] != cipherVersion {
		return "", ErrFormat
	}
	nonce, err := base64.RawStdEncoding.DecodeString(fields[1])
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: nonce", ErrFormat)
	}
	ct, err := base64.RawStdEncoding.DecodeString(fields[2])
	if err != nil || len(ct) < c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext", ErrFormat)
	}
	plain, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return string(plain), nil
}

func (c *Cipher) validate(secret string, fields []string) (bool, error) {
	plain, err := c.reveal(fields)
	if err != nil {
		return false, err
	}
	return equal([]byte(plain), []byte(secret)), nil
}
