// Package credential protects account secrets before they reach storage.
//
// Two strategies exist. The hash strategy (argon2id) is one-way and is the
// default. The cipher strategy (AES-GCM keyed from an operator secret) is
// reversible and kept for compatibility with stores written by older
// deployments. Every token carries a scheme tag, so Validate and Reveal
// dispatch on the token itself rather than on the active strategy.
package credential

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

// Strategy names accepted in Config.Strategy.
const (
	StrategyHash   = "hash"
	StrategyCipher = "cipher"
)

var (
	// ErrMissingKey is returned when the cipher strategy is active without a key.
	ErrMissingKey = errors.New("credential: secret key is required for the cipher strategy")
	// ErrFormat is returned for a protected token with a broken structure.
	ErrFormat = errors.New("credential: malformed protected token")
	// ErrUnknownScheme is returned for a token whose tag is not recognised.
	ErrUnknownScheme = errors.New("credential: unknown protection scheme")
	// ErrIrreversible is returned by Reveal for hashed tokens.
	ErrIrreversible = errors.New("credential: token cannot be revealed")
	// ErrInvalidConfig is returned for unusable strategy parameters.
	ErrInvalidConfig = errors.New("credential: invalid configuration")
)

// Config selects and parameterises the protection strategy.
type Config struct {
	// Strategy is StrategyHash (default) or StrategyCipher.
	Strategy string
	// SecretKey is the operator key string for the cipher strategy.
	SecretKey string
	// IVLength is the per-token nonce size of the cipher strategy. Defaults to 16.
	IVLength int
	// Hash tunes the argon2id work factor. Zero fields take defaults.
	Hash HashParams
}

// scheme is one protection strategy.
type scheme interface {
	tag() string
	protect(secret string) (string, error)
	validate(secret string, fields []string) (bool, error)
}

// Protector converts secrets into tagged tokens and validates them.
// It is safe for concurrent use.
type Protector struct {
	active string
	hasher *Hasher
	cipher *Cipher
}

// New builds a Protector from cfg. A cipher key, when present, is loaded
// even under the hash strategy so that older cipher tokens stay readable.
func New(cfg Config) (*Protector, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyHash
	}

	hasher, err := NewHasher(cfg.Hash)
	if err != nil {
		return nil, err
	}
	p := &Protector{active: cfg.Strategy, hasher: hasher}

	switch cfg.Strategy {
	case StrategyHash:
		if cfg.SecretKey != "" {
			if p.cipher, err = NewCipher(cfg.SecretKey, cfg.IVLength); err != nil {
				return nil, err
			}
		}
	case StrategyCipher:
		if cfg.SecretKey == "" {
			return nil, ErrMissingKey
		}
		if p.cipher, err = NewCipher(cfg.SecretKey, cfg.IVLength); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, cfg.Strategy)
	}
	return p, nil
}

// Strategy returns the name of the active strategy.
func (p *Protector) Strategy() string {
	return p.active
}

// Reversible reports whether tokens produced by Protect can be revealed.
func (p *Protector) Reversible() bool {
	return p.active == StrategyCipher
}

// Protect returns the stored form of secret under the active strategy.
func (p *Protector) Protect(secret string) (string, error) {
	if p.active == StrategyCipher {
		return p.cipher.protect(secret)
	}
	return p.hasher.protect(secret)
}

// Validate reports whether secret matches token. The comparison strategy is
// chosen by the token's tag.
func (p *Protector) Validate(secret, token string) (bool, error) {
	s, fields, err := p.lookup(token)
	if err != nil {
		return false, err
	}
	return s.validate(secret, fields)
}

// Reveal recovers the plaintext behind a cipher token.
func (p *Protector) Reveal(token string) (string, error) {
	s, fields, err := p.lookup(token)
	if err != nil {
		return "", err
	}
	c, ok := s.(*Cipher)
	if !ok {
		return "", ErrIrreversible
	}
	return c.reveal(fields)
}

// NeedsUpgrade reports whether token was written by a strategy other than
// the active one, or by the hash strategy with weaker parameters.
func (p *Protector) NeedsUpgrade(token string) (bool, error) {
	s, fields, err := p.lookup(token)
	if err != nil {
		return false, err
	}
	if p.active == StrategyCipher {
		return s.tag() != cipherTag, nil
	}
	if s.tag() != hashTag {
		return true, nil
	}
	return p.hasher.weaker(fields)
}

func (p *Protector) lookup(token string) (scheme, []string, error) {
	tag, fields, err := split(token)
	if err != nil {
		return nil, nil, err
	}
	switch tag {
	case hashTag:
		return p.hasher, fields, nil
	case cipherTag:
		if p.cipher == nil {
			return nil, nil, fmt.Errorf("%w: %s token with no key configured", ErrUnknownScheme, tag)
		}
		return p.cipher, fields, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownScheme, tag)
}

// split breaks "$tag$f1$f2..." into the tag and the remaining fields.
func split(token string) (string, []string, error) {
	if !strings.HasPrefix(token, "$") {
		return "", nil, ErrFormat
	}
	parts := strings.Split(token[1:], "$")
	if len(parts) < 2 || parts[0] == "" {
		return "", nil, ErrFormat
	}
	return parts[0], parts[1:], nil
}

func equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
