package credential

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const hashTag = "argon2id"

// HashParams tunes argon2id. Memory is in KiB.
type HashParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHashParams follows the OWASP argon2id baseline.
var DefaultHashParams = HashParams{
	Memory:      19 * 1024,
	Time:        2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Hasher is the one-way argon2id strategy. Tokens use the PHC string format:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
type Hasher struct {
	params HashParams
}

// NewHasher fills zero fields of params with defaults and validates them.
func NewHasher(params HashParams) (*Hasher, error) {
	if params.Memory == 0 {
		params.Memory = DefaultHashParams.Memory
	}
	if params.Time == 0 {
		params.Time = DefaultHashParams.Time
	}
	if params.Parallelism == 0 {
		params.Parallelism = DefaultHashParams.Parallelism
	}
	if params.SaltLength == 0 {
		params.SaltLength = DefaultHashParams.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = DefaultHashParams.KeyLength
	}
	if params.Memory < 8*uint32(params.Parallelism) {
		return nil, fmt.Errorf("%w: argon2 memory must be at least 8*parallelism KiB", ErrInvalidConfig)
	}
	if params.SaltLength < 8 || params.KeyLength < 16 {
		return nil, fmt.Errorf("%w: argon2 salt or key too short", ErrInvalidConfig)
	}
	return &Hasher{params: params}, nil
}

func (h *Hasher) tag() string { return hashTag }

func (h *Hasher) protect(secret string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	sum := argon2.IDKey([]byte(secret), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		hashTag,
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

func (h *Hasher) validate(secret string, fields []string) (bool, error) {
	parsed, err := parseHash(fields)
	if err != nil {
		return false, err
	}
	sum := argon2.IDKey([]byte(secret), parsed.salt, parsed.params.Time, parsed.params.Memory,
		parsed.params.Parallelism, uint32(len(parsed.sum)))
	return equal(sum, parsed.sum), nil
}

// weaker reports whether the token's parameters are below the configured ones.
func (h *Hasher) weaker(fields []string) (bool, error) {
	parsed, err := parseHash(fields)
	if err != nil {
		return false, err
	}
	p := parsed.params
	return p.Memory < h.params.Memory ||
		p.Time < h.params.Time ||
		p.Parallelism < h.params.Parallelism ||
		uint32(len(parsed.sum)) != h.params.KeyLength, nil
}

type parsedHash struct {
	params HashParams
	salt   []byte
	sum    []byte
}

func parseHash(fields []string) (parsedHash, error) {
	if len(fields) != 4 {
		return parsedHash{}, ErrFormat
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil || version != argon2.Version {
		return parsedHash{}, fmt.Errorf("%w: unsupported argon2 version", ErrFormat)
	}

	var out parsedHash
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d",
		&out.params.Memory, &out.params.Time, &out.params.Parallelism); err != nil {
		return parsedHash{}, fmt.Errorf("%w: argon2 parameters", ErrFormat)
	}
	if out.params.Memory == 0 || out.params.Time == 0 || out.params.Parallelism == 0 {
		return parsedHash{}, fmt.Errorf("%w: argon2 parameters", ErrFormat)
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(fields[2]); err != nil || len(out.salt) == 0 {
		return parsedHash{}, fmt.Errorf("%w: salt", ErrFormat)
	}
	if out.sum, err = base64.RawStdEncoding.DecodeString(fields[3]); err != nil || len(out.sum) == 0 {
		return parsedHash{}, fmt.Errorf("%w: hash", ErrFormat)
	}
	out.params.SaltLength = uint32(len(out.salt))
	out.params.KeyLength = uint32(len(out.sum))
	return out, nil
}
