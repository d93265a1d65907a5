package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// ErrMalformedHash is returned when a stored hash is not a supported PHC string.
var ErrMalformedHash = errors.New("malformed password hash")

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns interactive-login parameters: 64 MiB, 3 passes, 2 lanes.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords with Argon2id.
type Hasher struct {
	config Config
}

type phc struct {
	params Config
	salt   []byte
	hash   []byte
}

// NewHasher validates cfg against the package minimums.
func NewHasher(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return &Hasher{config: cfg}, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash derives a key from plain with a fresh random salt and returns it in PHC form:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Empty passwords are rejected.
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password must not be empty")
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches encoded. A malformed encoded value returns
// [ErrMalformedHash], never a match.
func (h *Hasher) Verify(plain, encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(plain), p.salt, p.params.Time, p.params.Memory, p.params.Parallelism, p.params.KeyLength)
	return subtle.ConstantTimeCompare(key, p.hash) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters than h.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return p.params.Memory < h.config.Memory ||
		p.params.Time < h.config.Time ||
		p.params.Parallelism < h.config.Parallelism ||
		p.params.KeyLength != h.config.KeyLength, nil
}

func parsePHC(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return phc{}, fmt.Errorf("%w: expected %s PHC string", ErrMalformedHash, algorithmID)
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return phc{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, parts[2])
	}

	var (
		out  phc
		seen int
	)
	for _, pair := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return phc{}, fmt.Errorf("%w: parameter %q", ErrMalformedHash, pair)
		}
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return phc{}, fmt.Errorf("%w: parameter %q", ErrMalformedHash, pair)
		}
		switch name {
		case "m":
			out.params.Memory = uint32(v)
		case "t":
			out.params.Time = uint32(v)
		case "p":
			if v > 255 {
				return phc{}, fmt.Errorf("%w: parallelism %d", ErrMalformedHash, v)
			}
			out.params.Parallelism = uint8(v)
		default:
			return phc{}, fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, name)
		}
		seen++
	}
	if seen != 3 || out.params.Memory < minMemoryKB || out.params.Time < minTimeCost || out.params.Parallelism < minParallelism {
		return phc{}, fmt.Errorf("%w: invalid cost parameters", ErrMalformedHash)
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return phc{}, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if out.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.hash) < int(minKeyLength) {
		return phc{}, fmt.Errorf("%w: hash", ErrMalformedHash)
	}
	out.params.SaltLength = uint32(len(out.salt))
	out.params.KeyLength = uint32(len(out.hash))

	return out, nil
}
