package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidAPIKeyHash         = errors.New("invalid api key hash format")
	ErrIncompatibleAPIKeyVersion = errors.New("incompatible api key hash version")
	// ErrInvalidAPIKey is returned when a presented key does not match the stored hash.
	ErrInvalidAPIKey = errors.New("application: invalid api key")
)

// Argon2idParams tunes the key derivation used for API key hashes.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashAPIKey derives an encoded argon2id hash for the key. The output is what the
// AUTOECOLE_API_KEY_HASH variable expects.
func HashAPIKey(key string, params Argon2idParams) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", validationError("api_key", "api key is required")
	}
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	// $argon2id$v=19$m=...,t=...,p=...$salt$hash
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// APIKeyVerifier checks presented keys against one stored hash. The hash is decoded once.
type APIKeyVerifier struct {
	params Argon2idParams
	salt   []byte
	hash   []byte
}

// NewAPIKeyVerifier decodes an encoded argon2id hash.
func NewAPIKeyVerifier(encoded string) (*APIKeyVerifier, error) {
	parts := strings.Split(strings.TrimSpace(encoded), "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, ErrInvalidAPIKeyHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAPIKeyHash, err)
	}
	if version != argon2.Version {
		return nil, ErrIncompatibleAPIKeyVersion
	}

	var params Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAPIKeyHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAPIKeyHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAPIKeyHash, err)
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(hash))

	return &APIKeyVerifier{params: params, salt: salt, hash: hash}, nil
}

// Verify returns nil when key matches, ErrInvalidAPIKey otherwise.
func (v *APIKeyVerifier) Verify(key string) error {
	if v == nil || key == "" {
		return ErrInvalidAPIKey
	}
	candidate := argon2.IDKey([]byte(key), v.salt, v.params.Iterations, v.params.Memory, v.params.Parallelism, v.params.KeyLength)
	if subtle.ConstantTimeCompare(v.hash, candidate) == 1 {
		return nil
	}
	return ErrInvalidAPIKey
}
