// Package auth provides password hashing, bearer tokens and the
// request-scoped identity of the caller.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// MaxPasswordLength bounds the bytes fed to argon2 for one login attempt.
const MaxPasswordLength = 128

const saltLength = 16

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned when a password exceeds MaxPasswordLength bytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrInvalidHash indicates a stored credential is not an argon2id PHC string.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrIncompatibleVersion indicates the stored hash used another argon2 version.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// argonParams are the cost settings recorded in every stored hash.
type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}

// passwordParams follow the OWASP minimum for argon2id.
var passwordParams = argonParams{time: 3, memory: 64 * 1024, threads: 4, keyLen: 32}

// storedHash is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$key credential.
type storedHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

func (h storedHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.memory, h.params.time, h.params.threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func derive(password string, salt []byte, p argonParams) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

// HashPassword derives an argon2id credential for a user password with a
// fresh random salt.
func HashPassword(password string) (string, error) {
	switch {
	case password == "":
		return "", ErrEmptyPassword
	case len(password) > MaxPasswordLength:
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	return storedHash{
		params: passwordParams,
		salt:   salt,
		key:    derive(password, salt, passwordParams),
	}.String(), nil
}

// VerifyPassword reports whether password matches the stored credential. A
// mismatch is (false, nil); an unreadable credential is an error.
func VerifyPassword(password, encoded string) (bool, error) {
	stored, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	if len(password) > MaxPasswordLength {
		return false, nil
	}

	p := stored.params
	p.keyLen = uint32(len(stored.key))
	return subtle.ConstantTimeCompare(derive(password, stored.salt, p), stored.key) == 1, nil
}

func parseHash(encoded string) (storedHash, error) {
	var h storedHash

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return h, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return h, ErrInvalidHash
	}
	if version != argon2.Version {
		return h, ErrIncompatibleVersion
	}

	p := &h.params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return h, ErrInvalidHash
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return h, ErrInvalidHash
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(h.salt) == 0 {
		return h, ErrInvalidHash
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return h, ErrInvalidHash
	}
	return h, nil
}

// QuickHash returns a short SHA-256 digest used as the cache key for a
// bearer token, so tokens are never stored in plaintext.
func QuickHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
