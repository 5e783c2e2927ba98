package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"

	// BcryptMaxPasswordBytes is the longest input bcrypt hashes.
	BcryptMaxPasswordBytes = 72
)

var (
	// ErrPasswordMismatch is returned when a password does not match its hash.
	ErrPasswordMismatch = errors.New("password mismatch")
	// ErrPasswordTooLong is returned when a hasher cannot accept the password.
	ErrPasswordTooLong = errors.New("password too long")
)

// Hasher turns plaintext passwords into one-way hashes.
type Hasher interface {
	Hash(password string) (string, error)
}

// LengthLimiter is implemented by hashers that only accept passwords up to
// a fixed number of bytes.
type LengthLimiter interface {
	MaxPasswordBytes() int
}

// NewHasher returns the hasher registered under name.
func NewHasher(name string, bcryptCost int) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", HasherBcrypt:
		if bcryptCost == 0 {
			bcryptCost = bcrypt.DefaultCost
		}
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
		return BcryptHasher{Cost: bcryptCost}, nil
	case HasherArgon2id:
		return Argon2idHasher{Params: argon2id.DefaultParams}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	if len(password) > BcryptMaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(hash), nil
}

func (h BcryptHasher) MaxPasswordBytes() int {
	return BcryptMaxPasswordBytes
}

type Argon2idHasher struct {
	Params *argon2id.Params
}

func (h Argon2idHasher) Hash(password string) (string, error) {
	hash, err := argon2id.CreateHash(password, h.Params)
	if err != nil {
		return "", fmt.Errorf("argon2id hash: %w", err)
	}
	return hash, nil
}

// VerifyPassword checks password against a bcrypt or argon2id hash.
func VerifyPassword(hash, password string) error {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		match, _, err := argon2id.CheckHash(password, hash)
		if err != nil {
			return fmt.Errorf("argon2id check: %w", err)
		}
		if !match {
			return ErrPasswordMismatch
		}
		return nil
	case strings.HasPrefix(hash, "$2"):
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		if err != nil {
			return fmt.Errorf("bcrypt check: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unrecognised password hash format")
	}
}
