// Package secret implements KeyMaster's key-ID/secret generation and Argon2id
// credential hashing.
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, matching the profile mandated by the specification.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 1
	saltLen      = 16
	hashLen      = 32
)

const keyIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const secretAlphabet = keyIDAlphabet + "-_"

// GenerateKeyID returns a random key identifier of the form "k_XXXXXXX".
func GenerateKeyID() (string, error) {
	suffix, err := randomString(7, keyIDAlphabet)
	if err != nil {
		return "", fmt.Errorf("secret: generating key id: %w", err)
	}
	return "k_" + suffix, nil
}

// GenerateSecret returns a cryptographically random secret of length n drawn
// from a URL-safe alphabet.
func GenerateSecret(n int) (string, error) {
	s, err := randomString(n, secretAlphabet)
	if err != nil {
		return "", fmt.Errorf("secret: generating secret: %w", err)
	}
	return s, nil
}

func randomString(n int, alphabet string) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

// Hash derives an Argon2id hash of secret and encodes it in the standard PHC
// string format, e.g. "$argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>".
func Hash(secret string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("secret: generating salt: %w", err)
	}

	derived := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, hashLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derived),
	)
	return encoded, nil
}

// Verify reports whether secret matches the given encoded Argon2id hash. A
// malformed encoded hash is treated as a mismatch, never as an error.
func Verify(secret, encoded string) bool {
	params, salt, want, ok := decode(encoded)
	if !ok {
		return false
	}

	got := argon2.IDKey([]byte(secret), salt, params.time, params.memory, params.threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decode(encoded string) (argonParams, []byte, []byte, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argonParams{}, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return argonParams{}, nil, nil, false
	}

	var p argonParams
	var mem, t, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &t, &threads); err != nil {
		return argonParams{}, nil, nil, false
	}
	p.memory, p.time, p.threads = mem, t, uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argonParams{}, nil, nil, false
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return argonParams{}, nil, nil, false
	}

	return p, salt, hash, true
}
