package security

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPrefix marks every key this service issues.
const KeyPrefix = "pf_live_"

// GenerateAPIKey creates a secure random API key and its SHA256 hash.
//
// Returns:
//   - realKey: the key shown to the operator once (e.g. "pf_live_abc123...")
//   - keyHash: SHA256 hash to store
func GenerateAPIKey() (string, string, error) {
	// 1. 32 random bytes from crypto/rand
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// 2. Prefix the hex form
	realKey := KeyPrefix + hex.EncodeToString(bytes)

	// 3. Only the hash is ever stored
	return realKey, HashKey(realKey), nil
}

func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// StaticKeys verifies against a fixed set of hashes, typically API_KEY_HASH.
type StaticKeys struct {
	hashes []string
}

// NewStaticKeys accepts a comma separated list of hex hashes.
func NewStaticKeys(list string) *StaticKeys {
	var hashes []string
	for _, h := range strings.Split(list, ",") {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hashes = append(hashes, h)
		}
	}
	return &StaticKeys{hashes: hashes}
}

func (s *StaticKeys) Len() int { return len(s.hashes) }

func (s *StaticKeys) VerifyKeyHash(_ context.Context, keyHash string) (bool, error) {
	for _, h := range s.hashes {
		if subtle.ConstantTimeCompare([]byte(h), []byte(keyHash)) == 1 {
			return true, nil
		}
	}
	return false, nil
}
