package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key identifies one rendered scene output. Two renders share a Key exactly
// when nothing that affects their pixels or sound differs.
type Key struct {
	// Spec is the absolute path of the spec file the scene belongs to.
	Spec  string `json:"spec"`
	Scene string `json:"scene"`
	// Config is the scene's merged raw configuration. encoding/json sorts
	// map keys, so equal configurations marshal identically.
	Config   map[string]any `json:"config"`
	Settings any            `json:"settings"`
	Duration float64        `json:"duration"`
	// Assets maps every input file to its content hash.
	Assets map[string]string `json:"assets"`
}

// Fingerprint returns the SHA-256 of the key's canonical JSON encoding.
func (k Key) Fingerprint() (string, error) {
	data, err := json.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("cache: fingerprint scene %q: %w", k.Scene, err)
	}
	return Hash(data), nil
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// shard returns the two-level object path for a fingerprint.
func shard(fp string) (dir, name string) {
	if len(fp) < 3 {
		return "_", fp
	}
	return fp[:2], fp
}
