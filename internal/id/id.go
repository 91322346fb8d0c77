// Package id generates short prefixed identifiers for transient objects such as viewer connections.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet avoids characters that need escaping in logs, URLs and SSE frames.
const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	size     = 16
)

// Generate returns "<prefix>-<nanoid>", e.g. "ws-3k9x0c2lq8m1z7pa".
// It fails only when the system random source is unavailable.
func Generate(prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("id prefix cannot be empty")
	}
	suffix, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + suffix, nil
}

// MustGenerate is like Generate but panics on failure.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}
