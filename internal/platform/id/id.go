// Package id generates compact, URL-safe identifiers for engine entities.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a lowercase base32 identifier derived from 16 random bytes.
func NewID() (string, error) {
	raw, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id entropy: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(raw[:])), nil
}

// NewPrefixed returns a new identifier with an entity prefix, e.g. "crd_...".
func NewPrefixed(prefix string) (string, error) {
	value, err := NewID()
	if err != nil {
		return "", err
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return value, nil
	}
	return prefix + "_" + value, nil
}
