// Package id generates run identifiers.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random UUIDv4 as 26 lowercase base32 characters.
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(u[:])), nil
}

// Valid reports whether s has the shape NewID produces.
func Valid(s string) bool {
	if len(s) != 26 {
		return false
	}
	raw, err := encoding.DecodeString(strings.ToUpper(s))
	return err == nil && len(raw) == 16 && s == strings.ToLower(s)
}
