package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("blob not found")
	ErrEmptyKey        = errors.New("storage key must not be empty")
	ErrInvalidKey      = errors.New("storage key contains invalid path segment")
	ErrInvalidMetadata = errors.New("invalid blob metadata")
)

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// validateMetadata accepts lowercase identifier keys only. Blob metadata
// travels as HTTP headers, and Download lowercases names on the way back, so
// any other key would not round-trip.
func validateMetadata(metadata map[string]string) error {
	for k := range metadata {
		if k == "" || k[0] >= '0' && k[0] <= '9' {
			return fmt.Errorf("%w: key %q", ErrInvalidMetadata, k)
		}
		for _, r := range k {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
				return fmt.Errorf("%w: key %q", ErrInvalidMetadata, k)
			}
		}
	}
	return nil
}
