// Package idgen provides unique todo ID generation.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Generator returns a fresh unique ID.
type Generator func() (string, error)

// Format names an ID scheme.
type Format string

const (
	FormatUUID   Format = "uuid"
	FormatNanoID Format = "nanoid"
)

// Alphabet defines the character set used for nanoid IDs.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters in a nanoid ID.
var Length = 12

// UUID returns random (version 4) UUID strings.
func UUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id.String(), nil
}

// NanoID returns short URL-safe IDs.
func NanoID() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id, nil
}

// ForFormat returns the generator for f. Empty selects UUID.
func ForFormat(f Format) (Generator, error) {
	switch f {
	case "", FormatUUID:
		return UUID, nil
	case FormatNanoID:
		return NanoID, nil
	default:
		return nil, fmt.Errorf("unknown id format %q", f)
	}
}
