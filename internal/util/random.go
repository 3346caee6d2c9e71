// Package util provides small shared helpers: env parsing, random IDs, and
// the password generator.
package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateRandomHex generates a random hexadecimal string of the specified
// length. Uses math/rand/v2; not for secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateFileID returns a short unique-enough name component for files
// written into per-conversation working directories.
func GenerateFileID() string {
	return GenerateRandomHex(8)
}
