// Package sanitize turns document identifiers into names accepted by the
// vector store backends.
//
// Collection names must match ^[a-z0-9_]{1,64}$.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxIdentifierLength is the longest collection name component.
	MaxIdentifierLength = 64

	// HashSuffixLength is the length of "_<8 hex chars>".
	HashSuffixLength = 9

	// DefaultIdentifier replaces identifiers with no valid characters.
	DefaultIdentifier = "document"
)

// Identifier lowercases s, maps invalid characters to underscores, collapses
// runs of underscores and trims them from both ends. Results longer than
// MaxIdentifierLength are truncated with a hash suffix.
//
//	"Employee Handbook (2024)" -> "employee_handbook_2024"
//	"" or "!!!"                -> "document"
func Identifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	underscore := true
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}

	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return DefaultIdentifier
	}
	if len(out) > MaxIdentifierLength {
		out = truncateWithHash(out)
	}
	return out
}

// truncateWithHash keeps names distinct after truncation by hashing the
// full value.
func truncateWithHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	suffix := "_" + hex.EncodeToString(sum[:])[:8]
	base := strings.TrimRight(s[:MaxIdentifierLength-HashSuffixLength], "_")
	return base + suffix
}

// CollectionName joins prefix and the sanitized document ID.
//
//	CollectionName("pdfqa", "handbook") -> "pdfqa_handbook"
func CollectionName(prefix, docID string) string {
	name := Identifier(prefix) + "_" + Identifier(docID)
	if len(name) > MaxIdentifierLength {
		name = truncateWithHash(name)
	}
	return name
}
