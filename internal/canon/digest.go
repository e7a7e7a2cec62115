package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for digests. The version suffix leaves room for
// algorithm migration.
const (
	DomainObjectState = "keepsake/object-state/v1"
	DomainTrace       = "keepsake/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest hashes the canonical form of v under the given domain.
func Digest(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// ObjectStateDigest identifies one stored state of one object. Two rows
// with the same digest hold byte-identical state for the same bookmark.
func ObjectStateDigest(logicalType, identifier, state string) string {
	obj := Object{
		"logical_type": String(logicalType),
		"identifier":   String(identifier),
		"state":        String(state),
	}
	// Object of String values always marshals.
	d, _ := Digest(DomainObjectState, obj)
	return d
}
