// Package id provides deterministic, URL-safe identifiers.
//
// Identifiers are UUIDv5 (SHA-1, name based) bytes encoded as base32
// (RFC 4648) with no padding. The resulting strings are 26 characters long,
// lowercase, and safe for use in URLs and file paths. The same namespace and
// name always produce the same identifier, which keeps generated worlds
// reproducible down to their ids.
package id

import (
	"encoding/base32"
	"encoding/binary"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Namespace is the UUID namespace all worldgen identifiers derive from.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/louisbranch/worldgen"))

// Derive returns the identifier for name under namespace.
func Derive(namespace uuid.UUID, name []byte) string {
	u := uuid.NewSHA1(namespace, name)
	return strings.ToLower(encoding.EncodeToString(u[:]))
}

// ForSeed returns the identifier of an entity of kind with ordinal index inside
// the world generated from seed.
func ForSeed(seed uint64, kind string, index uint64) string {
	name := make([]byte, 0, 16+len(kind))
	name = binary.LittleEndian.AppendUint64(name, seed)
	name = append(name, kind...)
	name = binary.LittleEndian.AppendUint64(name, index)
	return Derive(Namespace, name)
}

// Valid reports whether value has the shape of a Derive result.
func Valid(value string) bool {
	if len(value) != 26 || strings.ToLower(value) != value {
		return false
	}
	decoded, err := encoding.DecodeString(strings.ToUpper(value))
	return err == nil && len(decoded) == 16
}
