// Package ids generates block and record identifiers.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultPrefix is used when New is called with an empty prefix.
const DefaultPrefix = "block"

// New returns a fresh identifier of the form "<prefix>-<uuid>".
// The UUID is version 7: a millisecond timestamp followed by random bits,
// so ids sort roughly by creation time and never repeat within a process.
func New(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "-" + newUUID()
}

// Plain returns an identifier without a prefix, used for stored records.
func Plain() string {
	return newUUID()
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// only fails when crypto/rand does
		return uuid.NewString()
	}
	return id.String()
}
