// Package serial builds pass serial numbers of the form
// PREFIX-SEQ-HASH6, e.g. NYE2025-0042-3FA9C1.
//
// SEQ is the store's sequential counter zero-padded to four digits (wider
// values simply widen the field), so serials sort by issuance and never
// collide.  HASH6 is the first six upper-case hex digits of a BLAKE2b
// digest over the attendee name, ticket type and a microsecond timestamp.
// It makes serials hard to guess; it is not an authentication credential.
package serial

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Pattern matches every serial produced by a Generator.
var Pattern = regexp.MustCompile(`^[A-Z0-9]+-\d{4,}-[0-9A-F]{6}$`)

var prefixPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// Generator produces serial numbers with a fixed prefix.
type Generator struct {
	prefix string
	now    func() time.Time
}

// NewGenerator validates the prefix (upper-cased, letters and digits only)
// and returns a Generator.  A nil now defaults to time.Now.
func NewGenerator(prefix string, now func() time.Time) (*Generator, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if !prefixPattern.MatchString(prefix) {
		return nil, fmt.Errorf("serial prefix %q must be letters and digits only", prefix)
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{prefix: prefix, now: now}, nil
}

// Generate returns the serial for the seq-th pass issued to attendee.
func (g *Generator) Generate(attendee, ticketType string, seq int64) string {
	t := g.now()
	stamp := fmt.Sprintf("%s%06d", t.Format("20060102150405"), t.Nanosecond()/1000)
	sum := blake2b.Sum256([]byte(attendee + ticketType + stamp))
	hash6 := strings.ToUpper(hex.EncodeToString(sum[:3]))
	return fmt.Sprintf("%s-%04d-%s", g.prefix, seq, hash6)
}

// Valid reports whether s has the shape of a serial number.
func Valid(s string) bool { return Pattern.MatchString(s) }
