package session

import (
	"strings"

	"github.com/google/uuid"
)

// codeLength is the number of characters in a session code. Eight hex
// characters give 4 billion possibilities, plenty for the handful of
// sessions alive at any moment.
const codeLength = 8

// newCode returns a short, human-transcribable session code drawn from a
// v4 UUID (crypto/rand backed). Upper-cased so codes read the same however
// a student types them.
func newCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:codeLength])
}
