package idempotency

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint computes the HMAC-SHA256 idempotency hash over a command's
// identity tuple: action, instance address, source, and the source/update
// idempotency keys. Two commands that fingerprint identically are the same
// logical intent and the second is rejected as a DuplicateCommand by the
// store's unique constraint on this hash.
//
// update_source/update_idempk are empty strings for create_* commands; their
// presence changes the fingerprint so an update to transaction X cannot
// collide with the original creation of X.
func Fingerprint(secret []byte, action, instanceAddress, source, sourceIdempk, updateSource, updateIdempk string) string {
	mac := hmac.New(sha256.New, secret)
	parts := []string{action, instanceAddress, source, sourceIdempk, updateSource, updateIdempk}
	mac.Write([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(mac.Sum(nil))
}
