package server

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
)

const (
	// SignatureHeader carries "sha1=<hex digest>" of the request body.
	SignatureHeader = "X-Hub-Signature"

	SignaturePrefix = "sha1="
)

// ErrInvalidSignature is returned when the body digest does not match.
var ErrInvalidSignature = errors.New("Wrong signature")

// ValidateSignature checks header against the HMAC-SHA1 of body keyed with
// secret. An empty secret disables the check. The first five characters of
// the header are dropped without looking at them; an absent or shorter header
// leaves an empty digest, which never matches.
func ValidateSignature(secret string, body []byte, header string) error {
	if secret == "" {
		return nil
	}

	received := ""
	if len(header) > len(SignaturePrefix) {
		received = header[len(SignaturePrefix):]
	}

	if !hmac.Equal([]byte(ComputeDigest(secret, body)), []byte(received)) {
		return ErrInvalidSignature
	}
	return nil
}

// ComputeDigest returns the hex HMAC-SHA1 of body keyed with secret.
func ComputeDigest(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
