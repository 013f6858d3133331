package server

// MakeTestSignature returns a valid X-Hub-Signature header value for payload.
// This is a test helper shared across multiple test files
func MakeTestSignature(payload []byte, secret string) string {
	return SignaturePrefix + ComputeDigest(secret, payload)
}
