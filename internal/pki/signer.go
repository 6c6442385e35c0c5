package pki

// Signer produces and checks detached base64 signatures.
type Signer interface {
	Sign(message []byte) (string, error)
	Verify(message []byte, signature string) bool
}

var _ Signer = (*Bundle)(nil)
