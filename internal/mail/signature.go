package mail

import (
	"context"
	"os"
	"strings"
	"time"
)

// SignatureSource returns the signature as currently available
type SignatureSource interface {
	Signature() (string, error)
}

// FileSignature reads the signature from an HTML file, typically the one
// the desktop mail client keeps for the operator
type FileSignature struct {
	Path string
}

// Signature implements SignatureSource
func (f FileSignature) Signature() (string, error) {
	if f.Path == "" {
		return "", nil
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// StaticSignature is a fixed signature
type StaticSignature string

// Signature implements SignatureSource
func (s StaticSignature) Signature() (string, error) {
	return string(s), nil
}

// complete reports whether a signature has been fully written
func complete(sig string) bool {
	return strings.Contains(strings.ToLower(sig), "</html>")
}

// PollSignature reads src until it holds a closing </html> tag, at most
// attempts times with interval between reads. After the last attempt it
// returns whatever was read, which may be empty.
func PollSignature(ctx context.Context, src SignatureSource, attempts int, interval time.Duration) (string, bool) {
	var last string
	n := max(attempts, 1)
	for i := 0; i < n; i++ {
		if sig, err := src.Signature(); err == nil {
			last = sig
			if complete(sig) {
				return sig, true
			}
		}
		if i == n-1 {
			break
		}
		select {
		case <-ctx.Done():
			return last, false
		case <-time.After(interval):
		}
	}
	return last, false
}
