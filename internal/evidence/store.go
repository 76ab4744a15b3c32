// Package evidence stores inspection media by content address. The checklist
// core only ever sees the returned references.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const refPrefix = "sha256:"

var (
	ErrNotFound   = errors.New("evidence not found")
	ErrInvalidRef = errors.New("invalid evidence reference")
	ErrEmpty      = errors.New("evidence is empty")
)

// Store is a content-addressed blob store for photos, video, audio and
// signatures. Put is idempotent: equal bytes yield the same reference.
type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Exists(ctx context.Context, ref string) (bool, error)
}

// Ref returns the content reference of data
func Ref(data []byte) string {
	sum := sha256.Sum256(data)
	return refPrefix + hex.EncodeToString(sum[:])
}

// ParseRef validates a reference and returns its hex digest
func ParseRef(ref string) (string, error) {
	digest, ok := strings.CutPrefix(ref, refPrefix)
	if !ok || len(digest) != sha256.Size*2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return digest, nil
}
