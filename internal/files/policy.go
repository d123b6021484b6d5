package files

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExtensionNotAllowed = errors.New("file type not allowed")
	ErrTooLarge            = errors.New("file too large")
	ErrEmptyName           = errors.New("file has no name")
)

// Policy decides which uploads are accepted.
type Policy struct {
	allowed  map[string]struct{}
	maxBytes int64
}

// NewPolicy builds a Policy from a list of extensions (with or without the
// leading dot, any case) and a per-file size limit. A maxBytes <= 0 disables
// the size check.
func NewPolicy(extensions []string, maxBytes int64) Policy {
	allowed := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			allowed[e] = struct{}{}
		}
	}
	return Policy{allowed: allowed, maxBytes: maxBytes}
}

// MaxBytes is the per-file size limit.
func (p Policy) MaxBytes() int64 { return p.maxBytes }

// Check reports why an upload with the given name and size is refused.
func (p Policy) Check(name string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	ext := strings.ToLower(Ext(name))
	if _, ok := p.allowed[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrExtensionNotAllowed, ext)
	}
	if p.maxBytes > 0 && size > p.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, p.maxBytes)
	}
	return nil
}
