package codec

import (
	"errors"
	"fmt"
)

// ErrUntrustedArtifact is the sentinel for every security rejection.
var ErrUntrustedArtifact = errors.New("codec: untrusted model artifact")

// SecurityError rejects an artifact that cannot be shown to be plain,
// well-formed parameter data. Nothing from a rejected artifact is used.
type SecurityError struct {
	Path   string
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("codec: rejected model artifact %s: %s", e.Path, e.Reason)
}

// Is makes errors.Is(err, ErrUntrustedArtifact) hold for every SecurityError.
func (e *SecurityError) Is(target error) bool {
	return target == ErrUntrustedArtifact
}

func reject(path, format string, args ...any) error {
	return &SecurityError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
