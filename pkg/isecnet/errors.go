package isecnet

import (
	"errors"
	"fmt"
)

// Frame decoding errors.
var (
	// ErrShortFrame indicates fewer bytes than the header requires.
	ErrShortFrame = errors.New("frame too short")

	// ErrBadChecksum indicates the checksum byte does not match.
	ErrBadChecksum = errors.New("checksum mismatch")

	// ErrBadSize indicates an impossible size field.
	ErrBadSize = errors.New("invalid size field")
)

// ParseError reports a malformed frame, keeping the raw bytes for
// diagnostics.
type ParseError struct {
	// Err is the sentinel cause (ErrShortFrame, ErrBadChecksum, ...).
	Err error

	// Raw holds the offending bytes.
	Raw []byte
}

// Error formats the parse failure with a hex dump of the raw bytes.
func (e *ParseError) Error() string {
	return fmt.Sprintf("isecnet: %v (raw %x)", e.Err, e.Raw)
}

// Unwrap exposes the sentinel cause for errors.Is.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(err error, raw []byte) *ParseError {
	return &ParseError{Err: err, Raw: raw}
}
