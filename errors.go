package zonebuf

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange    = errors.New("offset out of range")
	ErrInvalidUTF8   = errors.New("invalid utf-8 identifier")
	ErrShapeMismatch = errors.New("per-zone column length mismatch")
)

// DecodeError reports a contract violation in a ZoneBuffer.
//
// Zone is the offending zone index, or -1 when the error is not tied to a
// zone (shape errors, list slots outside every zone's range). Start, End and Limit describe the range that failed;
// for shape errors Start is the expected length and End the actual one.
type DecodeError struct {
	Zone  int
	Field string
	Err   error
	Start int
	End   int
	Limit int
}

func (e *DecodeError) Error() string {
	switch {
	case errors.Is(e.Err, ErrShapeMismatch):
		return fmt.Sprintf("zonebuf: %s: %v: want %d, got %d", e.Field, e.Err, e.Start, e.End)
	case errors.Is(e.Err, ErrInvalidUTF8):
		return fmt.Sprintf("zonebuf: zone %d: %s: %v in bytes [%d, %d)", e.Zone, e.Field, e.Err, e.Start, e.End)
	default:
		return fmt.Sprintf("zonebuf: zone %d: %s: %v: [%d, %d) limit %d", e.Zone, e.Field, e.Err, e.Start, e.End, e.Limit)
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Kind names the class of e for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrInvalidUTF8):
		return "invalid_utf8"
	case errors.Is(err, ErrShapeMismatch):
		return "shape_mismatch"
	default:
		return "other"
	}
}

// rangeError is a resolver failure before the zone is known.
type rangeError struct {
	start, end, limit int
}

func (e *rangeError) Error() string {
	return fmt.Sprintf("range [%d, %d) limit %d: %v", e.start, e.end, e.limit, ErrOutOfRange)
}

func (e *rangeError) Unwrap() error { return ErrOutOfRange }

// at attaches the zone and field to a resolver error.
func at(err error, zone int, field string) error {
	var re *rangeError
	if errors.As(err, &re) {
		return &DecodeError{Zone: zone, Field: field, Err: ErrOutOfRange, Start: re.start, End: re.end, Limit: re.limit}
	}
	return &DecodeError{Zone: zone, Field: field, Err: err}
}
