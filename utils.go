package zonebuf

import (
	"unicode/utf8"
	"unsafe"
)

// ResolveRange returns the half-open range [start, end) of entry index in an
// offset column. The last entry ends at poolLen, the length of whatever the
// column addresses.
func ResolveRange(offsets []uint32, index, poolLen int) (start, end int, err error) {
	if index < 0 || index >= len(offsets) || poolLen < 0 {
		return 0, 0, &rangeError{start: index, end: index + 1, limit: len(offsets)}
	}
	s, e := uint64(offsets[index]), uint64(poolLen)
	if index+1 < len(offsets) {
		e = uint64(offsets[index+1])
	}
	if s > e || e > uint64(poolLen) {
		return 0, 0, &rangeError{start: int(s), end: int(e), limit: poolLen}
	}
	return int(s), int(e), nil
}

// text turns b into a string after checking it is valid UTF-8.
// With unsafeStrings the result aliases b.
func text(b []byte, unsafeStrings bool) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	if len(b) == 0 {
		return "", true
	}
	if unsafeStrings {
		return unsafe.String(&b[0], len(b)), true
	}
	return string(b), true
}
