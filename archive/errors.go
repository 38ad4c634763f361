package archive

import (
	"fmt"

	"github.com/CelestialCrafter/xuehua/report"
)

// UnexpectedTokenError is returned when the decoder reads a prefix, marker,
// magic string or content tag it does not recognize. The decoder does not
// check the order of Header, Object and Footer events.
type UnexpectedTokenError struct {
	Token    string
	Expected string
}

func (e *UnexpectedTokenError) Error() string {
	return fmt.Sprintf("unexpected token %q, expected %s", e.Token, e.Expected)
}

func (e *UnexpectedTokenError) ToReport() *report.Report {
	return report.New(report.LevelError, "unexpected archive token").
		WithContext("token", e.Token).
		WithContext("expected", e.Expected).
		WithSuggestion("the archive stream may be truncated or corrupt")
}

// UnsupportedVersionError is returned when a Header names a version this
// decoder does not implement.
type UnsupportedVersionError struct {
	Got uint16
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported archive version %d, want %d", e.Got, Version)
}

func (e *UnsupportedVersionError) ToReport() *report.Report {
	return report.New(report.LevelError, "unsupported archive version").
		WithContext("got", fmt.Sprint(e.Got)).
		WithContext("want", fmt.Sprint(Version)).
		WithSuggestion("rebuild the archive with a compatible version of xuehua")
}

// DigestMismatchError is returned when a decoded object's recomputed hash
// does not match the hash stored on the wire, or when a Footer's stored
// running digest does not match the decoder's accumulator.
type DigestMismatchError struct {
	Want [32]byte
	Got  [32]byte
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch: want %x, got %x", e.Want, e.Got)
}

func (e *DigestMismatchError) ToReport() *report.Report {
	return report.New(report.LevelError, "archive digest mismatch").
		WithContext("want", fmt.Sprintf("%x", e.Want)).
		WithContext("got", fmt.Sprintf("%x", e.Got)).
		WithSuggestion("the archive bytes were corrupted or tampered with")
}

// IncompleteError is returned when the buffer ends mid-frame. Decoding may
// resume once more bytes are appended to the buffer.
type IncompleteError struct {
	Need int // minimum additional bytes required, if known; 0 if unknown
}

func (e *IncompleteError) Error() string {
	return "incomplete archive frame"
}

func (e *IncompleteError) ToReport() *report.Report {
	return report.New(report.LevelInfo, "incomplete archive frame").
		WithSuggestion("append more bytes to the buffer and retry decoding")
}

// InvalidPathError is returned by the unpacker when an object's location
// escapes the extraction root. (Executors report their own
// executor.InvalidPathError for request paths.)
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q", e.Path)
}

func (e *InvalidPathError) ToReport() *report.Report {
	return report.New(report.LevelError, "invalid path").
		WithContext("path", e.Path).
		WithSuggestion("paths must be relative and must not escape their root")
}
