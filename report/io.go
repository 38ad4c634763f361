package report

import (
	"errors"
	"io/fs"
)

// FromIOError wraps an *os.PathError-shaped error with the suggestion
// frames spec.md §7 calls for: "wrapped with suggestion frames derived
// from kind (NotFound -> 'provide a file that exists', PermissionDenied,
// AlreadyExists, DirectoryNotEmpty)".
func FromIOError(err error, path string) *Report {
	if err == nil {
		return nil
	}
	r := From(err)
	r = r.WithContext("path", path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r = r.WithSuggestion("provide a file that exists")
	case errors.Is(err, fs.ErrPermission):
		r = r.WithSuggestion("check file permissions or run with adequate privileges")
	case errors.Is(err, fs.ErrExist):
		r = r.WithSuggestion("remove or rename the existing file first")
	default:
		if isDirectoryNotEmpty(err) {
			r = r.WithSuggestion("the directory must be empty before this operation")
		}
	}
	return r
}
