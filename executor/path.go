package executor

import (
	"path/filepath"
	"strings"
)

// resolveWithin confines rel to root, rejecting absolute paths and any
// component sequence that would walk above root -- the same confinement
// archive.Unpacker applies to object locations, needed again here because
// HTTP and compression requests both name paths relative to the per-build
// environment.
func resolveWithin(root, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", &InvalidPathError{Path: rel}
	}

	depth := 0
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return "", &InvalidPathError{Path: rel}
			}
		default:
			depth++
		}
	}

	return filepath.Join(root, rel), nil
}
