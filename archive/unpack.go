package archive

import (
	"os"
	"path/filepath"
	"strings"
)

// OverwritePolicy controls what the Unpacker does when a destination path
// already exists. spec.md §9 leaves this unspecified in source and
// recommends a safe default of failing; Unpacker defaults to
// OverwriteNever.
type OverwritePolicy int

const (
	OverwriteNever OverwritePolicy = iota
	OverwriteAlways
)

// Unpacker materializes a decoded Event stream as files under a root
// directory.
type Unpacker struct {
	Overwrite OverwritePolicy
}

// NewUnpacker returns an Unpacker using the default overwrite policy.
func NewUnpacker() *Unpacker {
	return &Unpacker{Overwrite: OverwriteNever}
}

// resolve validates location against root, rejecting any path that
// normalizes outside of root (spec.md §4.A, Testable Property 5). A
// location is valid only if it is composed entirely of normal components:
// no root, no volume/prefix, and no ".." component that would walk above
// root.
func resolve(root string, location PathBytes) (string, error) {
	loc := filepath.ToSlash(string(location))
	if loc == "" {
		return "", &InvalidPathError{Path: loc}
	}
	if filepath.IsAbs(loc) || strings.HasPrefix(loc, "/") {
		return "", &InvalidPathError{Path: loc}
	}

	depth := 0
	for _, part := range strings.Split(loc, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return "", &InvalidPathError{Path: loc}
			}
		default:
			depth++
		}
	}

	return filepath.Join(root, filepath.FromSlash(loc)), nil
}

// Unpack consumes events (ignoring Header/Footer) and writes each Object
// under root.
func (u *Unpacker) Unpack(root string, events []Event) error {
	for _, ev := range events {
		if ev.Kind != EventObject {
			continue
		}
		if err := u.unpackObject(root, ev.Object); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unpacker) unpackObject(root string, obj Object) error {
	dest, err := resolve(root, obj.Location)
	if err != nil {
		return err
	}

	switch obj.Content.Kind {
	case KindDirectory:
		if err := os.MkdirAll(dest, 0755); err != nil {
			return err
		}
		return os.Chmod(dest, os.FileMode(obj.Permissions))

	case KindSymlink:
		if u.exists(dest) {
			if u.Overwrite == OverwriteNever {
				return os.ErrExist
			}
			if err := os.Remove(dest); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		// No permission set on symlinks: the OS decides (spec.md §9, open
		// question 2 resolved as "skip", matching source behavior).
		return os.Symlink(string(obj.Content.Target), dest)

	case KindFile:
		if u.exists(dest) && u.Overwrite == OverwriteNever {
			return os.ErrExist
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(dest, obj.Content.Data, 0644); err != nil {
			return err
		}
		return os.Chmod(dest, os.FileMode(obj.Permissions))
	}
	return nil
}

func (u *Unpacker) exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
