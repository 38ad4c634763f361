// Package archive implements xuehua's streamable, content-hashed binary
// container for build outputs: a length-prefixed, marker-framed,
// hash-chained sequence of Events describing a directory tree with
// permissions and symlinks.
//
// The on-wire layout is specified exactly (spec.md §4.A) and is part of
// the archive's compatibility contract, so the codec is hand-rolled with
// encoding/binary field-by-field, the same manual struct-framing style
// internal/squashfs/{reader,writer}.go use for the (unrelated) SquashFS
// format -- a generic serialization library would not let us pin the exact
// byte layout the spec and its round-trip tests require.
package archive

import (
	"bytes"
	"encoding/binary"

	"lukechampine.com/blake3"
)

// PathBytes is an opaque byte sequence interpreted as an OS path. It orders
// byte-wise, same as bytes.Compare.
type PathBytes []byte

// Compare orders two PathBytes byte-wise.
func (p PathBytes) Compare(o PathBytes) int { return bytes.Compare(p, o) }

func (p PathBytes) String() string { return string(p) }

// ContentKind tags the variant of an Object's content.
type ContentKind uint8

const (
	KindFile ContentKind = iota
	KindSymlink
	KindDirectory
)

// Content is the sum type of an Object's payload. Exactly one of Data or
// Target is meaningful, selected by Kind.
type Content struct {
	Kind   ContentKind
	Data   []byte    // valid when Kind == KindFile
	Target PathBytes // valid when Kind == KindSymlink
}

// File builds a File content variant.
func File(data []byte) Content { return Content{Kind: KindFile, Data: data} }

// Symlink builds a Symlink content variant.
func Symlink(target PathBytes) Content { return Content{Kind: KindSymlink, Target: target} }

// Directory builds a Directory content variant.
func Directory() Content { return Content{Kind: KindDirectory} }

// Object is one filesystem entry inside an archive.
type Object struct {
	Location    PathBytes
	Permissions uint32
	Content     Content
}

// hashPreimage writes the canonical hash pre-image described in spec.md
// §4.A ("Object hash pre-image") into h, in the exact field order the spec
// requires: location length + bytes, permissions, variant tag, then the
// variant body.
func (o Object) hashPreimage(h *blake3.Hasher) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(o.Location)))
	h.Write(lenBuf[:])
	h.Write(o.Location)

	var permBuf [4]byte
	binary.LittleEndian.PutUint32(permBuf[:], o.Permissions)
	h.Write(permBuf[:])

	h.Write([]byte{byte(o.Content.Kind)})

	switch o.Content.Kind {
	case KindFile:
		h.Write(o.Content.Data)
	case KindSymlink:
		h.Write(o.Content.Target)
	case KindDirectory:
		// nothing
	}
}

// Hash returns the object's 32-byte stable identity hash: two
// byte-identical objects hash equal, and any field change changes the
// hash.
func (o Object) Hash() [32]byte {
	h := blake3.New(32, nil)
	o.hashPreimage(h)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Fingerprint is the 32-byte BLAKE3 hash of a public key.
type Fingerprint [32]byte

// Signature is a fixed-size, opaque signature. Xuehua never verifies
// signatures (spec.md Non-goals: "no signed archive trust validation
// logic"); 64 bytes matches Ed25519 but nothing here depends on that.
type Signature [64]byte
