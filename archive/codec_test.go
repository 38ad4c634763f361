package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"lukechampine.com/blake3"
)

func TestEmptyArchiveRoundTrip(t *testing.T) {
	// S1: empty archive.
	events := []Event{Header(), Footer([32]byte{}, nil)}
	data := EncodeAll(events)

	got, err := DecodeAll(data)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Kind != EventHeader {
		t.Fatalf("events[0].Kind = %v, want Header", got[0].Kind)
	}
	if got[1].Kind != EventFooter {
		t.Fatalf("events[1].Kind = %v, want Footer", got[1].Kind)
	}

	empty := blake3.Sum256(nil)
	if got[1].Digest != empty {
		t.Fatalf("empty archive digest = %x, want %x", got[1].Digest, empty)
	}
}

func TestSingleFileRoundTrip(t *testing.T) {
	// S2: single file.
	events := []Event{
		Header(),
		ObjectEvent(Object{
			Location:    PathBytes("/file"),
			Permissions: 0644,
			Content:     File([]byte("hello")),
		}),
		Footer([32]byte{}, nil),
	}
	data := EncodeAll(events)

	got, err := DecodeAll(data)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if diff := cmp.Diff(events[1].Object.Location, got[1].Object.Location); diff != "" {
		t.Errorf("location mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(got[1].Object.Content.Data, []byte("hello")) {
		t.Errorf("data = %q, want %q", got[1].Object.Content.Data, "hello")
	}

	// Flip the last byte of the encoded Object frame (part of the object
	// hash suffix) and expect a DigestMismatchError.
	objectEnd := len(EncodeAll(events[:2]))
	corrupted := append([]byte(nil), data...)
	corrupted[objectEnd-1] ^= 0xFF
	if _, err := DecodeAll(corrupted); err == nil {
		t.Fatal("expected an error decoding corrupted archive, got nil")
	} else if _, ok := err.(*DigestMismatchError); !ok {
		t.Fatalf("expected *DigestMismatchError, got %T: %v", err, err)
	}
}

func TestMixedTreeRoundTrip(t *testing.T) {
	// S3: mixed tree.
	events := []Event{
		Header(),
		ObjectEvent(Object{Location: PathBytes("/f"), Permissions: 0755, Content: File([]byte("a"))}),
		ObjectEvent(Object{Location: PathBytes("/link"), Permissions: 0, Content: Symlink(PathBytes("/f"))}),
		ObjectEvent(Object{Location: PathBytes("/d"), Permissions: 0750, Content: Directory()}),
		Footer([32]byte{}, nil),
	}
	data := EncodeAll(events)
	got, err := DecodeAll(data)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("got %d events, want %d", len(got), len(events))
	}
	for i := 1; i < len(events)-1; i++ {
		if got[i].Object.Location.Compare(events[i].Object.Location) != 0 {
			t.Errorf("event %d: location = %q, want %q", i, got[i].Object.Location, events[i].Object.Location)
		}
	}
}

func TestUnsupportedVersion(t *testing.T) {
	// S/Invariant 4.
	var buf bytes.Buffer
	buf.Write(tokenPrefixBytes)
	buf.WriteString(markerHeader)
	buf.Write(magicBytes)
	putUint16(&buf, 99)

	d := NewDecoder()
	d.Feed(buf.Bytes())
	_, err := d.Next()
	if _, ok := err.(*UnsupportedVersionError); !ok {
		t.Fatalf("expected *UnsupportedVersionError, got %T: %v", err, err)
	}
}

func TestIncompleteResumes(t *testing.T) {
	events := []Event{Header(), Footer([32]byte{}, nil)}
	data := EncodeAll(events)

	d := NewDecoder()
	d.Feed(data[:len(data)-1]) // withhold the last byte
	if _, err := d.Next(); err != nil {
		t.Fatalf("decoding Header should not need the withheld byte: %v", err)
	}
	if _, err := d.Next(); err == nil {
		t.Fatal("expected an error decoding a truncated Footer")
	} else if _, ok := err.(*IncompleteError); !ok {
		t.Fatalf("expected *IncompleteError, got %T: %v", err, err)
	}

	d.Feed(data[len(data)-1:])
	if _, err := d.Next(); err != nil {
		t.Fatalf("decoding Footer after feeding remainder: %v", err)
	}
}

func TestUnpackPathEscape(t *testing.T) {
	// S4: path escape.
	root := t.TempDir()
	u := NewUnpacker()
	err := u.Unpack(root, []Event{
		Header(),
		ObjectEvent(Object{Location: PathBytes("../evil"), Permissions: 0644, Content: File([]byte("x"))}),
		Footer([32]byte{}, nil),
	})
	if err == nil {
		t.Fatal("expected an error unpacking an escaping path")
	}
	if _, ok := err.(*InvalidPathError); !ok {
		t.Fatalf("expected *InvalidPathError, got %T: %v", err, err)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Fatalf("root directory should be unchanged, found %d entries", len(entries))
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "dir"), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "dir", "file"), []byte("contents"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("file", filepath.Join(src, "dir", "link")); err != nil {
		t.Fatal(err)
	}

	p := NewPacker()
	events, err := p.PackSorted(src)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	dest := t.TempDir()
	u := NewUnpacker()
	if err := u.Unpack(dest, events); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	events2, err := p.PackSorted(dest)
	if err != nil {
		t.Fatalf("second Pack: %v", err)
	}
	if len(events) != len(events2) {
		t.Fatalf("got %d events after round trip, want %d", len(events2), len(events))
	}
	for i := range events {
		if events[i].Kind != events2[i].Kind {
			t.Fatalf("event %d: kind = %v, want %v", i, events2[i].Kind, events[i].Kind)
		}
		if events[i].Kind != EventObject {
			continue
		}
		if events[i].Object.Location.Compare(events2[i].Object.Location) != 0 {
			t.Fatalf("event %d: location = %q, want %q", i, events2[i].Object.Location, events[i].Object.Location)
		}
	}
}
