package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"lukechampine.com/blake3"
)

var tokenPrefixBytes = []byte(tokenPrefix)
var magicBytes = []byte(Magic)

// Encoder writes Events into a caller-supplied io.Writer. It is stateless
// across archives except for the running hasher, which resets on every
// Header -- mirroring the encoder/decoder symmetry spec.md §4.A requires.
type Encoder struct {
	hasher *blake3.Hasher
}

// NewEncoder returns a ready Encoder.
func NewEncoder() *Encoder {
	return &Encoder{hasher: blake3.New(32, nil)}
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putLenPrefixed(buf *bytes.Buffer, data []byte) {
	putUint64(buf, uint64(len(data)))
	buf.Write(data)
}

// Encode appends the wire representation of ev to sink.
func (e *Encoder) Encode(sink *bytes.Buffer, ev Event) error {
	sink.Write(tokenPrefixBytes)

	switch ev.Kind {
	case EventHeader:
		sink.WriteString(markerHeader)
		sink.Write(magicBytes)
		putUint16(sink, Version)
		e.hasher = blake3.New(32, nil)

	case EventObject:
		sink.WriteString(markerObject)
		var body bytes.Buffer
		putLenPrefixed(&body, ev.Object.Location)
		putUint32(&body, ev.Object.Permissions)
		body.WriteByte(byte(ev.Object.Content.Kind))
		switch ev.Object.Content.Kind {
		case KindFile:
			putLenPrefixed(&body, ev.Object.Content.Data)
		case KindSymlink:
			putLenPrefixed(&body, ev.Object.Content.Target)
		case KindDirectory:
		}
		hash := ev.Object.Hash()
		body.Write(hash[:])
		sink.Write(body.Bytes())
		e.hasher.Write(hash[:])

	case EventFooter:
		sink.WriteString(markerFooter)
		digest := e.hasher.Sum(nil)
		sink.Write(digest)
		putUint64(sink, uint64(len(ev.Signatures)))
		for _, sig := range ev.Signatures {
			sink.Write(sig.Fingerprint[:])
			sink.Write(sig.Signature[:])
		}
	}
	return nil
}

// cursor is a bounds-checked reader over a byte slice that never advances
// past what it has successfully consumed, so a caller can retry a failed
// read once more bytes have been appended to the underlying buffer.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) readBytes(n int) ([]byte, error) {
	if c.remaining() < n {
		return nil, &IncompleteError{Need: n - c.remaining()}
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) readUint16() (uint16, error) {
	b, err := c.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) readUint32() (uint32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readUint64() (uint64, error) {
	b, err := c.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *cursor) readLenPrefixed() ([]byte, error) {
	n, err := c.readUint64()
	if err != nil {
		return nil, err
	}
	if n > uint64(c.remaining()) {
		return nil, &IncompleteError{Need: int(min(n-uint64(c.remaining()), uint64(math.MaxInt)))}
	}
	return c.readBytes(int(n))
}

// Decoder consumes a growable byte buffer and yields Events lazily. On any
// error the buffer is left logically unchanged at the start of the failing
// event, so decoding may resume once more bytes are appended (spec.md's
// "partial-frame resilience").
type Decoder struct {
	buf    []byte
	off    int
	hasher *blake3.Hasher
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{hasher: blake3.New(32, nil)}
}

// Feed appends more bytes to the decoder's buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// compact drops bytes before the current offset so the buffer does not
// grow unboundedly across many Feed/Next cycles.
func (d *Decoder) compact() {
	if d.off == 0 {
		return
	}
	d.buf = append(d.buf[:0], d.buf[d.off:]...)
	d.off = 0
}

// Next decodes and returns the next Event in the buffer. It returns
// *IncompleteError (unchanged buffer position) when there are not yet
// enough bytes buffered to complete the frame.
func (d *Decoder) Next() (Event, error) {
	d.compact()
	c := &cursor{buf: d.buf, pos: d.off}

	token, err := c.readBytes(len(tokenPrefixBytes))
	if err != nil {
		return Event{}, err
	}
	if !bytes.Equal(token, tokenPrefixBytes) {
		return Event{}, &UnexpectedTokenError{Token: string(token), Expected: "xuehua-archive@ prefix"}
	}

	marker, err := c.readBytes(2)
	if err != nil {
		return Event{}, err
	}

	var ev Event
	switch string(marker) {
	case markerHeader:
		ev, err = d.decodeHeader(c)
	case markerObject:
		ev, err = d.decodeObject(c)
	case markerFooter:
		ev, err = d.decodeFooter(c)
	default:
		return Event{}, &UnexpectedTokenError{Token: string(marker), Expected: "hd|ob|ft"}
	}
	if err != nil {
		return Event{}, err
	}

	d.off = c.pos
	return ev, nil
}

func (d *Decoder) decodeHeader(c *cursor) (Event, error) {
	magic, err := c.readBytes(len(magicBytes))
	if err != nil {
		return Event{}, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return Event{}, &UnexpectedTokenError{Token: string(magic), Expected: Magic}
	}
	version, err := c.readUint16()
	if err != nil {
		return Event{}, err
	}
	if version != Version {
		return Event{}, &UnsupportedVersionError{Got: version}
	}
	d.hasher = blake3.New(32, nil)
	return Header(), nil
}

func (d *Decoder) decodeObject(c *cursor) (Event, error) {
	location, err := c.readLenPrefixed()
	if err != nil {
		return Event{}, err
	}
	location = append(PathBytes(nil), location...)

	perms, err := c.readUint32()
	if err != nil {
		return Event{}, err
	}

	kindByte, err := c.readBytes(1)
	if err != nil {
		return Event{}, err
	}
	kind := ContentKind(kindByte[0])

	var content Content
	switch kind {
	case KindFile:
		data, err := c.readLenPrefixed()
		if err != nil {
			return Event{}, err
		}
		content = File(append([]byte(nil), data...))
	case KindSymlink:
		target, err := c.readLenPrefixed()
		if err != nil {
			return Event{}, err
		}
		content = Symlink(append(PathBytes(nil), target...))
	case KindDirectory:
		content = Directory()
	default:
		return Event{}, &UnexpectedTokenError{Token: fmt.Sprintf("%d", kind), Expected: "0|1|2 content tag"}
	}

	wantHash, err := c.readBytes(32)
	if err != nil {
		return Event{}, err
	}

	obj := Object{Location: location, Permissions: perms, Content: content}
	gotHash := obj.Hash()
	if !bytes.Equal(gotHash[:], wantHash) {
		var want, got [32]byte
		copy(want[:], wantHash)
		copy(got[:], gotHash[:])
		return Event{}, &DigestMismatchError{Want: want, Got: got}
	}

	d.hasher.Write(gotHash[:])
	return ObjectEvent(obj), nil
}

func (d *Decoder) decodeFooter(c *cursor) (Event, error) {
	digestBytes, err := c.readBytes(32)
	if err != nil {
		return Event{}, err
	}
	count, err := c.readUint64()
	if err != nil {
		return Event{}, err
	}
	var sigs []SignatureEntry
	if count > 0 {
		// count comes off the wire; never reserve more entries than the
		// buffered bytes could hold (32-byte fingerprint + 64-byte signature).
		sigs = make([]SignatureEntry, 0, min(count, uint64(c.remaining()/96)))
	}
	for i := uint64(0); i < count; i++ {
		fp, err := c.readBytes(32)
		if err != nil {
			return Event{}, err
		}
		sig, err := c.readBytes(64)
		if err != nil {
			return Event{}, err
		}
		var entry SignatureEntry
		copy(entry.Fingerprint[:], fp)
		copy(entry.Signature[:], sig)
		sigs = append(sigs, entry)
	}

	accumulated := d.hasher.Sum(nil)
	if !bytes.Equal(accumulated, digestBytes) {
		var want, got [32]byte
		copy(want[:], digestBytes)
		copy(got[:], accumulated)
		return Event{}, &DigestMismatchError{Want: want, Got: got}
	}

	var digest [32]byte
	copy(digest[:], digestBytes)
	return Footer(digest, sigs), nil
}

// DecodeAll decodes every complete event currently buffered, returning them
// along with any trailing *IncompleteError (which is not an error for
// callers that plan to Feed more bytes later).
func (d *Decoder) DecodeAll() ([]Event, error) {
	var events []Event
	for {
		ev, err := d.Next()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// ComputeDigest returns the running BLAKE3 digest that encoding objects in
// order, right after a Header reset, would accumulate: each object's own
// Hash() fed into the hasher in turn. Callers that build a Footer event
// ahead of encoding (e.g. Packer) use this so the Footer they construct
// already carries the digest decoding will recompute, keeping
// decode(encode(E)) == E for the events they hand to the encoder.
func ComputeDigest(objects []Object) [32]byte {
	h := blake3.New(32, nil)
	for _, obj := range objects {
		oh := obj.Hash()
		h.Write(oh[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// EncodeAll encodes a full sequence of events into a fresh buffer.
func EncodeAll(events []Event) []byte {
	enc := NewEncoder()
	var buf bytes.Buffer
	for _, ev := range events {
		enc.Encode(&buf, ev)
	}
	return buf.Bytes()
}

// DecodeAll decodes a full buffer into events, failing if it is not
// exactly consumed by whole frames (trailing incompleteness is returned as
// an error since the buffer is known to be complete already).
func DecodeAll(data []byte) ([]Event, error) {
	d := NewDecoder()
	d.Feed(data)
	var events []Event
	for d.off < len(d.buf) {
		ev, err := d.Next()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}
