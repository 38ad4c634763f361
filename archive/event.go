package archive

// Version is the current archive format version.
const Version uint16 = 1

// Magic is the archive header's magic string.
const Magic = "xuehua-archive"

// tokenPrefix precedes every event's 2-byte marker on the wire.
const tokenPrefix = "xuehua-archive@"

// Markers, 2 bytes each, identifying the following event's kind.
const (
	markerHeader = "hd"
	markerObject = "ob"
	markerFooter = "ft"
)

// EventKind tags the Event sum type.
type EventKind uint8

const (
	EventHeader EventKind = iota
	EventObject
	EventFooter
)

// SignatureEntry pairs a Fingerprint with its Signature, as carried in a
// Footer.
type SignatureEntry struct {
	Fingerprint Fingerprint
	Signature   Signature
}

// Event is one element of the archive stream: exactly one Header, zero or
// more Objects, and one Footer make up a well-formed archive. Multiple
// archives may be concatenated.
type Event struct {
	Kind    EventKind
	Version uint16 // valid when Kind == EventHeader
	Object  Object // valid when Kind == EventObject

	// valid when Kind == EventFooter
	Digest     [32]byte
	Signatures []SignatureEntry
}

// Header builds a Header event.
func Header() Event { return Event{Kind: EventHeader, Version: Version} }

// ObjectEvent builds an Object event.
func ObjectEvent(o Object) Event { return Event{Kind: EventObject, Object: o} }

// Footer builds a Footer event carrying the given running digest and
// optional signatures.
func Footer(digest [32]byte, sigs []SignatureEntry) Event {
	return Event{Kind: EventFooter, Digest: digest, Signatures: sigs}
}
