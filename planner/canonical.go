package planner

import (
	"encoding/binary"
	"math"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"
	"lukechampine.com/blake3"
)

// valueTag discriminates structpb.Value.Kind inside the canonical encoding
// below; values are arbitrary but must stay stable across releases since
// they feed directly into identity hashes (spec.md §9 point 2).
type valueTag byte

const (
	tagNull valueTag = iota
	tagNumber
	tagString
	tagBool
	tagStruct
	tagList
)

// writeCanonicalValue feeds a deterministic byte encoding of v into h. Map
// fields (structpb.Struct) are the only unordered piece of a Value tree, so
// their keys are sorted before writing -- this is exactly the fix spec.md
// §9 point 2 calls for: "payload hashing must canonicalize map key order
// before hashing, or two semantically identical packages can receive
// different identities."
func writeCanonicalValue(h *blake3.Hasher, v *structpb.Value) {
	if v == nil {
		h.Write([]byte{byte(tagNull)})
		return
	}

	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		h.Write([]byte{byte(tagNull)})
	case *structpb.Value_NumberValue:
		h.Write([]byte{byte(tagNumber)})
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(kind.NumberValue))
		h.Write(buf[:])
	case *structpb.Value_StringValue:
		h.Write([]byte{byte(tagString)})
		writeCanonicalLenPrefixed(h, []byte(kind.StringValue))
	case *structpb.Value_BoolValue:
		h.Write([]byte{byte(tagBool)})
		if kind.BoolValue {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case *structpb.Value_StructValue:
		h.Write([]byte{byte(tagStruct)})
		fields := kind.StructValue.GetFields()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(keys)))
		h.Write(n[:])
		for _, k := range keys {
			writeCanonicalLenPrefixed(h, []byte(k))
			writeCanonicalValue(h, fields[k])
		}
	case *structpb.Value_ListValue:
		h.Write([]byte{byte(tagList)})
		values := kind.ListValue.GetValues()
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(values)))
		h.Write(n[:])
		for _, elem := range values {
			writeCanonicalValue(h, elem)
		}
	default:
		h.Write([]byte{byte(tagNull)})
	}
}

func writeCanonicalLenPrefixed(h *blake3.Hasher, b []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}
