package planner

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

// Identity computes n's reproducible build identity: a BLAKE3 digest over
// n's own name and recipe, followed by its runtime closure and then its
// buildtime closure, each ordered by node key (see Closure). Two builds
// with identical identities are guaranteed, by construction, to have
// identical recipes and identical transitive runtime/buildtime
// dependencies (spec.md §4.B, Testable Property 9).
func (p *Frozen) Identity(n *Node) [32]byte {
	h := blake3.New(32, nil)

	writeNodeIdentity(h, n)

	closure := p.Closure(n)
	var count [8]byte
	binary.LittleEndian.PutUint64(count[:], uint64(len(closure.Runtime)))
	h.Write(count[:])
	for _, dep := range closure.Runtime {
		writeNodeIdentity(h, dep)
	}

	binary.LittleEndian.PutUint64(count[:], uint64(len(closure.Buildtime)))
	h.Write(count[:])
	for _, dep := range closure.Buildtime {
		writeNodeIdentity(h, dep)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// writeNodeIdentity feeds one node's name, namespace, and ordered recipe
// into h. Recipe order is preserved as-declared (unlike map-shaped
// payloads, request order is meaningful and part of the package's
// semantics), while each request's payload is hashed through
// writeCanonicalValue so that structurally-equal-but-differently-ordered
// maps inside a payload still agree.
func writeNodeIdentity(h *blake3.Hasher, n *Node) {
	writeCanonicalLenPrefixed(h, []byte(n.Pkg.Name.Identifier))

	var nsCount [8]byte
	binary.LittleEndian.PutUint64(nsCount[:], uint64(len(n.Pkg.Name.Namespace)))
	h.Write(nsCount[:])
	for _, segment := range n.Pkg.Name.Namespace {
		writeCanonicalLenPrefixed(h, []byte(segment))
	}

	var reqCount [8]byte
	binary.LittleEndian.PutUint64(reqCount[:], uint64(len(n.Pkg.Requests)))
	h.Write(reqCount[:])
	for _, req := range n.Pkg.Requests {
		writeCanonicalLenPrefixed(h, []byte(req.Executor.Key()))
		writeCanonicalValue(h, req.Payload)
	}
}
