// Package planner implements xuehua's two-phase configuration/registration
// engine: a flat collection of Package configurations is registered into an
// Unfrozen planner, then frozen once into an immutable, acyclic dependency
// graph exposing closures and identity hashes.
//
// The DAG itself is backed by gonum.org/v1/gonum/graph/simple, the same
// library internal/batch/batch.go already uses to schedule distri package
// rebuilds -- Planner generalizes that one-shot batch graph into a
// persistent, queryable structure with two explicit lifecycle states.
package planner

import (
	"fmt"
	"strings"
)

// PackageName identifies a Package: an identifier plus an ordered sequence
// of namespace segments, human-printable as "ident@a/b/c".
type PackageName struct {
	Identifier string
	Namespace  []string
}

// Key returns a value suitable for use as a map key (PackageName itself
// contains a slice and so is not comparable).
func (n PackageName) Key() string {
	return n.Identifier + "@" + strings.Join(n.Namespace, "/")
}

func (n PackageName) String() string {
	if len(n.Namespace) == 0 {
		return n.Identifier
	}
	return n.Identifier + "@" + strings.Join(n.Namespace, "/")
}

// Equal reports structural equality (identifier + ordered namespace).
func (n PackageName) Equal(o PackageName) bool {
	return n.Key() == o.Key()
}

// ExecutorName identifies an executor: an identifier, an ordered namespace,
// and a fixed "executor" kind tag, rendered per spec.md §6 as
// "identifier@namespace1/namespace2(executor)".
type ExecutorName struct {
	Identifier string
	Namespace  []string
}

func (n ExecutorName) Key() string {
	return n.Identifier + "@" + strings.Join(n.Namespace, "/") + "(executor)"
}

func (n ExecutorName) String() string {
	return fmt.Sprintf("%s@%s(executor)", n.Identifier, strings.Join(n.Namespace, "/"))
}

func (n ExecutorName) Equal(o ExecutorName) bool {
	return n.Key() == o.Key()
}

// NamespaceTracker is a scoped stack of namespace segments shared between
// the (out-of-core) front-end and the planner, so that package names can
// be tagged with their lexical location as the front-end walks its own
// configuration tree. It is reentrant-safe from a single cooperative task
// only -- like the front-end it serves, it is not meant to be shared
// across goroutines.
type NamespaceTracker struct {
	segments []string
}

// NewNamespaceTracker returns an empty tracker.
func NewNamespaceTracker() *NamespaceTracker {
	return &NamespaceTracker{}
}

// Scope pushes segment, runs fn, and pops segment again, including on
// panic or early return.
func (t *NamespaceTracker) Scope(segment string, fn func() error) error {
	t.segments = append(t.segments, segment)
	defer func() {
		t.segments = t.segments[:len(t.segments)-1]
	}()
	return fn()
}

// Current returns a copy of the current namespace stack, outermost first.
func (t *NamespaceTracker) Current() []string {
	out := make([]string, len(t.segments))
	copy(out, t.segments)
	return out
}

// Name builds a PackageName tagging identifier with the tracker's current
// namespace.
func (t *NamespaceTracker) Name(identifier string) PackageName {
	return PackageName{Identifier: identifier, Namespace: t.Current()}
}
