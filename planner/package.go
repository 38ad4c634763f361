package planner

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// LinkTime classifies a Dependency edge.
type LinkTime int

const (
	Runtime LinkTime = iota
	Buildtime
)

func (t LinkTime) String() string {
	if t == Buildtime {
		return "buildtime"
	}
	return "runtime"
}

// Dependency is one edge a Package's front-end author declared, consumed
// at freeze time and turned into a graph edge.
type Dependency struct {
	Name PackageName
	Time LinkTime
}

// DispatchRequest is one step of a Package's build recipe: a reference to
// an executor plus its structured, JSON-equivalent payload.
//
// Payload uses structpb.Value (google.golang.org/protobuf, a teacher
// dependency already pulled in for its grpc/protobuf stack) rather than a
// bespoke tree type or encoding/json's map[string]interface{}: it is
// exactly the "structured, serializable JSON-equivalent tree" spec.md §3
// calls for, and its deterministic field layout is what makes canonical
// hashing (spec.md §9's payload-hashing fix) straightforward.
type DispatchRequest struct {
	Executor ExecutorName
	Payload  *structpb.Value
}

// Package is a planner node: a name, opaque reserved metadata, an ordered
// build recipe, and -- only meaningful before freezing -- an ordered list
// of dependencies.
type Package struct {
	Name         PackageName
	Metadata     *structpb.Value
	Requests     []DispatchRequest
	Dependencies []Dependency
}

// Clone returns a deep-enough copy of p suitable for ConfigManager's
// clone-transform-reregister pattern (see config.go), the same role
// internal/build/build.go's (*Ctx).Clone plays for parametrized package
// variants in distri's own front end.
func (p *Package) Clone() *Package {
	clone := &Package{
		Name:     p.Name,
		Metadata: p.Metadata,
	}
	clone.Requests = append(clone.Requests, p.Requests...)
	clone.Dependencies = append(clone.Dependencies, p.Dependencies...)
	return clone
}
