package scheduler

import "github.com/CelestialCrafter/xuehua/builder"

// EventKind discriminates a scheduler Event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventFinished
)

// Event is one scheduler notification, analogous to the role
// internal/trace/trace.go's Event plays for distri's own Chrome-trace
// sink, generalized here into a typed value delivered over an ordinary Go
// channel instead of a JSON trace file, since spec.md §4.E requires
// structured Started/Finished values rather than a trace artifact.
type Event struct {
	Kind    EventKind
	Request builder.BuildRequest
	Result  error // populated only for EventFinished
}
