// Package executor implements the three dispatchable build actions
// (command/sandbox, HTTP fetch, zstd compression) the builder invokes in
// declared order for each package's recipe.
//
// internal/build/build.go composes its own fixed set of build actions
// (script, cmake, meson, python, proto, pkg-config) as a closed Go type
// switch over a single *Ctx. Xuehua instead needs a name-keyed, runtime
// extensible registry -- spec.md §9 design note (a) -- because the three
// executors here are meant to be one instance of an open set, not the
// whole of it.
package executor

import (
	"context"
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/CelestialCrafter/xuehua/planner"
)

// InitContext is the shared, read-only context every executor factory is
// initialized against: the per-build environment root plus the host paths
// of the external binaries the sandbox executor shells out to.
type InitContext struct {
	EnvironmentRoot string
	BwrapPath       string
	BusyboxPath     string
}

// Executor is one dispatchable build action. Execute receives the raw
// structpb payload; each concrete executor decodes it with decodePayload
// into its own Request shape.
type Executor interface {
	Name() planner.ExecutorName
	Execute(ctx context.Context, payload *structpb.Value) error
}

// Factory builds a ready Executor against a shared InitContext, the
// runtime substitute for the source's compile-time executor composition.
type Factory func(*InitContext) (Executor, error)

// decodePayload round-trips payload through protojson so that a
// structpb.Value tree (the planner's JSON-equivalent wire type) can be
// unmarshaled into any ordinary Go struct with "json" tags, without every
// executor hand-rolling its own structpb.Value field extraction.
func decodePayload(payload *structpb.Value, dest interface{}) error {
	if payload == nil {
		return json.Unmarshal([]byte("{}"), dest)
	}
	raw, err := protojson.Marshal(payload.GetStructValue())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
