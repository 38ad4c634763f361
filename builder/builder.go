// Package builder owns the lifecycle of per-build scratch environments and
// drives a package's ordered recipe through whichever executors are
// registered for it.
//
// Grounded on internal/build/build.go's (*Ctx) build flow: creating a
// scratch directory tree, running a fixed sequence of build actions
// against it, and collecting an output directory afterwards. Xuehua
// generalizes build.go's closed type-switch over script/cmake/meson/...
// build actions into a slice of executor.Factory values whose executors
// are matched by name (spec.md §9 design note (a)).
package builder

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/CelestialCrafter/xuehua/archive"
	"github.com/CelestialCrafter/xuehua/executor"
	"github.com/CelestialCrafter/xuehua/planner"
)

// BuildRequest is a single build dispatch: a freshly chosen scratch
// environment id plus the node to build.
type BuildRequest struct {
	ID     uint64
	Target *planner.Node
}

// Builder owns the parent directory scratch environments live under and
// the set of executor factories available to every build.
type Builder struct {
	root        string
	factories   []executor.Factory
	bwrapPath   string
	busyboxPath string
	log         *log.Logger
}

// New returns a Builder rooted at root, which must already exist.
// bwrapPath and busyboxPath locate the external binaries the sandboxed
// command executor shells out to and bind-mounts, respectively. A nil
// logger falls back to a stderr logger, as internal/batch.Ctx.Log does.
func New(root, bwrapPath, busyboxPath string, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Builder{root: root, bwrapPath: bwrapPath, busyboxPath: busyboxPath, log: logger}
}

// Register extends the factory list consulted by Build.
func (b *Builder) Register(factory executor.Factory) {
	b.factories = append(b.factories, factory)
}

// EnvironmentPath returns the scratch directory for a given build id.
func (b *Builder) EnvironmentPath(id uint64) string {
	return filepath.Join(b.root, strconv.FormatUint(id, 10))
}

// Build creates req's scratch environment, initializes every registered
// executor factory against it, then dispatches the target's requests in
// declared order, stopping at the first error.
func (b *Builder) Build(ctx context.Context, frozen *planner.Frozen, req BuildRequest) error {
	envPath := b.EnvironmentPath(req.ID)
	if _, err := os.Stat(envPath); err == nil {
		return &EnvironmentExistsError{Path: envPath}
	}
	if err := os.MkdirAll(filepath.Join(envPath, "output"), 0o755); err != nil {
		return xerrors.Errorf("create build environment %s: %w", envPath, err)
	}

	initCtx := &executor.InitContext{
		EnvironmentRoot: envPath,
		BwrapPath:       b.bwrapPath,
		BusyboxPath:     b.busyboxPath,
	}

	executors := make([]executor.Executor, 0, len(b.factories))
	for _, factory := range b.factories {
		e, err := factory(initCtx)
		if err != nil {
			return xerrors.Errorf("initialize executor factory: %w", err)
		}
		executors = append(executors, e)
	}

	for _, dispatch := range req.Target.Pkg.Requests {
		var chosen executor.Executor
		for _, e := range executors {
			if e.Name().Equal(dispatch.Executor) {
				chosen = e
				break
			}
		}
		if chosen == nil {
			return &UnregisteredExecutorError{Name: dispatch.Executor}
		}
		b.log.Printf("build %d: dispatching to %s", req.ID, dispatch.Executor)
		if err := chosen.Execute(ctx, dispatch.Payload); err != nil {
			return xerrors.Errorf("dispatch to %s: %w", dispatch.Executor, err)
		}
	}

	return nil
}

// Fetch packs the build's output directory, if present, into archive
// events using the mmap read strategy. A missing output directory is not
// an error -- it simply means the build produced nothing to hand to the
// store.
func (b *Builder) Fetch(id uint64) ([]archive.Event, bool, error) {
	outputPath := filepath.Join(b.EnvironmentPath(id), "output")
	if _, err := os.Stat(outputPath); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, xerrors.Errorf("stat %s: %w", outputPath, err)
	}

	packer := &archive.Packer{Strategy: archive.ReadMmap}
	events, err := packer.PackSorted(outputPath)
	if err != nil {
		return nil, false, xerrors.Errorf("pack output of build %d: %w", id, err)
	}
	return events, true, nil
}
