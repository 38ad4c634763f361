package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/CelestialCrafter/xuehua/executor"
	"github.com/CelestialCrafter/xuehua/planner"
)

// stubExecutor writes a fixed marker file into its environment's output
// directory, standing in for a real command/http/compression executor so
// these tests never shell out to bwrap.
type stubExecutor struct {
	name planner.ExecutorName
	init *executor.InitContext
	fail bool
}

func (s *stubExecutor) Name() planner.ExecutorName { return s.name }

func (s *stubExecutor) Execute(ctx context.Context, payload *structpb.Value) error {
	if s.fail {
		return &UnregisteredExecutorError{Name: s.name}
	}
	return os.WriteFile(filepath.Join(s.init.EnvironmentRoot, "output", s.name.Identifier), []byte("ok"), 0o644)
}

func stubFactory(name string) executor.Factory {
	return func(init *executor.InitContext) (executor.Executor, error) {
		return &stubExecutor{name: planner.ExecutorName{Identifier: name}, init: init}, nil
	}
}

func TestBuildDispatchesEveryRequest(t *testing.T) {
	root := t.TempDir()
	b := New(root, "/bin/bwrap", "/bin/busybox", nil)
	b.Register(stubFactory("first"))
	b.Register(stubFactory("second"))

	p := planner.New()
	pkg := &planner.Package{
		Name: planner.PackageName{Identifier: "pkg"},
		Requests: []planner.DispatchRequest{
			{Executor: planner.ExecutorName{Identifier: "first"}},
			{Executor: planner.ExecutorName{Identifier: "second"}},
		},
	}
	node, err := p.Register(pkg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	frozen, err := p.Freeze()
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}

	req := BuildRequest{ID: 1, Target: node}
	if err := b.Build(context.Background(), frozen, req); err != nil {
		t.Fatalf("build: %v", err)
	}

	for _, name := range []string{"first", "second"} {
		if _, err := os.Stat(filepath.Join(b.EnvironmentPath(1), "output", name)); err != nil {
			t.Fatalf("expected marker for %s: %v", name, err)
		}
	}

	events, ok, err := b.Fetch(1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !ok {
		t.Fatal("expected output present")
	}
	if len(events) == 0 {
		t.Fatal("expected non-empty archive events")
	}
}

func TestBuildFailsOnUnregisteredExecutor(t *testing.T) {
	root := t.TempDir()
	b := New(root, "/bin/bwrap", "/bin/busybox", nil)

	p := planner.New()
	pkg := &planner.Package{
		Name: planner.PackageName{Identifier: "pkg"},
		Requests: []planner.DispatchRequest{
			{Executor: planner.ExecutorName{Identifier: "missing"}},
		},
	}
	node, err := p.Register(pkg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	frozen, err := p.Freeze()
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}

	err = b.Build(context.Background(), frozen, BuildRequest{ID: 2, Target: node})
	if _, ok := err.(*UnregisteredExecutorError); !ok {
		t.Fatalf("expected *UnregisteredExecutorError, got %T: %v", err, err)
	}
}

func TestBuildFailsOnDuplicateEnvironment(t *testing.T) {
	root := t.TempDir()
	b := New(root, "/bin/bwrap", "/bin/busybox", nil)
	b.Register(stubFactory("only"))

	p := planner.New()
	pkg := &planner.Package{
		Name:     planner.PackageName{Identifier: "pkg"},
		Requests: []planner.DispatchRequest{{Executor: planner.ExecutorName{Identifier: "only"}}},
	}
	node, err := p.Register(pkg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	frozen, err := p.Freeze()
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if err := b.Build(context.Background(), frozen, BuildRequest{ID: 3, Target: node}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	err = b.Build(context.Background(), frozen, BuildRequest{ID: 3, Target: node})
	if _, ok := err.(*EnvironmentExistsError); !ok {
		t.Fatalf("expected *EnvironmentExistsError, got %T: %v", err, err)
	}
}
