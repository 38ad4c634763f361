package scheduler

import (
	"context"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/CelestialCrafter/xuehua/builder"
	"github.com/CelestialCrafter/xuehua/executor"
	"github.com/CelestialCrafter/xuehua/planner"
)

type namedExecutor struct {
	name planner.ExecutorName
	fail bool
}

func (n namedExecutor) Name() planner.ExecutorName { return n.name }

func (n namedExecutor) Execute(ctx context.Context, payload *structpb.Value) error {
	if n.fail {
		return errFailed
	}
	return nil
}

var errFailed = &scheduleTestError{}

type scheduleTestError struct{}

func (*scheduleTestError) Error() string { return "injected failure" }

func registerStandardExecutors(b *builder.Builder, failC bool) {
	b.Register(func(init *executor.InitContext) (executor.Executor, error) {
		return namedExecutor{name: planner.ExecutorName{Identifier: "noop"}}, nil
	})
	b.Register(func(init *executor.InitContext) (executor.Executor, error) {
		return namedExecutor{name: planner.ExecutorName{Identifier: "fail-c"}, fail: failC}, nil
	})
}

func chainDiamond(t *testing.T) (*planner.Frozen, map[string]*planner.Node) {
	t.Helper()
	p := planner.New()

	c := &planner.Package{
		Name:     planner.PackageName{Identifier: "C"},
		Requests: []planner.DispatchRequest{{Executor: planner.ExecutorName{Identifier: "fail-c"}}},
	}
	b := &planner.Package{
		Name:         planner.PackageName{Identifier: "B"},
		Requests:     []planner.DispatchRequest{{Executor: planner.ExecutorName{Identifier: "noop"}}},
		Dependencies: []planner.Dependency{{Name: planner.PackageName{Identifier: "C"}, Time: planner.Runtime}},
	}
	a := &planner.Package{
		Name:         planner.PackageName{Identifier: "A"},
		Requests:     []planner.DispatchRequest{{Executor: planner.ExecutorName{Identifier: "noop"}}},
		Dependencies: []planner.Dependency{{Name: planner.PackageName{Identifier: "B"}, Time: planner.Runtime}},
	}

	nodes := map[string]*planner.Node{}
	for _, pkg := range []*planner.Package{c, b, a} {
		n, err := p.Register(pkg)
		if err != nil {
			t.Fatalf("register %s: %v", pkg.Name, err)
		}
		nodes[pkg.Name.Identifier] = n
	}
	frozen, err := p.Freeze()
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	return frozen, nodes
}

// S6: Started(C), Finished(C,Ok), Started(B), Finished(B,Ok), Started(A), Finished(A,Ok).
func TestScheduleRespectsDependencyOrder(t *testing.T) {
	frozen, nodes := chainDiamond(t)

	root := t.TempDir()
	b := builder.New(root, "/bin/bwrap", "/bin/busybox", nil)
	registerStandardExecutors(b, false)

	s := New(frozen, b, 0, nil)
	sink := make(chan Event, 16)

	done := make(chan error, 1)
	go func() {
		done <- s.Schedule(context.Background(), []*planner.Node{nodes["A"]}, sink)
	}()

	var gotOrder []string
	for i := 0; i < 6; i++ {
		select {
		case ev := <-sink:
			verb := "Started"
			if ev.Kind == EventFinished {
				verb = "Finished"
			}
			gotOrder = append(gotOrder, verb+"("+pkgNameFor(ev, nodes)+")")
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	want := []string{
		"Started(C)", "Finished(C)",
		"Started(B)", "Finished(B)",
		"Started(A)", "Finished(A)",
	}
	for i := range want {
		if gotOrder[i] != want[i] {
			t.Fatalf("event order mismatch: got %v, want %v", gotOrder, want)
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("schedule: %v", err)
	}
}

func pkgNameFor(ev Event, nodes map[string]*planner.Node) string {
	for name, n := range nodes {
		if n.ID() == ev.Request.Target.ID() {
			return name
		}
	}
	return "?"
}

func TestScheduleStopsDependentsOnFailure(t *testing.T) {
	frozen, nodes := chainDiamond(t)

	root := t.TempDir()
	b := builder.New(root, "/bin/bwrap", "/bin/busybox", nil)
	registerStandardExecutors(b, true)

	s := New(frozen, b, 0, nil)
	sink := make(chan Event, 16)

	err := s.Schedule(context.Background(), []*planner.Node{nodes["A"]}, sink)
	if err == nil {
		t.Fatal("expected an error because C fails")
	}

	close(sink)
	for ev := range sink {
		if name := pkgNameFor(ev, nodes); ev.Kind == EventStarted && name != "C" {
			t.Fatalf("dependent %s was started after C failed", name)
		}
	}
}
