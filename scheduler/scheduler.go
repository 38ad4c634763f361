// Package scheduler drives a planner's frozen dependency graph to
// completion: it computes which nodes a set of targets require, then
// builds them concurrently in dependency order, emitting Started/Finished
// events as it goes.
//
// Directly grounded on internal/batch/batch.go's scheduler type: the same
// "enqueue leaves with remaining==0, decrement incoming neighbors on
// success" shape, generalized from that scheduler's fixed worker-pool
// (errgroup.Go loop ranging over a work channel) into the unordered,
// demand-driven concurrent driver spec.md §4.E specifies -- every build
// that becomes eligible is launched immediately rather than waiting for a
// free slot in a fixed pool, bounded only by an optional semaphore.
package scheduler

import (
	"context"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/CelestialCrafter/xuehua/builder"
	"github.com/CelestialCrafter/xuehua/planner"
)

// Scheduler drives builds for one frozen planner through one builder.
type Scheduler struct {
	frozen      *planner.Frozen
	builder     *builder.Builder
	parallelism int // 0 means unbounded, per spec.md §9's "production use should add a configurable parallelism bound"
	log         *log.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New returns a Scheduler. parallelism <= 0 means no concurrency cap. A nil
// logger falls back to a stderr logger, mirroring internal/batch.Ctx's Log
// field defaulting the same way.
func New(frozen *planner.Frozen, b *builder.Builder, parallelism int, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Scheduler{
		frozen:      frozen,
		builder:     b,
		parallelism: parallelism,
		log:         logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Scheduler) nextBuildID() uint64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Uint64()
}

// buildResult is one completed build, handed from a build goroutine back
// to the main scheduling loop.
type buildResult struct {
	node *planner.Node
	err  error
}

// Schedule builds every node required to satisfy targets, in dependency
// order, sending a Started and a Finished event for each attempted build
// on sink. Event delivery waits for either a receiver or ctx cancellation --
// the observer may have detached, per spec.md §4.E, but a live one never
// misses an event to a momentarily full channel.
func (s *Scheduler) Schedule(ctx context.Context, targets []*planner.Node, sink chan<- Event) error {
	subset := s.computeSubset(targets)

	remaining := make(map[int64]int, len(subset))
	for id, n := range subset {
		remaining[id] = len(s.frozen.Dependencies(n))
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures *multierror.Error
		sem      chan struct{}
	)
	if s.parallelism > 0 {
		sem = make(chan struct{}, s.parallelism)
	}
	results := make(chan buildResult, len(subset))

	active := 0
	var enqueue func(n *planner.Node)
	enqueue = func(n *planner.Node) {
		active++
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			req := builder.BuildRequest{ID: s.nextBuildID(), Target: n}
			s.log.Printf("build %d: starting %s", req.ID, n.Pkg.Name)
			sendEvent(ctx, sink, Event{Kind: EventStarted, Request: req})

			err := s.builder.Build(ctx, s.frozen, req)
			if err != nil {
				s.log.Printf("build %d: %s failed: %v", req.ID, n.Pkg.Name, err)
			} else {
				s.log.Printf("build %d: %s finished", req.ID, n.Pkg.Name)
			}

			sendEvent(ctx, sink, Event{Kind: EventFinished, Request: req, Result: err})

			select {
			case results <- buildResult{node: n, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	for id, n := range subset {
		if remaining[id] == 0 {
			enqueue(n)
		}
	}

	// active counts builds that have been launched but not yet observed
	// here; the driver terminates once it drops to zero, i.e. once the
	// unordered futures collection has drained (spec.md §4.E step 4) --
	// NOT once every node in subset has been processed, since a failed
	// node's dependents are deliberately never enqueued and would
	// otherwise never let the loop reach len(subset).
	for active > 0 {
		select {
		case result := <-results:
			mu.Lock()
			active--
			if result.err != nil {
				failures = multierror.Append(failures, result.err)
				// Dependents of a failed node can never become eligible
				// (their remaining count never reaches zero); they are
				// simply never enqueued, matching spec.md §4.E's "do
				// nothing further for that node's dependents".
			} else {
				for _, dependent := range s.frozen.Dependents(result.node) {
					if _, inSubset := subset[dependent.ID()]; !inSubset {
						continue
					}
					remaining[dependent.ID()]--
					if remaining[dependent.ID()] == 0 {
						enqueue(dependent)
					}
				}
			}
			mu.Unlock()
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}
	}

	wg.Wait()
	return failures.ErrorOrNil()
}

// computeSubset performs a DFS along outgoing edges from targets,
// collecting every node that must be built to satisfy them.
func (s *Scheduler) computeSubset(targets []*planner.Node) map[int64]*planner.Node {
	subset := make(map[int64]*planner.Node)
	var stack []*planner.Node
	stack = append(stack, targets...)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := subset[n.ID()]; ok {
			continue
		}
		subset[n.ID()] = n
		for _, dep := range s.frozen.Dependencies(n) {
			depNode, ok := s.frozen.Resolve(dep.Name)
			if !ok {
				continue
			}
			if _, ok := subset[depNode.ID()]; !ok {
				stack = append(stack, depNode)
			}
		}
	}
	return subset
}

// sendEvent delivers ev to sink, or gives up once ctx is done -- the
// best-effort delivery spec.md §4.E calls for ("send errors are ignored,
// the observer may have detached"), modeled in Go as "stop waiting on a
// cancelled context" rather than a silently-dropping non-blocking send,
// so that a live, attentive observer never misses an event.
func sendEvent(ctx context.Context, sink chan<- Event, ev Event) {
	if sink == nil {
		return
	}
	select {
	case sink <- ev:
	case <-ctx.Done():
	}
}
