package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/exp/mmap"
)

// ReadStrategy selects how the Packer reads file contents off disk.
type ReadStrategy int

const (
	// ReadAll reads each file fully into memory with os.ReadFile. This is
	// the default, safe strategy.
	ReadAll ReadStrategy = iota

	// ReadMmap memory-maps each file instead of copying it. It is
	// opt-in/"unsafe" per spec.md §4.A, because a file mutated by another
	// process mid-read can tear the bytes the packer observes.
	ReadMmap
)

// Packer walks a directory tree and emits Events describing it.
type Packer struct {
	Strategy ReadStrategy
}

// NewPacker returns a Packer using the default ReadAll strategy.
func NewPacker() *Packer { return &Packer{Strategy: ReadAll} }

// Pack walks root (excluding root itself) and returns the full Header,
// Object*, Footer event sequence. Entry order is BFS by directory, then
// whatever order the filesystem returns -- not guaranteed stable across
// machines. For reproducible archives, sort the returned events by
// Location first (spec.md §9, "Archive reproducibility").
func (p *Packer) Pack(root string) ([]Event, error) {
	events := []Event{Header()}

	type queued struct {
		absDir string
		relDir string
	}
	queue := []queued{{absDir: root, relDir: ""}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(cur.absDir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			absPath := filepath.Join(cur.absDir, entry.Name())
			relPath := entry.Name()
			if cur.relDir != "" {
				relPath = filepath.Join(cur.relDir, entry.Name())
			}

			info, err := os.Lstat(absPath)
			if err != nil {
				return nil, err
			}

			obj := Object{
				Location:    PathBytes(filepath.ToSlash(relPath)),
				Permissions: uint32(info.Mode().Perm()),
			}

			switch {
			case info.Mode()&os.ModeSymlink != 0:
				target, err := os.Readlink(absPath)
				if err != nil {
					return nil, err
				}
				obj.Content = Symlink(PathBytes(target))

			case info.IsDir():
				obj.Content = Directory()
				queue = append(queue, queued{absDir: absPath, relDir: relPath})

			case info.Mode().IsRegular():
				data, err := p.readFile(absPath)
				if err != nil {
					return nil, err
				}
				obj.Content = File(data)

			default:
				return nil, fmt.Errorf("unsupported file type at %s", absPath)
			}

			events = append(events, ObjectEvent(obj))
		}
	}

	events = append(events, Footer(footerDigest(events), nil))
	return events, nil
}

// footerDigest computes the running digest that encoding events's Object
// entries (everything but the leading Header) would accumulate, so the
// Footer built here already matches what decoding will recompute --
// without this, a freshly packed archive would fail its own round-trip
// (Testable Property 1) the moment it was encoded and decoded back.
func footerDigest(events []Event) [32]byte {
	objects := make([]Object, 0, len(events))
	for _, ev := range events {
		if ev.Kind == EventObject {
			objects = append(objects, ev.Object)
		}
	}
	return ComputeDigest(objects)
}

func (p *Packer) readFile(path string) ([]byte, error) {
	if p.Strategy == ReadMmap {
		ra, err := mmap.Open(path)
		if err != nil {
			return nil, err
		}
		defer ra.Close()
		buf := make([]byte, ra.Len())
		if _, err := ra.ReadAt(buf, 0); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return os.ReadFile(path)
}

// PackSorted is Pack followed by a deterministic sort of the Object events
// by Location, for reproducible archive hashes (spec.md §9). Sorting
// changes the order objects are fed to the hasher at encode time, so the
// Footer's digest (set by Pack to match the pre-sort order) is recomputed
// here against the new order.
func (p *Packer) PackSorted(root string) ([]Event, error) {
	events, err := p.Pack(root)
	if err != nil {
		return nil, err
	}
	sortObjectEvents(events)
	if len(events) > 0 && events[len(events)-1].Kind == EventFooter {
		events[len(events)-1].Digest = footerDigest(events)
	}
	return events, nil
}

// sortObjectEvents sorts the Object events in place by Location, keeping
// the leading Header and trailing Footer fixed.
func sortObjectEvents(events []Event) {
	if len(events) < 2 {
		return
	}
	objects := events[1 : len(events)-1]
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Object.Location.Compare(objects[j].Object.Location) < 0
	})
}
