package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/xerrors"
	"github.com/google/renameio"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/mmap"
	"lukechampine.com/blake3"

	"github.com/CelestialCrafter/xuehua/archive"
)

// Local is the reference store backend: a content-addressed directory of
// encoded archive files, fronted by a SQLite catalog of artifact and
// package rows.
//
// Grounded on internal/install/install.go's renameio.TempFile /
// CloseAtomicallyReplace idiom for atomic artifact writes, and on the
// SQLite-backed local image catalog other_examples/manifests/DrDaveD-apptainer
// keeps for its own container store -- the same shape of problem (a
// content-addressed blob directory plus a small relational index over it)
// solved with the same driver, github.com/mattn/go-sqlite3 via
// database/sql.
//
// All calls are serialized onto one dedicated goroutine reading from a
// request channel with one-shot reply channels, per spec.md §5 ("the local
// store runs a dedicated OS thread and receives tasks over a bounded
// channel, returning results via one-shot reply channels") -- the same
// "single sequential worker" shape internal/install/install.go's installer
// goroutine has for its own sequential disk writes.
type Local struct {
	dir      string
	db       *sql.DB
	requests chan localRequest
}

type localRequest struct {
	fn    func() (interface{}, error)
	reply chan localResult
}

type localResult struct {
	val interface{}
	err error
}

// OpenLocal opens (creating if necessary) a local store rooted at dir, per
// spec.md §6's persisted layout: "<root>/artifacts/<hex-hash>" holds each
// encoded archive byte stream, and "<root>/artifacts/store.db" holds the
// catalog.
func OpenLocal(dir string) (*Local, error) {
	artifactsDir := filepath.Join(dir, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return nil, xerrors.Errorf("create store directory %s: %w", artifactsDir, err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(artifactsDir, "store.db"))
	if err != nil {
		return nil, xerrors.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts (
			id         BLOB PRIMARY KEY,
			size       INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS packages (
			id         BLOB PRIMARY KEY,
			artifact   BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, xerrors.Errorf("create catalog schema: %w", err)
	}

	l := &Local{
		dir:      artifactsDir,
		db:       db,
		requests: make(chan localRequest, 64),
	}
	go l.run()
	return l, nil
}

// Close stops the store's worker goroutine and closes the catalog
// database. In-flight calls are allowed to finish first.
func (l *Local) Close() error {
	// The worker runs requests in order, so once this no-op is answered
	// every call queued before it has finished.
	reply := make(chan localResult, 1)
	l.requests <- localRequest{fn: func() (interface{}, error) { return nil, nil }, reply: reply}
	<-reply
	close(l.requests)
	return l.db.Close()
}

func (l *Local) run() {
	for req := range l.requests {
		val, err := req.fn()
		req.reply <- localResult{val: val, err: err}
	}
}

// call dispatches fn onto the worker goroutine and blocks for its reply,
// or until ctx is cancelled.
func (l *Local) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	reply := make(chan localResult, 1)
	select {
	case l.requests <- localRequest{fn: fn, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.val, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// artifactPath names the on-disk file for id by hex, since filesystems
// don't take raw BLOBs for names; the catalog itself stores id as BLOB,
// per spec.md §6.
func (l *Local) artifactPath(id ArtifactID) string {
	return filepath.Join(l.dir, hex.EncodeToString(id[:]))
}

func (l *Local) RegisterArtifact(ctx context.Context, events []archive.Event) (Artifact, error) {
	val, err := l.call(ctx, func() (interface{}, error) {
		encoded := archive.EncodeAll(events)
		id := ArtifactID(blake3.Sum256(encoded))

		var existingSize int64
		var existingCreated int64
		err := l.db.QueryRow(`SELECT size, created_at FROM artifacts WHERE id = ?`, id[:]).Scan(&existingSize, &existingCreated)
		if err == nil {
			return Artifact{ID: id, Size: existingSize, CreatedAt: time.Unix(existingCreated, 0).UTC()}, nil // idempotent by content hash
		}
		if err != sql.ErrNoRows {
			return nil, xerrors.Errorf("query artifact: %w", err)
		}

		dest := l.artifactPath(id)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, xerrors.Errorf("create artifact directory: %w", err)
		}
		tmp, err := renameio.TempFile("", dest)
		if err != nil {
			return nil, xerrors.Errorf("open temp artifact file: %w", err)
		}
		defer tmp.Cleanup()
		if _, err := tmp.Write(encoded); err != nil {
			return nil, xerrors.Errorf("write artifact: %w", err)
		}
		if err := tmp.CloseAtomicallyReplace(); err != nil {
			return nil, xerrors.Errorf("commit artifact: %w", err)
		}

		createdAt := time.Now().UTC()
		if _, err := l.db.Exec(`INSERT INTO artifacts (id, size, created_at) VALUES (?, ?, ?)`, id[:], len(encoded), createdAt.Unix()); err != nil {
			return nil, xerrors.Errorf("insert artifact row: %w", err)
		}

		return Artifact{ID: id, Size: int64(len(encoded)), CreatedAt: createdAt}, nil
	})
	if err != nil {
		return Artifact{}, err
	}
	return val.(Artifact), nil
}

func (l *Local) Artifact(ctx context.Context, id ArtifactID) (Artifact, bool, error) {
	val, err := l.call(ctx, func() (interface{}, error) {
		var size int64
		var createdAt int64
		err := l.db.QueryRow(`SELECT size, created_at FROM artifacts WHERE id = ?`, id[:]).Scan(&size, &createdAt)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, xerrors.Errorf("query artifact: %w", err)
		}
		return &Artifact{ID: id, Size: size, CreatedAt: time.Unix(createdAt, 0).UTC()}, nil
	})
	if err != nil {
		return Artifact{}, false, err
	}
	if val == nil {
		return Artifact{}, false, nil
	}
	return *val.(*Artifact), true, nil
}

func (l *Local) Download(ctx context.Context, id ArtifactID) ([]archive.Event, bool, error) {
	val, err := l.call(ctx, func() (interface{}, error) {
		var size int64
		var createdAt int64
		err := l.db.QueryRow(`SELECT size, created_at FROM artifacts WHERE id = ?`, id[:]).Scan(&size, &createdAt)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, xerrors.Errorf("query artifact: %w", err)
		}

		reader, err := mmap.Open(l.artifactPath(id))
		if err != nil {
			return nil, xerrors.Errorf("open artifact: %w", err)
		}
		defer reader.Close()

		buf := make([]byte, reader.Len())
		if _, err := reader.ReadAt(buf, 0); err != nil {
			return nil, xerrors.Errorf("read artifact: %w", err)
		}

		if blake3.Sum256(buf) != [32]byte(id) {
			return nil, &CorruptArtifactError{ID: id}
		}

		events, err := archive.DecodeAll(buf)
		if err != nil {
			return nil, xerrors.Errorf("decode artifact: %w", err)
		}
		return events, nil
	})
	if err != nil {
		return nil, false, err
	}
	if val == nil {
		return nil, false, nil
	}
	return val.([]archive.Event), true, nil
}

func (l *Local) RegisterPackage(ctx context.Context, pkgID PackageID, artifactID ArtifactID) (Package, error) {
	val, err := l.call(ctx, func() (interface{}, error) {
		createdAt := time.Now().UTC()
		_, err := l.db.Exec(`
			INSERT INTO packages (id, artifact, created_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET artifact = excluded.artifact, created_at = excluded.created_at
		`, pkgID[:], artifactID[:], createdAt.Unix())
		if err != nil {
			return nil, xerrors.Errorf("upsert package row: %w", err)
		}
		return Package{PackageID: pkgID, ArtifactID: artifactID, CreatedAt: createdAt}, nil
	})
	if err != nil {
		return Package{}, err
	}
	return val.(Package), nil
}

func (l *Local) Package(ctx context.Context, pkgID PackageID) (Package, bool, error) {
	val, err := l.call(ctx, func() (interface{}, error) {
		var artifactBytes []byte
		var createdAt int64
		err := l.db.QueryRow(`SELECT artifact, created_at FROM packages WHERE id = ?`, pkgID[:]).Scan(&artifactBytes, &createdAt)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, xerrors.Errorf("query package: %w", err)
		}
		var artifactID ArtifactID
		copy(artifactID[:], artifactBytes)
		return &Package{PackageID: pkgID, ArtifactID: artifactID, CreatedAt: time.Unix(createdAt, 0).UTC()}, nil
	})
	if err != nil {
		return Package{}, false, err
	}
	if val == nil {
		return Package{}, false, nil
	}
	return *val.(*Package), true, nil
}
