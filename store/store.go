// Package store implements xuehua's content-addressed artifact and
// package catalog, and the reference local backend for it.
package store

import (
	"context"
	"time"

	"github.com/CelestialCrafter/xuehua/archive"
)

// ArtifactID is a content hash identifying a registered archive.
type ArtifactID [32]byte

// Artifact is a registered, encoded archive.
type Artifact struct {
	ID        ArtifactID
	Size      int64
	CreatedAt time.Time
}

// PackageID is a planner identity hash (planner.Frozen.Identity's output).
type PackageID [32]byte

// Package maps a package identity to the artifact built for it.
type Package struct {
	PackageID  PackageID
	ArtifactID ArtifactID
	CreatedAt  time.Time
}

// Store is the interface every backend (reference local, or a future
// remote one) implements. Implementations MUST treat stored content as
// immutable once registered -- RegisterArtifact is idempotent by content
// hash, and RegisterPackage always overwrites any prior mapping rather
// than erroring, since a package's identity may legitimately be rebuilt to
// the same (or a new) artifact.
type Store interface {
	RegisterArtifact(ctx context.Context, events []archive.Event) (Artifact, error)
	Artifact(ctx context.Context, id ArtifactID) (Artifact, bool, error)
	Download(ctx context.Context, id ArtifactID) ([]archive.Event, bool, error)
	RegisterPackage(ctx context.Context, pkgID PackageID, artifactID ArtifactID) (Package, error)
	Package(ctx context.Context, pkgID PackageID) (Package, bool, error)
}
