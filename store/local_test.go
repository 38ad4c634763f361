package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/CelestialCrafter/xuehua/archive"
)

func sampleEvents() []archive.Event {
	obj := archive.Object{
		Location:    archive.PathBytes("/greeting"),
		Permissions: 0o644,
		Content:     archive.File([]byte("hello store")),
	}
	// The Footer must carry the real running digest decoding will
	// recompute (archive.ComputeDigest mirrors the encoder's accumulation),
	// or a round trip through Encode/Decode would not reproduce these
	// events exactly.
	digest := archive.ComputeDigest([]archive.Object{obj})
	return []archive.Event{
		archive.Header(),
		archive.ObjectEvent(obj),
		archive.Footer(digest, nil),
	}
}

func TestLocalRegisterArtifactIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenLocal(dir)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	events := sampleEvents()

	first, err := s.RegisterArtifact(ctx, events)
	if err != nil {
		t.Fatalf("register artifact: %v", err)
	}
	second, err := s.RegisterArtifact(ctx, events)
	if err != nil {
		t.Fatalf("register artifact again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected idempotent artifact id, got %x != %x", first.ID, second.ID)
	}
}

func TestLocalDownloadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenLocal(dir)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	events := sampleEvents()

	artifact, err := s.RegisterArtifact(ctx, events)
	if err != nil {
		t.Fatalf("register artifact: %v", err)
	}

	got, ok, err := s.Download(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !ok {
		t.Fatal("expected artifact to be found")
	}
	if diff := cmp.Diff(events, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	_, ok, err = s.Download(ctx, ArtifactID{0xff})
	if err != nil {
		t.Fatalf("download missing: %v", err)
	}
	if ok {
		t.Fatal("expected missing artifact to report not found")
	}
}

func TestLocalPackageMappingOverwrites(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenLocal(dir)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	pkgID := PackageID{1, 2, 3}
	artifactA := ArtifactID{0xaa}
	artifactB := ArtifactID{0xbb}

	if _, err := s.RegisterPackage(ctx, pkgID, artifactA); err != nil {
		t.Fatalf("register package: %v", err)
	}
	if _, err := s.RegisterPackage(ctx, pkgID, artifactB); err != nil {
		t.Fatalf("re-register package: %v", err)
	}

	got, ok, err := s.Package(ctx, pkgID)
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	if !ok {
		t.Fatal("expected package mapping to be found")
	}
	if got.ArtifactID != artifactB {
		t.Fatalf("expected mapping to be overwritten to %x, got %x", artifactB, got.ArtifactID)
	}
}
