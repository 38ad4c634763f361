package store

import (
	"fmt"

	"github.com/CelestialCrafter/xuehua/report"
)

// CorruptArtifactError is returned by Download when the on-disk encoded
// archive no longer hashes to its own filename -- the store's content
// addressing invariant has been violated, e.g. by out-of-band disk
// corruption or manual tampering.
type CorruptArtifactError struct {
	ID ArtifactID
}

func (e *CorruptArtifactError) Error() string {
	return fmt.Sprintf("artifact %x failed its own content-hash check", e.ID)
}

func (e *CorruptArtifactError) ToReport() *report.Report {
	return report.New(report.LevelError, "corrupt artifact on disk").
		WithContext("artifact", fmt.Sprintf("%x", e.ID)).
		WithSuggestion("remove and re-register the artifact from a trusted source")
}
