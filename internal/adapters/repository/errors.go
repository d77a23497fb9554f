package repository

import (
	"errors"

	"github.com/okian/solara/internal/domain/artifact"
	"github.com/okian/solara/internal/domain/ml"
)

// Sentinel kinds for artifact store errors.
var (
	// ErrArtifactNotFound is returned when one of the bundle files is absent.
	ErrArtifactNotFound = ml.ErrArtifactNotFound
	// ErrArtifactCorrupt is returned when a file cannot be decoded.
	ErrArtifactCorrupt = artifact.ErrCorrupt
	// ErrIncompleteBundle is returned by SaveBundle when an artifact is nil.
	ErrIncompleteBundle = errors.New("bundle is incomplete")
)
