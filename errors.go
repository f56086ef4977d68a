package beatsmith

import (
	"errors"

	"github.com/cbegin/beatsmith-go/internal/generate"
	"github.com/cbegin/beatsmith-go/internal/notation"
	"github.com/cbegin/beatsmith-go/internal/score"
)

var (
	// ErrInvalidComposition marks a structurally broken composition.
	ErrInvalidComposition = score.ErrInvalidComposition
	// ErrLayerNotFound is returned for a layer filter naming no layer.
	ErrLayerNotFound = score.ErrLayerNotFound
	// ErrBadToken marks an unparseable pitch, time or duration token.
	ErrBadToken = notation.ErrBadToken
	// ErrGeneration wraps every failure of the generation call.
	ErrGeneration = generate.ErrGeneration

	ErrNoComposition = errors.New("no composition loaded")
	ErrActivation    = errors.New("audio activation failed")
	ErrExportBusy    = errors.New("an export is already running")
	ErrStaleExport   = errors.New("composition changed during export")
)
