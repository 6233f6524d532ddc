package datasets

import "github.com/pkg/errors"

var (
	// ErrShapeMismatch is returned when gridded variables disagree on their
	// sample, latitude or longitude extents or coordinates.
	ErrShapeMismatch = errors.New("gridded variables are not aligned")

	// ErrEnsembleMismatch is returned when the label table does not line up
	// with the grid ensemble members.
	ErrEnsembleMismatch = errors.New("labels do not match grid ensemble members")

	// ErrMissingVariable is returned when a file lacks a required variable,
	// dimension or column.
	ErrMissingVariable = errors.New("missing variable")

	// ErrInvalidLabel is returned for label values other than 0 and 1.
	ErrInvalidLabel = errors.New("label is not binary")
)
