package geometry

import "errors"

var (
	// ErrShape is returned when parallel arrays (coordinates, sources,
	// properties, data) do not have matching lengths.
	ErrShape = errors.New("geometry: mismatched array shapes")

	// ErrDegenerateGeometry is returned for inverted source bounds or for data
	// that span a zero-extent region.
	ErrDegenerateGeometry = errors.New("geometry: degenerate geometry")

	// ErrSingularKernel is returned when an observation point falls where a
	// kernel has no finite limiting value, e.g. inside a tesseroid.
	ErrSingularKernel = errors.New("geometry: observation point on a kernel singularity")
)
