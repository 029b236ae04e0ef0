package domain

import "errors"

// Sentinel errors for the failure taxonomy. Callers classify failures with
// errors.Is and the manifest records the kind returned by ErrorKind.
var (
	// ErrRetrieval marks an unreachable upstream or an undecodable response.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeometry marks a polygon that cannot be normalized. The affected
	// geometry is skipped; sibling geometries are kept.
	ErrGeometry = errors.New("bad geometry")

	// ErrInsufficientData marks a classification population too small for
	// meaningful percentile cut points. Fatal for the whole render pass, since a
	// partial classification is worse than none.
	ErrInsufficientData = errors.New("insufficient data for classification")

	// ErrMalformedSeries marks a time series with non-finite values or
	// unparsable timestamps. Aborts reconciliation for that unit only.
	ErrMalformedSeries = errors.New("malformed series")
)

// ErrorKind returns the manifest label for an error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrRetrieval):
		return "retrieval"
	case errors.Is(err, ErrGeometry):
		return "geometry"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrMalformedSeries):
		return "malformed_series"
	default:
		return "unknown"
	}
}
