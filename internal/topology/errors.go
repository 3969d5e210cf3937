package topology

import "errors"

var (
	// ErrEndpointNotFound is returned when a queried IP has no interface
	// index binding.
	ErrEndpointNotFound = errors.New("endpoint not found in interface index")

	// ErrNoPath is returned when the graph search exhausts all simple
	// paths without reaching the destination.
	ErrNoPath = errors.New("no path exists between endpoints")

	// ErrMalformedRoute marks RIB rows whose destination does not parse.
	// Offending rows are skipped with a diagnostic, never aborting a rebuild.
	ErrMalformedRoute = errors.New("malformed route data")
)
