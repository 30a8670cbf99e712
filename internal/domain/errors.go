package domain

import "errors"

// Error taxonomy for pipeline construction and corpus loading. Construction
// failures leave the pipeline permanently unavailable for the process;
// per-query generation failures are handled at the query boundary instead.
var (
	// ErrCredentialsMissing means no API key is configured. Checked before
	// any network call is attempted.
	ErrCredentialsMissing = errors.New("API key not configured")

	// ErrDataNotFound means the corpus file does not exist.
	ErrDataNotFound = errors.New("corpus file not found")

	// ErrSchema means the corpus file matches neither expected column set,
	// or a row is missing a required cell.
	ErrSchema = errors.New("corpus schema mismatch")

	// ErrIndexing wraps a failure from the embedding or indexing step.
	ErrIndexing = errors.New("indexing failed")
)
