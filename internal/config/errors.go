package config

import "errors"

// Sentinel errors surfaced by the compression engine. Callers branch on kind
// with errors.Is; wrapped context is added with fmt.Errorf("...: %w", err).
var (
	// ErrInvalidConfig is returned at engine construction when the supplied
	// EngineConfig fails validation (e.g. MinBlockSize > MaxBlockSize).
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrEmptyInput is returned by Compress when no samples were supplied.
	// Callers may treat this as success with an empty record.
	ErrEmptyInput = errors.New("no samples to compress")

	// ErrDanglingReference is returned during decode when a Reference block
	// names a template id absent from the record's template table.
	ErrDanglingReference = errors.New("reference block points to unknown template id")

	// ErrMalformedRecord is returned by the record codec when required
	// fields are missing or cannot be parsed.
	ErrMalformedRecord = errors.New("malformed compressed record")
)
