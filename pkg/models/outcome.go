package models

// OutcomeKind classifies a compared target file
type OutcomeKind string

const (
	// OutcomeMatched indicates the target content equals the base content
	OutcomeMatched OutcomeKind = "matched"
	// OutcomeContentMismatch indicates a base file exists at the same path but content differs
	OutcomeContentMismatch OutcomeKind = "content_mismatch"
	// OutcomeNotFoundInBase indicates no base file exists at that relative path
	OutcomeNotFoundInBase OutcomeKind = "not_found_in_base"
	// OutcomeReadError indicates the target file could not be fully read
	OutcomeReadError OutcomeKind = "read_error"
)

// Outcome is the classification of a single target file
type Outcome struct {
	Kind         OutcomeKind
	RelativePath string
	// Size is the number of bytes hashed (0 when the file was not read)
	Size int64
	// Err is set for OutcomeReadError
	Err error
}

// IsEqual reports whether the target file was confirmed identical to its base file
func (o Outcome) IsEqual() bool {
	return o.Kind == OutcomeMatched
}
