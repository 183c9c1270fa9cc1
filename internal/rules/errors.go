package rules

import "errors"

var (
	// ErrDuplicateOriginal is returned when a rule's original text is
	// already claimed by another rule.
	ErrDuplicateOriginal = errors.New("rule original already exists")

	// ErrDuplicateTarget is returned when a rule's masked text is already
	// claimed by another rule.
	ErrDuplicateTarget = errors.New("rule target already exists")

	// ErrInvalidRule is returned when a rule's original or masked text is
	// blank.
	ErrInvalidRule = errors.New("rule original and masked must be non-blank")

	// ErrNotFound is returned when a rule does not exist.
	ErrNotFound = errors.New("rule not found")

	// ErrUnsupportedVersion is returned for transfer payloads with an
	// unknown envelope version.
	ErrUnsupportedVersion = errors.New("unsupported transfer version")

	// ErrMissingData is returned for empty transfer payloads.
	ErrMissingData = errors.New("transfer payload is empty")
)
