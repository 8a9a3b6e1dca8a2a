package leads

import "errors"

var (
	// ErrMissingOrgID is returned when no org context is supplied.
	ErrMissingOrgID = errors.New("org_id is required")

	// ErrInvalidName is returned when the name is invalid.
	ErrInvalidName = errors.New("name is required")

	// ErrMissingContact is returned when both email and phone are missing.
	ErrMissingContact = errors.New("either email or phone is required")

	// ErrEmptyNote is returned when a note has no text.
	ErrEmptyNote = errors.New("note text is required")

	// ErrLeadNotFound is returned when a lead is not found.
	ErrLeadNotFound = errors.New("lead not found")
)
