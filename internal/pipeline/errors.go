package pipeline

import "fmt"

// NotFoundError reports a missing source document.
type NotFoundError struct {
	Collection string
	DocumentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document %s/%s not found", e.Collection, e.DocumentID)
}

// ValidationError reports a document that cannot produce a valid row. It is
// fatal for the run and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid document: " + e.Reason
}

// DuplicateRecordError reports that the target row already exists.
type DuplicateRecordError struct {
	Collection string
	DocumentID string
	Constraint string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("record for document %s/%s already exists (constraint %s)",
		e.Collection, e.DocumentID, e.Constraint)
}
