package domain

import "fmt"

// TranscriptNotFoundError indicates that a transcript with the specified
// ID could not be found in the repository.
type TranscriptNotFoundError struct {
	ID int64
}

// Error implements the error interface.
func (e *TranscriptNotFoundError) Error() string {
	return fmt.Sprintf("transcript not found: id=%d", e.ID)
}
