package comments

import "errors"

var (
	// ErrPostNotFound indicates the thread's post doesn't exist
	ErrPostNotFound = errors.New("post not found")

	// ErrPostRequired indicates a thread query without a post id
	ErrPostRequired = errors.New("post id is required")

	// ErrContentEmpty indicates comment content is empty
	ErrContentEmpty = errors.New("comment content is required")

	// ErrContentTooLong indicates comment content exceeds the grapheme limit
	ErrContentTooLong = errors.New("comment content exceeds 10000 graphemes")

	// ErrViewerRequired indicates the operation needs an authenticated viewer
	ErrViewerRequired = errors.New("viewer is required")
)

// IsValidationError checks if an error is a local validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrPostRequired) ||
		errors.Is(err, ErrContentEmpty) ||
		errors.Is(err, ErrContentTooLong) ||
		errors.Is(err, ErrViewerRequired)
}
