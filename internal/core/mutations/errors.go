package mutations

import "errors"

var (
	// ErrViewerRequired indicates the mutation needs an authenticated viewer
	ErrViewerRequired = errors.New("viewer is required")

	// ErrTargetRequired indicates the mutation is missing its target id
	ErrTargetRequired = errors.New("target id is required")

	// ErrContentEmpty indicates post/comment content is empty
	ErrContentEmpty = errors.New("content is required")

	// ErrContentTooLong indicates content exceeds the grapheme limit
	ErrContentTooLong = errors.New("content exceeds 10000 graphemes")

	// ErrInvalidDirection indicates a vote direction outside {up, down}
	ErrInvalidDirection = errors.New("direction must be 'up' or 'down'")

	// ErrInvalidOption indicates a poll option index out of range
	ErrInvalidOption = errors.New("invalid poll option")

	// ErrSelfBlock indicates an attempt to block oneself
	ErrSelfBlock = errors.New("cannot block yourself")
)

// IsValidationError checks if an error is a local validation error raised
// before any optimistic state was applied.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrViewerRequired) ||
		errors.Is(err, ErrTargetRequired) ||
		errors.Is(err, ErrContentEmpty) ||
		errors.Is(err, ErrContentTooLong) ||
		errors.Is(err, ErrInvalidDirection) ||
		errors.Is(err, ErrInvalidOption) ||
		errors.Is(err, ErrSelfBlock)
}
