package model

import (
	"errors"
	"fmt"
)

// ValidationError reports input rejected before any storage write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err (or any error in its chain) is a
// ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// ValidateSubtaskDate rejects a subtask due date later than its parent
// task's due date.
func ValidateSubtaskDate(subtaskDate *int64, taskDate int64) error {
	if subtaskDate == nil {
		return nil
	}
	if *subtaskDate > taskDate {
		return &ValidationError{
			Field: "date",
			Message: fmt.Sprintf(
				"subtask due date cannot be after the parent task due date (%s)",
				FromMillis(taskDate).Format("2006-01-02"),
			),
		}
	}
	return nil
}
