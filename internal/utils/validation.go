package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateID checks that an entity ID is positive
func ValidateID(field string, id int64) error {
	if id <= 0 {
		return ValidationError{Field: field, Message: "must be a positive id"}
	}
	return nil
}

// ParseID parses a path or form value into a positive ID
func ParseID(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ValidationError{Field: field, Message: field + " is required"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ValidationError{Field: field, Message: "invalid id"}
	}
	return id, ValidateID(field, id)
}

// ValidatePassingThreshold checks a quiz passing threshold is a percentage
func ValidatePassingThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 100 {
		return ValidationError{Field: "passing_threshold", Message: "must be between 0 and 100"}
	}
	return nil
}

// ValidateCooldown checks a retake cooldown is not negative
func ValidateCooldown(hours int) error {
	if hours < 0 {
		return ValidationError{Field: "cooldown_period_hours", Message: "must not be negative"}
	}
	return nil
}

// ValidateTitle checks a catalog title
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ValidationError{Field: "title", Message: "title is required"}
	}
	if len(title) > 255 {
		return ValidationError{Field: "title", Message: "title must be at most 255 characters"}
	}
	return nil
}
