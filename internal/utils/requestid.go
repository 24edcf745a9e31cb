package utils

import (
	"github.com/google/uuid"
)

// NewRequestID creates a new UUID for correlating a request across log lines
func NewRequestID() string {
	return uuid.New().String()
}
