package domain

import "github.com/google/uuid"

// NewID returns a new random UUID string for resource identifiers.
func NewID() string {
	return uuid.NewString()
}
