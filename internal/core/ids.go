package core

import "github.com/google/uuid"

// NewID generates an opaque id. 8 hex chars is enough entropy for the
// engine's purposes; uniqueness, not unpredictability, is the requirement.
func NewID() string {
	return uuid.New().String()[:8]
}
