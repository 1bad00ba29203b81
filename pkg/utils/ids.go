package utils

import (
	"github.com/google/uuid"
)

// GenerateSessionID returns a new random query session id.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateRequestID returns a new request id for the X-Request-ID header.
func GenerateRequestID() string {
	return uuid.NewString()
}

// ValidateSessionID reports whether id has the shape GenerateSessionID produces.
func ValidateSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
