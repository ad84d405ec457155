package uid

import "github.com/google/uuid"

// New generates a random identifier for offers, sessions and requests.
func New() string {
	return uuid.New().String()
}

// Valid reports whether s is a UUID in any of the forms uuid.Parse accepts.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
