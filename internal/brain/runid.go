package brain

import "github.com/google/uuid"

// NewRunID returns a random run identifier
func NewRunID() string {
	return "run_" + uuid.NewString()
}
