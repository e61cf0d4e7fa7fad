// Package id generates identifiers for jobs and API keys.
//
// Both forms are UUIDv4-based and URL-safe. Job IDs carry a "job-" prefix
// so they are recognizable in logs and file names; API keys are bare UUIDs,
// matching the keys issued by earlier deployments.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const jobPrefix = "job-"

// NewJobID generates a unique job identifier.
func NewJobID() string {
	return jobPrefix + uuid.NewString()
}

// NewAPIKey generates a new API key.
func NewAPIKey() string {
	return uuid.NewString()
}

// ValidateJobID rejects identifiers that would be unsafe as a storage key or
// a dataset file name. Caller-supplied job IDs are allowed; they just may not
// contain path separators or whitespace.
func ValidateJobID(s string) error {
	if s == "" {
		return fmt.Errorf("id: job id is empty")
	}
	if strings.ContainsAny(s, "/\\ \t\n") {
		return fmt.Errorf("id: job id %q contains illegal characters", s)
	}
	return nil
}
