package redis

// Redis key naming conventions for runway data.
// All keys are prefixed with "runway:" to avoid collisions.

const keyPrefix = "runway:"

// recordKey returns the Hash key for a job record: runway:job:{caller}:{job}
func recordKey(callerID, jobID string) string {
	return keyPrefix + "job:" + callerID + ":" + jobID
}

// callerJobsKey returns the Set key indexing a caller's job ids:
// runway:caller_jobs:{caller}
func callerJobsKey(callerID string) string {
	return keyPrefix + "caller_jobs:" + callerID
}

// apiKeysKey is the Hash mapping issued API keys to account emails.
const apiKeysKey = keyPrefix + "api_keys"
