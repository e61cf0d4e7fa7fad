package job

import "time"

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusStarting means the job record exists but execution has not begun.
	StatusStarting Status = "STARTING"
	// StatusRunning means the workload is currently executing.
	StatusRunning Status = "RUNNING"
	// StatusCompleted means the workload finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusAborted means the job was explicitly aborted while running.
	StatusAborted Status = "ABORTED"
	// StatusError means the workload failed; ErrorMessage holds the cause.
	StatusError Status = "ERROR"
)

// IsTerminal reports whether the status accepts no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusAborted, StatusError:
		return true
	}
	return false
}

// Type identifies the kind of workload a job performs.
type Type string

const (
	TypeFineTune Type = "FINE_TUNE"
	TypeDeploy   Type = "DEPLOY_MODEL_AS_ENDPOINT"
	TypeTrain    Type = "TRAIN"
)

// NoError is the ErrorMessage value carried by every record that has not
// failed. It is a sentinel, not an absent field: once a real message is set
// it is never reset to NoError.
const NoError = "No error"

// Record is the persisted state of a single job, uniquely identified by
// (CallerID, JobID). CallerID, JobID, Type and TimeStarted are immutable
// after creation; Status, TimeEnded and ErrorMessage are mutated only by
// the lifecycle engine.
type Record struct {
	CallerID     string     `json:"caller_id"`
	JobID        string     `json:"job_id"`
	Type         Type       `json:"type"`
	Status       Status     `json:"status"`
	TimeStarted  time.Time  `json:"time_started"`
	TimeEnded    *time.Time `json:"time_ended,omitempty"`
	ErrorMessage string     `json:"error_msg"`
}

// Outcome is the explicit result of a job execution, folded into the
// lifecycle engine by the dispatcher. It replaces exception-style control
// flow: a failed workload is data, never a propagated error.
type Outcome struct {
	OK      bool
	Message string
}

// Succeeded returns a success outcome.
func Succeeded() Outcome { return Outcome{OK: true} }

// Failed returns a failure outcome carrying a diagnostic message.
func Failed(msg string) Outcome { return Outcome{OK: false, Message: msg} }
