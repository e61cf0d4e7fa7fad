package dynamo

import (
	"fmt"
	"time"

	"github.com/inferent/runway/job"
)

// recordItem is the DynamoDB item shape for a job record. Timestamps are
// stored as RFC 3339 strings; an absent end time is an empty string.
type recordItem struct {
	CallerID     string `dynamodbav:"caller_id"`
	JobID        string `dynamodbav:"job_id"`
	Type         string `dynamodbav:"type"`
	Status       string `dynamodbav:"status"`
	TimeStarted  string `dynamodbav:"time_started"`
	TimeEnded    string `dynamodbav:"time_ended"`
	ErrorMessage string `dynamodbav:"error_msg"`
}

func fromRecord(rec *job.Record) recordItem {
	item := recordItem{
		CallerID:     rec.CallerID,
		JobID:        rec.JobID,
		Type:         string(rec.Type),
		Status:       string(rec.Status),
		TimeStarted:  rec.TimeStarted.Format(time.RFC3339Nano),
		ErrorMessage: rec.ErrorMessage,
	}
	if rec.TimeEnded != nil {
		item.TimeEnded = rec.TimeEnded.Format(time.RFC3339Nano)
	}
	return item
}

func (item *recordItem) toRecord() (*job.Record, error) {
	started, err := time.Parse(time.RFC3339Nano, item.TimeStarted)
	if err != nil {
		return nil, fmt.Errorf("runway/dynamo: parse time_started: %w", err)
	}

	rec := &job.Record{
		CallerID:     item.CallerID,
		JobID:        item.JobID,
		Type:         job.Type(item.Type),
		Status:       job.Status(item.Status),
		TimeStarted:  started,
		ErrorMessage: item.ErrorMessage,
	}
	if item.TimeEnded != "" {
		ended, err := time.Parse(time.RFC3339Nano, item.TimeEnded)
		if err != nil {
			return nil, fmt.Errorf("runway/dynamo: parse time_ended: %w", err)
		}
		rec.TimeEnded = &ended
	}
	return rec, nil
}
