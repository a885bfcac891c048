package protocol

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending TaskStatus = "PENDING"
	StatusStarted TaskStatus = "STARTED"
	StatusSuccess TaskStatus = "SUCCESS"
	StatusFailure TaskStatus = "FAILURE"
	StatusRevoked TaskStatus = "REVOKED"
)

// Ready reports whether the status is terminal.
func (s TaskStatus) Ready() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusRevoked:
		return true
	}
	return false
}

// TaskResult is what the result backend stores for a task id.
type TaskResult struct {
	TaskID      string     `json:"task_id"`
	Name        string     `json:"task"`
	Status      TaskStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	Error       string     `json:"error,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Worker      string     `json:"worker,omitempty"`
	DateDone    *time.Time `json:"date_done,omitempty"`
}

// NewResult returns a result in status for msg.
func NewResult(msg *TaskMessage, status TaskStatus) *TaskResult {
	return &TaskResult{
		TaskID:      msg.ID,
		Name:        msg.Name,
		Status:      status,
		Fingerprint: msg.Fingerprint,
	}
}

// Done stamps the completion time.
func (r *TaskResult) Done(at time.Time) *TaskResult {
	at = at.UTC()
	r.DateDone = &at
	return r
}

// EncodeTaskResult encodes a TaskResult to JSON
func EncodeTaskResult(r *TaskResult) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeTaskResult decodes JSON to a TaskResult
func DecodeTaskResult(data []byte) (*TaskResult, error) {
	var r TaskResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
