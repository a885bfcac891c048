package tasks

import (
	"errors"
	"fmt"

	"github.com/smukkama/coverage-server/internal/protocol"
)

// Error kinds recorded by the runtime itself.
const (
	KindUnknownTask = "UnknownTaskError"
	KindPanic       = "WorkerPanicError"
	KindRevoked     = "TaskRevokedError"
	KindGeneric     = "Error"
)

// UnknownTaskError is returned for a task name nothing is registered under.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("no task registered as %q", e.Name)
}

func (e *UnknownTaskError) Kind() string { return KindUnknownTask }

// PanicError carries a recovered handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

func (e *PanicError) Kind() string { return KindPanic }

// TaskError is how a failed or revoked task surfaces to the submitter.
type TaskError struct {
	TaskID  string
	Name    string
	Status  protocol.TaskStatus
	Kind    string
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s (%s) %s: %s: %s", e.TaskID, e.Name, e.Status, e.Kind, e.Message)
}

func taskError(r *protocol.TaskResult) *TaskError {
	return &TaskError{
		TaskID:  r.TaskID,
		Name:    r.Name,
		Status:  r.Status,
		Kind:    r.ErrorKind,
		Message: r.Error,
	}
}

// ErrorKind names err by the first error in its chain that reports a kind.
func ErrorKind(err error) string {
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindGeneric
}
