// Package protocol defines the task messages carried on the broker and the
// task results kept by the result backend.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spaolacci/murmur3"
)

// ErrArgument is wrapped by every positional argument error.
var ErrArgument = errors.New("invalid task argument")

// TaskMessage is a single task invocation. Positional arguments are JSON
// strings or arrays of strings; nothing else crosses the broker.
type TaskMessage struct {
	ID          string            `json:"id"`
	Name        string            `json:"task"`
	Args        []json.RawMessage `json:"args"`
	Fingerprint string            `json:"fingerprint"`
	SubmittedAt time.Time         `json:"submitted_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

// NewTaskMessage builds a message from string and []string arguments.
// A positive ttl sets ExpiresAt.
func NewTaskMessage(id, name string, args []any, submittedAt time.Time, ttl time.Duration) (*TaskMessage, error) {
	raw := make([]json.RawMessage, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
		case []string:
			if v == nil {
				arg = []string{}
			}
		default:
			return nil, fmt.Errorf("%w: argument %d of %s has type %T, want string or []string", ErrArgument, i, name, arg)
		}
		data, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrArgument, i, err)
		}
		raw[i] = data
	}

	msg := &TaskMessage{
		ID:          id,
		Name:        name,
		Args:        raw,
		Fingerprint: Fingerprint(name, raw),
		SubmittedAt: submittedAt.UTC(),
	}
	if ttl > 0 {
		expires := msg.SubmittedAt.Add(ttl)
		msg.ExpiresAt = &expires
	}
	return msg, nil
}

// Expired reports whether the message passed its expiry at now.
func (m *TaskMessage) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// CheckArity fails unless exactly n arguments are present.
func (m *TaskMessage) CheckArity(n int) error {
	if len(m.Args) != n {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgument, m.Name, n, len(m.Args))
	}
	return nil
}

// StringArg decodes argument i as a string.
func (m *TaskMessage) StringArg(i int) (string, error) {
	if i < 0 || i >= len(m.Args) {
		return "", fmt.Errorf("%w: %s has no argument %d", ErrArgument, m.Name, i)
	}
	var s string
	if err := json.Unmarshal(m.Args[i], &s); err != nil {
		return "", fmt.Errorf("%w: argument %d of %s is not a string", ErrArgument, i, m.Name)
	}
	return s, nil
}

// StringListArg decodes argument i as a list of strings.
func (m *TaskMessage) StringListArg(i int) ([]string, error) {
	if i < 0 || i >= len(m.Args) {
		return nil, fmt.Errorf("%w: %s has no argument %d", ErrArgument, m.Name, i)
	}
	var list []string
	if err := json.Unmarshal(m.Args[i], &list); err != nil || list == nil {
		return nil, fmt.Errorf("%w: argument %d of %s is not a list of strings", ErrArgument, i, m.Name)
	}
	return list, nil
}

// Fingerprint hashes a task name and its encoded arguments with 128-bit
// murmur3. Identical invocations share a fingerprint, which keys the broker
// partition.
func Fingerprint(name string, args []json.RawMessage) string {
	h := murmur3.New128()
	h.Write([]byte(name))
	for _, arg := range args {
		h.Write([]byte{0})
		h.Write(arg)
	}
	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}

// EncodeTaskMessage encodes a TaskMessage to JSON
func EncodeTaskMessage(msg *TaskMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeTaskMessage decodes JSON to a TaskMessage and checks its envelope.
func DecodeTaskMessage(data []byte) (*TaskMessage, error) {
	var msg TaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("task message has no id")
	}
	if msg.Name == "" {
		return nil, fmt.Errorf("task message %s has no task name", msg.ID)
	}
	return &msg, nil
}
