// Package results is the task result backend. Results are stored as
// snappy-compressed JSON under the task id and expire after a TTL.
package results

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/snappy"

	"github.com/smukkama/coverage-server/internal/protocol"
)

// ErrNotFound is returned by Get for unknown or expired task ids.
var ErrNotFound = errors.New("task result not found")

// Store persists task results by id.
type Store interface {
	Put(ctx context.Context, r *protocol.TaskResult) error
	Get(ctx context.Context, taskID string) (*protocol.TaskResult, error)
}

func encodePayload(r *protocol.TaskResult) ([]byte, error) {
	data, err := protocol.EncodeTaskResult(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

func decodePayload(payload []byte) (*protocol.TaskResult, error) {
	data, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress result: %w", err)
	}
	r, err := protocol.DecodeTaskResult(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return r, nil
}
