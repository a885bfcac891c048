package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/coverage-server/internal/protocol"
	"github.com/smukkama/coverage-server/internal/results"
)

// DefaultPollInterval is how often Await checks the result backend.
const DefaultPollInterval = 500 * time.Millisecond

// Publisher writes a keyed message to the broker.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Client submits tasks and awaits their results.
type Client struct {
	publisher Publisher
	store     results.Store
	expires   time.Duration
	poll      time.Duration
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewClient creates a client. A positive expires marks submitted tasks as
// revoked if no worker starts them in time.
func NewClient(publisher Publisher, store results.Store, expires time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		publisher: publisher,
		store:     store,
		expires:   expires,
		poll:      DefaultPollInterval,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// SetPollInterval overrides DefaultPollInterval.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.poll = d
	}
}

// Submit records the task as pending and publishes it. It returns the task id.
func (c *Client) Submit(ctx context.Context, name string, args ...any) (string, error) {
	msg, err := protocol.NewTaskMessage(c.newID(), name, args, c.now(), c.expires)
	if err != nil {
		return "", err
	}
	data, err := protocol.EncodeTaskMessage(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}

	if err := c.store.Put(ctx, protocol.NewResult(msg, protocol.StatusPending)); err != nil {
		return "", fmt.Errorf("failed to record pending task: %w", err)
	}
	if err := c.publisher.Publish(ctx, msg.Fingerprint, data); err != nil {
		return "", fmt.Errorf("failed to publish task %s: %w", msg.ID, err)
	}

	c.logger.Debug("task submitted", "task_id", msg.ID, "task", name, "fingerprint", msg.Fingerprint)
	return msg.ID, nil
}

// Status returns the stored result for taskID.
func (c *Client) Status(ctx context.Context, taskID string) (*protocol.TaskResult, error) {
	return c.store.Get(ctx, taskID)
}

// Await polls until the task reaches a terminal state or ctx ends. A failed
// or revoked task is returned as a *TaskError.
func (c *Client) Await(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		r, err := c.store.Get(ctx, taskID)
		switch {
		case errors.Is(err, results.ErrNotFound):
		case err != nil:
			return "", fmt.Errorf("failed to read result of %s: %w", taskID, err)
		case r.Status == protocol.StatusSuccess:
			return r.Result, nil
		case r.Status.Ready():
			return "", taskError(r)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("awaiting task %s: %w", taskID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Call submits a task and awaits it.
func (c *Client) Call(ctx context.Context, name string, args ...any) (string, error) {
	id, err := c.Submit(ctx, name, args...)
	if err != nil {
		return "", err
	}
	return c.Await(ctx, id)
}
