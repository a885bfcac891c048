package coverage

import (
	"context"
	"fmt"

	"github.com/smukkama/coverage-server/internal/tasks"
)

// Client submits coverage tasks through a task client.
type Client struct {
	tasks *tasks.Client
}

// NewClient wraps a task client.
func NewClient(c *tasks.Client) *Client {
	return &Client{tasks: c}
}

// SubmitPointCoverage queues a point coverage task and returns its id.
func (c *Client) SubmitPointCoverage(ctx context.Context, point string, satellites []string, start, end string) (string, error) {
	return c.tasks.Submit(ctx, TaskPointCoverage, point, satellites, start, end)
}

// SubmitGridCoverage queues a grid coverage task for a finished point
// coverage result.
func (c *Client) SubmitGridCoverage(ctx context.Context, coverageResult, cells string) (string, error) {
	return c.tasks.Submit(ctx, TaskGridCoverage, coverageResult, cells)
}

// Await waits for a submitted coverage task and returns its output.
func (c *Client) Await(ctx context.Context, taskID string) (string, error) {
	return c.tasks.Await(ctx, taskID)
}

// Analyze runs both stages in order: the grid task is submitted only after
// the point task has succeeded.
func (c *Client) Analyze(ctx context.Context, point string, satellites []string, start, end, cells string) (*Envelope, error) {
	id, err := c.SubmitPointCoverage(ctx, point, satellites, start, end)
	if err != nil {
		return nil, err
	}
	result, err := c.Await(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("point coverage: %w", err)
	}

	id, err = c.SubmitGridCoverage(ctx, result, cells)
	if err != nil {
		return nil, err
	}
	out, err := c.Await(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("grid coverage: %w", err)
	}
	return ParseEnvelope(out)
}
