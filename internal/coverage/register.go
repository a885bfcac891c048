package coverage

import (
	"context"

	"github.com/smukkama/coverage-server/internal/protocol"
	"github.com/smukkama/coverage-server/internal/tasks"
)

// Task names on the broker.
const (
	TaskPointCoverage = "run_point_coverage"
	TaskGridCoverage  = "run_grid_coverage"
)

// Register binds both coverage tasks to reg. Malformed positional arguments
// fail as invalid requests.
func Register(reg *tasks.Registry, t *Tasks) {
	reg.Register(TaskPointCoverage, func(ctx context.Context, msg *protocol.TaskMessage) (string, error) {
		if err := msg.CheckArity(4); err != nil {
			return "", &InvalidRequestError{Err: err}
		}
		point, err := msg.StringArg(0)
		if err != nil {
			return "", &InvalidRequestError{Err: err}
		}
		satellites, err := msg.StringListArg(1)
		if err != nil {
			return "", &InvalidRequestError{Err: err}
		}
		start, err := msg.StringArg(2)
		if err != nil {
			return "", &InvalidRequestError{Err: err}
		}
		end, err := msg.StringArg(3)
		if err != nil {
			return "", &InvalidRequestError{Err: err}
		}
		return t.RunPointCoverage(ctx, point, satellites, start, end)
	})

	reg.Register(TaskGridCoverage, func(ctx context.Context, msg *protocol.TaskMessage) (string, error) {
		if err := msg.CheckArity(2); err != nil {
			return "", &InvalidRequestError{Err: err}
		}
		result, err := msg.StringArg(0)
		if err != nil {
			return "", &InvalidRequestError{Err: err}
		}
		cells, err := msg.StringArg(1)
		if err != nil {
			return "", &InvalidRequestError{Err: err}
		}
		return t.RunGridCoverage(ctx, result, cells)
	})
}
