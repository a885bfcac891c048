package coverage

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/coverage-server/internal/results"
	"github.com/smukkama/coverage-server/internal/tasks"
)

// chanBroker hands published messages to whichever worker slot fetches first.
type chanBroker chan kafka.Message

func (b chanBroker) Publish(ctx context.Context, key string, value []byte) error {
	select {
	case b <- kafka.Message{Key: []byte(key), Value: value}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b chanBroker) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-b:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (b chanBroker) Commit(context.Context, kafka.Message) error { return nil }
func (b chanBroker) Close() error                                { return nil }

func startPipeline(t *testing.T) *Client {
	t.Helper()
	broker := make(chanBroker, 16)
	store := results.NewMemoryStore(time.Hour)

	registry := tasks.NewRegistry()
	Register(registry, realTasks())
	worker := tasks.NewWorker(tasks.WorkerConfig{
		Name:        "pipeline",
		Concurrency: 2,
		Registry:    registry,
		Store:       store,
		NewSource:   func() tasks.Source { return broker },
		Classify:    Kind,
		Logger:      quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	taskClient := tasks.NewClient(broker, store, 0, quietLogger())
	taskClient.SetPollInterval(10 * time.Millisecond)
	return NewClient(taskClient)
}

func TestClient_Analyze(t *testing.T) {
	client := startPipeline(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env, err := client.Analyze(ctx, origin, []string{circular}, dayStart, dayEnd, globeCells(t))
	require.NoError(t, err)

	points, err := env.PointsFrame()
	require.NoError(t, err)
	require.NotZero(t, points.Len())
	cells, err := env.CellsFrame()
	require.NoError(t, err)
	require.Equal(t, 1, cells.Len())
}

func TestClient_AnalyzeReportsTaskFailure(t *testing.T) {
	client := startPipeline(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := client.Analyze(ctx, origin, []string{circular}, dayStart, dayStart, globeCells(t))
	var taskErr *tasks.TaskError
	require.ErrorAs(t, err, &taskErr)
	require.Equal(t, KindInvalidRequest, taskErr.Kind)
	require.Equal(t, TaskPointCoverage, taskErr.Name)
}
