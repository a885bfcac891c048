package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/coverage-server/internal/protocol"
	"github.com/smukkama/coverage-server/internal/results"
)

const (
	storeAttempts = 3
	storeBackoff  = 200 * time.Millisecond
	fetchBackoff  = time.Second
)

// Source is one consumer-group member. Each worker goroutine owns its own.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Recorder receives task lifecycle observations.
type Recorder interface {
	TaskStarted(task string)
	TaskFinished(task, status string, elapsed time.Duration)
	TaskSkipped(task, status string)
}

type nopRecorder struct{}

func (nopRecorder) TaskStarted(string)                         {}
func (nopRecorder) TaskFinished(string, string, time.Duration) {}
func (nopRecorder) TaskSkipped(string, string)                 {}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Name        string
	Concurrency int
	Registry    *Registry
	Store       results.Store
	NewSource   func() Source
	Recorder    Recorder
	// Classify names a handler error for the stored result. Defaults to
	// ErrorKind.
	Classify func(error) string
	Logger   *slog.Logger
}

// Worker pulls task messages, runs their handlers and stores the outcome.
// An offset is committed only after the outcome is stored, so a crash
// mid-task leads to redelivery rather than loss.
type Worker struct {
	name        string
	concurrency int
	registry    *Registry
	store       results.Store
	newSource   func() Source
	recorder    Recorder
	classify    func(error) string
	logger      *slog.Logger
	now         func() time.Time
}

// NewWorker creates a worker pool from cfg.
func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		name:        cfg.Name,
		concurrency: cfg.Concurrency,
		registry:    cfg.Registry,
		store:       cfg.Store,
		newSource:   cfg.NewSource,
		recorder:    cfg.Recorder,
		classify:    cfg.Classify,
		logger:      cfg.Logger,
		now:         time.Now,
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.recorder == nil {
		w.recorder = nopRecorder{}
	}
	if w.classify == nil {
		w.classify = ErrorKind
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Run blocks until ctx is cancelled and every in-flight task has finished.
// Tasks already fetched run to completion; their results are stored and
// their offsets committed even after ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.registry == nil || w.store == nil || w.newSource == nil {
		return fmt.Errorf("worker is missing a registry, store or source")
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go w.loop(ctx, &wg, i, w.newSource())
	}
	w.logger.Info("worker pool started", "worker", w.name, "concurrency", w.concurrency, "tasks", w.registry.Names())

	wg.Wait()
	w.logger.Info("worker pool stopped", "worker", w.name)
	return nil
}

func (w *Worker) loop(ctx context.Context, wg *sync.WaitGroup, id int, src Source) {
	defer wg.Done()
	defer src.Close()

	logger := w.logger.With("slot", id)
	work := context.WithoutCancel(ctx)

	for {
		msg, err := src.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("fetch failed", "error", err)
			if !sleep(ctx, fetchBackoff) {
				return
			}
			continue
		}

		// Offsets commit cumulatively, so a message whose outcome could not be
		// stored is retried here rather than skipped. On shutdown it stays
		// uncommitted and is redelivered.
		for {
			err = w.process(work, logger, msg.Value)
			if err == nil {
				break
			}
			logger.Error("task outcome not stored", "offset", msg.Offset, "partition", msg.Partition, "error", err)
			if !sleep(ctx, fetchBackoff) {
				return
			}
		}
		if err := src.Commit(work, msg); err != nil {
			logger.Error("commit failed", "offset", msg.Offset, "partition", msg.Partition, "error", err)
		}
	}
}

// process handles one raw message. A nil return means the message may be
// committed.
func (w *Worker) process(ctx context.Context, logger *slog.Logger, raw []byte) error {
	task, err := protocol.DecodeTaskMessage(raw)
	if err != nil {
		logger.Warn("discarding undecodable message", "error", err, "bytes", len(raw))
		return nil
	}
	logger = logger.With("task_id", task.ID, "task", task.Name)

	if prev, err := w.store.Get(ctx, task.ID); err == nil && prev.Status.Ready() {
		logger.Info("task already finished, skipping redelivery", "status", prev.Status)
		return nil
	}

	if task.Expired(w.now()) {
		res := protocol.NewResult(task, protocol.StatusRevoked)
		res.Worker = w.name
		res.ErrorKind = KindRevoked
		res.Error = fmt.Sprintf("task expired at %s", task.ExpiresAt.Format(time.RFC3339))
		w.recorder.TaskSkipped(task.Name, string(res.Status))
		logger.Warn("task expired before execution", "expires_at", task.ExpiresAt)
		return w.put(ctx, res.Done(w.now()))
	}

	started := protocol.NewResult(task, protocol.StatusStarted)
	started.Worker = w.name
	if err := w.put(ctx, started); err != nil {
		return err
	}

	w.recorder.TaskStarted(task.Name)
	begin := w.now()
	out, runErr := w.execute(ctx, task)
	elapsed := w.now().Sub(begin)

	var res *protocol.TaskResult
	if runErr != nil {
		res = protocol.NewResult(task, protocol.StatusFailure)
		res.ErrorKind = w.classify(runErr)
		res.Error = runErr.Error()
		attrs := []any{"kind", res.ErrorKind, "error", runErr, "elapsed", elapsed}
		if p, ok := runErr.(*PanicError); ok {
			attrs = append(attrs, "stack", string(p.Stack))
		}
		logger.Warn("task failed", attrs...)
	} else {
		res = protocol.NewResult(task, protocol.StatusSuccess)
		res.Result = out
		logger.Info("task succeeded", "elapsed", elapsed, "result_bytes", len(out))
	}
	res.Worker = w.name
	w.recorder.TaskFinished(task.Name, string(res.Status), elapsed)

	return w.put(ctx, res.Done(w.now()))
}

func (w *Worker) execute(ctx context.Context, task *protocol.TaskMessage) (out string, err error) {
	h, ok := w.registry.Lookup(task.Name)
	if !ok {
		return "", &UnknownTaskError{Name: task.Name}
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = "", &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return h(ctx, task)
}

func (w *Worker) put(ctx context.Context, res *protocol.TaskResult) error {
	var err error
	backoff := storeBackoff
	for attempt := 1; attempt <= storeAttempts; attempt++ {
		if err = w.store.Put(ctx, res); err == nil {
			return nil
		}
		if attempt < storeAttempts && !sleep(ctx, backoff) {
			break
		}
		backoff *= 2
	}
	return fmt.Errorf("storing %s result for %s: %w", res.Status, res.TaskID, err)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
