package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/smukkama/coverage-server/internal/coverage"
	"github.com/smukkama/coverage-server/internal/queue"
	"github.com/smukkama/coverage-server/internal/results"
	"github.com/smukkama/coverage-server/internal/tasks"
	"github.com/smukkama/coverage-server/pkg/config"
)

// fileList collects a repeatable flag.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

// Submits a point coverage analysis, waits for it, grids the result onto a
// cell layer and prints the envelope.
func main() {
	var satellites fileList
	pointPath := flag.String("point", "", "JSON file with the ground point")
	flag.Var(&satellites, "satellite", "JSON file with one satellite (repeatable)")
	cellsPath := flag.String("cells", "", "GeoJSON file with the cell layer")
	start := flag.String("start", "", "analysis start, ISO-8601 with offset")
	end := flag.String("end", "", "analysis end, ISO-8601 with offset")
	timeout := flag.Duration("timeout", 10*time.Minute, "how long to wait for both stages")
	flag.Parse()

	if *pointPath == "" || len(satellites) == 0 || *cellsPath == "" || *start == "" || *end == "" {
		flag.Usage()
		os.Exit(2)
	}

	point := mustRead(*pointPath)
	cells := mustRead(*cellsPath)
	sats := make([]string, len(satellites))
	for i, path := range satellites {
		sats[i] = mustRead(path)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	backend, err := results.Open(ctx, cfg, "", logger)
	if err != nil {
		log.Fatalf("Failed to open result backend: %v", err)
	}
	defer backend.Close()

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTasks)
	defer producer.Close()

	taskClient := tasks.NewClient(producer, backend.Store, cfg.Worker.TaskExpires, logger)
	taskClient.SetPollInterval(cfg.Results.PollInterval)
	client := coverage.NewClient(taskClient)

	fmt.Fprintf(os.Stderr, "Coverage analysis: %d satellite(s), %s to %s\n", len(sats), *start, *end)

	id, err := client.SubmitPointCoverage(ctx, point, sats, *start, *end)
	if err != nil {
		log.Fatalf("Failed to submit point coverage: %v", err)
	}
	fmt.Fprintf(os.Stderr, "→ Submitted %s (%s)\n", coverage.TaskPointCoverage, id)

	pointResult, err := client.Await(ctx, id)
	if err != nil {
		fail(err)
	}
	fmt.Fprintln(os.Stderr, "✓ Point coverage finished")

	id, err = client.SubmitGridCoverage(ctx, pointResult, cells)
	if err != nil {
		log.Fatalf("Failed to submit grid coverage: %v", err)
	}
	fmt.Fprintf(os.Stderr, "→ Submitted %s (%s)\n", coverage.TaskGridCoverage, id)

	out, err := client.Await(ctx, id)
	if err != nil {
		fail(err)
	}
	fmt.Fprintln(os.Stderr, "✓ Grid coverage finished")

	fmt.Println(out)
}

func mustRead(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func fail(err error) {
	var taskErr *tasks.TaskError
	if errors.As(err, &taskErr) {
		log.Fatalf("Task %s failed with %s: %s", taskErr.TaskID, taskErr.Kind, taskErr.Message)
	}
	log.Fatalf("Failed waiting for result: %v", err)
}
