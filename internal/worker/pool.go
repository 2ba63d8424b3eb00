// Package worker runs batches of material set generations in parallel.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MeKo-Tech/surfacegen/internal/generator"
)

var errNoGenerator = errors.New("worker pool has no generator factory")

// Generator produces one map set. *generator.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, p generator.Params, onProgress generator.ProgressFunc) (*generator.Maps, error)
}

// Sink persists a finished set and returns where it went (a file base path,
// an archive id, or both joined by the caller's convention).
type Sink interface {
	Store(ctx context.Context, task Task, maps *generator.Maps) (string, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, task Task, maps *generator.Maps) (string, error)

// Store calls f.
func (f SinkFunc) Store(ctx context.Context, task Task, maps *generator.Maps) (string, error) {
	return f(ctx, task, maps)
}

// Result represents the outcome of one task.
type Result struct {
	Task     Task
	Location string
	Err      error
	Seed     int64
	Elapsed  time.Duration
}

// ProgressFunc is called after each task completes with its result and the
// running totals.
type ProgressFunc func(r Result, completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	// NewGenerator is called once per worker. A Generator runs one set at a
	// time, so workers never share one.
	NewGenerator func() Generator
	Sink         Sink
	OnProgress   ProgressFunc
	// OnStage receives the stage events of every running task.
	OnStage func(task Task, e generator.Event)
	Workers int
}

// Pool manages parallel set generation.
type Pool struct {
	newGenerator func() Generator
	sink         Sink
	onProgress   ProgressFunc
	onStage      func(Task, generator.Event)
	workers      int
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:      workers,
		newGenerator: cfg.NewGenerator,
		sink:         cfg.Sink,
		onProgress:   cfg.OnProgress,
		onStage:      cfg.OnStage,
	}
}

// Run executes all tasks and returns results.
// Tasks are processed in parallel by the configured number of workers.
// The function blocks until all tasks complete or the context is cancelled;
// tasks not started before cancellation report ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}
	if p.newGenerator == nil {
		results := make([]Result, len(tasks))
		for i, task := range tasks {
			results[i] = Result{Task: task, Err: errNoGenerator}
		}
		return results
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, p.newGenerator(), taskCh, resultCh)
		}()
	}

	// Collect results in a separate goroutine
	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		var completed, failed int
		for result := range resultCh {
			results = append(results, result)

			completed++
			if result.Err != nil {
				failed++
			}
			if p.onProgress != nil {
				p.onProgress(result, completed, len(tasks), failed)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, gen Generator, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		res := p.runTask(ctx, gen, task)
		res.Elapsed = time.Since(start)
		results <- res
	}
}

func (p *Pool) runTask(ctx context.Context, gen Generator, task Task) Result {
	var onEvent generator.ProgressFunc
	if p.onStage != nil {
		onEvent = func(e generator.Event) { p.onStage(task, e) }
	}

	maps, err := gen.Generate(ctx, task.Params, onEvent)
	if err != nil {
		return Result{Task: task, Err: err}
	}

	res := Result{Task: task, Seed: maps.Seed}
	if p.sink != nil {
		res.Location, res.Err = p.sink.Store(ctx, task, maps)
	}
	return res
}
