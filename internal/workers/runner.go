package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-curator/internal/logging"
	"media-curator/internal/metrics"
)

// ErrRunnerClosed is returned by tasks submitted after Shutdown.
var ErrRunnerClosed = errors.New("task runner is shut down")

// TaskState is the lifecycle stage of a task.
type TaskState string

const (
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// TaskInfo is a snapshot of a submitted task.
type TaskInfo struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	State    TaskState `json:"state"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
	Result   any       `json:"result,omitempty"`
}

// Task is a handle to work running in the background.
type Task[T any] struct {
	ID   string
	Kind string

	done   chan struct{}
	result T
	err    error
}

// Done is closed when the task finishes.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Runner executes background tasks with a bounded number in flight.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	tasks  map[string]*TaskInfo
	order  []string
	keep   int
}

// NewRunner creates a runner allowing at most maxInFlight concurrent tasks.
// Values below one select ForIO(0).
func NewRunner(maxInFlight int) *Runner {
	if maxInFlight < 1 {
		maxInFlight = ForIO(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		ctx:    ctx,
		cancel: cancel,
		sem:    make(chan struct{}, maxInFlight),
		tasks:  make(map[string]*TaskInfo),
		keep:   256,
	}
}

// Submit runs fn on r and returns its handle. A panic inside fn is
// recovered and reported as the task's error.
func Submit[T any](r *Runner, kind string, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := &Task[T]{
		ID:   uuid.NewString(),
		Kind: kind,
		done: make(chan struct{}),
	}

	info := &TaskInfo{ID: t.ID, Kind: kind, State: TaskRunning, Started: time.Now()}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		t.err = ErrRunnerClosed
		close(t.done)
		return t
	}
	r.track(info)
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer close(t.done)

		r.sem <- struct{}{}
		defer func() { <-r.sem }()

		metrics.TasksInFlight.Inc()
		defer metrics.TasksInFlight.Dec()

		logging.Debug("Task %s (%s) started", t.ID, kind)
		t.result, t.err = runRecovered(r.ctx, fn)

		r.finish(info, t.result, t.err)
	}()

	return t
}

func runRecovered[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if p := recover(); p != nil {
			logging.Error("Task panicked: %v\n%s", p, debug.Stack())
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return fn(ctx)
}

// track records info, forgetting the oldest finished tasks past the limit.
// Caller holds r.mu.
func (r *Runner) track(info *TaskInfo) {
	r.tasks[info.ID] = info
	r.order = append(r.order, info.ID)

	for len(r.order) > r.keep {
		oldest := r.order[0]
		if r.tasks[oldest].State == TaskRunning {
			break
		}
		delete(r.tasks, oldest)
		r.order = r.order[1:]
	}
}

func (r *Runner) finish(info *TaskInfo, result any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info.Finished = time.Now()
	info.Result = result
	status := "success"
	if err != nil {
		info.State = TaskFailed
		info.Error = err.Error()
		status = "error"
		logging.Warn("Task %s (%s) failed after %v: %v", info.ID, info.Kind, info.Finished.Sub(info.Started), err)
	} else {
		info.State = TaskSucceeded
		logging.Debug("Task %s (%s) finished in %v", info.ID, info.Kind, info.Finished.Sub(info.Started))
	}
	metrics.TasksTotal.WithLabelValues(info.Kind, status).Inc()
}

// Status returns a snapshot of the task with the given id.
func (r *Runner) Status(id string) (TaskInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.tasks[id]
	if !ok {
		return TaskInfo{}, false
	}
	return *info, true
}

// Shutdown stops accepting tasks and waits for running ones until ctx is
// done, after which their context is cancelled.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}

// ForEach calls fn for every item using at most limit goroutines and returns
// once all calls have finished.
func ForEach[T any](items []T, limit int, fn func(i int, item T)) {
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i, items[i])
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
