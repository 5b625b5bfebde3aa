// Package jobs runs the platform's background compliance work: GDPR data
// exports and account deletions, retried with exponential backoff.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindExport Kind = "export"
	KindDelete Kind = "delete"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is one unit of compliance work for a tenant's data subject.
type Job struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Tenant    string    `json:"tenant"`
	SubjectID string    `json:"subjectId"`
	Status    Status    `json:"status"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Handler performs one attempt of a job. A returned error schedules a
// retry until the attempt cap is reached.
type Handler func(ctx context.Context, job Job) error

var ErrQueueFull = errors.New("jobs: queue is full")

type Config struct {
	Handler     Handler
	Logger      *slog.Logger
	Workers     int
	Buffer      int
	MaxAttempts int
	BaseDelay   time.Duration
}

type Queue struct {
	cfg Config

	mu   sync.RWMutex
	jobs map[string]*Job

	ch chan string
	wg sync.WaitGroup
}

func New(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Queue{
		cfg:  cfg,
		jobs: make(map[string]*Job),
		ch:   make(chan string, cfg.Buffer),
	}
}

// Start launches the worker goroutines. Workers drain until ctx is
// canceled; Wait blocks until they exit.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

func (q *Queue) Wait() {
	q.wg.Wait()
}

// Enqueue registers a new job and hands it to the workers. Returns
// ErrQueueFull instead of blocking the API request when the buffer is
// saturated.
func (q *Queue) Enqueue(kind Kind, tenant, subjectID string) (Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Tenant:    tenant,
		SubjectID: subjectID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	select {
	case q.ch <- job.ID:
		return *job, nil
	default:
		q.mu.Lock()
		delete(q.jobs, job.ID)
		q.mu.Unlock()
		return Job{}, ErrQueueFull
	}
}

// Get returns a snapshot of the job with the given ID.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.ch:
			q.run(ctx, id)
		}
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	q.update(id, func(j *Job) { j.Status = StatusRunning })

	snapshot, ok := q.Get(id)
	if !ok {
		return
	}

	var lastErr error
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		q.update(id, func(j *Job) { j.Attempts = attempt })

		lastErr = q.cfg.Handler(ctx, snapshot)
		if lastErr == nil {
			q.update(id, func(j *Job) {
				j.Status = StatusDone
				j.Error = ""
			})
			return
		}

		q.cfg.Logger.Warn("job attempt failed",
			"job_id", id,
			"kind", snapshot.Kind,
			"attempt", attempt,
			"error", lastErr,
		)

		if attempt == q.cfg.MaxAttempts {
			break
		}
		// exponential backoff: base, 2x, 4x, ...
		delay := q.cfg.BaseDelay << (attempt - 1)
		select {
		case <-ctx.Done():
			q.update(id, func(j *Job) {
				j.Status = StatusFailed
				j.Error = ctx.Err().Error()
			})
			return
		case <-time.After(delay):
		}
	}

	q.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = lastErr.Error()
	})
}

func (q *Queue) update(id string, fn func(*Job)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[id]; ok {
		fn(job)
		job.UpdatedAt = time.Now().UTC()
	}
}
