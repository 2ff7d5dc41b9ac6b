// Package jobs runs confirmation polls on their own goroutines and hands
// callers a handle they can poll for the eventual outcome, so a poll never
// ties up the request path for its full duration.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tonforge/jetton-credit-service/internal/credit"
	"github.com/tonforge/jetton-credit-service/internal/poller"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is the handle callers poll while a confirmation runs in the background.
type Job struct {
	ID         string          `json:"job_id"`
	Status     Status          `json:"status"`
	Outcome    *credit.Outcome `json:"outcome,omitempty"`
	Reason     poller.Reason   `json:"reason,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

type Manager struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	timeout time.Duration
	log     zerolog.Logger
}

// NewManager creates a manager whose jobs are cancelled after timeout.
func NewManager(timeout time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		jobs:    make(map[string]*Job),
		timeout: timeout,
		log:     log,
	}
}

// Start runs fn on its own goroutine and returns the handle immediately. The
// job context is detached from the caller's request so a dropped connection
// does not abort the poll.
func (m *Manager) Start(fn func(ctx context.Context) (credit.Outcome, error)) Job {
	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusRunning,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	handle := *job
	m.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		outcome, err := fn(ctx)
		now := time.Now().UTC()

		m.mu.Lock()
		defer m.mu.Unlock()
		job.FinishedAt = &now
		if err != nil {
			job.Status = StatusFailed
			job.Error = err.Error()
			job.Reason = poller.ReasonOf(err)
			m.log.Error().Err(err).Str("job_id", job.ID).Msg("confirmation job failed")
			return
		}
		job.Status = StatusCompleted
		job.Outcome = &outcome
		m.log.Info().Str("job_id", job.ID).Str("event_id", outcome.EventID).Msg("confirmation job completed")
	}()

	return handle
}

// Get returns a snapshot of the job with the given id.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}
