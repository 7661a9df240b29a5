// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/log"
)

// Job runs a task every interval until its context ends. The first run
// happens one interval after start.
type Job struct {
	name     string
	interval time.Duration
	task     func(context.Context) error
	logger   zerolog.Logger

	mu      sync.Mutex
	lastRun time.Time
	lastErr string
}

// NewJob creates a periodic job. A non-positive interval disables it.
func NewJob(name string, interval time.Duration, task func(context.Context) error) *Job {
	return &Job{
		name:     name,
		interval: interval,
		task:     task,
		logger:   xglog.WithComponent("job").With().Str("job", name).Logger(),
	}
}

// Name returns the job name.
func (j *Job) Name() string { return j.name }

// LastRun reports when the job last ran and its error, if any.
func (j *Job) LastRun() (time.Time, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun, j.lastErr
}

// Run blocks until ctx is done.
func (j *Job) Run(ctx context.Context) {
	if j.interval <= 0 {
		return
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *Job) runOnce(ctx context.Context) {
	start := time.Now()
	err := j.task(ctx)

	j.mu.Lock()
	j.lastRun = start
	j.lastErr = ""
	if err != nil {
		j.lastErr = err.Error()
	}
	j.mu.Unlock()

	if err != nil {
		j.logger.Warn().Err(err).Str(xglog.FieldEvent, "job.failed").Dur("duration", time.Since(start)).Msg("periodic job failed")
		return
	}
	j.logger.Debug().Str(xglog.FieldEvent, "job.completed").Dur("duration", time.Since(start)).Msg("periodic job completed")
}
