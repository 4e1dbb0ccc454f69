// Package schedule drives the assistant's periodic work: the inbox scan,
// the stale-draft sweep, and the daily voice profile rebuild. One goroutine
// per job, run-to-completion, no overlapping runs of the same job.
package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	// Immediate runs the job once at startup before the first tick.
	Immediate bool
	Run       func(ctx context.Context) error
}

// Scheduler runs a fixed set of jobs on independent tickers.
type Scheduler struct {
	jobs []Job
}

// New builds a scheduler over the given jobs. Jobs with a non-positive
// interval are dropped with a warning so a zero config value disables a job
// instead of spinning.
func New(jobs ...Job) *Scheduler {
	s := &Scheduler{}
	for _, j := range jobs {
		if j.Interval <= 0 {
			log.Warn().Str("job", j.Name).Msg("job disabled: non-positive interval")
			continue
		}
		s.jobs = append(s.jobs, j)
	}
	return s
}

// Run blocks until the context is canceled. A job's error is logged and the
// ticker keeps going; one bad cycle never stops the loop.
func (s *Scheduler) Run(ctx context.Context) {
	done := make(chan struct{})
	for _, j := range s.jobs {
		go func(j Job) {
			defer func() { done <- struct{}{} }()
			s.runJob(ctx, j)
		}(j)
	}
	for range s.jobs {
		<-done
	}
}

func (s *Scheduler) runJob(ctx context.Context, j Job) {
	log.Info().Str("job", j.Name).Dur("interval", j.Interval).Msg("job starting")

	if j.Immediate {
		s.runOnce(ctx, j)
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("job", j.Name).Msg("job stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx, j)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := j.Run(ctx); err != nil {
		log.Error().Err(err).Str("job", j.Name).Dur("elapsed", time.Since(start)).Msg("job run failed")
		return
	}
	log.Debug().Str("job", j.Name).Dur("elapsed", time.Since(start)).Msg("job run finished")
}
