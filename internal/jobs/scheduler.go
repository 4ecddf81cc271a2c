package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper drops idle rate-limit records.
type Sweeper interface {
	Sweep() int
	Len() int
}

type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers fn under a six-field cron spec.
func (s *Scheduler) Add(name, spec string, fn func()) error {
	if _, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Str("job", name).Msg("job panicked")
			}
		}()
		fn()
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.log.Debug().Str("job", name).Str("spec", spec).Msg("job scheduled")
	return nil
}

// AddGuardSweep schedules the periodic eviction of idle login records.
func (s *Scheduler) AddGuardSweep(spec string, guard Sweeper) error {
	return s.Add("ratelimit-sweep", spec, func() {
		if removed := guard.Sweep(); removed > 0 {
			s.log.Debug().Int("removed", removed).Int("remaining", guard.Len()).Msg("swept login attempts")
		}
	})
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}
