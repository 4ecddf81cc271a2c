package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	sweeps atomic.Int32
}

func (c *countingSweeper) Sweep() int {
	c.sweeps.Add(1)
	return 1
}

func (c *countingSweeper) Len() int { return 0 }

func TestAddRejectsBadSpec(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	err := s.Add("broken", "every minute", func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	// Five-field specs are rejected; the scheduler expects seconds.
	assert.Error(t, s.Add("short", "*/1 * * * *", func() {}))
}

func TestGuardSweepRuns(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	sweeper := &countingSweeper{}
	require.NoError(t, s.AddGuardSweep("* * * * * *", sweeper))

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	assert.Eventually(t, func() bool { return sweeper.sweeps.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestPanickingJobDoesNotStopScheduler(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	var ran atomic.Int32
	require.NoError(t, s.Add("panics", "* * * * * *", func() {
		ran.Add(1)
		panic("boom")
	}))

	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return ran.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
}
