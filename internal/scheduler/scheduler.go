// Package scheduler runs the reconfiguration loop: on a strategy-defined
// cadence it produces a candidate topology and submits it to the reconciler.
// The scheduler owns no topology state and never touches the deployment
// gateway or build directories directly.
package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Strategy proposes topologies for elapsed points on the scheduler's clock.
type Strategy interface {
	// Produce returns the task-name groupings desired at the given elapsed
	// offset, or false when the strategy has nothing to propose there.
	Produce(elapsed time.Duration) ([][]string, bool)

	// NextInterval returns how long to sleep until the next proposal after
	// the given elapsed offset. False signals the loop to terminate.
	NextInterval(elapsed time.Duration) (time.Duration, bool)
}

// Replacer is the reconciler surface the scheduler drives.
type Replacer interface {
	ReplaceNames(desired [][]string)
}

// Scheduler drives a Strategy against a Reconciler in its own goroutine.
type Scheduler struct {
	reconciler Replacer
	strategy   Strategy

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(reconciler Replacer, strategy Strategy) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		strategy:   strategy,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the loop. It terminates on Stop or when the strategy has no
// further interval to propose.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop signals the loop to terminate and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Wait blocks until the loop has exited on its own or through Stop.
func (s *Scheduler) Wait() {
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)
	elapsed := time.Duration(0)
	for {
		// Produce before sleeping: a proposal pinned to offset zero is
		// submitted immediately on start.
		if groups, ok := s.strategy.Produce(elapsed); ok {
			log.Info().Dur("elapsed", elapsed).Msg("submitting scheduled topology")
			s.reconciler.ReplaceNames(groups)
		}
		interval, ok := s.strategy.NextInterval(elapsed)
		if !ok {
			log.Info().Dur("elapsed", elapsed).Msg("schedule exhausted, scheduler stopping")
			return
		}
		timer := time.NewTimer(interval)
		select {
		case <-s.stop:
			timer.Stop()
			log.Info().Msg("scheduler stopped")
			return
		case <-timer.C:
		}
		elapsed += interval
	}
}
