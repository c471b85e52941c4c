package services

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultInitialDelay lets the server come up before the first scheduled run
const DefaultInitialDelay = 10 * time.Second

// runner is the part of AssistantService the scheduler drives
type runner interface {
	RunWithTrigger(ctx context.Context, trigger string) (*RunResult, error)
}

// RunScheduler triggers pipeline runs periodically
type RunScheduler struct {
	runner       runner
	interval     time.Duration
	initialDelay time.Duration
	stopChan     chan struct{}
	cancel       context.CancelFunc
	running      bool
	mu           sync.Mutex
	cycling      sync.Mutex // a tick is skipped while the previous run is active
}

// NewRunScheduler creates a new run scheduler
func NewRunScheduler(service *AssistantService, interval time.Duration) *RunScheduler {
	return newRunScheduler(service, interval, DefaultInitialDelay)
}

func newRunScheduler(r runner, interval, initialDelay time.Duration) *RunScheduler {
	return &RunScheduler{
		runner:       r,
		interval:     interval,
		initialDelay: initialDelay,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the periodic runs
func (s *RunScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	log.WithField("interval", s.interval).Info("[Scheduler] Starting")

	go func() {
		select {
		case <-time.After(s.initialDelay):
			log.Debug("[Scheduler] Running first run...")
			go s.runOnce(ctx)
		case <-s.stopChan:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				go s.runOnce(ctx)
			case <-s.stopChan:
				log.Info("[Scheduler] Stopping")
				return
			}
		}
	}()
}

// Stop stops the periodic runs and cancels the active one
func (s *RunScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.cancel()
	s.running = false
}

// runOnce executes a single scheduled run unless the previous one is
// still active
func (s *RunScheduler) runOnce(ctx context.Context) {
	if !s.cycling.TryLock() {
		log.Info("[Scheduler] Previous run still active, skipping this tick")
		return
	}
	defer s.cycling.Unlock()

	result, err := s.runner.RunWithTrigger(ctx, TriggerScheduler)
	switch {
	case errors.Is(err, ErrRunInProgress):
		log.Info("[Scheduler] A manual run is active, skipping this tick")
	case err != nil:
		log.WithField("error", err.Error()).Warn("[Scheduler] Scheduled run failed")
	default:
		log.WithFields(log.Fields{
			"run_id": result.RunID,
			"todo":   result.Todo.TotalItems,
		}).Info("[Scheduler] Scheduled run completed")
	}
}
