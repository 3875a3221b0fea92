package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/jonboulle/clockwork"
)

// Task represents a scheduled task
type Task struct {
	Name     string
	Interval time.Duration
	Fn       func(context.Context) error
}

// Scheduler runs tasks on fixed intervals until stopped
type Scheduler struct {
	tasks   []*Task
	running bool
	mutex   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	clock   clockwork.Clock
	logger  *logging.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(clock clockwork.Clock, logger *logging.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scheduler{
		tasks:  make([]*Task, 0),
		clock:  clock,
		logger: logger.With("component", "scheduler"),
	}
}

// AddTask adds a task to the scheduler. Tasks added after Start are ignored
// until the next Start.
func (s *Scheduler) AddTask(name string, interval time.Duration, fn func(context.Context) error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Interval: interval,
		Fn:       fn,
	})
}

// Start starts one goroutine per task
func (s *Scheduler) Start(ctx context.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, task := range s.tasks {
		ticker := s.clock.NewTicker(task.Interval)
		s.wg.Add(1)
		go s.runTask(ctx, task, ticker)
	}

	s.logger.Info("Scheduler started with %d tasks", len(s.tasks))
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mutex.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// runTask runs a task at the specified interval
func (s *Scheduler) runTask(ctx context.Context, task *Task, ticker clockwork.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.logger.Debug("Running scheduled task: %s", task.Name)
			if err := task.Fn(ctx); err != nil {
				s.logger.Warn("Error running task %s: %v", task.Name, err)
			}
		case <-ctx.Done():
			s.logger.Debug("Task %s stopped", task.Name)
			return
		}
	}
}
