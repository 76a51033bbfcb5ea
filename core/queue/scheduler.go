package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PeriodicJob is a named function the scheduler runs on a fixed interval.
type PeriodicJob struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler triggers registered periodic jobs (order polling, reconciliation
// sweeps, sync job claims) on their own tickers.
type Scheduler struct {
	logger *zap.Logger

	mu   sync.Mutex
	jobs []PeriodicJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Register adds a periodic job. Must be called before Start.
func (s *Scheduler) Register(job PeriodicJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start launches one goroutine per registered job.
func (s *Scheduler) Start(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(job)
	}
}

func (s *Scheduler) loop(job PeriodicJob) {
	defer s.wg.Done()
	if job.Interval <= 0 {
		s.logger.Warn("periodic job has no interval, skipping", zap.String("job", job.Name))
		return
	}
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			job.Run(s.ctx)
		}
	}
}

// Stop cancels all job loops and waits for them to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
