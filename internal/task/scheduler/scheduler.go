package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jan-janssen/gmailsorter/internal/task/domain"
	"github.com/jan-janssen/gmailsorter/internal/task/usecase"
)

// Runner executes one daemon pass.
type Runner interface {
	Run(ctx context.Context, mode domain.Mode) (*usecase.RunReport, error)
}

// Scheduler runs the daemon on a fixed interval
type Scheduler struct {
	runner   Runner
	mode     domain.Mode
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new scheduler
func NewScheduler(runner Runner, mode domain.Mode, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		runner:   runner,
		mode:     mode,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *Scheduler) Start() {
	log.Printf("[Scheduler] Starting daemon scheduler (mode: %s, interval: %s)", s.mode, s.interval)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-s.stopChan
		cancel()
	}()

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-s.stopChan:
				log.Println("[Scheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop cancels a running pass and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.runner.Run(ctx, s.mode)
	if err != nil {
		log.Printf("[Scheduler] Daemon pass failed: %v", err)
		return
	}
	if report.Failed() > 0 {
		log.Printf("[Scheduler] %d of %d tasks failed", report.Failed(), len(report.Results))
	}
}
