package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jan-janssen/gmailsorter/internal/task/domain"
	"github.com/jan-janssen/gmailsorter/internal/task/usecase"
)

type countingRunner struct {
	mu    sync.Mutex
	modes []domain.Mode
	ran   chan struct{}
}

func (r *countingRunner) Run(ctx context.Context, mode domain.Mode) (*usecase.RunReport, error) {
	r.mu.Lock()
	r.modes = append(r.modes, mode)
	r.mu.Unlock()
	select {
	case r.ran <- struct{}{}:
	default:
	}
	return &usecase.RunReport{Mode: mode}, nil
}

func TestSchedulerRunsImmediatelyAndOnTick(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}, 10)}
	s := NewScheduler(runner, domain.ModeSelect, 10*time.Millisecond)
	s.Start()

	for i := 0; i < 2; i++ {
		select {
		case <-runner.ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("run %d did not happen", i+1)
		}
	}
	s.Stop()
	s.Stop()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	for _, m := range runner.modes {
		if m != domain.ModeSelect {
			t.Errorf("unexpected mode %s", m)
		}
	}
}
