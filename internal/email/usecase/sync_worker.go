package usecase

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	syncQueueSize   = 500
	maxSyncAttempts = 3
)

// SyncJob asks for one sync of a user's mailbox, optionally followed by a
// filter pass over the sorter label.
type SyncJob struct {
	ID     string
	UserID uint
	Quick  bool
	Filter bool

	attempts int
}

// merge combines two requests for the same user into one that does at least
// what both asked for.
func (j SyncJob) merge(other SyncJob) SyncJob {
	j.Quick = j.Quick && other.Quick
	j.Filter = j.Filter || other.Filter
	j.attempts = 0
	return j
}

// FilterRunner moves messages of the sorter label to their predicted labels.
type FilterRunner interface {
	FilterForUser(ctx context.Context, userID uint) (int, error)
}

// Notifier pushes a short message to a user's registered devices.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uint, title, body string, data map[string]string)
}

// SyncWorkerService runs queued sync jobs in the background
type SyncWorkerService struct {
	syncUsecase  SyncUsecase
	filterRunner FilterRunner
	notifier     Notifier
	workerCount  int
	retryDelay   time.Duration

	mu       sync.Mutex
	started  bool
	jobQueue chan SyncJob
	workerWg *sync.WaitGroup
	// pending holds users with a job queued or running; followUp holds the
	// merged requests that arrived meanwhile.
	pending  map[uint]bool
	followUp map[uint]SyncJob
}

// NewSyncWorkerService creates a new sync worker service
func NewSyncWorkerService(syncUsecase SyncUsecase, workerCount int) *SyncWorkerService {
	if workerCount <= 0 {
		workerCount = 2
	}

	return &SyncWorkerService{
		syncUsecase: syncUsecase,
		workerCount: workerCount,
		retryDelay:  30 * time.Second,
	}
}

// SetFilterRunner wires the sorter after creation
func (s *SyncWorkerService) SetFilterRunner(runner FilterRunner) {
	s.filterRunner = runner
}

// SetNotifier wires push notifications after creation
func (s *SyncWorkerService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Start starts the sync workers. A stopped service can be started again.
func (s *SyncWorkerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.jobQueue = make(chan SyncJob, syncQueueSize)
	s.workerWg = &sync.WaitGroup{}
	s.pending = make(map[uint]bool)
	s.followUp = make(map[uint]SyncJob)
	for i := 0; i < s.workerCount; i++ {
		s.workerWg.Add(1)
		go s.worker(i, s.jobQueue, s.workerWg)
	}
	s.started = true
	log.Printf("[SyncWorker] Started %d workers", s.workerCount)
}

// Stop stops all workers gracefully. Queued jobs still run; follow-ups and
// retries that come due afterwards are dropped.
func (s *SyncWorkerService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	queue, wg := s.jobQueue, s.workerWg
	s.mu.Unlock()

	close(queue)
	wg.Wait()
	log.Println("[SyncWorker] All workers stopped")
}

func (s *SyncWorkerService) worker(id int, queue <-chan SyncJob, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range queue {
		s.processJob(job)
	}

	log.Printf("[SyncWorker] Worker %d stopped", id)
}

// processJob syncs one mailbox and runs the filter if asked to
func (s *SyncWorkerService) processJob(job SyncJob) {
	retry := false
	defer func() { s.finish(job, retry) }()

	ctx := context.Background()
	transport, err := s.syncUsecase.Transport(ctx, job.UserID)
	if err != nil {
		log.Printf("[SyncWorker] Job %s: failed to open mailbox of user %d: %v", job.ID, job.UserID, err)
		return
	}

	report, err := s.syncUsecase.UpdateDatabase(ctx, job.UserID, transport, SyncOptions{Quick: job.Quick})
	if errors.Is(err, ErrSyncInProgress) {
		// another caller (scheduler, CLI) holds the mailbox
		retry = true
		return
	}
	if err != nil {
		log.Printf("[SyncWorker] Job %s: sync failed for user %d: %v", job.ID, job.UserID, err)
		return
	}

	if !job.Filter || s.filterRunner == nil {
		return
	}
	moved, err := s.filterRunner.FilterForUser(ctx, job.UserID)
	if err != nil {
		log.Printf("[SyncWorker] Job %s: filter failed for user %d: %v", job.ID, job.UserID, err)
		return
	}
	if moved > 0 && s.notifier != nil {
		s.notifier.NotifyUser(ctx, job.UserID, "Mail sorted", "New messages were moved to their labels", map[string]string{
			"type":   "emails_sorted",
			"stored": strconv.Itoa(report.Stored),
			"moved":  strconv.Itoa(moved),
		})
	}
}

// finish releases the user and queues whatever is owed next: the follow-up
// that arrived while the job ran, or a delayed retry of a job that found the
// mailbox busy.
func (s *SyncWorkerService) finish(job SyncJob, retry bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, owed := s.followUp[job.UserID]
	delete(s.followUp, job.UserID)
	delete(s.pending, job.UserID)
	if !s.started {
		return
	}

	switch {
	case owed:
		if retry {
			next = next.merge(job)
		}
		s.enqueue(next)
	case retry && job.attempts+1 < maxSyncAttempts:
		job.attempts++
		log.Printf("[SyncWorker] Job %s: mailbox of user %d busy, retrying in %v", job.ID, job.UserID, s.retryDelay)
		s.pending[job.UserID] = true
		time.AfterFunc(s.retryDelay, func() { s.requeue(job) })
	case retry:
		log.Printf("[SyncWorker] Job %s: mailbox of user %d still busy, giving up", job.ID, job.UserID)
	}
}

// requeue puts a delayed retry back on the queue, merged with any request
// that came in while it waited.
func (s *SyncWorkerService) requeue(job SyncJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, job.UserID)
	if !s.started {
		return
	}
	if next, owed := s.followUp[job.UserID]; owed {
		delete(s.followUp, job.UserID)
		attempts := job.attempts
		job = job.merge(next)
		job.attempts = attempts
	}
	s.enqueue(job)
}

// QueueJob adds a job to the queue (non-blocking). While a job of the same
// user is queued or running, the request is merged into one follow-up run
// and the call reports success.
func (s *SyncWorkerService) QueueJob(job SyncJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return false
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if s.pending[job.UserID] {
		if prev, ok := s.followUp[job.UserID]; ok {
			job = prev.merge(job)
		}
		s.followUp[job.UserID] = job
		return true
	}
	return s.enqueue(job)
}

// enqueue must be called with mu held.
func (s *SyncWorkerService) enqueue(job SyncJob) bool {
	select {
	case s.jobQueue <- job:
		s.pending[job.UserID] = true
		return true
	default:
		log.Printf("[SyncWorker] Queue full, dropping job %s of user %d", job.ID, job.UserID)
		return false
	}
}
