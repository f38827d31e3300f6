package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	authrepo "github.com/jan-janssen/gmailsorter/internal/auth/repository"
	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	emailusecase "github.com/jan-janssen/gmailsorter/internal/email/usecase"

	"cloud.google.com/go/pubsub"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes for a mailbox change.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// SyncQueue accepts background sync jobs.
type SyncQueue interface {
	QueueJob(job emailusecase.SyncJob) bool
}

// Watcher registers a mailbox for push notifications and returns the
// current history id.
type Watcher interface {
	Watch(ctx context.Context, token *oauth2.Token, topicName string, onTokenRefresh emaildomain.TokenUpdateFunc) (uint64, error)
}

// ErrQueueRejected is returned when the sync queue did not take the job.
var ErrQueueRejected = errors.New("sync queue rejected job")

// Dispatcher turns Gmail notifications into quick sync + filter jobs. A
// notification whose history id is not newer than the last one seen for the
// user is dropped.
type Dispatcher struct {
	userRepo authrepo.UserRepository
	queue    SyncQueue

	mu            sync.Mutex
	lastHistoryID map[uint]uint64
}

func NewDispatcher(userRepo authrepo.UserRepository, queue SyncQueue) *Dispatcher {
	return &Dispatcher{
		userRepo:      userRepo,
		queue:         queue,
		lastHistoryID: make(map[uint]uint64),
	}
}

// Seen records historyID for the user unless a newer one is known. It
// reports whether historyID was new.
func (d *Dispatcher) Seen(userID uint, historyID uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isNew(userID, historyID) {
		return false
	}
	d.lastHistoryID[userID] = historyID
	return true
}

// isNew must be called with mu held.
func (d *Dispatcher) isNew(userID uint, historyID uint64) bool {
	last, ok := d.lastHistoryID[userID]
	return !ok || historyID > last
}

// Handle processes one raw notification and reports whether a job was
// queued. A non-nil error means the notification was not consumed and should
// be delivered again; its history id is not recorded.
func (d *Dispatcher) Handle(data []byte) (bool, error) {
	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return false, nil
	}

	user, err := d.userRepo.FindByEmail(notification.EmailAddress)
	if err != nil {
		return false, fmt.Errorf("failed to find user %s: %w", notification.EmailAddress, err)
	}
	if user == nil {
		log.Printf("[PubSub] User not found for email: %s", notification.EmailAddress)
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isNew(user.ID, notification.HistoryID) {
		log.Printf("[PubSub] Skipping duplicate notification for user %d (historyId %d)", user.ID, notification.HistoryID)
		return false, nil
	}
	if !d.queue.QueueJob(emailusecase.SyncJob{UserID: user.ID, Quick: true, Filter: true}) {
		return false, ErrQueueRejected
	}
	d.lastHistoryID[user.ID] = notification.HistoryID
	return true, nil
}

// Service listens on the Gmail push subscription.
type Service struct {
	pubsubClient *pubsub.Client
	dispatcher   *Dispatcher
	userRepo     authrepo.UserRepository
	watcher      Watcher
	projectID    string
	topicName    string
	subName      string
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile string, userRepo authrepo.UserRepository, watcher Watcher, dispatcher *Dispatcher) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Service{
		pubsubClient: client,
		dispatcher:   dispatcher,
		userRepo:     userRepo,
		watcher:      watcher,
		projectID:    projectID,
		topicName:    topicName,
		subName:      topicName + "-sub", // Convention: topic-sub
	}, nil
}

// WatchAll registers every stored mailbox with the topic. The history id
// returned by each watch seeds the dedupe state.
func (s *Service) WatchAll(ctx context.Context) error {
	users, err := s.userRepo.FindAll()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	topic := fmt.Sprintf("projects/%s/topics/%s", s.projectID, s.topicName)
	for _, user := range users {
		onRefresh := func(token *oauth2.Token) error {
			user.SetToken(token)
			return s.userRepo.Update(user)
		}
		historyID, err := s.watcher.Watch(ctx, user.Token(), topic, onRefresh)
		if err != nil {
			log.Printf("[PubSub] Failed to watch mailbox of user %d: %v", user.ID, err)
			continue
		}
		s.dispatcher.Seen(user.ID, historyID)
	}
	return nil
}

// Start blocks receiving messages until ctx is done.
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", s.topicName)
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if _, err := s.dispatcher.Handle(msg.Data); err != nil {
			log.Printf("[PubSub] Notification not handled, asking for redelivery: %v", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

// Close releases the Pub/Sub client.
func (s *Service) Close() error {
	return s.pubsubClient.Close()
}
