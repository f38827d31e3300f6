package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "github.com/jan-janssen/gmailsorter/cmd/api"
	emailUsecase "github.com/jan-janssen/gmailsorter/internal/email/usecase"
	"github.com/jan-janssen/gmailsorter/internal/notification"
	taskdomain "github.com/jan-janssen/gmailsorter/internal/task/domain"
	"github.com/jan-janssen/gmailsorter/internal/task/scheduler"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the scheduler and the Gmail push listener",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		worker := emailUsecase.NewSyncWorkerService(a.sync, a.cfg.SyncWorkers)
		worker.SetFilterRunner(a.sorter)
		if n := a.pushNotifier(ctx); n != nil {
			worker.SetNotifier(n)
			a.tasks.SetNotifier(n)
		}
		worker.Start()
		defer worker.Stop()

		sched := scheduler.NewScheduler(a.tasks, taskdomain.ModeAll, a.cfg.SchedulerInterval)
		sched.Start()
		defer sched.Stop()

		// Only start if project ID is configured
		if a.cfg.GoogleProjectID != "" {
			notifService, err := startNotifications(ctx, a, worker)
			if err != nil {
				log.Printf("[PubSub] Failed to initialize notification service: %v", err)
			} else {
				defer notifService.Close()
			}
		} else {
			log.Printf("[PubSub] GOOGLE_PROJECT_ID not configured, notification service disabled")
		}

		handler := api.NewHandler(a.auth, a.sync, worker, a.sorter, a.tasks, a.cfg)
		srv := &http.Server{
			Addr:    ":" + a.cfg.Port,
			Handler: handler.Router(),
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("Server starting on port %s", a.cfg.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Printf("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func startNotifications(ctx context.Context, a *app, queue notification.SyncQueue) (*notification.Service, error) {
	// Extract short topic name from full resource name if necessary
	topicName := a.cfg.GooglePubSubTopic
	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}
	if topicName == "" {
		topicName = "gmail-updates"
	}

	dispatcher := notification.NewDispatcher(a.userRepo, queue)
	notifService, err := notification.NewService(ctx, a.cfg.GoogleProjectID, topicName, a.cfg.GoogleCredentials, a.userRepo, a.gmailService, dispatcher)
	if err != nil {
		return nil, err
	}
	if err := notifService.WatchAll(ctx); err != nil {
		log.Printf("[PubSub] Failed to register mailbox watches: %v", err)
	}
	go notifService.Start(ctx)
	return notifService, nil
}
