package cli

import (
	"context"
	"fmt"
	"log"

	authdomain "github.com/jan-janssen/gmailsorter/internal/auth/domain"
	authRepo "github.com/jan-janssen/gmailsorter/internal/auth/repository"
	authUsecase "github.com/jan-janssen/gmailsorter/internal/auth/usecase"
	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	emailRepo "github.com/jan-janssen/gmailsorter/internal/email/repository"
	emailUsecase "github.com/jan-janssen/gmailsorter/internal/email/usecase"
	mldomain "github.com/jan-janssen/gmailsorter/internal/ml/domain"
	"github.com/jan-janssen/gmailsorter/internal/ml/forest"
	mlRepo "github.com/jan-janssen/gmailsorter/internal/ml/repository"
	mlUsecase "github.com/jan-janssen/gmailsorter/internal/ml/usecase"
	"github.com/jan-janssen/gmailsorter/internal/notification"
	taskdomain "github.com/jan-janssen/gmailsorter/internal/task/domain"
	taskRepo "github.com/jan-janssen/gmailsorter/internal/task/repository"
	taskUsecase "github.com/jan-janssen/gmailsorter/internal/task/usecase"
	"github.com/jan-janssen/gmailsorter/pkg/config"
	"github.com/jan-janssen/gmailsorter/pkg/database"
	"github.com/jan-janssen/gmailsorter/pkg/fcm"
	"github.com/jan-janssen/gmailsorter/pkg/gmail"

	"gorm.io/gorm"
)

// app holds the wired repositories and usecases shared by all commands.
type app struct {
	cfg          *config.Config
	db           *gorm.DB
	userRepo     authRepo.UserRepository
	devices      authRepo.DeviceRepository
	gmailService *gmail.Service
	auth         authUsecase.AuthUsecase
	sync         emailUsecase.SyncUsecase
	sorter       mlUsecase.SorterUsecase
	tasks        taskUsecase.TaskUsecase
}

func models() []interface{} {
	var all []interface{}
	all = append(all, authdomain.Models()...)
	all = append(all, emaildomain.Models()...)
	all = append(all, mldomain.Models()...)
	all = append(all, taskdomain.Models()...)
	return all
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, models()...); err != nil {
		return nil, err
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	deviceRepo := authRepo.NewDeviceRepository(db)
	emailRepository := emailRepo.NewEmailRepository(db)
	modelRepository := mlRepo.NewModelRepository(db)
	taskRepository := taskRepo.NewTaskRepository(db)

	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)

	// Initialize use cases
	syncUc := emailUsecase.NewSyncUsecase(emailRepository, userRepo, gmailService, cfg.DownloadFormat)
	sorterUc := mlUsecase.NewSorterUsecase(emailRepository, syncUc, modelRepository, forest.Trainer{}, cfg)
	taskUc := taskUsecase.NewTaskUsecase(taskRepository, syncUc, sorterUc, cfg)
	authUc := authUsecase.NewAuthUsecase(userRepo, deviceRepo, cfg)

	// Every new account starts with update=init, fetch=wait
	authUc.SetNewUserCallback(func(user *authdomain.User) error {
		return taskUc.CreateTasksForNewUser(user.ID)
	})

	return &app{
		cfg:          cfg,
		db:           db,
		userRepo:     userRepo,
		devices:      deviceRepo,
		gmailService: gmailService,
		auth:         authUc,
		sync:         syncUc,
		sorter:       sorterUc,
		tasks:        taskUc,
	}, nil
}

// pushNotifier returns nil when Firebase is not configured.
func (a *app) pushNotifier(ctx context.Context) *notification.PushNotifier {
	if a.cfg.FirebaseCredentials == "" {
		log.Printf("[FCM] No Firebase credentials configured, push notifications disabled")
		return nil
	}
	client, err := fcm.NewClient(ctx, a.cfg.FirebaseCredentials)
	if err != nil {
		log.Printf("[FCM] Failed to initialize FCM client (push notifications disabled): %v", err)
		return nil
	}
	return notification.NewPushNotifier(a.devices, client)
}

// users returns the selected user, or every stored user for id 0.
func (a *app) users(id uint) ([]*authdomain.User, error) {
	if id == 0 {
		return a.userRepo.FindAll()
	}
	user, err := a.userRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return []*authdomain.User{user}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
