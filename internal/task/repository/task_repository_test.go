package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jan-janssen/gmailsorter/internal/task/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTaskTestDB(t *testing.T) (*gorm.DB, func()) {
	tempDir, err := os.MkdirTemp("", "task_repo_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(tempDir, "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db, func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.RemoveAll(tempDir)
	}
}

func TestCreateForUser(t *testing.T) {
	db, cleanup := setupTaskTestDB(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	if err := repo.CreateForUser(1); err != nil {
		t.Fatalf("CreateForUser failed: %v", err)
	}
	tasks, err := repo.FindByUserID(1)
	if err != nil {
		t.Fatalf("FindByUserID failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Name != domain.NameUpdate || tasks[0].Status != domain.StatusInit {
		t.Errorf("update task = %+v", tasks[0])
	}
	if tasks[1].Name != domain.NameFetch || tasks[1].Status != domain.StatusWait {
		t.Errorf("fetch task = %+v", tasks[1])
	}

	// a second call must not reset progress
	if err := repo.SetStatus(1, domain.NameUpdate, domain.StatusSuccess); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := repo.CreateForUser(1); err != nil {
		t.Fatalf("second CreateForUser failed: %v", err)
	}
	task, _ := repo.Get(1, domain.NameUpdate)
	if task.Status != domain.StatusSuccess {
		t.Errorf("existing task was overwritten: %s", task.Status)
	}
	if tasks, _ := repo.FindByUserID(1); len(tasks) != 2 {
		t.Errorf("duplicate tasks created: %d", len(tasks))
	}
}

func TestGetAndFindByName(t *testing.T) {
	db, cleanup := setupTaskTestDB(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	task, err := repo.Get(7, domain.NameFetch)
	if err != nil || task != nil {
		t.Errorf("missing task: got %v, %v", task, err)
	}

	repo.CreateForUser(2)
	repo.CreateForUser(1)
	fetch, err := repo.FindByName(domain.NameFetch)
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if len(fetch) != 2 || fetch[0].UserID != 1 || fetch[1].UserID != 2 {
		t.Errorf("unexpected fetch tasks: %+v", fetch)
	}
}

func TestSetStatusUnknownTask(t *testing.T) {
	db, cleanup := setupTaskTestDB(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	if err := repo.SetStatus(3, domain.NameUpdate, domain.StatusProgress); err == nil {
		t.Error("expected error for missing task")
	}
}
