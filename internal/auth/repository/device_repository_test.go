package repository

import (
	"os"
	"path/filepath"
	"testing"

	authdomain "github.com/jan-janssen/gmailsorter/internal/auth/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAuthRepoTestDB(t *testing.T) (*gorm.DB, func()) {
	tempDir, err := os.MkdirTemp("", "auth_repo_test_*")
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
	db.AutoMigrate(authdomain.Models()...)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.RemoveAll(tempDir)
	}
	return db, cleanup
}

func TestDeviceTokenMovesToLatestUser(t *testing.T) {
	db, cleanup := setupAuthRepoTestDB(t)
	defer cleanup()
	repo := NewDeviceRepository(db)

	if err := repo.Register(1, "device-a", "firefox"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := repo.Register(2, "device-a", "chrome"); err != nil {
		t.Fatalf("Register upsert failed: %v", err)
	}

	first, _ := repo.Tokens(1)
	second, _ := repo.Tokens(2)
	if len(first) != 0 || len(second) != 1 || second[0] != "device-a" {
		t.Errorf("tokens user1=%v user2=%v", first, second)
	}

	if ok, err := repo.Unregister(1, "device-a"); err != nil || ok {
		t.Errorf("Unregister by a former owner = %v, %v; want false, nil", ok, err)
	}
	if ok, err := repo.Unregister(2, "device-a"); err != nil || !ok {
		t.Errorf("Unregister by the owner = %v, %v; want true, nil", ok, err)
	}
	if left, _ := repo.Tokens(2); len(left) != 0 {
		t.Errorf("token not deleted: %v", left)
	}
}

func TestDeviceUnregisterAllAndPrune(t *testing.T) {
	db, cleanup := setupAuthRepoTestDB(t)
	defer cleanup()
	repo := NewDeviceRepository(db)

	for _, token := range []string{"phone", "tablet"} {
		if err := repo.Register(1, token, ""); err != nil {
			t.Fatal(err)
		}
	}
	for _, token := range []string{"laptop", "stale"} {
		if err := repo.Register(2, token, ""); err != nil {
			t.Fatal(err)
		}
	}

	if n, err := repo.Prune([]string{"stale", "unknown"}); err != nil || n != 1 {
		t.Errorf("Prune = %d, %v; want 1, nil", n, err)
	}
	if n, err := repo.Prune(nil); err != nil || n != 0 {
		t.Errorf("Prune(nil) = %d, %v; want 0, nil", n, err)
	}
	if n, err := repo.UnregisterAll(1); err != nil || n != 2 {
		t.Errorf("UnregisterAll = %d, %v; want 2, nil", n, err)
	}
	if left, _ := repo.Tokens(1); len(left) != 0 {
		t.Errorf("user 1 still has %v", left)
	}
	if left, _ := repo.Tokens(2); len(left) != 1 || left[0] != "laptop" {
		t.Errorf("user 2 tokens = %v, want [laptop]", left)
	}
}

func TestUserRepositoryFindAll(t *testing.T) {
	db, cleanup := setupAuthRepoTestDB(t)
	defer cleanup()
	repo := NewUserRepository(db)

	for _, email := range []string{"b@x.com", "a@x.com"} {
		if err := repo.Create(&authdomain.User{Email: email}); err != nil {
			t.Fatal(err)
		}
	}
	users, err := repo.FindAll()
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(users) != 2 || users[0].ID >= users[1].ID {
		t.Errorf("users not ordered by id: %+v", users)
	}
	if missing, err := repo.FindByID(999); err != nil || missing != nil {
		t.Errorf("FindByID(999) = %v, %v; want nil, nil", missing, err)
	}
}
