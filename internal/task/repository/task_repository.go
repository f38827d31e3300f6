package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/jan-janssen/gmailsorter/internal/task/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new gorm-backed TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) CreateForUser(userID uint) error {
	now := time.Now()
	tasks := []*domain.Task{
		{UserID: userID, Name: domain.NameUpdate, Status: domain.StatusInit, Date: now},
		{UserID: userID, Name: domain.NameFetch, Status: domain.StatusWait, Date: now},
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(&tasks).Error
}

func (r *taskRepository) Get(userID uint, name domain.Name) (*domain.Task, error) {
	var task domain.Task
	err := r.db.Where("user_id = ? AND name = ?", userID, name).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) FindByUserID(userID uint) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.Where("user_id = ?", userID).Order("name DESC").Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) FindByName(name domain.Name) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.Where("name = ?", name).Order("user_id").Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) SetStatus(userID uint, name domain.Name, status domain.Status) error {
	result := r.db.Model(&domain.Task{}).
		Where("user_id = ? AND name = ?", userID, name).
		Updates(map[string]interface{}{
			"status": status,
			"date":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no %s task for user %d", name, userID)
	}
	return nil
}
