package repository

import (
	"fmt"
	"sort"

	mldomain "github.com/jan-janssen/gmailsorter/internal/ml/domain"
	"github.com/jan-janssen/gmailsorter/pkg/reconcile"

	"gorm.io/gorm"
)

var _ ModelRepository = (*modelRepository)(nil)

type modelRepository struct {
	db *gorm.DB
}

func NewModelRepository(db *gorm.DB) ModelRepository {
	return &modelRepository{db: db}
}

func (r *modelRepository) Store(userID uint, models map[string][]byte, features []string) error {
	filtered := make([]string, 0, len(features))
	for _, f := range features {
		if f != mldomain.EmailIDColumn {
			filtered = append(filtered, f)
		}
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		storedLabels, err := listLabels(tx, userID)
		if err != nil {
			return err
		}
		storedFeatures, err := listFeatures(tx, userID)
		if err != nil {
			return err
		}

		labels := reconcile.KeyedSet(storedLabels, models)
		for _, label := range reconcile.SortedKeys(labels.Add) {
			row := &mldomain.LabelModel{UserID: userID, LabelID: label, Model: labels.Add[label]}
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("failed to add model %s: %w", label, err)
			}
		}
		for _, label := range reconcile.SortedKeys(labels.Update) {
			if err := tx.Model(&mldomain.LabelModel{}).
				Where("user_id = ? AND label_id = ?", userID, label).
				Update("model", labels.Update[label]).Error; err != nil {
				return fmt.Errorf("failed to update model %s: %w", label, err)
			}
		}
		if len(labels.Remove) > 0 {
			if err := tx.Where("user_id = ? AND label_id IN ?", userID, labels.Remove).
				Delete(&mldomain.LabelModel{}).Error; err != nil {
				return fmt.Errorf("failed to remove stale models: %w", err)
			}
		}

		schema := reconcile.Set(storedFeatures, filtered)
		if len(schema.Add) > 0 {
			rows := make([]mldomain.Feature, 0, len(schema.Add))
			for _, f := range reconcile.SortedKeys(schema.Add) {
				rows = append(rows, mldomain.Feature{UserID: userID, Feature: f})
			}
			if err := tx.CreateInBatches(&rows, 200).Error; err != nil {
				return fmt.Errorf("failed to add features: %w", err)
			}
		}
		for start := 0; start < len(schema.Remove); start += 500 {
			end := start + 500
			if end > len(schema.Remove) {
				end = len(schema.Remove)
			}
			if err := tx.Where("user_id = ? AND feature IN ?", userID, schema.Remove[start:end]).
				Delete(&mldomain.Feature{}).Error; err != nil {
				return fmt.Errorf("failed to remove features: %w", err)
			}
		}
		return nil
	})
}

func (r *modelRepository) Load(userID uint) (map[string][]byte, []string, error) {
	var rows []mldomain.LabelModel
	if err := r.db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	models := make(map[string][]byte, len(rows))
	for _, row := range rows {
		models[row.LabelID] = row.Model
	}

	features, err := listFeatures(r.db, userID)
	if err != nil {
		return nil, nil, err
	}
	return models, features, nil
}

func (r *modelRepository) ListLabels(userID uint) ([]string, error) {
	return listLabels(r.db, userID)
}

func (r *modelRepository) ListFeatures(userID uint) ([]string, error) {
	return listFeatures(r.db, userID)
}

func listLabels(db *gorm.DB, userID uint) ([]string, error) {
	var labels []string
	err := db.Model(&mldomain.LabelModel{}).Where("user_id = ?", userID).Pluck("label_id", &labels).Error
	sort.Strings(labels)
	return labels, err
}

func listFeatures(db *gorm.DB, userID uint) ([]string, error) {
	var features []string
	err := db.Model(&mldomain.Feature{}).Where("user_id = ?", userID).Pluck("feature", &features).Error
	sort.Strings(features)
	return features, err
}
