package domain

import "time"

// LabelModel is one serialized classifier, keyed by (user_id, label_id).
type LabelModel struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"uniqueIndex:idx_ml_label_user_label;not null"`
	LabelID   string    `gorm:"uniqueIndex:idx_ml_label_user_label;not null"`
	Model     []byte    `gorm:"not null"`
	UpdatedAt time.Time
}

func (LabelModel) TableName() string { return "ml_labels" }

// Feature is one column of the schema the stored classifiers were trained on.
type Feature struct {
	ID      uint   `gorm:"primaryKey"`
	UserID  uint   `gorm:"uniqueIndex:idx_ml_feature_user_feature;not null"`
	Feature string `gorm:"uniqueIndex:idx_ml_feature_user_feature;not null"`
}

func (Feature) TableName() string { return "ml_features" }

func Models() []interface{} {
	return []interface{}{&LabelModel{}, &Feature{}}
}
