package repository

import (
	"time"

	authdomain "github.com/jan-janssen/gmailsorter/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepository keeps the FCM tokens of the devices that receive sorter
// summaries.
type DeviceRepository interface {
	Register(userID uint, token, deviceInfo string) error
	// Tokens lists the user's device tokens, most recently registered first.
	Tokens(userID uint) ([]string, error)
	// Unregister removes token if it belongs to userID.
	Unregister(userID uint, token string) (bool, error)
	UnregisterAll(userID uint) (int64, error)
	// Prune drops tokens the push service rejected, whoever owns them.
	Prune(tokens []string) (int64, error)
}

type deviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

// Register stores token for userID. A token moves to whoever registered it
// last.
func (r *deviceRepository) Register(userID uint, token, deviceInfo string) error {
	now := time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_info", "updated_at"}),
	}).Create(&authdomain.FCMToken{
		ID:         uuid.NewString(),
		UserID:     userID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error
}

func (r *deviceRepository) Tokens(userID uint) ([]string, error) {
	tokens := []string{}
	err := r.db.Model(&authdomain.FCMToken{}).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Pluck("token", &tokens).Error
	return tokens, err
}

func (r *deviceRepository) Unregister(userID uint, token string) (bool, error) {
	res := r.db.Where("user_id = ? AND token = ?", userID, token).Delete(&authdomain.FCMToken{})
	return res.RowsAffected > 0, res.Error
}

func (r *deviceRepository) UnregisterAll(userID uint) (int64, error) {
	res := r.db.Where("user_id = ?", userID).Delete(&authdomain.FCMToken{})
	return res.RowsAffected, res.Error
}

func (r *deviceRepository) Prune(tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res := r.db.Where("token IN ?", tokens).Delete(&authdomain.FCMToken{})
	return res.RowsAffected, res.Error
}
