package usecase

import (
	"context"
	"errors"

	authdomain "github.com/jan-janssen/gmailsorter/internal/auth/domain"
	authdto "github.com/jan-janssen/gmailsorter/internal/auth/dto"
)

// ErrDeviceNotFound is returned when a device token is not registered for the user.
var ErrDeviceNotFound = errors.New("device not registered")

// NewUserCallback runs once after a user signed in for the first time.
type NewUserCallback func(user *authdomain.User) error

// AuthUsecase defines the interface for auth use cases
type AuthUsecase interface {
	AuthCodeURL(state string) string
	GoogleSignIn(ctx context.Context, req *authdto.GoogleSignInRequest) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	ValidateToken(token string) (*authdomain.User, error)
	RegisterDevice(userID uint, token, deviceInfo string) error
	UnregisterDevice(userID uint, token string) error
	UnregisterAllDevices(userID uint) (int64, error)
	SetNewUserCallback(cb NewUserCallback)
}
