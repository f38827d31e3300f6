package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	authdomain "github.com/jan-janssen/gmailsorter/internal/auth/domain"
	authdto "github.com/jan-janssen/gmailsorter/internal/auth/dto"
	"github.com/jan-janssen/gmailsorter/internal/auth/repository"
	"github.com/jan-janssen/gmailsorter/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Scopes requested on consent: read and relabel mail, manage filters, identify the user.
var Scopes = []string{
	gmail.GmailModifyScope,
	gmail.GmailLabelsScope,
	gmail.GmailSettingsBasicScope,
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user not found")
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo    repository.UserRepository
	devices     repository.DeviceRepository
	config      *config.Config
	oauthConfig *oauth2.Config
	// extra options for the userinfo client, used by tests
	userinfoOptions []option.ClientOption
	onNewUser       NewUserCallback
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, devices repository.DeviceRepository, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		devices:  devices,
		config:   cfg,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// SetNewUserCallback allows wiring the task bootstrap after creation
func (u *authUsecase) SetNewUserCallback(cb NewUserCallback) {
	u.onNewUser = cb
}

// AuthCodeURL returns the consent page URL. Offline access with forced
// consent makes Google hand out a refresh token for the background jobs.
func (u *authUsecase) AuthCodeURL(state string) string {
	return u.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (u *authUsecase) GoogleSignIn(ctx context.Context, req *authdto.GoogleSignInRequest) (*authdto.TokenResponse, error) {
	oauthConfig := *u.oauthConfig
	if req.RedirectURI != "" {
		oauthConfig.RedirectURL = req.RedirectURI
	}

	token, err := oauthConfig.Exchange(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	opts := append([]option.ClientOption{option.WithTokenSource(oauthConfig.TokenSource(ctx, token))}, u.userinfoOptions...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get Google user info: %w", err)
	}
	if info.Email == "" {
		return nil, errors.New("google account has no email address")
	}

	user, err := u.userRepo.FindByEmail(info.Email)
	if err != nil {
		return nil, err
	}

	isNew := user == nil
	if isNew {
		user = &authdomain.User{Email: info.Email}
	}
	user.GoogleID = info.Id
	user.Name = info.Name
	user.AvatarURL = info.Picture
	user.SetToken(token)

	if isNew {
		if err := u.userRepo.Create(user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		log.Printf("[Auth] Created user %d (%s)", user.ID, user.Email)
		if u.onNewUser != nil {
			if err := u.onNewUser(user); err != nil {
				log.Printf("[Auth] New user callback failed for %d: %v", user.ID, err)
			}
		}
	} else if err := u.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return u.generateTokens(user)
}

func (u *authUsecase) RefreshToken(refreshToken string) (*authdto.TokenResponse, error) {
	userID, err := u.parseUserID(refreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}

	storedToken, err := u.userRepo.FindRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if storedToken == nil || storedToken.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("refresh token expired")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	// rotate: the used token is spent
	if err := u.userRepo.DeleteRefreshToken(refreshToken); err != nil {
		return nil, err
	}
	return u.generateTokens(user)
}

func (u *authUsecase) Logout(refreshToken string) error {
	return u.userRepo.DeleteRefreshToken(refreshToken)
}

func (u *authUsecase) RegisterDevice(userID uint, token, deviceInfo string) error {
	return u.devices.Register(userID, token, deviceInfo)
}

// UnregisterDevice fails with ErrDeviceNotFound unless token belongs to userID.
func (u *authUsecase) UnregisterDevice(userID uint, token string) error {
	ok, err := u.devices.Unregister(userID, token)
	if err != nil {
		return fmt.Errorf("failed to unregister device: %w", err)
	}
	if !ok {
		return ErrDeviceNotFound
	}
	return nil
}

func (u *authUsecase) UnregisterAllDevices(userID uint) (int64, error) {
	n, err := u.devices.UnregisterAll(userID)
	if err != nil {
		return 0, fmt.Errorf("failed to unregister devices: %w", err)
	}
	log.Printf("[Auth] Unregistered %d devices of user %d", n, userID)
	return n, nil
}

func (u *authUsecase) generateTokens(user *authdomain.User) (*authdto.TokenResponse, error) {
	accessToken, err := u.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.generateRefreshToken(user)
	if err != nil {
		return nil, err
	}

	refreshTokenEntity := &authdomain.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(u.config.JWTRefreshExpiry),
	}
	if err := u.userRepo.ReplaceRefreshToken(refreshTokenEntity); err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (u *authUsecase) generateAccessToken(user *authdomain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(u.config.JWTAccessExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) generateRefreshToken(user *authdomain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"token_id": uuid.New().String(),
		"exp":      time.Now().Add(u.config.JWTRefreshExpiry).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

// parseUserID verifies the signature and expiry of tokenString and returns its user id.
func (u *authUsecase) parseUserID(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	// numeric claims decode as float64
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	userID, err := u.parseUserID(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
