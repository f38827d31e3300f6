package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// User is one Google account whose mailbox is sorted. The OAuth tokens are
// stored so background jobs can reach Gmail without the user being online.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	GoogleID     string    `json:"-" gorm:"index"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	Name         string    `json:"name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Token returns the stored Google token.
func (u *User) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  u.AccessToken,
		RefreshToken: u.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       u.TokenExpiry,
	}
}

// SetToken copies token into the user. An empty refresh token keeps the old
// one, Google only sends it on the first consent.
func (u *User) SetToken(token *oauth2.Token) {
	u.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		u.RefreshToken = token.RefreshToken
	}
	u.TokenExpiry = token.Expiry
}

type RefreshToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Models lists the tables owned by the auth feature.
func Models() []interface{} {
	return []interface{}{&User{}, &RefreshToken{}, &FCMToken{}}
}
