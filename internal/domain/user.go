package domain

import "time"

// User es el registro local sincronizado con Auth0.
type User struct {
	ID                  string     `json:"id"`
	Auth0ID             string     `json:"auth0_id"`
	Email               string     `json:"email"`
	Name                *string    `json:"name"`
	Avatar              *string    `json:"avatar"`
	EmailVerified       bool       `json:"email_verified"`
	LastLoginAt         *time.Time `json:"last_login_at"`
	LastSessionActiveAt *time.Time `json:"last_session_active_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// SyncAttributes son los atributos externos que se fusionan sobre el registro local.
type SyncAttributes struct {
	Name          *string
	EmailVerified bool
	Picture       *string
	LastLoginAt   *time.Time
}
