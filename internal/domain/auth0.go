package domain

// Auth0User es el perfil devuelto por la Management API de Auth0.
type Auth0User struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
	LastLogin     string `json:"last_login,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// Auth0UserUpdate es un PATCH parcial sobre el usuario remoto.
type Auth0UserUpdate struct {
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
}
