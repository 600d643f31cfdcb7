package auth

import "time"

// Role is the single role a user holds for its whole lifetime.
type Role string

const (
	RoleProjectManager Role = "project_manager"
	RoleNCCRVerifier   Role = "nccr_verifier"
	RoleBuyer          Role = "buyer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleProjectManager, RoleNCCRVerifier, RoleBuyer:
		return true
	}
	return false
}

// User is the stored account record.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is a User without credentials.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

type SignupResponse struct {
	User PublicUser `json:"user"`
	Role Role       `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string     `json:"accessToken"`
	TokenType   string     `json:"tokenType"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	User        PublicUser `json:"user"`
}

type EligibilityRequest struct {
	Email string `json:"email"`
}

type EligibilityResult struct {
	IsAllowed bool   `json:"isAllowed"`
	Message   string `json:"message"`
}
