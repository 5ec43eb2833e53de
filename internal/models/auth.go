package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and account info.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	User        AccountInfo `json:"user"`
	IssuedAt    time.Time   `json:"issued_at"`
}

// AccountInfo describes the authenticated user in responses.
type AccountInfo struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Role        UserRole `json:"role"`
	DisplayName string   `json:"display_name,omitempty"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	AccountID int64    `json:"account_id"`
	Username  string   `json:"username"`
	Role      UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts the token claims into a workflow caller.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{AccountID: c.AccountID, Username: c.Username, Role: c.Role}
}
