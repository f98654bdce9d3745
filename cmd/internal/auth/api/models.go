package authapi

import (
	"time"

	"ecom/cmd/identity"
	"ecom/cmd/internal/auth/session"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

type refreshRequest struct {
	DeviceID string `json:"deviceId"`
}

type logoutRequest struct {
	DeviceID   string `json:"deviceId"`
	AllDevices bool   `json:"allDevices"`
}

type revokeRequest struct {
	All      bool   `json:"all"`
	DeviceID string `json:"deviceId"`
	JTI      string `json:"jti"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type registerResponse struct {
	User userResponse `json:"user"`
}

type loginResponse struct {
	User     userResponse `json:"user"`
	DeviceID string       `json:"deviceId"`
}

type refreshResponse struct {
	DeviceID string `json:"deviceId"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type listSessionsResponse struct {
	Items      []session.Summary `json:"items"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
