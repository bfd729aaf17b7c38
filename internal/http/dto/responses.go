package dto

import (
	"time"

	"github.com/tewo-market/gateway/internal/models"
)

type SessionResponse struct {
	Token     string                `json:"token"`
	SessionID string                `json:"session_id"`
	ExpiresAt time.Time             `json:"expires_at"`
	Wallet    models.ConnectionView `json:"wallet"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type RateResponse struct {
	models.ConversionRate
	Stale bool `json:"stale"`
}

type RoleResponse struct {
	Role    string `json:"role"`
	Account string `json:"account"`
	HasRole bool   `json:"has_role"`
}
