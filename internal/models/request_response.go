package models

import "github.com/shopspring/decimal"

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CreateOfferRequest carries a new service offer. The lifecycle engine
// re-validates every field; binding tags only catch missing JSON early.
type CreateOfferRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ServiceType string          `json:"serviceType" binding:"required"`
	Description string          `json:"description" binding:"required"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type OfferResponse struct {
	Status string           `json:"status"`
	Offer  *TimeTransaction `json:"offer,omitempty"`
}

type OfferListResponse struct {
	Status string      `json:"status"`
	Offers []OfferView `json:"offers"`
}

type TransactionListResponse struct {
	Status       string            `json:"status"`
	Transactions []TimeTransaction `json:"transactions"`
}

type BalanceResponse struct {
	Status  string          `json:"status"`
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

type StatsResponse struct {
	Status string            `json:"status"`
	Stats  *TransactionStats `json:"stats"`
}

type ProfileResponse struct {
	Status  string   `json:"status"`
	Profile *Profile `json:"profile,omitempty"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
