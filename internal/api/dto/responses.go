package dto

import "github.com/shopspring/decimal"

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type WalletResponse struct {
	OwnerID string          `json:"owner_id"`
	Balance decimal.Decimal `json:"balance"`
	Version int64           `json:"version"`
}
