package dto

type BidItem struct {
	Selection string `json:"selection" validate:"required"`
	Stake     int64  `json:"stake" validate:"required,gt=0,lte=1000000000"`
}

type PlaceBidRequest struct {
	MarketID   string    `json:"market_id" validate:"required"`
	GameTypeID int64     `json:"game_type_id" validate:"required,gt=0"`
	Session    string    `json:"session" validate:"required,oneof=open close"`
	Items      []BidItem `json:"items" validate:"required,min=1,max=100,dive"`
}

type DeclareRequest struct {
	MarketID string `json:"market_id" validate:"required"`
	Session  string `json:"session" validate:"required,oneof=open close"`
	Pattern  string `json:"pattern" validate:"required,len=3,numeric"`
	Digit    *int   `json:"digit,omitempty" validate:"omitempty,min=0,max=9"`
	Day      string `json:"day,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// MarketRequest serve para criar e para alterar; na alteração campos
// ausentes ficam como estão.
type MarketRequest struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	OpenTime       *string `json:"open_time,omitempty" validate:"omitempty,min=5,max=8"`
	CloseTime      *string `json:"close_time,omitempty" validate:"omitempty,min=5,max=8"`
	Enabled        *bool   `json:"enabled,omitempty"`
	BettingEnabled *bool   `json:"betting_enabled,omitempty"`
}

type DayRequest struct {
	Day string `json:"day" validate:"required,datetime=2006-01-02"`
}

// AmountRequest carrega valores em string para não perder precisão.
type AmountRequest struct {
	Amount    string `json:"amount" validate:"required,numeric"`
	Reference string `json:"reference,omitempty" validate:"max=128"`
}

type ReferralRequest struct {
	ReferrerID string `json:"referrer_id" validate:"required"`
}
