package events

import "time"

// Evento publicado no tópico "result_declared" após a liquidação.
type ResultDeclared struct {
	ResultID string    `json:"result_id"`
	MarketID string    `json:"market_id"`
	Day      string    `json:"day"`
	Session  string    `json:"session"`
	Pattern  string    `json:"pattern"`
	Digit    int       `json:"digit"`
	Won      int       `json:"won"`
	Lost     int       `json:"lost"`
	PaidOut  string    `json:"paid_out"` // decimal em string para não perder precisão
	Ts       time.Time `json:"ts"`
}

// Evento publicado no tópico "result_revoked" após desfazer a liquidação.
type ResultRevoked struct {
	ResultID  string    `json:"result_id"`
	MarketID  string    `json:"market_id"`
	Day       string    `json:"day"`
	Session   string    `json:"session"`
	Reopened  int       `json:"reopened"`
	Reclaimed string    `json:"reclaimed"`
	Ts        time.Time `json:"ts"`
}

// ResultDetected é o que o scraper externo publica ao detectar um padrão novo.
// MarketID tem precedência; sem ele o worker resolve pelo nome do mercado.
type ResultDetected struct {
	MarketID   string    `json:"market_id,omitempty"`
	MarketName string    `json:"market_name,omitempty"`
	Session    string    `json:"session"`
	Pattern    string    `json:"pattern"`
	Digit      *int      `json:"digit,omitempty"`
	Day        string    `json:"day,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}
