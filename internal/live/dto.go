package live

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// MarketID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type     string `json:"type"`
	MarketID string `json:"marketId"`
}

const (
	UpdateDeclared = "result_declared"
	UpdateRevoked  = "result_revoked"
)

// Update é o que trafega no canal Redis e chega aos clientes inscritos no mercado.
type Update struct {
	Type     string          `json:"type"`
	MarketID string          `json:"marketId"`
	Day      string          `json:"day"`
	Payload  json.RawMessage `json:"payload"`
}
