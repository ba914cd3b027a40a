package events

// Evento emitido após o commit de uma colocação de apostas (um débito, N apostas).
type BidsPlaced struct {
	OwnerID    string   `json:"owner_id"`
	MarketID   string   `json:"market_id"`
	GameKind   string   `json:"game_kind"`
	Session    string   `json:"session"`
	Day        string   `json:"day"`
	BidIDs     []string `json:"bid_ids"`
	TotalStake int64    `json:"total_stake"`
	DebitRef   string   `json:"debit_ref"` // reference_id do lançamento de débito
	TsUnixMs   int64    `json:"ts_unix_ms"`
}
