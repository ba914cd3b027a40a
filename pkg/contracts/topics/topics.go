package topics

const (
	// Bids
	BidsPlaced = "bids_placed"

	// Results
	ResultDeclared = "result_declared"
	ResultRevoked  = "result_revoked"
	ResultDetected = "result_detected" // produzido pelo scraper externo

	// DLQs
	ResultDetectedDLQ = "result_detected_dlq"
)
