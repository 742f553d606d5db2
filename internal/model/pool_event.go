package model

const (
	EventPoolCreated   = "SavingsPoolCreated"
	EventPoolDeposited = "SavingsPoolDeposited"
	EventPoolWithdrawn = "SavingsPoolWithdrawn"
)

// PoolEvent is a decoded savings contract event.
type PoolEvent struct {
	ChainID         uint64 `json:"chain_id"`
	BlockNumber     uint64 `json:"block_number"`
	BlockHash       string `json:"block_hash"`
	TxHash          string `json:"tx_hash"`
	LogIndex        uint64 `json:"log_index"`
	Contract        string `json:"contract"`
	EventName       string `json:"event_name"`
	PoolID          string `json:"pool_id"`
	User            string `json:"user"`
	TokenToSave     string `json:"token_to_save,omitempty"`
	Amount          string `json:"amount,omitempty"`
	TotalSaved      string `json:"total_saved,omitempty"`
	EndDate         int64  `json:"end_date,omitempty"`
	NextDepositDate int64  `json:"next_deposit_date,omitempty"`
	Timestamp       uint64 `json:"timestamp"`
	IngestedAt      string `json:"ingested_at"`
}
