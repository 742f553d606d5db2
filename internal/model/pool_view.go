package model

// WithdrawalPath is the withdrawal flow a pool qualifies for at a given instant.
type WithdrawalPath string

const (
	NormalWithdrawal WithdrawalPath = "normal"
	EarlyWithdrawal  WithdrawalPath = "early"
)

// PoolView is the derived, display-ready state of a pool at one instant.
type PoolView struct {
	Pool                  SavingsPool    `json:"pool"`
	Progress              int            `json:"progress"`
	ElapsedPercent        float64        `json:"elapsed_percent"`
	DisplayElapsedPercent float64        `json:"display_elapsed_percent"`
	DaysRemaining         string         `json:"days_remaining"`
	CanWithdraw           bool           `json:"can_withdraw"`
	Path                  WithdrawalPath `json:"withdrawal_path"`
	MinDonationPercent    string         `json:"min_donation_percent,omitempty"`
	MinDonationAmount     string         `json:"min_donation_amount,omitempty"`
	AmountToSaveDisplay   string         `json:"amount_to_save_display"`
	TotalSavedDisplay     string         `json:"total_saved_display"`
	TotalSavedUSD         *string        `json:"total_saved_usd,omitempty"`
}
