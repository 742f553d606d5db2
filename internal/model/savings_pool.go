package model

import "strings"

// ZeroAddress marks native-currency pools in TokenToSave.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NativeSymbol is the display symbol of native-currency pools.
const NativeSymbol = "ETH"

// SavingsPool is a pool as read from the savings contract.
// Amounts are base-unit decimal strings with 18 implied decimals.
// Dates are milliseconds since epoch.
type SavingsPool struct {
	ID               string `json:"id"`
	User             string `json:"user"`
	TokenToSave      string `json:"token_to_save"`
	AmountToSave     string `json:"amount_to_save"`
	TotalSaved       string `json:"total_saved"`
	Duration         uint64 `json:"duration"`
	StartDate        int64  `json:"start_date"`
	EndDate          int64  `json:"end_date"`
	NextDepositDate  int64  `json:"next_deposit_date"`
	NumberOfDeposits uint64 `json:"number_of_deposits"`
	TotalIntervals   uint64 `json:"total_intervals"`
	InitialDeposit   string `json:"initial_deposit"`
	Progress         int    `json:"progress"`
	IsEth            bool   `json:"is_eth"`
	TokenSymbol      string `json:"token_symbol"`
}

// IsNativeToken reports whether token is the zero-address sentinel.
func IsNativeToken(token string) bool {
	return token == "" || strings.EqualFold(token, ZeroAddress)
}

// ScheduleConsistent checks the endDate and deposit counter invariants.
func (p SavingsPool) ScheduleConsistent() bool {
	if p.NumberOfDeposits > p.TotalIntervals {
		return false
	}
	return p.EndDate == p.StartDate+int64(p.Duration)*1000
}
