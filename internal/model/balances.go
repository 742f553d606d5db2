package model

import "time"

// TokenBalance is one ERC20 balance of a wallet.
type TokenBalance struct {
	Token    string `json:"token"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Amount   string `json:"amount"`
}

// Balances is a wallet balance snapshot.
type Balances struct {
	Wallet    string         `json:"wallet"`
	Native    string         `json:"native"`
	Tokens    []TokenBalance `json:"tokens"`
	FetchedAt time.Time      `json:"fetched_at"`
}
