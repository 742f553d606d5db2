package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// TokenMeta is what the savings views need to know about a pool's token.
type TokenMeta struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// NativeTokenMeta describes the native currency behind the zero address.
func NativeTokenMeta() TokenMeta {
	return TokenMeta{Address: ZeroAddress, Symbol: NativeSymbol, Decimals: 18}
}

// FormatAmount renders base units of the token as a human amount.
func (m TokenMeta) FormatAmount(baseUnits *big.Int) string {
	if baseUnits == nil {
		return "0"
	}
	return decimal.NewFromBigInt(baseUnits, -int32(m.Decimals)).String()
}
