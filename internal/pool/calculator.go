package pool

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const msPerDay = 86_400_000

var (
	hundred = decimal.NewFromInt(100)

	// Minimum donation percentages for early withdrawal.
	FirstHalfDonation  = decimal.NewFromInt(25)
	SecondHalfDonation = decimal.RequireFromString("12.5")
)

// Donation is the minimum charity donation required for an early withdrawal.
type Donation struct {
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// Progress returns round(totalSaved/amountToSave*100) clamped to [0, 100].
// A zero target yields 0.
func Progress(totalSaved, amountToSave decimal.Decimal) int {
	if amountToSave.Sign() <= 0 || totalSaved.Sign() <= 0 {
		return 0
	}
	pct := totalSaved.Mul(hundred).Div(amountToSave).Round(0)
	if pct.GreaterThanOrEqual(hundred) {
		return 100
	}
	return int(pct.IntPart())
}

// ElapsedPercent is the unclamped share of [start, end] that has passed at now, in percent.
func ElapsedPercent(startMs, endMs, nowMs int64) float64 {
	window := endMs - startMs
	if window <= 0 {
		if nowMs >= endMs {
			return 100
		}
		return 0
	}
	return float64(nowMs-startMs) * 100 / float64(window)
}

// DisplayElapsedPercent keeps a timeline marker visible: values below 1 render at 1,
// values above 100 at 100. Not for eligibility decisions.
func DisplayElapsedPercent(elapsed float64) float64 {
	if elapsed < 1 {
		return 1
	}
	if elapsed > 100 {
		return 100
	}
	return elapsed
}

// MinimumDonation applies the donation tiers: 25% of totalSaved before half of the
// saving period has passed, 12.5% from the midpoint on.
func MinimumDonation(totalSaved decimal.Decimal, elapsedPercent float64) Donation {
	pct := SecondHalfDonation
	if elapsedPercent < 50 {
		pct = FirstHalfDonation
	}
	return Donation{
		Percentage: pct,
		Amount:     totalSaved.Mul(pct).Div(hundred),
	}
}

// CanWithdraw reports whether the normal, donation-free withdrawal is unlocked.
func CanWithdraw(nowMs, endMs int64, progress int) bool {
	return nowMs >= endMs || progress >= 100
}

// IsUserPool compares hex addresses case-insensitively.
func IsUserPool(poolOwner, walletAddress string) bool {
	if poolOwner == "" || walletAddress == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(poolOwner), strings.TrimSpace(walletAddress))
}

// FormatDaysRemaining renders the remaining time until end in whole days, rounded up.
func FormatDaysRemaining(nowMs, endMs int64) string {
	if nowMs >= endMs {
		return "Completed"
	}
	days := (endMs - nowMs + msPerDay - 1) / msPerDay
	return fmt.Sprintf("%d days remaining", days)
}
