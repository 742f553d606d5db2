package pool

import (
	"fmt"

	"github.com/shopspring/decimal"

	"thalerSavings/internal/model"
)

// Derive computes the view of p at nowMs.
func Derive(p model.SavingsPool, nowMs int64) (model.PoolView, error) {
	target, err := ParseAmount(p.AmountToSave)
	if err != nil {
		return model.PoolView{}, fmt.Errorf("amount to save: %w", err)
	}
	saved, err := ParseAmount(p.TotalSaved)
	if err != nil {
		return model.PoolView{}, fmt.Errorf("total saved: %w", err)
	}

	progress := Progress(saved, target)
	elapsed := ElapsedPercent(p.StartDate, p.EndDate, nowMs)

	p.Progress = progress
	p.IsEth = model.IsNativeToken(p.TokenToSave)
	if p.IsEth && p.TokenSymbol == "" {
		p.TokenSymbol = model.NativeSymbol
	}

	view := model.PoolView{
		Pool:                  p,
		Progress:              progress,
		ElapsedPercent:        elapsed,
		DisplayElapsedPercent: DisplayElapsedPercent(elapsed),
		DaysRemaining:         FormatDaysRemaining(nowMs, p.EndDate),
		CanWithdraw:           CanWithdraw(nowMs, p.EndDate, progress),
		Path:                  ClassifyWithdrawal(nowMs, p.EndDate, progress),
		AmountToSaveDisplay:   FormatUnits(target, Decimals),
		TotalSavedDisplay:     FormatUnits(saved, Decimals),
	}
	if view.Path == model.EarlyWithdrawal {
		donation := MinimumDonation(saved, elapsed)
		view.MinDonationPercent = donation.Percentage.String()
		view.MinDonationAmount = donation.Amount.String()
	}
	return view, nil
}

// WithUSD attaches the USD value of the saved amount at price.
func WithUSD(view model.PoolView, price decimal.Decimal) model.PoolView {
	saved, err := ParseAmount(view.Pool.TotalSaved)
	if err != nil || price.Sign() <= 0 {
		return view
	}
	usd := saved.Shift(-Decimals).Mul(price).StringFixed(2)
	view.TotalSavedUSD = &usd
	return view
}
