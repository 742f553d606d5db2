package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"thalerSavings/internal/apperr"
	"thalerSavings/internal/model"
)

// ClassifyWithdrawal picks the withdrawal path at nowMs. It is recomputed on every
// action; there is no persisted in-progress withdrawal.
func ClassifyWithdrawal(nowMs, endMs int64, progress int) model.WithdrawalPath {
	if CanWithdraw(nowMs, endMs, progress) {
		return model.NormalWithdrawal
	}
	return model.EarlyWithdrawal
}

// EarlyWithdrawalRequest carries the user's choices for an early exit.
type EarlyWithdrawalRequest struct {
	Charity         string
	DonationPercent decimal.Decimal
	TotalSaved      decimal.Decimal
	ElapsedPercent  float64
}

// DonationAmount is the donation implied by the chosen percentage.
func (r EarlyWithdrawalRequest) DonationAmount() decimal.Decimal {
	return r.TotalSaved.Mul(r.DonationPercent).Div(hundred)
}

// ValidateEarlyWithdrawal checks charity selection and the donation bounds.
// It returns the required minimum donation alongside any ValidationError.
func ValidateEarlyWithdrawal(req EarlyWithdrawalRequest) (Donation, error) {
	required := MinimumDonation(req.TotalSaved, req.ElapsedPercent)

	if req.Charity == "" {
		return required, apperr.Invalid("charity", "select a charity to receive the donation")
	}
	if !common.IsHexAddress(req.Charity) || common.HexToAddress(req.Charity) == (common.Address{}) {
		return required, apperr.Invalid("charity", "malformed address "+req.Charity)
	}
	if req.TotalSaved.Sign() <= 0 {
		return required, apperr.Invalid("pool", "nothing saved to withdraw")
	}
	if req.DonationPercent.LessThan(required.Percentage) {
		return required, apperr.Invalid("donation", "must be at least "+required.Percentage.String()+"% of the saved amount")
	}
	if req.DonationPercent.GreaterThan(hundred) {
		return required, apperr.Invalid("donation", "cannot exceed 100% of the saved amount")
	}
	if req.DonationAmount().LessThan(required.Amount) {
		return required, apperr.Invalid("donation", "below the minimum of "+required.Amount.String())
	}
	return required, nil
}
