package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"thalerSavings/internal/apperr"
	"thalerSavings/internal/balance"
	"thalerSavings/internal/config"
	"thalerSavings/internal/model"
	"thalerSavings/internal/pool"
	"thalerSavings/internal/price"
	"thalerSavings/internal/savings"
	"thalerSavings/internal/wallet"
)

func newPoolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pools",
		Short: "List savings pools of a wallet (the connected one by default)",
		Args:  cobra.NoArgs,
		RunE:  runPools,
	}
	cmd.Flags().String("owner", "", "wallet address to list instead of the connected wallet")
	cmd.Flags().String("at", "", "evaluate at this instant (unix seconds or RFC3339)")
	return cmd
}

func runPools(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := applyAt(cmd, a); err != nil {
		return err
	}

	ctx := cmd.Context()
	owner, _ := cmd.Flags().GetString("owner")
	var views []model.PoolView
	if owner == "" {
		views, err = a.service.MyPools(ctx)
	} else {
		if !common.IsHexAddress(owner) {
			return fmt.Errorf("invalid owner address: %s", owner)
		}
		views, err = a.service.UserPoolViews(ctx, common.HexToAddress(owner))
	}
	if err != nil {
		return err
	}

	return printJSON(withPrices(ctx, a, views))
}

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool <pool-id>",
		Short: "Show the derived state of one pool",
		Args:  cobra.ExactArgs(1),
		RunE:  runPool,
	}
	cmd.Flags().String("at", "", "evaluate at this instant (unix seconds or RFC3339)")
	return cmd
}

func runPool(cmd *cobra.Command, args []string) error {
	id, err := savings.ParsePoolID(args[0])
	if err != nil {
		return err
	}
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := applyAt(cmd, a); err != nil {
		return err
	}

	view, err := a.service.PoolView(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(withPrices(cmd.Context(), a, []model.PoolView{view})[0])
}

type quoteOutput struct {
	PoolID             string               `json:"pool_id"`
	Path               model.WithdrawalPath `json:"withdrawal_path"`
	ElapsedPercent     float64              `json:"elapsed_percent"`
	MinDonationPercent string               `json:"min_donation_percent,omitempty"`
	MinDonationAmount  string               `json:"min_donation_amount,omitempty"`
	DonationPercent    string               `json:"donation_percent,omitempty"`
	DonationAmount     string               `json:"donation_amount,omitempty"`
	DonationDisplay    string               `json:"donation_display,omitempty"`
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote <pool-id>",
		Short: "Show the withdrawal path and the donation an early withdrawal requires",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuote,
	}
	cmd.Flags().String("donation", "", "donation percentage to validate")
	cmd.Flags().String("charity", "", "charity address to validate")
	cmd.Flags().String("at", "", "evaluate at this instant (unix seconds or RFC3339)")
	return cmd
}

func runQuote(cmd *cobra.Command, args []string) error {
	id, err := savings.ParsePoolID(args[0])
	if err != nil {
		return err
	}
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := applyAt(cmd, a); err != nil {
		return err
	}

	view, err := a.service.PoolView(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := quoteOutput{
		PoolID:             view.Pool.ID,
		Path:               view.Path,
		ElapsedPercent:     view.ElapsedPercent,
		MinDonationPercent: view.MinDonationPercent,
		MinDonationAmount:  view.MinDonationAmount,
	}

	donation, _ := cmd.Flags().GetString("donation")
	if view.Path == model.EarlyWithdrawal && donation != "" {
		pct, err := decimal.NewFromString(donation)
		if err != nil {
			return fmt.Errorf("invalid donation percentage: %s", donation)
		}
		saved, err := pool.ParseAmount(view.Pool.TotalSaved)
		if err != nil {
			return err
		}
		charity, _ := cmd.Flags().GetString("charity")
		result, err := pool.ValidateEarlyWithdrawal(pool.EarlyWithdrawalRequest{
			Charity:         charity,
			DonationPercent: pct,
			TotalSaved:      saved,
			ElapsedPercent:  view.ElapsedPercent,
		})
		if err != nil {
			return err
		}
		out.DonationPercent = result.Percentage.String()
		out.DonationAmount = pool.CeilBaseUnits(result.Amount).String()
		out.DonationDisplay = pool.FormatUnits(result.Amount, pool.Decimals)
	}
	return printJSON(out)
}

func newBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show native and token balances of a wallet",
		Args:  cobra.NoArgs,
		RunE:  runBalance,
	}
	cmd.Flags().String("wallet", "", "wallet address (defaults to the connected wallet)")
	cmd.Flags().StringSlice("tokens", nil, "ERC20 token addresses to include (comma-separated)")
	cmd.Flags().Duration("balance-ttl", balance.DefaultTTL, "balance cache window")
	return cmd
}

func runBalance(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	raw, _ := cmd.Flags().GetString("wallet")
	target, err := balanceTarget(a.signer, raw)
	if err != nil {
		return err
	}

	balances, err := a.tracker.Balances(cmd.Context(), target)
	if err != nil {
		return err
	}
	return printJSON(balances)
}

// balanceTarget picks the --wallet address, falling back to the connected wallet.
func balanceTarget(signer wallet.Signer, raw string) (common.Address, error) {
	if raw != "" {
		if !common.IsHexAddress(raw) {
			return common.Address{}, apperr.Invalid("wallet", fmt.Sprintf("%q is not an address", raw))
		}
		return common.HexToAddress(raw), nil
	}
	if signer != nil {
		if user, ok := signer.CurrentUser(); ok {
			return user, nil
		}
	}
	return common.Address{}, &apperr.NotConnectedError{Action: "show balances"}
}

// applyAt pins the evaluation instant when --at is given.
func applyAt(cmd *cobra.Command, a *app) error {
	raw, _ := cmd.Flags().GetString("at")
	at, err := config.ParseTimestamp(raw)
	if err != nil {
		return fmt.Errorf("invalid --at: %w", err)
	}
	if !at.IsZero() {
		a.service.EvaluateAt(at)
	}
	return nil
}

// withPrices attaches USD values to native pools when a price feed is configured.
// A failed price read leaves the views without USD values.
func withPrices(ctx context.Context, a *app, views []model.PoolView) []model.PoolView {
	if a.cfg.PriceFeed == "" {
		return views
	}
	if !common.IsHexAddress(a.cfg.PriceFeed) {
		a.logger.Warn("invalid price feed address", zap.String("price_feed", a.cfg.PriceFeed))
		return views
	}

	feed := price.NewFeed(a.chain, common.HexToAddress(a.cfg.PriceFeed), a.cfg.PriceMaxAge)
	quote, err := feed.Latest(ctx)
	if err != nil {
		a.logger.Warn("price unavailable", zap.Error(err))
		return views
	}

	out := make([]model.PoolView, len(views))
	for i, view := range views {
		if view.Pool.IsEth {
			view = pool.WithUSD(view, quote.Price)
		}
		out[i] = view
	}
	return out
}
