package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"thalerSavings/internal/pool"
	"thalerSavings/internal/savings"
)

type txOutput struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber string `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used"`
}

func receiptOutput(r *types.Receipt) *txOutput {
	if r == nil {
		return nil
	}
	out := &txOutput{TxHash: r.TxHash.Hex(), GasUsed: r.GasUsed}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.String()
	}
	return out
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a savings pool from the connected wallet",
		Args:  cobra.NoArgs,
		RunE:  runCreate,
	}
	cmd.Flags().String("token", "", "ERC20 token to save (empty saves ETH)")
	cmd.Flags().String("amount", "", "target amount, e.g. 1.5")
	cmd.Flags().String("initial", "", "initial deposit, e.g. 0.1")
	cmd.Flags().Duration("duration", 0, "saving period, e.g. 720h")
	cmd.Flags().Uint64("intervals", 1, "number of deposit intervals")
	return cmd
}

func runCreate(cmd *cobra.Command, _ []string) error {
	params := savings.CreatePoolParams{}
	if raw, _ := cmd.Flags().GetString("token"); raw != "" {
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("invalid token address: %s", raw)
		}
		params.Token = common.HexToAddress(raw)
	}

	var err error
	amount, _ := cmd.Flags().GetString("amount")
	if params.AmountToSave, err = pool.ParseUnits(amount, pool.Decimals); err != nil {
		return err
	}
	initial, _ := cmd.Flags().GetString("initial")
	if params.InitialDeposit, err = pool.ParseUnits(initial, pool.Decimals); err != nil {
		return err
	}
	duration, _ := cmd.Flags().GetDuration("duration")
	params.Duration = uint64(duration / time.Second)
	params.TotalIntervals, _ = cmd.Flags().GetUint64("intervals")
	if err := params.Validate(); err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	receipt, err := a.service.CreatePool(cmd.Context(), params)
	if err != nil {
		return err
	}
	return printJSON(receiptOutput(receipt))
}

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit <pool-id> <amount>",
		Short: "Deposit into one of the connected wallet's pools",
		Args:  cobra.ExactArgs(2),
		RunE:  runDeposit,
	}
	return cmd
}

func runDeposit(cmd *cobra.Command, args []string) error {
	id, err := savings.ParsePoolID(args[0])
	if err != nil {
		return err
	}
	amount, err := pool.ParseUnits(args[1], pool.Decimals)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	receipt, err := a.service.Deposit(cmd.Context(), id, amount)
	if err != nil {
		return err
	}
	return printJSON(receiptOutput(receipt))
}

type withdrawOutput struct {
	Path           string    `json:"withdrawal_path"`
	DonationAmount string    `json:"donation_amount,omitempty"`
	DonationTx     *txOutput `json:"donation_tx,omitempty"`
	WithdrawTx     *txOutput `json:"withdraw_tx,omitempty"`
}

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw <pool-id>",
		Short: "Withdraw a pool, donating to a charity when withdrawing early",
		Args:  cobra.ExactArgs(1),
		RunE:  runWithdraw,
	}
	cmd.Flags().String("charity", "", "charity address for early withdrawals")
	cmd.Flags().String("donation", "", "donation percentage for early withdrawals")
	cmd.Flags().String("donation-tx", "", "hash of a donation confirmed by an earlier attempt; skips sending it again")
	cmd.Flags().String("proof", "0x", "withdrawal proof bytes (hex)")
	cmd.Flags().StringSlice("public-inputs", nil, "proof public inputs (comma-separated bytes32 hex)")
	return cmd
}

func runWithdraw(cmd *cobra.Command, args []string) error {
	req := savings.WithdrawRequest{}
	var err error
	if req.PoolID, err = savings.ParsePoolID(args[0]); err != nil {
		return err
	}
	req.Charity, _ = cmd.Flags().GetString("charity")
	if raw, _ := cmd.Flags().GetString("donation"); raw != "" {
		if req.DonationPercent, err = decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("invalid donation percentage: %s", raw)
		}
	}
	if raw, _ := cmd.Flags().GetString("donation-tx"); raw != "" {
		if req.DonationTx, err = savings.ParseBytes32("donation tx", raw); err != nil {
			return err
		}
	}
	rawProof, _ := cmd.Flags().GetString("proof")
	if req.Proof, err = hexutil.Decode(rawProof); err != nil {
		return fmt.Errorf("invalid proof: %w", err)
	}
	inputs, _ := cmd.Flags().GetStringSlice("public-inputs")
	for _, input := range inputs {
		h, err := savings.ParseBytes32("public input", input)
		if err != nil {
			return err
		}
		req.PublicInputs = append(req.PublicInputs, h)
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.Withdraw(cmd.Context(), req)
	if err != nil {
		if result.DonationTx != nil && result.WithdrawTx == nil {
			_ = printJSON(newWithdrawOutput(result))
			fmt.Fprintf(os.Stderr, "donation confirmed but withdraw failed; retry with --donation-tx %s\n", result.DonationTx.TxHash.Hex())
		}
		return err
	}
	return printJSON(newWithdrawOutput(result))
}

func newWithdrawOutput(result savings.WithdrawResult) withdrawOutput {
	out := withdrawOutput{
		Path:       string(result.Path),
		DonationTx: receiptOutput(result.DonationTx),
		WithdrawTx: receiptOutput(result.WithdrawTx),
	}
	if result.DonationAmount != nil {
		out.DonationAmount = result.DonationAmount.String()
	}
	return out
}
