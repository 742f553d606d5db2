package savings

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"thalerSavings/internal/apperr"
	"thalerSavings/internal/model"
	"thalerSavings/internal/pool"
	"thalerSavings/internal/wallet"
)

// WithdrawRequest carries the inputs of a withdrawal. Charity and
// DonationPercent are only used on the early path. DonationTx names a
// donation already confirmed by an earlier attempt; when set it is checked
// against the chain and no new transfer is sent.
type WithdrawRequest struct {
	PoolID          common.Hash
	Charity         string
	DonationPercent decimal.Decimal
	DonationTx      common.Hash
	Proof           []byte
	PublicInputs    []common.Hash
}

// WithdrawResult reports what a withdrawal did.
type WithdrawResult struct {
	Path           model.WithdrawalPath
	DonationAmount *big.Int
	DonationTx     *types.Receipt
	WithdrawTx     *types.Receipt
}

// DonationLookup reads back a transaction sent by an earlier withdrawal attempt.
type DonationLookup interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// BalanceCache is told when a confirmed transaction moved a wallet's funds.
type BalanceCache interface {
	Invalidate(wallet common.Address)
}

// Service runs the savings flows on top of the contract client and a wallet signer.
type Service struct {
	client    *Client
	signer    wallet.Signer
	donations DonationLookup
	balances  BalanceCache
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(client *Client, signer wallet.Signer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client: client,
		signer: signer,
		logger: logger,
		now:    time.Now,
	}
}

// EvaluateAt pins the instant views and withdrawal classification are computed at.
func (s *Service) EvaluateAt(at time.Time) {
	s.now = func() time.Time { return at }
}

// UseDonationLookup enables withdrawals that reuse an earlier donation.
func (s *Service) UseDonationLookup(lookup DonationLookup) {
	s.donations = lookup
}

// UseBalanceCache registers a cache to invalidate after confirmed transactions.
func (s *Service) UseBalanceCache(cache BalanceCache) {
	s.balances = cache
}

// PoolView reads a pool and derives its view at the current time.
func (s *Service) PoolView(ctx context.Context, id common.Hash) (model.PoolView, error) {
	p, err := s.client.Pool(ctx, id)
	if err != nil {
		return model.PoolView{}, err
	}
	return pool.Derive(p, s.now().UnixMilli())
}

// UserPoolViews reads every pool of owner.
func (s *Service) UserPoolViews(ctx context.Context, owner common.Address) ([]model.PoolView, error) {
	ids, err := s.client.UserPools(ctx, owner)
	if err != nil {
		return nil, err
	}

	views := make([]model.PoolView, 0, len(ids))
	for _, id := range ids {
		view, err := s.PoolView(ctx, id)
		if err != nil {
			if errors.Is(err, ErrPoolNotFound) {
				s.logger.Debug("skip withdrawn pool", zap.String("pool", id.Hex()))
				continue
			}
			return nil, err
		}
		if !pool.IsUserPool(view.Pool.User, owner.Hex()) {
			s.logger.Warn("pool owner mismatch", zap.String("pool", id.Hex()), zap.String("owner", view.Pool.User))
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// MyPools lists the pools of the connected wallet.
func (s *Service) MyPools(ctx context.Context) ([]model.PoolView, error) {
	user, err := s.connectedUser("view your pools")
	if err != nil {
		return nil, err
	}
	return s.UserPoolViews(ctx, user)
}

// CreatePool creates a savings pool from the connected wallet. ERC20 pools
// approve the initial deposit first.
func (s *Service) CreatePool(ctx context.Context, params CreatePoolParams) (*types.Receipt, error) {
	user, err := s.connectedUser("create a savings pool")
	if err != nil {
		return nil, err
	}
	data, err := PackCreatePool(params)
	if err != nil {
		return nil, err
	}

	req := wallet.TxRequest{To: s.client.Contract(), Data: data}
	if params.IsEth() {
		req.Value = params.InitialDeposit
	} else if err := s.approve(ctx, params.Token, params.InitialDeposit); err != nil {
		return nil, err
	}

	s.logger.Info("create pool",
		zap.String("user", user.Hex()),
		zap.String("token", params.Token.Hex()),
		zap.String("amount_to_save", params.AmountToSave.String()),
		zap.Uint64("duration", params.Duration),
		zap.Uint64("intervals", params.TotalIntervals),
	)
	receipt, err := s.signer.SignAndSend(ctx, req)
	if err != nil {
		return nil, apperr.ClassifyTransaction("create pool", err)
	}
	s.balancesChanged(user)
	return receipt, nil
}

// Deposit adds amount (base units) to one of the connected wallet's pools.
func (s *Service) Deposit(ctx context.Context, id common.Hash, amount *big.Int) (*types.Receipt, error) {
	user, err := s.connectedUser("deposit")
	if err != nil {
		return nil, err
	}
	data, err := PackDeposit(id, amount)
	if err != nil {
		return nil, err
	}

	p, err := s.client.Pool(ctx, id)
	if err != nil {
		return nil, err
	}
	if !pool.IsUserPool(p.User, user.Hex()) {
		return nil, apperr.Invalid("pool", "pool belongs to another wallet")
	}

	req := wallet.TxRequest{To: s.client.Contract(), Data: data}
	if p.IsEth {
		req.Value = amount
	} else if err := s.approve(ctx, common.HexToAddress(p.TokenToSave), amount); err != nil {
		return nil, err
	}

	s.logger.Info("deposit", zap.String("pool", p.ID), zap.String("amount", amount.String()), zap.String("token", p.TokenSymbol))
	receipt, err := s.signer.SignAndSend(ctx, req)
	if err != nil {
		return nil, apperr.ClassifyTransaction("deposit", err)
	}
	s.balancesChanged(user)
	return receipt, nil
}

// Withdraw classifies the pool at the current time and runs the normal or
// early withdrawal. Early withdrawals transfer the donation to the charity
// before the withdraw call. When the withdraw call fails after the donation
// was confirmed, the result still carries DonationTx so the caller can retry
// with req.DonationTx set.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (WithdrawResult, error) {
	user, err := s.connectedUser("withdraw")
	if err != nil {
		return WithdrawResult{}, err
	}

	view, err := s.PoolView(ctx, req.PoolID)
	if err != nil {
		return WithdrawResult{}, err
	}
	if !pool.IsUserPool(view.Pool.User, user.Hex()) {
		return WithdrawResult{}, apperr.Invalid("pool", "pool belongs to another wallet")
	}

	result := WithdrawResult{Path: view.Path}
	if view.Path == model.EarlyWithdrawal {
		saved, err := pool.ParseAmount(view.Pool.TotalSaved)
		if err != nil {
			return result, fmt.Errorf("total saved: %w", err)
		}
		early := pool.EarlyWithdrawalRequest{
			Charity:         req.Charity,
			DonationPercent: req.DonationPercent,
			TotalSaved:      saved,
			ElapsedPercent:  view.ElapsedPercent,
		}
		if _, err := pool.ValidateEarlyWithdrawal(early); err != nil {
			return result, err
		}

		result.DonationAmount = pool.CeilBaseUnits(early.DonationAmount())
		charity := common.HexToAddress(req.Charity)
		if req.DonationTx != (common.Hash{}) {
			receipt, err := s.verifyDonation(ctx, view.Pool, user, charity, result.DonationAmount, req.DonationTx)
			if err != nil {
				return result, err
			}
			s.logger.Info("reuse donation", zap.String("pool", view.Pool.ID), zap.String("tx", req.DonationTx.Hex()))
			result.DonationTx = receipt
		} else {
			receipt, err := s.donate(ctx, view.Pool, charity, result.DonationAmount)
			if err != nil {
				return result, apperr.ClassifyTransaction("donate", err)
			}
			result.DonationTx = receipt
			s.balancesChanged(user)
		}
	}

	data, err := PackWithdraw(req.PoolID, req.Proof, req.PublicInputs)
	if err != nil {
		return result, err
	}
	s.logger.Info("withdraw", zap.String("pool", view.Pool.ID), zap.String("path", string(view.Path)))
	receipt, err := s.signer.SignAndSend(ctx, wallet.TxRequest{To: s.client.Contract(), Data: data})
	if err != nil {
		return result, apperr.ClassifyTransaction("withdraw", err)
	}
	result.WithdrawTx = receipt
	s.balancesChanged(user)
	return result, nil
}

// verifyDonation checks that hash is a confirmed transfer of at least amount
// from user to charity in the pool's token.
func (s *Service) verifyDonation(ctx context.Context, p model.SavingsPool, user, charity common.Address, amount *big.Int, hash common.Hash) (*types.Receipt, error) {
	if s.donations == nil {
		return nil, fmt.Errorf("donation lookup is not configured")
	}
	tx, pending, err := s.donations.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, apperr.ReadFailed("donation transaction", err)
	}
	if pending {
		return nil, apperr.Invalid("donation tx", "transaction is still pending")
	}
	receipt, err := s.donations.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, apperr.ReadFailed("donation receipt", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, apperr.Invalid("donation tx", "transaction failed on chain")
	}
	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil || sender != user {
		return nil, apperr.Invalid("donation tx", "transaction was not sent by the connected wallet")
	}

	paid, err := donationPaid(p, tx, charity)
	if err != nil {
		return nil, err
	}
	if paid.Cmp(amount) < 0 {
		return nil, apperr.Invalid("donation tx", fmt.Sprintf("donated %s, at least %s required", paid, amount))
	}
	return receipt, nil
}

func donationPaid(p model.SavingsPool, tx *types.Transaction, charity common.Address) (*big.Int, error) {
	if tx.To() == nil {
		return nil, apperr.Invalid("donation tx", "transaction is a contract creation")
	}
	if p.IsEth {
		if *tx.To() != charity {
			return nil, apperr.Invalid("donation tx", "transaction was not sent to the charity")
		}
		return tx.Value(), nil
	}
	if *tx.To() != common.HexToAddress(p.TokenToSave) {
		return nil, apperr.Invalid("donation tx", "transaction does not move the pool token")
	}
	to, paid, err := UnpackTransfer(tx.Data())
	if err != nil {
		return nil, apperr.Invalid("donation tx", "transaction is not a token transfer")
	}
	if to != charity {
		return nil, apperr.Invalid("donation tx", "transfer was not sent to the charity")
	}
	return paid, nil
}

func (s *Service) balancesChanged(user common.Address) {
	if s.balances != nil {
		s.balances.Invalidate(user)
	}
}

func (s *Service) donate(ctx context.Context, p model.SavingsPool, charity common.Address, amount *big.Int) (*types.Receipt, error) {
	s.logger.Info("donate", zap.String("pool", p.ID), zap.String("charity", charity.Hex()), zap.String("amount", amount.String()))
	if p.IsEth {
		return s.signer.SignAndSend(ctx, wallet.TxRequest{To: charity, Value: amount})
	}
	data, err := PackTransfer(charity, amount)
	if err != nil {
		return nil, err
	}
	return s.signer.SignAndSend(ctx, wallet.TxRequest{To: common.HexToAddress(p.TokenToSave), Data: data})
}

func (s *Service) approve(ctx context.Context, token common.Address, amount *big.Int) error {
	data, err := PackApprove(s.client.Contract(), amount)
	if err != nil {
		return err
	}
	if _, err := s.signer.SignAndSend(ctx, wallet.TxRequest{To: token, Data: data}); err != nil {
		return apperr.ClassifyTransaction("approve", err)
	}
	return nil
}

func (s *Service) connectedUser(action string) (common.Address, error) {
	if s.signer == nil || !s.signer.IsReady() {
		return common.Address{}, &apperr.NotConnectedError{Action: action}
	}
	user, ok := s.signer.CurrentUser()
	if !ok {
		return common.Address{}, &apperr.NotConnectedError{Action: action}
	}
	return user, nil
}
