package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// TxRequest is an unsigned call to send from the connected wallet.
type TxRequest struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Signer is the narrow wallet surface the savings flows depend on.
type Signer interface {
	IsReady() bool
	CurrentUser() (common.Address, bool)
	SignAndSend(ctx context.Context, tx TxRequest) (*types.Receipt, error)
}

// Backend is the chain access a KeySigner needs.
type Backend interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// KeySigner signs EIP-1559 transactions with a local private key.
type KeySigner struct {
	backend        Backend
	key            *ecdsa.PrivateKey
	address        common.Address
	confirmTimeout time.Duration
	logger         *zap.Logger
}

// NewKeySigner parses a hex private key. An empty key yields a signer that is not ready.
func NewKeySigner(backend Backend, hexKey string, confirmTimeout time.Duration, logger *zap.Logger) (*KeySigner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &KeySigner{backend: backend, confirmTimeout: confirmTimeout, logger: logger}

	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return s, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	s.key = key
	s.address = crypto.PubkeyToAddress(key.PublicKey)
	return s, nil
}

func (s *KeySigner) IsReady() bool {
	return s != nil && s.key != nil && s.backend != nil
}

func (s *KeySigner) CurrentUser() (common.Address, bool) {
	if !s.IsReady() {
		return common.Address{}, false
	}
	return s.address, true
}

// SignAndSend signs tx, broadcasts it and waits for the receipt.
// A mined but reverted transaction is returned as an error.
func (s *KeySigner) SignAndSend(ctx context.Context, req TxRequest) (*types.Receipt, error) {
	if !s.IsReady() {
		return nil, fmt.Errorf("signer not ready")
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	chainID, err := s.backend.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	tip, err := s.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee(head), big.NewInt(2)))

	to := req.To
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas + gas/5,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}
	s.logger.Info("tx sent", zap.String("hash", signed.Hash().Hex()), zap.String("to", to.Hex()), zap.Uint64("nonce", nonce))

	waitCtx := ctx
	if s.confirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.confirmTimeout)
		defer cancel()
	}
	receipt, err := s.backend.WaitMined(waitCtx, signed)
	if err != nil {
		return nil, fmt.Errorf("wait mined %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s execution reverted", signed.Hash().Hex())
	}

	s.logger.Info("tx confirmed", zap.String("hash", signed.Hash().Hex()), zap.Stringer("block", receipt.BlockNumber))
	return receipt, nil
}

func baseFee(head *types.Header) *big.Int {
	if head == nil || head.BaseFee == nil {
		return big.NewInt(0)
	}
	return head.BaseFee
}
