package savings

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"thalerSavings/internal/apperr"
	"thalerSavings/internal/model"
)

// ErrPoolNotFound is returned when the contract has no pool for an id.
var ErrPoolNotFound = errors.New("savings pool not found")

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Client reads savings pools and token metadata from chain.
type Client struct {
	caller   Caller
	contract common.Address
	tokens   *TokenMetaCache
	logger   *zap.Logger
}

// NewClient builds a Client for the savings contract at contract.
func NewClient(caller Caller, contract common.Address, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		caller:   caller,
		contract: contract,
		tokens:   NewTokenMetaCache(),
		logger:   logger,
	}
}

// Contract returns the savings contract address.
func (c *Client) Contract() common.Address {
	return c.contract
}

// Pool reads one savings pool. Dates are converted to milliseconds.
func (c *Client) Pool(ctx context.Context, id common.Hash) (model.SavingsPool, error) {
	parsed, err := SavingsABI()
	if err != nil {
		return model.SavingsPool{}, fmt.Errorf("parse savings abi: %w", err)
	}

	values, err := c.call(ctx, c.contract, parsed, "getSavingsPool", id)
	if err != nil {
		return model.SavingsPool{}, apperr.ReadFailed("savings pool", err)
	}
	if len(values) != 11 {
		return model.SavingsPool{}, apperr.ReadFailed("savings pool", fmt.Errorf("getSavingsPool returned %d values", len(values)))
	}

	user, err := asAddress(values[0])
	if err != nil {
		return model.SavingsPool{}, apperr.ReadFailed("savings pool", fmt.Errorf("user: %w", err))
	}
	if user == (common.Address{}) {
		return model.SavingsPool{}, fmt.Errorf("%w: %s", ErrPoolNotFound, id.Hex())
	}
	token, err := asAddress(values[1])
	if err != nil {
		return model.SavingsPool{}, apperr.ReadFailed("savings pool", fmt.Errorf("token: %w", err))
	}

	ints := make([]*big.Int, 0, 9)
	for i, v := range values[2:] {
		n, err := asBigInt(v)
		if err != nil {
			return model.SavingsPool{}, apperr.ReadFailed("savings pool", fmt.Errorf("field %d: %w", i+2, err))
		}
		ints = append(ints, n)
	}

	p := model.SavingsPool{
		ID:               id.Hex(),
		User:             user.Hex(),
		TokenToSave:      token.Hex(),
		AmountToSave:     ints[0].String(),
		TotalSaved:       ints[1].String(),
		Duration:         ints[2].Uint64(),
		StartDate:        secondsToMillis(ints[3]),
		EndDate:          secondsToMillis(ints[4]),
		NextDepositDate:  secondsToMillis(ints[5]),
		NumberOfDeposits: ints[6].Uint64(),
		TotalIntervals:   ints[7].Uint64(),
		InitialDeposit:   ints[8].String(),
		IsEth:            token == (common.Address{}),
	}
	if !p.ScheduleConsistent() {
		c.logger.Warn("pool schedule inconsistent",
			zap.String("pool", p.ID),
			zap.Int64("start", p.StartDate),
			zap.Int64("end", p.EndDate),
			zap.Uint64("duration", p.Duration),
			zap.Uint64("deposits", p.NumberOfDeposits),
			zap.Uint64("intervals", p.TotalIntervals),
		)
	}

	if p.IsEth {
		p.TokenSymbol = model.NativeSymbol
	} else {
		meta, err := c.TokenMeta(ctx, token)
		if err != nil {
			c.logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
		}
		p.TokenSymbol = meta.Symbol
	}

	return p, nil
}

// UserPools lists the pool ids owned by owner.
func (c *Client) UserPools(ctx context.Context, owner common.Address) ([]common.Hash, error) {
	parsed, err := SavingsABI()
	if err != nil {
		return nil, fmt.Errorf("parse savings abi: %w", err)
	}
	values, err := c.call(ctx, c.contract, parsed, "getUserSavingsPools", owner)
	if err != nil {
		return nil, apperr.ReadFailed("user pools", err)
	}
	if len(values) != 1 {
		return nil, apperr.ReadFailed("user pools", fmt.Errorf("getUserSavingsPools returned %d values", len(values)))
	}
	raw, ok := values[0].([][32]byte)
	if !ok {
		return nil, apperr.ReadFailed("user pools", fmt.Errorf("unexpected type %T", values[0]))
	}
	ids := make([]common.Hash, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, common.Hash(id))
	}
	return ids, nil
}

// TokenMeta loads ERC20 decimals and symbol, cached per token.
// On a failed symbol call the returned meta still carries the decimals.
func (c *Client) TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if token == (common.Address{}) {
		return model.NativeTokenMeta(), nil
	}
	if meta, ok := c.tokens.Get(token); ok {
		return meta, nil
	}

	parsed, err := ERC20ABI()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}

	meta := model.TokenMeta{Address: token.Hex()}
	values, err := c.call(ctx, token, parsed, "decimals")
	if err != nil {
		return meta, apperr.ReadFailed("token decimals", err)
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, apperr.ReadFailed("token decimals", err)
	}
	meta.Decimals = decimals

	values, err = c.call(ctx, token, parsed, "symbol")
	if err != nil {
		return meta, apperr.ReadFailed("token symbol", err)
	}
	if symbol, ok := values[0].(string); ok {
		meta.Symbol = strings.TrimSpace(symbol)
	}

	c.tokens.Set(token, meta)
	return meta, nil
}

// BalanceOf returns the ERC20 balance of owner.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := c.call(ctx, token, parsed, "balanceOf", owner)
	if err != nil {
		return nil, apperr.ReadFailed("token balance", err)
	}
	if len(values) != 1 {
		return nil, apperr.ReadFailed("token balance", fmt.Errorf("balanceOf return size %d", len(values)))
	}
	bal, err := asBigInt(values[0])
	if err != nil {
		return nil, apperr.ReadFailed("token balance", err)
	}
	return bal, nil
}

func (c *Client) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if c.caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func secondsToMillis(v *big.Int) int64 {
	if v == nil || !v.IsInt64() {
		return 0
	}
	return v.Int64() * 1000
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
