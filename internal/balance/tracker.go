package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"thalerSavings/internal/model"
)

// DefaultTTL is how long a wallet's balances are served from cache.
const DefaultTTL = 10 * time.Second

// NativeReader reads native currency balances.
type NativeReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// TokenReader reads ERC20 balances and metadata.
type TokenReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

type entry struct {
	balances model.Balances
	expires  time.Time
}

// Tracker serves wallet balances from a short-lived cache keyed by lower-cased
// address. A refresh overwrites the whole entry; concurrent refreshes of one
// wallet are not coordinated and the last one to finish wins.
type Tracker struct {
	native NativeReader
	tokens TokenReader
	watch  []common.Address
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// NewTracker builds a Tracker for the native balance plus the watched tokens.
func NewTracker(native NativeReader, tokens TokenReader, watch []common.Address, ttl time.Duration, logger *zap.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		native:  native,
		tokens:  tokens,
		watch:   watch,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Balances returns cached balances for wallet, refreshing them once the window expires.
func (t *Tracker) Balances(ctx context.Context, wallet common.Address) (model.Balances, error) {
	key := strings.ToLower(wallet.Hex())

	t.mu.RLock()
	cached, ok := t.entries[key]
	t.mu.RUnlock()
	if ok && t.now().Before(cached.expires) {
		return cached.balances, nil
	}

	return t.Refresh(ctx, wallet)
}

// Refresh fetches balances for wallet and overwrites its cache entry.
func (t *Tracker) Refresh(ctx context.Context, wallet common.Address) (model.Balances, error) {
	if t.native == nil {
		return model.Balances{}, fmt.Errorf("native balance reader is nil")
	}
	native, err := t.native.BalanceAt(ctx, wallet)
	if err != nil {
		return model.Balances{}, fmt.Errorf("native balance: %w", err)
	}

	fetchedAt := t.now()
	out := model.Balances{
		Wallet:    wallet.Hex(),
		Native:    model.NativeTokenMeta().FormatAmount(native),
		Tokens:    make([]model.TokenBalance, 0, len(t.watch)),
		FetchedAt: fetchedAt,
	}

	for _, token := range t.watch {
		if t.tokens == nil {
			break
		}
		meta, err := t.tokens.TokenMeta(ctx, token)
		if err != nil {
			t.logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
			continue
		}
		amount, err := t.tokens.BalanceOf(ctx, token, wallet)
		if err != nil {
			return model.Balances{}, fmt.Errorf("token balance %s: %w", token.Hex(), err)
		}
		out.Tokens = append(out.Tokens, model.TokenBalance{
			Token:    token.Hex(),
			Symbol:   meta.Symbol,
			Decimals: meta.Decimals,
			Amount:   meta.FormatAmount(amount),
		})
	}

	t.mu.Lock()
	t.entries[strings.ToLower(wallet.Hex())] = entry{balances: out, expires: fetchedAt.Add(t.ttl)}
	t.mu.Unlock()

	return out, nil
}

// Invalidate drops the cached entry for wallet, e.g. after a confirmed transaction.
func (t *Tracker) Invalidate(wallet common.Address) {
	t.mu.Lock()
	delete(t.entries, strings.ToLower(wallet.Hex()))
	t.mu.Unlock()
}
