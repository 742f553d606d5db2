package price

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const aggregatorABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [],
    "name": "latestRoundData",
    "outputs": [
      {"internalType": "uint80", "name": "roundId", "type": "uint80"},
      {"internalType": "int256", "name": "answer", "type": "int256"},
      {"internalType": "uint256", "name": "startedAt", "type": "uint256"},
      {"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
      {"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	aggregatorABI     abi.ABI
	aggregatorABIOnce sync.Once
	aggregatorABIErr  error
)

func getAggregatorABI() (abi.ABI, error) {
	aggregatorABIOnce.Do(func() {
		aggregatorABI, aggregatorABIErr = abi.JSON(strings.NewReader(aggregatorABIJSON))
	})
	return aggregatorABI, aggregatorABIErr
}

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Quote is one price reading.
type Quote struct {
	Price     decimal.Decimal
	UpdatedAt time.Time
}

// Feed reads a price aggregator contract (latestRoundData/decimals).
type Feed struct {
	caller     Caller
	aggregator common.Address
	maxAge     time.Duration
	now        func() time.Time
}

// NewFeed builds a Feed. A zero maxAge disables the staleness check.
func NewFeed(caller Caller, aggregator common.Address, maxAge time.Duration) *Feed {
	return &Feed{caller: caller, aggregator: aggregator, maxAge: maxAge, now: time.Now}
}

// Latest returns the latest price, scaled by the aggregator decimals.
func (f *Feed) Latest(ctx context.Context) (Quote, error) {
	parsed, err := getAggregatorABI()
	if err != nil {
		return Quote{}, err
	}

	values, err := f.call(ctx, parsed, "decimals")
	if err != nil {
		return Quote{}, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return Quote{}, fmt.Errorf("decimals unexpected type %T", values[0])
	}

	values, err = f.call(ctx, parsed, "latestRoundData")
	if err != nil {
		return Quote{}, err
	}
	if len(values) != 5 {
		return Quote{}, fmt.Errorf("latestRoundData return size %d", len(values))
	}
	answer, ok := values[1].(*big.Int)
	if !ok {
		return Quote{}, fmt.Errorf("answer unexpected type %T", values[1])
	}
	updated, ok := values[3].(*big.Int)
	if !ok {
		return Quote{}, fmt.Errorf("updatedAt unexpected type %T", values[3])
	}
	if answer.Sign() <= 0 {
		return Quote{}, fmt.Errorf("non-positive answer %s", answer)
	}

	q := Quote{
		Price:     decimal.NewFromBigInt(answer, -int32(decimals)),
		UpdatedAt: time.Unix(updated.Int64(), 0).UTC(),
	}
	if f.maxAge > 0 && f.now().Sub(q.UpdatedAt) > f.maxAge {
		return q, fmt.Errorf("stale price: updated %s", q.UpdatedAt.Format(time.RFC3339))
	}
	return q, nil
}

func (f *Feed) call(ctx context.Context, parsed abi.ABI, method string) ([]interface{}, error) {
	if f.caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := f.aggregator
	resp, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}
