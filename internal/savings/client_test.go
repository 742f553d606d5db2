package savings

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"thalerSavings/internal/apperr"
	"thalerSavings/internal/model"
)

func ethPoolCaller(t *testing.T) *fakeCaller {
	return &fakeCaller{
		t: t,
		pools: map[common.Hash]poolFixture{
			poolID: {
				user:         ownerAddr,
				amountToSave: big.NewInt(1000),
				totalSaved:   big.NewInt(250),
				duration:     1000,
				start:        1_700_000_000,
				intervals:    4,
				deposits:     1,
			},
		},
		ids: []common.Hash{poolID},
	}
}

func TestClientPool(t *testing.T) {
	client := NewClient(ethPoolCaller(t), contractAddr, nil)

	p, err := client.Pool(context.Background(), poolID)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if p.ID != poolID.Hex() || p.User != ownerAddr.Hex() {
		t.Fatalf("identity mismatch: %+v", p)
	}
	if p.AmountToSave != "1000" || p.TotalSaved != "250" || p.InitialDeposit != "250" {
		t.Fatalf("amounts mismatch: %+v", p)
	}
	if p.StartDate != 1_700_000_000_000 || p.EndDate != 1_700_001_000_000 {
		t.Fatalf("dates should be milliseconds: %d %d", p.StartDate, p.EndDate)
	}
	if !p.ScheduleConsistent() {
		t.Fatalf("schedule should be consistent")
	}
	if !p.IsEth || p.TokenSymbol != model.NativeSymbol {
		t.Fatalf("eth pool not detected: %+v", p)
	}
}

func TestClientPoolNotFound(t *testing.T) {
	client := NewClient(ethPoolCaller(t), contractAddr, nil)
	_, err := client.Pool(context.Background(), common.HexToHash("0x02"))
	if !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestClientReadError(t *testing.T) {
	caller := ethPoolCaller(t)
	caller.fail = errors.New("dial tcp: i/o timeout")
	client := NewClient(caller, contractAddr, nil)

	_, err := client.Pool(context.Background(), poolID)
	var readErr *apperr.ContractReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ContractReadError, got %v", err)
	}
	if _, err := client.UserPools(context.Background(), ownerAddr); !errors.As(err, &readErr) {
		t.Fatalf("expected ContractReadError from UserPools, got %v", err)
	}
}

func TestClientTokenPool(t *testing.T) {
	caller := ethPoolCaller(t)
	fixture := caller.pools[poolID]
	fixture.token = tokenAddr
	caller.pools[poolID] = fixture
	caller.symbol = "USDC"
	caller.balance = big.NewInt(77)
	client := NewClient(caller, contractAddr, nil)

	p, err := client.Pool(context.Background(), poolID)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if p.IsEth || p.TokenSymbol != "USDC" || p.TokenToSave != tokenAddr.Hex() {
		t.Fatalf("token pool mismatch: %+v", p)
	}

	caller.symbol = "CHANGED"
	meta, err := client.TokenMeta(context.Background(), tokenAddr)
	if err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if meta.Symbol != "USDC" || meta.Decimals != 18 {
		t.Fatalf("token meta should be cached: %+v", meta)
	}

	bal, err := client.BalanceOf(context.Background(), tokenAddr, ownerAddr)
	if err != nil || bal.Int64() != 77 {
		t.Fatalf("balance mismatch: %v %v", bal, err)
	}
}

func TestClientUserPools(t *testing.T) {
	client := NewClient(ethPoolCaller(t), contractAddr, nil)
	ids, err := client.UserPools(context.Background(), ownerAddr)
	if err != nil {
		t.Fatalf("user pools: %v", err)
	}
	if len(ids) != 1 || ids[0] != poolID {
		t.Fatalf("ids mismatch: %v", ids)
	}
}
