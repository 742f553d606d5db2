package savings

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"thalerSavings/internal/wallet"
)

var (
	contractAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	ownerAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenAddr    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	charityAddr  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	poolID       = common.HexToHash("0xaa00000000000000000000000000000000000000000000000000000000000001")
)

type poolFixture struct {
	user         common.Address
	token        common.Address
	amountToSave *big.Int
	totalSaved   *big.Int
	duration     uint64
	start        uint64
	intervals    uint64
	deposits     uint64
}

// fakeCaller answers eth_calls by method selector with ABI-packed outputs.
type fakeCaller struct {
	t       *testing.T
	pools   map[common.Hash]poolFixture
	ids     []common.Hash
	symbol  string
	balance *big.Int
	fail    error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	savingsParsed, _ := SavingsABI()
	tokenParsed, _ := ERC20ABI()

	method := lookup(msg.Data, savingsParsed, tokenParsed)
	if method == nil {
		return nil, fmt.Errorf("unknown selector %x", msg.Data[:4])
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		f.t.Fatalf("unpack args: %v", err)
	}

	switch method.Name {
	case "getSavingsPool":
		id := common.Hash(args[0].([32]byte))
		p, ok := f.pools[id]
		if !ok {
			p = poolFixture{amountToSave: big.NewInt(0), totalSaved: big.NewInt(0)}
		}
		end := p.start + p.duration
		return method.Outputs.Pack(
			p.user, p.token, p.amountToSave, p.totalSaved,
			u(p.duration), u(p.start), u(end), u(p.start+p.duration/2),
			u(p.deposits), u(p.intervals), p.totalSaved,
		)
	case "getUserSavingsPools":
		ids := make([][32]byte, 0, len(f.ids))
		for _, id := range f.ids {
			ids = append(ids, id)
		}
		return method.Outputs.Pack(ids)
	case "decimals":
		return method.Outputs.Pack(uint8(18))
	case "symbol":
		return method.Outputs.Pack(f.symbol)
	case "balanceOf":
		return method.Outputs.Pack(f.balance)
	}
	return nil, fmt.Errorf("unhandled method %s", method.Name)
}

func lookup(data []byte, abis ...abi.ABI) *abi.Method {
	for _, parsed := range abis {
		for _, m := range parsed.Methods {
			if bytes.Equal(m.ID, data[:4]) {
				method := m
				return &method
			}
		}
	}
	return nil
}

func u(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// fakeSigner records transactions instead of sending them.
type fakeSigner struct {
	user   common.Address
	ready  bool
	sent   []wallet.TxRequest
	failAt int
	err    error
}

func (f *fakeSigner) IsReady() bool { return f.ready }

func (f *fakeSigner) CurrentUser() (common.Address, bool) { return f.user, f.ready }

func (f *fakeSigner) SignAndSend(_ context.Context, tx wallet.TxRequest) (*types.Receipt, error) {
	f.sent = append(f.sent, tx)
	if f.err != nil && len(f.sent) == f.failAt {
		return nil, f.err
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(int64(len(f.sent)))}, nil
}

// fakeLookup serves transactions that were mined in an earlier run.
type fakeLookup struct {
	txs    map[common.Hash]*types.Transaction
	status uint64
}

func (f *fakeLookup) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	tx, ok := f.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}

func (f *fakeLookup) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if _, ok := f.txs[hash]; !ok {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status, TxHash: hash, BlockNumber: big.NewInt(7)}, nil
}

func newLookup(txs ...*types.Transaction) *fakeLookup {
	l := &fakeLookup{txs: make(map[common.Hash]*types.Transaction), status: types.ReceiptStatusSuccessful}
	for _, tx := range txs {
		l.txs[tx.Hash()] = tx
	}
	return l
}

func signedTx(t *testing.T, key *ecdsa.PrivateKey, to common.Address, value *big.Int, data []byte) *types.Transaction {
	t.Helper()
	chainID := big.NewInt(8453)
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(chainID), &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       60_000,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tx
}

// walletPool points the fixture pool at a freshly generated key.
func walletPool(t *testing.T, caller *fakeCaller) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	fixture := caller.pools[poolID]
	fixture.user = crypto.PubkeyToAddress(key.PublicKey)
	caller.pools[poolID] = fixture
	return key
}

type recordingCache struct {
	invalidated []common.Address
}

func (r *recordingCache) Invalidate(wallet common.Address) {
	r.invalidated = append(r.invalidated, wallet)
}
