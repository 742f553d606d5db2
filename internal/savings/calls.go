package savings

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"thalerSavings/internal/apperr"
)

// CreatePoolParams describes a new savings pool. Amounts are base units.
type CreatePoolParams struct {
	Token          common.Address
	AmountToSave   *big.Int
	Duration       uint64
	InitialDeposit *big.Int
	TotalIntervals uint64
}

// Validate checks the pool parameters before any call is built.
func (p CreatePoolParams) Validate() error {
	if p.AmountToSave == nil || p.AmountToSave.Sign() <= 0 {
		return apperr.Invalid("amount", "target amount must be greater than zero")
	}
	if p.InitialDeposit == nil || p.InitialDeposit.Sign() <= 0 {
		return apperr.Invalid("initial deposit", "must be greater than zero")
	}
	if p.InitialDeposit.Cmp(p.AmountToSave) > 0 {
		return apperr.Invalid("initial deposit", "cannot exceed the target amount")
	}
	if p.Duration == 0 {
		return apperr.Invalid("duration", "must be greater than zero")
	}
	if p.TotalIntervals == 0 {
		return apperr.Invalid("intervals", "must be greater than zero")
	}
	return nil
}

// IsEth reports whether the pool saves the native currency.
func (p CreatePoolParams) IsEth() bool {
	return p.Token == (common.Address{})
}

// PackCreatePool builds createSavingsPoolEth or createSavingsPoolERC20 calldata.
func PackCreatePool(p CreatePoolParams) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	parsed, err := SavingsABI()
	if err != nil {
		return nil, err
	}
	duration := new(big.Int).SetUint64(p.Duration)
	intervals := new(big.Int).SetUint64(p.TotalIntervals)
	if p.IsEth() {
		return parsed.Pack("createSavingsPoolEth", p.AmountToSave, duration, p.InitialDeposit, intervals)
	}
	return parsed.Pack("createSavingsPoolERC20", p.Token, p.AmountToSave, duration, p.InitialDeposit, intervals)
}

// PackDeposit builds depositToSavingsPool calldata.
func PackDeposit(poolID common.Hash, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperr.Invalid("amount", "must be greater than zero")
	}
	parsed, err := SavingsABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("depositToSavingsPool", poolID, amount)
}

// PackWithdraw builds withdrawFromSavingsPool calldata. The proof and public
// inputs are passed through uninterpreted; the contract verifies them.
func PackWithdraw(poolID common.Hash, proof []byte, publicInputs []common.Hash) ([]byte, error) {
	parsed, err := SavingsABI()
	if err != nil {
		return nil, err
	}
	if proof == nil {
		proof = []byte{}
	}
	inputs := make([][32]byte, 0, len(publicInputs))
	for _, in := range publicInputs {
		inputs = append(inputs, in)
	}
	return parsed.Pack("withdrawFromSavingsPool", poolID, proof, inputs)
}

// PackApprove builds ERC20 approve calldata.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("approve", spender, amount)
}

// PackTransfer builds ERC20 transfer calldata.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperr.Invalid("amount", "must be greater than zero")
	}
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("transfer", to, amount)
}

// UnpackTransfer decodes ERC20 transfer calldata into recipient and amount.
func UnpackTransfer(data []byte) (common.Address, *big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return common.Address{}, nil, err
	}
	method := parsed.Methods["transfer"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return common.Address{}, nil, fmt.Errorf("not a transfer call")
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("unpack transfer: %w", err)
	}
	to, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return common.Address{}, nil, err
	}
	return to, amount, nil
}

// ParsePoolID parses a 0x-prefixed bytes32 pool id.
func ParsePoolID(input string) (common.Hash, error) {
	return ParseBytes32("pool id", input)
}

// ParseBytes32 parses a 0x-prefixed bytes32 value; field names it in errors.
func ParseBytes32(field, input string) (common.Hash, error) {
	data, err := hexutil.Decode(strings.TrimSpace(input))
	if err != nil {
		return common.Hash{}, apperr.Invalid(field, fmt.Sprintf("%q: %v", input, err))
	}
	if len(data) != common.HashLength {
		return common.Hash{}, apperr.Invalid(field, fmt.Sprintf("expected 32 bytes, got %d", len(data)))
	}
	return common.BytesToHash(data), nil
}
