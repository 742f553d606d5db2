package savings

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"thalerSavings/internal/model"
)

func TestDecodeEvent(t *testing.T) {
	parsed, err := SavingsABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}

	created, err := parsed.Events[model.EventPoolCreated].Inputs.NonIndexed().Pack(
		tokenAddr, big.NewInt(1000), big.NewInt(100), big.NewInt(1_700_001_000),
	)
	if err != nil {
		t.Fatalf("pack created: %v", err)
	}
	log := types.Log{
		Address:     contractAddr,
		Topics:      []common.Hash{parsed.Events[model.EventPoolCreated].ID, common.BytesToHash(ownerAddr.Bytes()), poolID},
		Data:        created,
		BlockNumber: 10,
		Index:       2,
	}

	event, err := DecodeEvent(8453, log)
	if err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if event.EventName != model.EventPoolCreated || event.User != ownerAddr.Hex() || event.PoolID != poolID.Hex() {
		t.Fatalf("identity mismatch: %+v", event)
	}
	if event.TokenToSave != tokenAddr.Hex() || event.Amount != "1000" || event.EndDate != 1_700_001_000_000 {
		t.Fatalf("payload mismatch: %+v", event)
	}

	deposited, err := parsed.Events[model.EventPoolDeposited].Inputs.NonIndexed().Pack(
		big.NewInt(50), big.NewInt(300), big.NewInt(1_700_000_500),
	)
	if err != nil {
		t.Fatalf("pack deposited: %v", err)
	}
	log.Topics[0] = parsed.Events[model.EventPoolDeposited].ID
	log.Data = deposited
	event, err = DecodeEvent(8453, log)
	if err != nil {
		t.Fatalf("decode deposited: %v", err)
	}
	if event.Amount != "50" || event.TotalSaved != "300" || event.NextDepositDate != 1_700_000_500_000 {
		t.Fatalf("deposit payload mismatch: %+v", event)
	}

	log.Topics[0] = common.HexToHash("0x1234")
	if _, err := DecodeEvent(8453, log); err == nil {
		t.Fatalf("expected unsupported topic error")
	}

	topics, err := EventTopics()
	if err != nil || len(topics) != 3 {
		t.Fatalf("event topics: %v %v", topics, err)
	}
}
