package savings

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"thalerSavings/internal/model"
)

// EventTopics returns the topic0 hashes of the savings contract events.
func EventTopics() ([]common.Hash, error) {
	parsed, err := SavingsABI()
	if err != nil {
		return nil, err
	}
	return []common.Hash{
		parsed.Events[model.EventPoolCreated].ID,
		parsed.Events[model.EventPoolDeposited].ID,
		parsed.Events[model.EventPoolWithdrawn].ID,
	}, nil
}

// DecodeEvent decodes a savings contract log. Timestamps and ingestion
// fields are left for the caller.
func DecodeEvent(chainID uint64, log types.Log) (model.PoolEvent, error) {
	parsed, err := SavingsABI()
	if err != nil {
		return model.PoolEvent{}, err
	}
	if len(log.Topics) != 3 {
		return model.PoolEvent{}, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}
	event, err := parsed.EventByID(log.Topics[0])
	if err != nil {
		return model.PoolEvent{}, fmt.Errorf("unsupported topic0 %s: %w", log.Topics[0].Hex(), err)
	}

	values := make(map[string]interface{})
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
		return model.PoolEvent{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}

	out := model.PoolEvent{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Contract:    log.Address.Hex(),
		EventName:   event.Name,
		User:        common.BytesToAddress(log.Topics[1].Bytes()).Hex(),
		PoolID:      log.Topics[2].Hex(),
	}

	switch event.Name {
	case model.EventPoolCreated:
		token, err := asAddress(values["tokenToSave"])
		if err != nil {
			return model.PoolEvent{}, fmt.Errorf("tokenToSave: %w", err)
		}
		out.TokenToSave = token.Hex()
		out.Amount = bigString(values["amountToSave"])
		out.EndDate = secondsToMillis(asBig(values["endDate"]))
	case model.EventPoolDeposited:
		out.Amount = bigString(values["amount"])
		out.TotalSaved = bigString(values["totalSaved"])
		out.NextDepositDate = secondsToMillis(asBig(values["nextDepositDate"]))
	case model.EventPoolWithdrawn:
		out.Amount = bigString(values["amount"])
	}
	return out, nil
}

func asBig(value interface{}) *big.Int {
	n, err := asBigInt(value)
	if err != nil {
		return nil
	}
	return n
}

func bigString(value interface{}) string {
	n := asBig(value)
	if n == nil {
		return ""
	}
	return n.String()
}
