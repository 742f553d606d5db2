package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"thalerSavings/internal/model"
	"thalerSavings/internal/savings"
)

var (
	testContract = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testUser     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testPool     = common.HexToHash("0xaa01")
)

type fakeSource struct {
	logs        []types.Log
	latest      uint64
	filterFails int
	filterCalls int
	ranges      [][2]uint64
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) {
	return big.NewInt(8453), nil
}

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.filterCalls++
	if f.filterFails > 0 {
		f.filterFails--
		return nil, errors.New("rpc timeout")
	}
	if len(addresses) != 1 || addresses[0] != testContract || len(topic0) != 3 {
		return nil, errors.New("unexpected filter")
	}
	f.ranges = append(f.ranges, [2]uint64{from, to})
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

type memorySink struct {
	events []model.PoolEvent
}

func (m *memorySink) PutEventBatch(_ context.Context, events []model.PoolEvent) error {
	m.events = append(m.events, events...)
	return nil
}

func withdrawnLog(t *testing.T, block uint64, index uint) types.Log {
	t.Helper()
	parsed, err := savings.SavingsABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	event := parsed.Events[model.EventPoolWithdrawn]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1000))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return types.Log{
		Address:     testContract,
		Topics:      []common.Hash{event.ID, common.BytesToHash(testUser.Bytes()), testPool},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
		Index:       index,
	}
}

func TestRunnerIndexesAndCheckpoints(t *testing.T) {
	bogus := withdrawnLog(t, 15, 0)
	bogus.Topics[0] = common.HexToHash("0xdead")
	source := &fakeSource{
		latest: 25,
		logs: []types.Log{
			withdrawnLog(t, 12, 0),
			withdrawnLog(t, 12, 0),
			bogus,
			withdrawnLog(t, 21, 3),
		},
	}
	sink := &memorySink{}
	checkpoint := NewFileCheckpoint(filepath.Join(t.TempDir(), "cp.json"))

	cfg := RunConfig{Contract: testContract, FromBlock: 10, BatchSize: 10, RetryBackoff: time.Millisecond}
	runner := NewRunner(cfg, source, sink, checkpoint, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(sink.events), sink.events)
	}
	first := sink.events[0]
	if first.EventName != model.EventPoolWithdrawn || first.Amount != "1000" || first.Timestamp != 1_700_000_012 || first.ChainID != 8453 {
		t.Fatalf("event mismatch: %+v", first)
	}
	if first.IngestedAt == "" {
		t.Fatalf("ingested_at not set")
	}

	last, ok, err := checkpoint.Load(context.Background())
	if err != nil || !ok || last != 25 {
		t.Fatalf("checkpoint %d %v %v", last, ok, err)
	}

	source.latest = 30
	source.ranges = nil
	runner = NewRunner(cfg, source, sink, checkpoint, nil)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(source.ranges) != 1 || source.ranges[0] != [2]uint64{26, 30} {
		t.Fatalf("resume ranges %v", source.ranges)
	}
}

func TestRunnerRetriesFilter(t *testing.T) {
	source := &fakeSource{latest: 5, filterFails: 2}
	cfg := RunConfig{Contract: testContract, FromBlock: 1, BatchSize: 10, MaxRetries: 2, RetryBackoff: time.Millisecond}
	if err := NewRunner(cfg, source, &memorySink{}, nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if source.filterCalls != 3 {
		t.Fatalf("expected 3 filter calls, got %d", source.filterCalls)
	}

	source = &fakeSource{latest: 5, filterFails: 5}
	cfg.MaxRetries = 1
	if err := NewRunner(cfg, source, &memorySink{}, nil, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected error after retries exhausted")
	}
}

func TestRunnerRequiresContract(t *testing.T) {
	runner := NewRunner(RunConfig{BatchSize: 1}, &fakeSource{}, &memorySink{}, nil, nil)
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected error without contract")
	}
}

type stateStub struct {
	values map[string]uint64
}

func (s *stateStub) LoadState(_ context.Context, name string) (uint64, bool, error) {
	v, ok := s.values[name]
	return v, ok, nil
}

func (s *stateStub) SaveState(_ context.Context, name string, value uint64) error {
	s.values[name] = value
	return nil
}

func TestDBCheckpoint(t *testing.T) {
	backend := &stateStub{values: map[string]uint64{}}
	cp := &DBCheckpoint{Backend: backend, Name: "savings-indexer"}
	if _, ok, _ := cp.Load(context.Background()); ok {
		t.Fatalf("expected empty checkpoint")
	}
	if err := cp.Save(context.Background(), 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, ok, _ := cp.Load(context.Background()); !ok || v != 42 {
		t.Fatalf("load %d %v", v, ok)
	}
}
