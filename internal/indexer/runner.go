package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"thalerSavings/internal/model"
	"thalerSavings/internal/savings"
	"thalerSavings/internal/storage"
)

// LogSource is the chain access the indexer needs.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	Contract     common.Address
	FromBlock    uint64
	ToBlock      uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner streams savings contract events from the chain and writes them to storage.
type Runner struct {
	cfg        RunConfig
	chain      LogSource
	storage    storage.Storage
	checkpoint CheckpointStore
	retry      retryPolicy
	logger     *zap.Logger
	seen       map[string]struct{}
	now        func() time.Time
}

// NewRunner builds a Runner. A nil checkpoint disables resume.
func NewRunner(cfg RunConfig, chainClient LogSource, sink storage.Storage, checkpoint CheckpointStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		storage:    sink,
		checkpoint: checkpoint,
		retry:      newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, logger),
		logger:     logger,
		seen:       make(map[string]struct{}),
		now:        time.Now,
	}
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Contract == (common.Address{}) {
		return fmt.Errorf("savings contract address is required")
	}

	topics, err := savings.EventTopics()
	if err != nil {
		return fmt.Errorf("event topics: %w", err)
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if resumed := ResumeFrom(from, last, ok); resumed != from {
			from = resumed
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, topics)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		ingestedAt := r.now().UTC().Format(time.RFC3339Nano)
		events := make([]model.PoolEvent, 0, len(logs))
		for _, log := range logs {
			if log.Removed || r.isDuplicate(log) {
				continue
			}

			event, err := savings.DecodeEvent(chainIDValue, log)
			if err != nil {
				r.logger.Warn("skip undecodable log",
					zap.Error(err),
					zap.Uint64("block_number", log.BlockNumber),
					zap.String("tx_hash", log.TxHash.Hex()),
					zap.Uint("log_index", log.Index),
				)
				continue
			}

			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			event.Timestamp = ts
			event.IngestedAt = ingestedAt
			events = append(events, event)
		}

		if err := r.storage.PutEventBatch(ctx, events); err != nil {
			return fmt.Errorf("store events: %w", err)
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete", zap.Int("events", len(events)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	addresses := []common.Address{r.cfg.Contract}
	err := r.retry.do(ctx, "filter_logs", func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, addresses, topics)
		return err
	}, zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := r.retry.do(ctx, "block_timestamp", func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		return err
	}, zap.Uint64("block_number", blockNumber))
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
