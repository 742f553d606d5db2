package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"thalerSavings/internal/config"
	"thalerSavings/internal/indexer"
	"thalerSavings/internal/model"
	"thalerSavings/internal/savings"
	"thalerSavings/internal/storage"
	"thalerSavings/internal/storage/postgres"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index savings contract events",
		Args:  cobra.NoArgs,
		RunE:  runIndex,
	}
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	cmd.Flags().String("out", "./data/events.jsonl", "output JSONL path (ignored with --pg-dsn)")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path (ignored with --pg-dsn)")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; stores events and checkpoint in the database")
	cmd.Flags().String("state-name", "savings-indexer", "checkpoint name in the database")
	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIndex(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		sink       storage.Storage
		checkpoint indexer.CheckpointStore
	)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		sink = store
		if cfg.CheckpointEnabled {
			checkpoint = &indexer.DBCheckpoint{Backend: store, Name: cfg.StateName}
		}
	} else {
		sink = storage.NewJsonlStorage(cfg.Out)
		if cfg.CheckpointEnabled {
			checkpoint = indexer.NewFileCheckpoint(cfg.Checkpoint)
		}
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		Contract:     common.HexToAddress(cfg.Contract),
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, a.chain, sink, checkpoint, a.logger)

	a.logger.Info("indexer start",
		zap.String("rpc", redactURL(cfg.RPCURL)),
		zap.String("contract", cfg.Contract),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	return runner.Run(ctx)
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Derive the current state of indexed pools and store or print it",
		Args:  cobra.NoArgs,
		RunE:  runSnapshot,
	}
	cmd.Flags().StringSlice("pools", nil, "pool ids (comma-separated)")
	cmd.Flags().String("in", "", "events JSONL to take pool ids from")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; takes pool ids from and writes snapshots to the database")
	cmd.Flags().String("at", "", "evaluate at this instant (unix seconds or RFC3339)")
	return cmd
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	at, err := config.ParseTimestamp(cfg.At)
	if err != nil {
		return fmt.Errorf("invalid --at: %w", err)
	}
	if !at.IsZero() {
		a.service.EvaluateAt(at)
	}

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	chainID, err := a.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	ids := cfg.Pools
	switch {
	case len(ids) > 0:
	case cfg.In != "":
		events, err := storage.ReadEvents(cfg.In)
		if err != nil {
			return err
		}
		ids = storage.DistinctPoolIDs(events)
	case store != nil:
		if ids, err = store.PoolIDs(ctx, chainID.Uint64()); err != nil {
			return fmt.Errorf("load pool ids: %w", err)
		}
	default:
		return fmt.Errorf("one of --pools, --in or --pg-dsn is required")
	}

	views := make([]model.PoolView, 0, len(ids))
	for _, raw := range ids {
		id, err := savings.ParsePoolID(raw)
		if err != nil {
			return err
		}
		view, err := a.service.PoolView(ctx, id)
		if err != nil {
			if errors.Is(err, savings.ErrPoolNotFound) {
				a.logger.Debug("skip withdrawn pool", zap.String("pool", raw))
				continue
			}
			return err
		}
		views = append(views, view)
	}
	views = withPrices(ctx, a, views)

	if store == nil {
		return printJSON(views)
	}
	if err := store.UpsertPoolSnapshots(ctx, chainID.Uint64(), views); err != nil {
		return fmt.Errorf("store snapshots: %w", err)
	}
	a.logger.Info("snapshot complete", zap.Int("pools", len(views)), zap.Int("skipped", len(ids)-len(views)))
	return nil
}
