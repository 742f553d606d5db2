package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thalerSavings/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pool_events (
	chain_id          BIGINT      NOT NULL,
	block_number      BIGINT      NOT NULL,
	block_hash        TEXT        NOT NULL,
	tx_hash           TEXT        NOT NULL,
	log_index         BIGINT      NOT NULL,
	contract          TEXT        NOT NULL,
	event_name        TEXT        NOT NULL,
	pool_id           TEXT        NOT NULL,
	user_address      TEXT        NOT NULL,
	token_to_save     TEXT,
	amount            NUMERIC(78, 0),
	total_saved       NUMERIC(78, 0),
	end_date_ms       BIGINT,
	next_deposit_ms   BIGINT,
	block_ts          BIGINT      NOT NULL,
	ingested_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, tx_hash, log_index)
);
CREATE INDEX IF NOT EXISTS pool_events_pool_idx ON pool_events (pool_id, block_number);

CREATE TABLE IF NOT EXISTS pool_snapshots (
	chain_id           BIGINT         NOT NULL,
	pool_id            TEXT           NOT NULL,
	user_address       TEXT           NOT NULL,
	token_to_save      TEXT           NOT NULL,
	token_symbol       TEXT           NOT NULL,
	amount_to_save     NUMERIC(78, 0) NOT NULL,
	total_saved        NUMERIC(78, 0) NOT NULL,
	start_date_ms      BIGINT         NOT NULL,
	end_date_ms        BIGINT         NOT NULL,
	progress           INTEGER        NOT NULL,
	elapsed_percent    DOUBLE PRECISION NOT NULL,
	withdrawal_path    TEXT           NOT NULL,
	can_withdraw       BOOLEAN        NOT NULL,
	min_donation_pct   TEXT,
	min_donation_amt   TEXT,
	created_at         TIMESTAMPTZ    NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ    NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_id)
);

CREATE TABLE IF NOT EXISTS indexer_state (
	name              TEXT        PRIMARY KEY,
	last_processed    BIGINT      NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for savings events and pool snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables used by the store.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// PutEventBatch lets the store act as an indexer sink.
func (s *Store) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	return s.InsertPoolEvents(ctx, events)
}

// InsertPoolEvents inserts events, ignoring ones already stored.
func (s *Store) InsertPoolEvents(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO pool_events (
				chain_id, block_number, block_hash, tx_hash, log_index, contract, event_name,
				pool_id, user_address, token_to_save, amount, total_saved, end_date_ms,
				next_deposit_ms, block_ts, ingested_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(e.ChainID),
			int64(e.BlockNumber),
			e.BlockHash,
			e.TxHash,
			int64(e.LogIndex),
			e.Contract,
			e.EventName,
			e.PoolID,
			e.User,
			nullString(e.TokenToSave),
			nullString(e.Amount),
			nullString(e.TotalSaved),
			nullInt(e.EndDate),
			nullInt(e.NextDepositDate),
			int64(e.Timestamp),
			e.IngestedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPoolSnapshots inserts or updates the derived state of pools.
func (s *Store) UpsertPoolSnapshots(ctx context.Context, chainID uint64, views []model.PoolView) error {
	if len(views) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, v := range views {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				chain_id, pool_id, user_address, token_to_save, token_symbol, amount_to_save,
				total_saved, start_date_ms, end_date_ms, progress, elapsed_percent,
				withdrawal_path, can_withdraw, min_donation_pct, min_donation_amt, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now(),now())
			ON CONFLICT (chain_id, pool_id)
			DO UPDATE SET
				total_saved = EXCLUDED.total_saved,
				progress = EXCLUDED.progress,
				elapsed_percent = EXCLUDED.elapsed_percent,
				withdrawal_path = EXCLUDED.withdrawal_path,
				can_withdraw = EXCLUDED.can_withdraw,
				min_donation_pct = EXCLUDED.min_donation_pct,
				min_donation_amt = EXCLUDED.min_donation_amt,
				updated_at = now()
		`,
			int64(chainID),
			v.Pool.ID,
			v.Pool.User,
			v.Pool.TokenToSave,
			v.Pool.TokenSymbol,
			v.Pool.AmountToSave,
			v.Pool.TotalSaved,
			v.Pool.StartDate,
			v.Pool.EndDate,
			v.Progress,
			v.ElapsedPercent,
			string(v.Path),
			v.CanWithdraw,
			nullString(v.MinDonationPercent),
			nullString(v.MinDonationAmount),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range views {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PoolIDs returns the distinct pool ids seen in stored events.
func (s *Store) PoolIDs(ctx context.Context, chainID uint64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT pool_id FROM pool_events WHERE chain_id=$1 ORDER BY pool_id`, int64(chainID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// LoadState returns the stored value for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var value int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(value), true, nil
}

// SaveState upserts the value for a name.
func (s *Store) SaveState(ctx context.Context, name string, value uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, name, int64(value))
	return err
}

func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullInt(value int64) *int64 {
	if value == 0 {
		return nil
	}
	return &value
}
