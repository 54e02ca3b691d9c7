package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"extrinsicScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS extrinsic_outcomes (
	tx_hash TEXT PRIMARY KEY,
	block_hash TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	extrinsic_index INTEGER NOT NULL,
	status TEXT NOT NULL,
	ref_time BIGINT NOT NULL,
	proof_size BIGINT NOT NULL,
	dispatch_class TEXT,
	pallet TEXT,
	error TEXT,
	description TEXT[],
	dispatch_error TEXT,
	metadata_version INTEGER NOT NULL,
	resolved_at TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store persists resolved outcomes in Postgres.
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

// EnsureSchema creates the outcome table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutOutcomeBatch inserts or updates outcomes keyed by tx hash.
func (s *Store) PutOutcomeBatch(ctx context.Context, records []model.OutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertOutcome, outcomeArgs(r)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, r := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert outcome %s: %w", r.TxHash, err)
		}
	}
	return nil
}

const upsertOutcome = `
	INSERT INTO extrinsic_outcomes (
		tx_hash, block_hash, block_number, extrinsic_index, status, ref_time, proof_size,
		dispatch_class, pallet, error, description, dispatch_error, metadata_version, resolved_at,
		created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
	ON CONFLICT (tx_hash)
	DO UPDATE SET
		block_hash = EXCLUDED.block_hash,
		block_number = EXCLUDED.block_number,
		extrinsic_index = EXCLUDED.extrinsic_index,
		status = EXCLUDED.status,
		ref_time = EXCLUDED.ref_time,
		proof_size = EXCLUDED.proof_size,
		dispatch_class = EXCLUDED.dispatch_class,
		pallet = EXCLUDED.pallet,
		error = EXCLUDED.error,
		description = EXCLUDED.description,
		dispatch_error = EXCLUDED.dispatch_error,
		metadata_version = EXCLUDED.metadata_version,
		resolved_at = EXCLUDED.resolved_at,
		updated_at = now()
`

func outcomeArgs(r model.OutcomeRecord) []any {
	return []any{
		r.TxHash,
		r.BlockHash,
		int64(r.BlockNumber),
		int32(r.ExtrinsicIndex),
		r.Status,
		int64(r.RefTime),
		int64(r.ProofSize),
		nullable(r.DispatchClass),
		nullable(r.Pallet),
		nullable(r.Error),
		r.Description,
		nullable(r.DispatchError),
		int32(r.MetadataVersion),
		r.ResolvedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
