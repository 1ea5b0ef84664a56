// Package pgstore provides a PostgreSQL implementation of diagnosis.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/verdict/internal/diagnosis"
)

var tracer = otel.Tracer("github.com/linnemanlabs/verdict/internal/diagnosis/pgstore")

//go:embed schema.sql
var schema string

// Store persists diagnosis records in PostgreSQL. Outcome and consensus
// payloads are stored as JSONB, matching their API representation.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const diagnosisColumns = `id, fingerprint, mode, title, outcome, consensus, created_at`

// Get retrieves a diagnosis record by ID.
func (s *Store) Get(ctx context.Context, id string) (*diagnosis.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + diagnosisColumns + ` FROM diagnoses WHERE id = $1`
	r, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// GetByFingerprint retrieves the most recent diagnosis for a fingerprint.
func (s *Store) GetByFingerprint(ctx context.Context, fingerprint string) (*diagnosis.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByFingerprint", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + diagnosisColumns + ` FROM diagnoses WHERE fingerprint = $1 ORDER BY created_at DESC LIMIT 1`
	r, err := scanRecord(s.pool.QueryRow(ctx, query, fingerprint))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// Put inserts or updates a diagnosis record.
func (s *Store) Put(ctx context.Context, r *diagnosis.Record) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	outcomeJSON, err := marshalNullable(r.Outcome)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal outcome: %w", err)
	}
	consensusJSON, err := marshalNullable(r.Consensus)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal consensus: %w", err)
	}

	query := `INSERT INTO diagnoses (` + diagnosisColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (id) DO UPDATE SET
		fingerprint = EXCLUDED.fingerprint,
		mode        = EXCLUDED.mode,
		title       = EXCLUDED.title,
		outcome     = EXCLUDED.outcome,
		consensus   = EXCLUDED.consensus`

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.Fingerprint, string(r.Mode), r.Title, outcomeJSON, consensusJSON, r.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert diagnosis: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*diagnosis.Record, error) {
	var (
		r             diagnosis.Record
		mode          string
		outcomeJSON   []byte
		consensusJSON []byte
	)
	err := row.Scan(&r.ID, &r.Fingerprint, &mode, &r.Title, &outcomeJSON, &consensusJSON, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan diagnosis: %w", err)
	}
	r.Mode = diagnosis.Mode(mode)
	if len(outcomeJSON) > 0 {
		if err := json.Unmarshal(outcomeJSON, &r.Outcome); err != nil {
			return nil, fmt.Errorf("unmarshal outcome: %w", err)
		}
	}
	if len(consensusJSON) > 0 {
		if err := json.Unmarshal(consensusJSON, &r.Consensus); err != nil {
			return nil, fmt.Errorf("unmarshal consensus: %w", err)
		}
	}
	return &r, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case *diagnosis.Outcome:
		if t == nil {
			return nil, nil
		}
	case *diagnosis.ConsensusVerdict:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
