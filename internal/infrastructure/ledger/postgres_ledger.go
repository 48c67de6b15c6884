package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/trade-compliance/internal/domain/snapshot"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresLedger stores snapshots in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE snapshots (
//	    id            UUID PRIMARY KEY,
//	    entity_type   TEXT NOT NULL,
//	    entity_id     TEXT NOT NULL,
//	    kind          TEXT NOT NULL,
//	    bucket        TEXT NOT NULL,
//	    key           TEXT NOT NULL,
//	    version       TEXT NOT NULL,
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    processed_at  TIMESTAMPTZ
//	);
//	CREATE INDEX snapshots_entity_idx ON snapshots (entity_type, entity_id, kind, created_at);
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Append(ctx context.Context, entityType, entityID string, kind snapshot.Kind, ptr snapshot.Pointer) (*snapshot.Snapshot, error) {
	snap := snapshot.Snapshot{
		ID:         uuid.New().String(),
		EntityType: entityType,
		EntityID:   entityID,
		Kind:       kind,
		Pointer:    ptr,
		CreatedAt:  time.Now(),
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, entity_type, entity_id, kind, bucket, key, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snap.ID,
		snap.EntityType,
		snap.EntityID,
		string(snap.Kind),
		snap.Pointer.Bucket,
		snap.Pointer.Key,
		snap.Pointer.Version,
		snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (l *PostgresLedger) Unprocessed(ctx context.Context, entityType, entityID string, kind snapshot.Kind) ([]snapshot.Snapshot, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, kind, bucket, key, version, created_at, processed_at
		 FROM snapshots
		 WHERE entity_type = $1 AND entity_id = $2 AND kind = $3 AND processed_at IS NULL
		 ORDER BY created_at ASC`,
		entityType, entityID, string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []snapshot.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (l *PostgresLedger) LastProcessed(ctx context.Context, entityType, entityID string, kind snapshot.Kind) (*snapshot.Snapshot, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, kind, bucket, key, version, created_at, processed_at
		 FROM snapshots
		 WHERE entity_type = $1 AND entity_id = $2 AND kind = $3 AND processed_at IS NOT NULL
		 ORDER BY processed_at DESC, created_at DESC
		 LIMIT 1`,
		entityType, entityID, string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	snap, err := scanSnapshot(rows)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (l *PostgresLedger) MarkProcessed(ctx context.Context, snaps []snapshot.Snapshot, at time.Time) error {
	if len(snaps) == 0 {
		return nil
	}
	ids := make([]string, len(snaps))
	for i, s := range snaps {
		ids[i] = s.ID
	}

	// Already-processed rows keep their original marker (idempotent bulk set).
	_, err := l.db.ExecContext(ctx,
		`UPDATE snapshots SET processed_at = $1
		 WHERE id = ANY($2) AND processed_at IS NULL`,
		at, pq.Array(ids),
	)
	return err
}

func scanSnapshot(rows *sql.Rows) (snapshot.Snapshot, error) {
	var (
		snap        snapshot.Snapshot
		kind        string
		processedAt sql.NullTime
	)
	err := rows.Scan(
		&snap.ID,
		&snap.EntityType,
		&snap.EntityID,
		&kind,
		&snap.Pointer.Bucket,
		&snap.Pointer.Key,
		&snap.Pointer.Version,
		&snap.CreatedAt,
		&processedAt,
	)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	snap.Kind = snapshot.Kind(kind)
	if processedAt.Valid {
		t := processedAt.Time
		snap.ProcessedAt = &t
	}
	return snap, nil
}

// ConnectPostgres establishes a connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
