package reaction

import (
	"context"
	"database/sql"
)

// PostgresDependentFinder reads the entity relationship table.
//
// Schema:
//
//	CREATE TABLE entity_links (
//	    source_type    TEXT NOT NULL,
//	    source_id      TEXT NOT NULL,
//	    dependent_type TEXT NOT NULL,
//	    dependent_id   TEXT NOT NULL,
//	    PRIMARY KEY (source_type, source_id, dependent_type, dependent_id)
//	);
type PostgresDependentFinder struct {
	db *sql.DB
}

func NewPostgresDependentFinder(db *sql.DB) *PostgresDependentFinder {
	return &PostgresDependentFinder{db: db}
}

func (f *PostgresDependentFinder) FindDependents(ctx context.Context, entityType, entityID string, offset, limit int) ([]EntityRef, error) {
	rows, err := f.db.QueryContext(ctx,
		`SELECT dependent_type, dependent_id
		 FROM entity_links
		 WHERE source_type = $1 AND source_id = $2
		 ORDER BY dependent_type, dependent_id
		 LIMIT $3 OFFSET $4`,
		entityType, entityID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []EntityRef
	for rows.Next() {
		var ref EntityRef
		if err := rows.Scan(&ref.Type, &ref.ID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
