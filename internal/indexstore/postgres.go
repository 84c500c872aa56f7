package indexstore

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"github.com/sh3r4rd/object_index/internal/model"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS object_index (
		filename      TEXT PRIMARY KEY,
		size          BIGINT NOT NULL,
		created       BIGINT NOT NULL,
		last_modified BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS object_index_last_modified_idx ON object_index (last_modified);
`

// NewPostgresStore returns a store on db. Call EnsureSchema before first use.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// PostgresStore keeps index records in the object_index table.
type PostgresStore struct {
	db *sql.DB
}

// EnsureSchema creates the object_index table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) Lookup(ctx context.Context, filename string) (model.IndexRecord, bool, error) {
	if filename == "" {
		return model.IndexRecord{}, false, ErrEmptyKey
	}

	var rec model.IndexRecord
	err := s.db.QueryRowContext(
		ctx,
		`
		SELECT filename, size, created, last_modified
		FROM object_index
		WHERE filename = $1;
		`,
		filename,
	).Scan(&rec.Filename, &rec.Size, &rec.Created, &rec.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return model.IndexRecord{}, false, nil
	}
	if err != nil {
		return model.IndexRecord{}, false, newTransportError(OpLookup, filename, err)
	}

	return rec, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec model.IndexRecord) error {
	if rec.Filename == "" {
		return ErrEmptyKey
	}

	_, err := s.db.ExecContext(
		ctx,
		`
		INSERT INTO object_index (
			filename,
			size,
			created,
			last_modified
		) VALUES (
			$1,
			$2,
			$3,
			$4
		)
		ON CONFLICT (filename) DO UPDATE SET
			size = EXCLUDED.size,
			created = EXCLUDED.created,
			last_modified = EXCLUDED.last_modified;
		`,
		rec.Filename,
		rec.Size,
		rec.Created,
		rec.LastModified,
	)
	if err != nil {
		return newTransportError(OpPut, rec.Filename, err)
	}

	return nil
}

func (s *PostgresStore) PutIf(ctx context.Context, rec model.IndexRecord, prev *model.IndexRecord) error {
	if rec.Filename == "" {
		return ErrEmptyKey
	}

	var (
		res sql.Result
		err error
	)
	if prev == nil {
		res, err = s.db.ExecContext(
			ctx,
			`
			INSERT INTO object_index (filename, size, created, last_modified)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (filename) DO NOTHING;
			`,
			rec.Filename,
			rec.Size,
			rec.Created,
			rec.LastModified,
		)
	} else {
		res, err = s.db.ExecContext(
			ctx,
			`
			UPDATE object_index SET
				size = $2,
				created = $3,
				last_modified = $4
			WHERE filename = $1 AND created = $5 AND last_modified = $6;
			`,
			rec.Filename,
			rec.Size,
			rec.Created,
			rec.LastModified,
			prev.Created,
			prev.LastModified,
		)
	}
	if err != nil {
		return newTransportError(OpPut, rec.Filename, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return newTransportError(OpPut, rec.Filename, err)
	}
	if n == 0 {
		return ErrConflict
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, filename string) error {
	if filename == "" {
		return ErrEmptyKey
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM object_index WHERE filename = $1;`, filename)
	if err != nil {
		return newTransportError(OpDelete, filename, err)
	}

	return nil
}
