package store

import (
	"bytes"
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"rulebook-classifier/internal/common/errors"
	"rulebook-classifier/internal/loader"
	"rulebook-classifier/internal/rulebook"
)

const (
	migrateQuery = `CREATE TABLE IF NOT EXISTS rulebooks (
	organization TEXT PRIMARY KEY,
	document     JSONB NOT NULL,
	version      INTEGER NOT NULL DEFAULT 1,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	selectRulebookQuery = `SELECT document FROM rulebooks WHERE organization = $1`

	upsertRulebookQuery = `INSERT INTO rulebooks (organization, document)
VALUES ($1, $2)
ON CONFLICT (organization) DO UPDATE
SET document = EXCLUDED.document, version = rulebooks.version + 1, updated_at = now()
RETURNING version`

	listOrganizationsQuery = `SELECT organization FROM rulebooks ORDER BY organization`

	deleteRulebookQuery = `DELETE FROM rulebooks WHERE organization = $1`
)

// PostgresStore keeps one JSON rulebook document per organization.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migrateQuery); err != nil {
		return errors.NewQueryExecutionFailedError("migrate rulebooks", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, organization string) (*rulebook.Rulebook, error) {
	var document []byte
	err := s.db.QueryRowContext(ctx, selectRulebookQuery, organization).Scan(&document)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, organization)
	}
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewQueryTimeoutError("select rulebook")
		}
		return nil, errors.NewQueryExecutionFailedError("select rulebook", err)
	}

	return loader.DecodeRulebook(bytes.NewReader(document), loader.FormatJSON, "postgres:"+organization)
}

// Put stores rb under its organization and returns the new version number.
func (s *PostgresStore) Put(ctx context.Context, rb *rulebook.Rulebook) (int, error) {
	document, err := loader.Marshal(loader.FormatJSON, rb)
	if err != nil {
		return 0, errors.NewInternalError(err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, upsertRulebookQuery, rb.Organization(), document).Scan(&version); err != nil {
		return 0, errors.NewQueryExecutionFailedError("upsert rulebook", err)
	}
	return version, nil
}

func (s *PostgresStore) Organizations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, listOrganizationsQuery)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list organizations", err)
	}
	defer rows.Close()

	var orgs []string
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list organizations", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list organizations", err)
	}
	return orgs, nil
}

// Delete removes an organization's rulebook. Deleting a missing one is not an error.
func (s *PostgresStore) Delete(ctx context.Context, organization string) error {
	if _, err := s.db.ExecContext(ctx, deleteRulebookQuery, organization); err != nil {
		return errors.NewQueryExecutionFailedError("delete rulebook", err)
	}
	return nil
}
