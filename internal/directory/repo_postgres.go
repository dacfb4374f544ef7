package directory

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo reads the extensions table (pgx stdlib driver). Schema:
//
//	CREATE TABLE extensions (
//	    account_code text NOT NULL,
//	    extension    text NOT NULL,
//	    display_name text NOT NULL,
//	    PRIMARY KEY (account_code, extension)
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const displayNameSQL = `
SELECT display_name FROM extensions
WHERE account_code = $1 AND extension = $2`

func (r *PostgresRepo) DisplayName(ctx context.Context, accountCode, extension string) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, displayNameSQL, accountCode, extension).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}
