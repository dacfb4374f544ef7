package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists command events through database/sql (pgx stdlib
// driver). Schema:
//
//	CREATE TABLE call_commands (
//	    id            uuid PRIMARY KEY,
//	    account_code  text NOT NULL,
//	    type          text NOT NULL,
//	    actor_user_id text NOT NULL DEFAULT '',
//	    actor_role    text NOT NULL DEFAULT '',
//	    channel       text NOT NULL,
//	    destination   text NOT NULL DEFAULT '',
//	    outcome       text NOT NULL,
//	    message       text NOT NULL DEFAULT '',
//	    created_at    timestamptz NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const insertEventSQL = `
INSERT INTO call_commands
    (id, account_code, type, actor_user_id, actor_role, channel, destination, outcome, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.ID,
		e.AccountCode,
		string(e.Type),
		e.ActorUserID,
		e.ActorRole,
		e.Channel,
		e.Destination,
		string(e.Outcome),
		e.Message,
		e.CreatedAt,
	)
	return err
}

const recentEventsSQL = `
SELECT id, account_code, type, actor_user_id, actor_role, channel, destination, outcome, message, created_at
FROM call_commands
WHERE account_code = $1
ORDER BY created_at DESC
LIMIT $2`

// Recent returns the newest command events for one account.
func (r *PostgresRepo) Recent(ctx context.Context, accountCode string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, recentEventsSQL, accountCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID, &e.AccountCode, &e.Type, &e.ActorUserID, &e.ActorRole,
			&e.Channel, &e.Destination, &e.Outcome, &e.Message, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
