package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// Insert writes e unless a row with the same event id exists. inserted reports which happened.
func (r *Repo) Insert(ctx context.Context, e Entry) (inserted bool, err error) {
	meta := e.Metadata
	if len(meta) == 0 {
		meta = []byte("{}")
	}
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO audit_log(event_id, action, level, resource_id, user_id, metadata, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, string(e.Action), string(e.Level), e.ResourceID, e.UserID, string(meta), e.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("insert audit entry: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
