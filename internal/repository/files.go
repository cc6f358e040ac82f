package repository

import (
	"context"
	"database/sql"
)

// orphanedFilesTx collects the non-empty stored-file names selected by query,
// for rows the surrounding transaction is about to delete. The caller hands
// the names to the file store after commit; removal stays best-effort, but the
// rows never outlive their files unannounced.
func orphanedFilesTx(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f sql.NullString
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		if f.Valid && f.String != "" {
			out = append(out, f.String)
		}
	}
	return out, rows.Err()
}
