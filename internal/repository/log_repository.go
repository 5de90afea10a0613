package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
)

// LogRepository implements LogRepo for SQLite.
//
// Every query is issued against the quoted "Logs" identifier first and
// retried against the unquoted spelling, because stores migrated from the
// legacy deployment carry the table under either name.
type LogRepository struct {
	db *observability.TraceDB
}

// NewLogRepository creates a new LogRepository
func NewLogRepository(db *observability.TraceDB) *LogRepository {
	return &LogRepository{db: db}
}

func unquoteLogs(query string) string {
	return strings.ReplaceAll(query, `"Logs"`, `Logs`)
}

func (r *LogRepository) Insert(ctx context.Context, entry *models.LogEntry) error {
	// OR IGNORE makes a retried insert after a lost acknowledgment a no-op
	// keyed on client_ref.
	query := `INSERT OR IGNORE INTO "Logs" (client_ref, date_logged, image, detected_disease, email, confidence)
			  VALUES (?, ?, ?, ?, ?, ?)`

	args := []interface{}{entry.ClientRef, entry.DateLogged, entry.Image, entry.DetectedDisease, entry.Email, entry.Confidence}

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		_, err = r.db.ExecContext(ctx, unquoteLogs(query), args...)
	}
	return err
}

func (r *LogRepository) GetByEmail(ctx context.Context, email string) ([]*models.LogEntry, error) {
	query := `SELECT id, client_ref, date_logged, image, detected_disease, email, confidence
			  FROM "Logs" WHERE email = ? ORDER BY date_logged DESC`

	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		rows, err = r.db.QueryContext(ctx, unquoteLogs(query), email)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLogRows(rows)
}

func (r *LogRepository) GetByID(ctx context.Context, id int64, email string) (*models.LogEntry, error) {
	query := `SELECT id, client_ref, date_logged, image, detected_disease, email, confidence
			  FROM "Logs" WHERE id = ? AND email = ?`

	entry, err := scanLogRow(r.db.QueryRowContext(ctx, query, id, email))
	if err != nil && err != sql.ErrNoRows {
		entry, err = scanLogRow(r.db.QueryRowContext(ctx, unquoteLogs(query), id, email))
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

func (r *LogRepository) Delete(ctx context.Context, id int64, email string) (bool, error) {
	query := `DELETE FROM "Logs" WHERE id = ? AND email = ?`

	result, err := r.db.ExecContext(ctx, query, id, email)
	if err != nil {
		result, err = r.db.ExecContext(ctx, unquoteLogs(query), id, email)
	}
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	return affected > 0, err
}

func (r *LogRepository) DeleteMany(ctx context.Context, ids []int64, email string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, email)

	query := fmt.Sprintf(`DELETE FROM "Logs" WHERE id IN (%s) AND email = ?`, strings.Join(placeholders, ","))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		result, err = r.db.ExecContext(ctx, unquoteLogs(query), args...)
	}
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	return int(affected), err
}

func (r *LogRepository) GetCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "Logs"`).Scan(&count)
	if err != nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Logs`).Scan(&count)
	}
	return count, err
}

func scanLogRows(rows *sql.Rows) ([]*models.LogEntry, error) {
	var entries []*models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		if err := rows.Scan(&entry.ID, &entry.ClientRef, &entry.DateLogged, &entry.Image,
			&entry.DetectedDisease, &entry.Email, &entry.Confidence); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func scanLogRow(row *sql.Row) (*models.LogEntry, error) {
	var entry models.LogEntry
	err := row.Scan(&entry.ID, &entry.ClientRef, &entry.DateLogged, &entry.Image,
		&entry.DetectedDisease, &entry.Email, &entry.Confidence)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
