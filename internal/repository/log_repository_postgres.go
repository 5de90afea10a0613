package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
)

// LogRepositoryPostgres implements LogRepo for PostgreSQL. Queries carry the
// same quoted-then-unquoted "Logs" retry as the SQLite variant.
type LogRepositoryPostgres struct {
	db *observability.TraceDB
}

// NewLogRepositoryPostgres creates a new LogRepositoryPostgres
func NewLogRepositoryPostgres(db *observability.TraceDB) *LogRepositoryPostgres {
	return &LogRepositoryPostgres{db: db}
}

func (r *LogRepositoryPostgres) Insert(ctx context.Context, entry *models.LogEntry) error {
	query := `INSERT INTO "Logs" (client_ref, date_logged, image, detected_disease, email, confidence)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (client_ref) DO NOTHING`

	args := []interface{}{entry.ClientRef, entry.DateLogged, entry.Image, entry.DetectedDisease, entry.Email, entry.Confidence}

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		_, err = r.db.ExecContext(ctx, unquoteLogs(query), args...)
	}
	return err
}

func (r *LogRepositoryPostgres) GetByEmail(ctx context.Context, email string) ([]*models.LogEntry, error) {
	query := `SELECT id, client_ref, date_logged, image, detected_disease, email, confidence
			  FROM "Logs" WHERE email = $1 ORDER BY date_logged DESC`

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

func (r *LogRepositoryPostgres) GetByID(ctx context.Context, id int64, email string) (*models.LogEntry, error) {
	query := `SELECT id, client_ref, date_logged, image, detected_disease, email, confidence
			  FROM "Logs" WHERE id = $1 AND email = $2`

	entry, err := scanLogRow(r.db.QueryRowContext(ctx, query, id, email))
	if err != nil && err != sql.ErrNoRows {
		entry, err = scanLogRow(r.db.QueryRowContext(ctx, unquoteLogs(query), id, email))
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

func (r *LogRepositoryPostgres) Delete(ctx context.Context, id int64, email string) (bool, error) {
	query := `DELETE FROM "Logs" WHERE id = $1 AND email = $2`

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

func (r *LogRepositoryPostgres) DeleteMany(ctx context.Context, ids []int64, email string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	args = append(args, email)

	query := fmt.Sprintf(`DELETE FROM "Logs" WHERE id IN (%s) AND email = $%d`,
		strings.Join(placeholders, ","), len(ids)+1)

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

func (r *LogRepositoryPostgres) GetCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "Logs"`).Scan(&count)
	if err != nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Logs`).Scan(&count)
	}
	return count, err
}
