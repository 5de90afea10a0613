package repository

import (
	"context"
	"database/sql"

	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
)

// UserRepositoryPostgres implements UserRepo for PostgreSQL
type UserRepositoryPostgres struct {
	db *observability.TraceDB
}

// NewUserRepositoryPostgres creates a new UserRepositoryPostgres
func NewUserRepositoryPostgres(db *observability.TraceDB) *UserRepositoryPostgres {
	return &UserRepositoryPostgres{db: db}
}

func (r *UserRepositoryPostgres) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT email, password, full_name, created_at, phone_number, favorite, experience_level
			  FROM users WHERE email = $1`

	var user models.User
	var password sql.NullString
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.Email, &password, &user.FullName, &user.JoinedAt,
		&user.PhoneNumber, &user.Favorite, &user.ExperienceLevel,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if password.Valid {
		user.PasswordHash = password.String
	}
	return &user, nil
}

func (r *UserRepositoryPostgres) Add(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (email, password, full_name, created_at, phone_number, favorite, experience_level)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		user.Email, nullablePassword(user), user.FullName, user.JoinedAt,
		user.PhoneNumber, user.Favorite, user.ExperienceLevel,
	)
	return err
}

func (r *UserRepositoryPostgres) Update(ctx context.Context, user *models.User) error {
	query := `UPDATE users
			  SET password = $1, full_name = $2, phone_number = $3, favorite = $4, experience_level = $5
			  WHERE email = $6`

	result, err := r.db.ExecContext(ctx, query,
		nullablePassword(user), user.FullName,
		user.PhoneNumber, user.Favorite, user.ExperienceLevel,
		user.Email,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
