package repository

import (
	"context"
	"database/sql"

	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
)

// UserRepository implements UserRepo for SQLite
type UserRepository struct {
	db *observability.TraceDB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *observability.TraceDB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT email, password, full_name, created_at, phone_number, favorite, experience_level
			  FROM users WHERE email = ?`

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
	// Accounts created through the OAuth provider carry a null password.
	if password.Valid {
		user.PasswordHash = password.String
	}
	return &user, nil
}

func (r *UserRepository) Add(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (email, password, full_name, created_at, phone_number, favorite, experience_level)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.Email, nullablePassword(user), user.FullName, user.JoinedAt,
		user.PhoneNumber, user.Favorite, user.ExperienceLevel,
	)
	return err
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `UPDATE users
			  SET password = ?, full_name = ?, phone_number = ?, favorite = ?, experience_level = ?
			  WHERE email = ?`

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

func nullablePassword(user *models.User) sql.NullString {
	if user.HasPassword() {
		return sql.NullString{String: user.PasswordHash, Valid: true}
	}
	return sql.NullString{}
}
