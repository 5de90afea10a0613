package repository

import (
	"context"

	"github.com/shroomify/server/internal/models"
)

// LogRepo defines the interface for remote scan log persistence
type LogRepo interface {
	Insert(ctx context.Context, entry *models.LogEntry) error
	GetByEmail(ctx context.Context, email string) ([]*models.LogEntry, error)
	GetByID(ctx context.Context, id int64, email string) (*models.LogEntry, error)
	Delete(ctx context.Context, id int64, email string) (bool, error)
	DeleteMany(ctx context.Context, ids []int64, email string) (int, error)
	GetCount(ctx context.Context) (int, error)
}

// UserRepo defines the interface for remote user persistence
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Add(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}
