package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/include-portal/users-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUserRepository implements UserRepository on a relational store
// (Postgres in production, SQLite for tests and local runs).
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a repository on db. The db should be opened
// with TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Migrate creates or updates the users table.
func (r *GormUserRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.User{})
}

func (r *GormUserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, alreadyExists()
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *GormUserRepository) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Where("keycloak_id = ? AND deleted = ?", sub, false).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpdateBySub locks the row (SELECT ... FOR UPDATE where supported) for the
// whole read-merge-validate-write sequence.
func (r *GormUserRepository) UpdateBySub(ctx context.Context, sub string, mutate MutateFunc) (*models.User, error) {
	var out models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("keycloak_id = ? AND deleted = ?", sub, false).
			First(&out).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		if err := mutate(&out); err != nil {
			return err
		}
		if err := tx.Save(&out).Error; err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *GormUserRepository) DeleteBySub(ctx context.Context, sub string, soft bool, at time.Time) error {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("keycloak_id = ? AND deleted = ?", sub, false)
	var res *gorm.DB
	if soft {
		// UpdateColumns skips the BeforeSave hook, which would validate the empty model.
		res = q.UpdateColumns(map[string]interface{}{"deleted": true, "updated_date": at})
	} else {
		res = q.Delete(&models.User{})
	}
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormUserRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
