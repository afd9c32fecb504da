package users

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/include-portal/users-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newSQLiteRepo(t *testing.T) *GormUserRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewGormUserRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func TestGormRepositoryCRUD(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Ping(ctx))

	u := models.NewUser(sub)
	first := "Ada"
	u.FirstName = &first
	u.Roles = []string{"researcher"}
	fr := models.LocaleFR
	u.Locale = &fr

	created, err := repo.Create(ctx, u)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := repo.GetBySub(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Ada", *got.FirstName)
	assert.Equal(t, []string{"researcher"}, []string(got.Roles))
	assert.Equal(t, models.LocaleFR, *got.Locale)
	assert.True(t, got.CreationDate.Equal(created.CreationDate))
	assert.JSONEq(t, `{}`, string(got.Config))

	_, err = repo.Create(ctx, models.NewUser(sub))
	require.ErrorIs(t, err, ErrAlreadyExists)

	updated, err := repo.UpdateBySub(ctx, sub, func(u *models.User) error {
		last := "Lovelace"
		u.LastName = &last
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", *updated.LastName)

	require.NoError(t, repo.DeleteBySub(ctx, sub, true, models.Now()))
	_, err = repo.GetBySub(ctx, sub)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.DeleteBySub(ctx, sub, true, models.Now()), ErrNotFound)
}

func TestGormRepositoryHardDelete(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, models.NewUser(sub))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteBySub(ctx, sub, false, models.Now()))
	_, err = repo.Create(ctx, models.NewUser(sub))
	require.NoError(t, err)
}

func TestGormRepositoryRejectsInvalidWrites(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	u := models.NewUser(sub)
	bad := "not-an-email"
	u.Email = &bad
	_, err := repo.Create(ctx, u)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = repo.GetBySub(ctx, sub)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGormRepositoryUpdateAbortKeepsRecord(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, models.NewUser(sub))
	require.NoError(t, err)

	_, err = repo.UpdateBySub(ctx, sub, func(u *models.User) error {
		name := "<bad>"
		u.FirstName = &name
		return u.Prepare()
	})
	require.Error(t, err)

	got, err := repo.GetBySub(ctx, sub)
	require.NoError(t, err)
	assert.Nil(t, got.FirstName)
}

func TestGormRepositoryConcurrentDisjointUpdates(t *testing.T) {
	repo := newSQLiteRepo(t)
	svc := NewService(repo)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, sub, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, doc := range []string{`{"first_name": "Ada"}`, `{"last_name": "Lovelace"}`} {
		a := attrs(t, doc)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateUser(ctx, sub, a)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.GetUser(ctx, sub)
	require.NoError(t, err)
	require.NotNil(t, got.FirstName)
	require.NotNil(t, got.LastName)
	assert.Equal(t, "Ada", *got.FirstName)
	assert.Equal(t, "Lovelace", *got.LastName)
}

func TestGormRepositorySoftDeleteStampsGivenTime(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, models.NewUser(sub))
	require.NoError(t, err)

	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.DeleteBySub(ctx, sub, true, at))

	var stored models.User
	require.NoError(t, repo.db.Where("keycloak_id = ?", sub).First(&stored).Error)
	assert.True(t, stored.Deleted)
	assert.True(t, stored.UpdatedDate.Equal(at))
}
