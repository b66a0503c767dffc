//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/gorm"

	"bookshelf/internal/db"
	"bookshelf/internal/model"
)

func startMySQL(t *testing.T) (UserRepository, *gorm.DB) {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx,
		"mysql:8.0.36",
		tcmysql.WithDatabase("app"),
		tcmysql.WithUsername("app"),
		tcmysql.WithPassword("app"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "charset=utf8mb4", "parseTime=true")
	require.NoError(t, err)

	gormDB, err := db.NewMySQL(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	return NewUserRepository(gormDB), gormDB
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestUserRepository_MySQL(t *testing.T) {
	repo, gormDB := startMySQL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	created, err := repo.Insert(ctx, &model.User{
		Email:        "A@X.com",
		PasswordHash: "$2a$10$hash",
		OTP:          strPtr("123456"),
		Role:         model.DefaultRole,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "a@x.com", created.Email)

	t.Run("find is case insensitive", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, " a@X.COM ")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.False(t, found.Verified)
		require.NotNil(t, found.OTP)
		assert.Equal(t, "123456", *found.OTP)
		assert.Nil(t, found.UpdatedAt)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := repo.Insert(ctx, &model.User{Email: "a@x.com", PasswordHash: "x", Role: model.DefaultRole})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("soft-deleted email can be registered again", func(t *testing.T) {
		gone, err := repo.Insert(ctx, &model.User{Email: "gone@x.com", PasswordHash: "x", Role: model.DefaultRole})
		require.NoError(t, err)
		require.NoError(t, gormDB.WithContext(ctx).Delete(&model.User{}, "id = ?", gone.ID).Error)

		_, err = repo.FindByEmail(ctx, "gone@x.com")
		assert.ErrorIs(t, err, ErrNotFound)

		again, err := repo.Insert(ctx, &model.User{Email: "gone@x.com", PasswordHash: "y", Role: model.DefaultRole})
		require.NoError(t, err)
		assert.NotEqual(t, gone.ID, again.ID)

		_, err = repo.Insert(ctx, &model.User{Email: "gone@x.com", PasswordHash: "z", Role: model.DefaultRole})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := repo.FindByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("regenerate with same value still matches", func(t *testing.T) {
		updated, err := repo.ConditionalUpdate(ctx, created.ID,
			UserCondition{Verified: boolPtr(false)},
			UserChanges{OTP: strPtr("123456")})
		require.NoError(t, err)
		assert.Equal(t, "123456", *updated.OTP)
	})

	t.Run("guard mismatch reports not found", func(t *testing.T) {
		_, err := repo.ConditionalUpdate(ctx, created.ID,
			UserCondition{OTP: strPtr("000000")},
			UserChanges{ClearOTP: true, Verified: boolPtr(true)})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repo.ConditionalUpdate(ctx, uuid.New(), UserCondition{}, UserChanges{Verified: boolPtr(true)})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent verification succeeds exactly once", func(t *testing.T) {
		var wg sync.WaitGroup
		results := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.ConditionalUpdate(ctx, created.ID,
					UserCondition{OTP: strPtr("123456")},
					UserChanges{ClearOTP: true, Verified: boolPtr(true)})
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrNotFound)
		}
		assert.Equal(t, 1, succeeded)

		found, err := repo.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.True(t, found.Verified)
		assert.Nil(t, found.OTP)
		assert.Nil(t, found.UpdatedAt)
	})
}
