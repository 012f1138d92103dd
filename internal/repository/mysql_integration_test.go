package repository

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/eventhub/internal/database"
	"github.com/iliyamo/eventhub/internal/model"
)

// startMySQL runs a throwaway MySQL container, applies the migrations and
// returns a pool connected to it.
func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("-short set; skipping MySQL integration test")
	}
	if os.Getenv("SKIP_DOCKER") == "1" {
		t.Skip("SKIP_DOCKER=1 set; skipping MySQL integration test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
	pool.MaxWait = 2 * time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=test",
			"MYSQL_DATABASE=eventhub_test",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	port := resource.GetPort("3306/tcp")
	var db *sql.DB
	err = pool.Retry(func() error {
		// fails until mysqld accepts connections
		if err := database.Migrate(database.DSN("root", "test", "localhost", port, "eventhub_test")); err != nil {
			return err
		}
		var err error
		db, err = database.Open("root", "test", "localhost", port, "eventhub_test")
		return err
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMySQLStores(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()
	users := NewUserRepo(db)
	tokens := NewTokenRepo(db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("users", func(t *testing.T) {
		hash := "h"
		u := model.User{Email: "IT@Example.com", PasswordHash: &hash, Role: model.RoleUser,
			Provider: model.ProviderManual, Status: model.StatusActive, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, users.Save(ctx, &u))
		require.NotEmpty(t, u.ID)

		got, err := users.FindByEmail(ctx, "it@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, model.ProviderManual, got.Provider)
		assert.True(t, now.Equal(got.CreatedAt))

		dup := model.User{Email: "it@example.com", Role: model.RoleUser, Provider: model.ProviderGoogle,
			Status: model.StatusActive, CreatedAt: now, UpdatedAt: now}
		assert.ErrorIs(t, users.Save(ctx, &dup), ErrEmailExists)

		// unchanged rows still count as found
		require.NoError(t, users.Save(ctx, &got))

		later := now.Add(time.Minute)
		require.NoError(t, users.TouchLogin(ctx, u.ID, later))
		got, err = users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		got.Status = model.StatusDisabled
		require.NoError(t, users.Save(ctx, &got))
		assert.ErrorIs(t, users.TouchLogin(ctx, u.ID, later.Add(time.Minute)), ErrNotFound)
		stored, err := users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusDisabled, stored.Status)
		require.NotNil(t, stored.LastLoginAt)
		assert.True(t, later.Equal(*stored.LastLoginAt))

		ghost := model.User{ID: "00000000-0000-0000-0000-000000000000", Email: "ghost@x.com",
			Role: model.RoleUser, Provider: model.ProviderManual, Status: model.StatusActive}
		assert.ErrorIs(t, users.Save(ctx, &ghost), ErrNotFound)

		all, err := users.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		require.NoError(t, users.DeleteByID(ctx, u.ID))
		_, err = users.FindByID(ctx, u.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, users.DeleteByID(ctx, u.ID), ErrNotFound)
	})

	t.Run("ledger", func(t *testing.T) {
		rec := func(id, hash, family string) *model.RefreshToken {
			return &model.RefreshToken{ID: id, UserID: "u1", TokenHash: hash, FamilyID: family,
				DeviceID: "d1", DeviceName: "Pixel", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
		}
		parent := rec("11111111-1111-1111-1111-111111111111", "hash-parent", "f1")
		sibling := rec("22222222-2222-2222-2222-222222222222", "hash-sibling", "f1")
		other := rec("33333333-3333-3333-3333-333333333333", "hash-other", "f2")
		for _, r := range []*model.RefreshToken{parent, sibling, other} {
			require.NoError(t, tokens.Save(ctx, r))
		}

		got, err := tokens.FindByTokenHash(ctx, "hash-parent")
		require.NoError(t, err)
		assert.Equal(t, model.TokenActive, got.State(now))
		_, err = tokens.FindByTokenHash(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)

		const racers = 16
		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			mu    sync.Mutex
			wins  int
		)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				won, err := tokens.Rotate(ctx, parent.ID, now, sibling.ID)
				assert.NoError(t, err)
				if won {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		close(start)
		wg.Wait()
		assert.Equal(t, 1, wins)

		got, err = tokens.FindByID(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TokenRotated, got.State(now))

		later := now.Add(time.Minute)
		n, err := tokens.RevokeByFamilyID(ctx, "f1", later)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err = tokens.FindByID(ctx, parent.ID)
		require.NoError(t, err)
		assert.True(t, now.Equal(*got.RevokedAt), "revocation time must not be overwritten")

		n, err = tokens.RevokeByUserID(ctx, "u1", later)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = tokens.RevokeByID(ctx, other.ID, later)
		require.NoError(t, err)
		assert.Zero(t, n)

		list, err := tokens.ListByUserID(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})
}
