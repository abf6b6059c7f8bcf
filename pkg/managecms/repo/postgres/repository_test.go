package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-manage/pkg/managecms"
	"github.com/tendant/simple-manage/pkg/managecms/repo/postgres"
)

func setupRepository(t *testing.T) (*postgres.Repository, managecms.Scope) {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping postgres test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")

	repo := postgres.NewWithPool(pool)
	require.NoError(t, repo.Migrate(ctx))

	// A fresh space per test keeps runs independent
	return repo, managecms.Scope{Space: "test-" + uuid.NewString()}
}

func TestPostgresRepository_Entries(t *testing.T) {
	repo, scope := setupRepository(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &managecms.Entry{
		ID:               "entry42",
		ContentType:      "text",
		Version:          1,
		PublishedVersion: 1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	entry.SetValue(managecms.FieldTitle, "en", []byte(`"Hello"`))
	entry.SetValue(managecms.FieldButtons, "en", []byte(`[{"sys":{"type":"Link","linkType":"Entry","id":"b1"}}]`))

	require.NoError(t, repo.CreateEntry(ctx, scope, entry))
	assert.ErrorIs(t, repo.CreateEntry(ctx, scope, entry), managecms.ErrAlreadyExists)

	got, err := repo.GetEntry(ctx, scope, "entry42")
	require.NoError(t, err)
	assert.Equal(t, "text", got.ContentType)
	raw, ok := got.Value(managecms.FieldTitle, "en")
	require.True(t, ok)
	assert.JSONEq(t, `"Hello"`, string(raw))

	got.SetValue(managecms.FieldTitle, "es", []byte(`"Hola"`))
	got.Version = 2
	got.PublishedVersion = 2
	require.NoError(t, repo.UpdateEntry(ctx, scope, got, 1))
	assert.ErrorIs(t, repo.UpdateEntry(ctx, scope, got, 1), managecms.ErrVersionConflict)

	got, err = repo.GetEntry(ctx, scope, "entry42")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	raw, ok = got.Value(managecms.FieldTitle, "es")
	require.True(t, ok)
	assert.JSONEq(t, `"Hola"`, string(raw))

	_, err = repo.GetEntry(ctx, managecms.Scope{Space: scope.Space, Environment: "staging"}, "entry42")
	assert.ErrorIs(t, err, managecms.ErrEntryNotFound)

	require.NoError(t, repo.DeleteEntry(ctx, scope, "entry42"))
	assert.ErrorIs(t, repo.DeleteEntry(ctx, scope, "entry42"), managecms.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateEntry(ctx, scope, got, 2), managecms.ErrEntryNotFound)
}

func TestPostgresRepository_Assets(t *testing.T) {
	repo, scope := setupRepository(t)
	ctx := context.Background()

	asset := &managecms.Asset{
		ID:    "asset7",
		Title: map[managecms.Locale]string{"en": "Logo"},
		Files: map[managecms.Locale]managecms.AssetFile{
			"en": {FileName: "logo.png", ContentType: "image/png", Size: 10, StorageBackendName: "memory", ObjectKey: "k-en"},
			"es": {FileName: "logo.png", ContentType: "image/png", Size: 10, StorageBackendName: "memory", ObjectKey: "k-es"},
		},
		Version:          1,
		PublishedVersion: 1,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	require.NoError(t, repo.CreateAsset(ctx, scope, asset))

	got, err := repo.GetAsset(ctx, scope, "asset7")
	require.NoError(t, err)
	assert.Len(t, got.Files, 2)
	assert.Equal(t, "k-es", got.Files["es"].ObjectKey)

	delete(got.Files, "es")
	got.Version = 2
	require.NoError(t, repo.UpdateAsset(ctx, scope, got, 1))

	got, err = repo.GetAsset(ctx, scope, "asset7")
	require.NoError(t, err)
	assert.Len(t, got.Files, 1)
	assert.Equal(t, "Logo", got.Title["en"])

	require.NoError(t, repo.DeleteAsset(ctx, scope, "asset7"))
	_, err = repo.GetAsset(ctx, scope, "asset7")
	assert.ErrorIs(t, err, managecms.ErrAssetNotFound)
}
