package client_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-manage/pkg/managecms"
	"github.com/tendant/simple-manage/pkg/managecms/api"
	"github.com/tendant/simple-manage/pkg/managecms/client"
	"github.com/tendant/simple-manage/pkg/managecms/repo/memory"
	memorystorage "github.com/tendant/simple-manage/pkg/managecms/storage/memory"
)

type testEnv struct {
	svc    managecms.Service
	client *client.Client
	server *httptest.Server
	auth   string
	scope  managecms.Scope
}

func setupTestClient(t *testing.T, opts ...client.Option) *testEnv {
	t.Helper()

	svc, err := managecms.New(
		managecms.WithRepository(memory.New()),
		managecms.WithBlobStore("memory", memorystorage.New()),
		managecms.WithLocales("en", "es", "de"),
	)
	require.NoError(t, err)

	auth := api.NewAuth("client-test")
	token, err := api.NewToken(auth, "tester", []string{"space1"}, []string{api.ScopeManage}, time.Hour)
	require.NoError(t, err)

	server := httptest.NewServer(api.NewHandler(svc, auth).Routes())
	t.Cleanup(server.Close)

	opts = append([]client.Option{client.WithToken(token), client.WithScope("space1", "")}, opts...)
	c, err := client.New(server.URL, opts...)
	require.NoError(t, err)

	return &testEnv{svc: svc, client: c, server: server, auth: token, scope: managecms.Scope{Space: "space1"}}
}

func (e *testEnv) mc(locale managecms.Locale) managecms.MutationContext {
	return managecms.MutationContext{Locale: locale, Space: "space1"}
}

func (e *testEnv) createEntry(t *testing.T, id managecms.ContentID, titles map[managecms.Locale]string) {
	t.Helper()
	fields := map[managecms.FieldType]map[managecms.Locale]managecms.FieldValue{}
	if len(titles) > 0 {
		fields[managecms.FieldTitle] = map[managecms.Locale]managecms.FieldValue{}
		for l, title := range titles {
			fields[managecms.FieldTitle][l] = managecms.TextValue(title)
		}
	}
	_, err := e.svc.CreateEntry(context.Background(), e.scope, managecms.CreateEntryRequest{ID: id, Fields: fields})
	require.NoError(t, err)
}

func (e *testEnv) title(t *testing.T, id managecms.ContentID, locale managecms.Locale) string {
	t.Helper()
	v, err := e.svc.GetField(context.Background(), e.scope, id, managecms.FieldTitle, locale)
	if errors.Is(err, managecms.ErrFieldNotFound) {
		return ""
	}
	require.NoError(t, err)
	return string(v.(managecms.TextValue))
}

func TestNew(t *testing.T) {
	_, err := client.New("not a url")
	assert.Error(t, err)
	_, err = client.New("/relative")
	assert.Error(t, err)
	_, err = client.New("http://localhost:8080/")
	assert.NoError(t, err)
}

func TestLocaleProvider(t *testing.T) {
	env := setupTestClient(t)
	ctx := context.Background()

	def, err := env.client.DefaultLocale(ctx)
	require.NoError(t, err)
	assert.Equal(t, managecms.Locale("en"), def)

	locales, err := env.client.Locales(ctx)
	require.NoError(t, err)
	assert.Equal(t, []managecms.Locale{"en", "es", "de"}, locales)

	// Served from the cache once the server is gone.
	env.server.Close()
	def, err = env.client.DefaultLocale(ctx)
	require.NoError(t, err)
	assert.Equal(t, managecms.Locale("en"), def)
}

func TestUpdateField(t *testing.T) {
	env := setupTestClient(t)
	ctx := context.Background()
	env.createEntry(t, "entry42", map[managecms.Locale]string{"en": "Hello"})

	require.NoError(t, env.client.UpdateField(ctx, env.mc("es"), "entry42", managecms.FieldTitle, managecms.TextValue("Hola")))
	assert.Equal(t, "Hola", env.title(t, "entry42", "es"))
	assert.Equal(t, "Hello", env.title(t, "entry42", "en"))

	require.NoError(t, env.client.UpdateField(ctx, env.mc("DE"), "entry42", managecms.FieldTitle, managecms.TextValue("Hallo")))
	assert.Equal(t, "Hallo", env.title(t, "entry42", "de"))

	entry, err := env.svc.GetEntry(ctx, env.scope, "entry42")
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Version)
	assert.Equal(t, entry.Version, entry.PublishedVersion)

	t.Run("failures", func(t *testing.T) {
		tests := []struct {
			name   string
			mc     managecms.MutationContext
			id     managecms.ContentID
			field  managecms.FieldType
			value  managecms.FieldValue
			target error
			base   error
		}{
			{"unknown locale", env.mc("fr"), "entry42", managecms.FieldTitle, managecms.TextValue("x"), managecms.ErrUnknownLocale, managecms.ErrValidation},
			{"missing locale", env.mc(""), "entry42", managecms.FieldTitle, managecms.TextValue("x"), managecms.ErrMissingLocale, managecms.ErrValidation},
			{"missing entry", env.mc("es"), "nope", managecms.FieldTitle, managecms.TextValue("x"), managecms.ErrEntryNotFound, managecms.ErrNotFound},
			{"store rejects value", env.mc("es"), "entry42", managecms.FieldPriority, managecms.TextValue("high"), managecms.ErrValidation, managecms.ErrValidation},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := env.client.UpdateField(ctx, tt.mc, tt.id, tt.field, tt.value)
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.target)
				assert.ErrorIs(t, err, tt.base)

				var mutationErr *managecms.MutationError
				require.True(t, errors.As(err, &mutationErr))
				assert.Equal(t, tt.id, mutationErr.ContentID)
				assert.Equal(t, tt.field, mutationErr.Field)
			})
		}
	})

	t.Run("no overwrite", func(t *testing.T) {
		mc := env.mc("es")
		mc.NoOverwrite = true
		err := env.client.UpdateField(ctx, mc, "entry42", managecms.FieldTitle, managecms.TextValue("Buenos"))
		assert.ErrorIs(t, err, managecms.ErrOverwriteNotAllowed)
		assert.Equal(t, "Hola", env.title(t, "entry42", "es"))
	})

	t.Run("dry run", func(t *testing.T) {
		mc := env.mc("es")
		mc.DryRun = true
		require.NoError(t, env.client.UpdateField(ctx, mc, "entry42", managecms.FieldTitle, managecms.TextValue("Buenos")))
		assert.Equal(t, "Hola", env.title(t, "entry42", "es"))
	})
}

func TestCopyField(t *testing.T) {
	env := setupTestClient(t)
	ctx := context.Background()

	t.Run("only if target empty keeps existing value", func(t *testing.T) {
		env.createEntry(t, "e1", map[managecms.Locale]string{"en": "Hello", "es": "Existing"})
		require.NoError(t, env.client.CopyField(ctx, env.mc("es"), "e1", managecms.FieldTitle, "en", true))
		assert.Equal(t, "Existing", env.title(t, "e1", "es"))
	})

	t.Run("overwrites when allowed", func(t *testing.T) {
		env.createEntry(t, "e2", map[managecms.Locale]string{"en": "Hello", "es": "Existing"})
		require.NoError(t, env.client.CopyField(ctx, env.mc("es"), "e2", managecms.FieldTitle, "en", false))
		assert.Equal(t, "Hello", env.title(t, "e2", "es"))
	})

	t.Run("fills an empty target", func(t *testing.T) {
		env.createEntry(t, "e3", map[managecms.Locale]string{"en": "Hello"})
		require.NoError(t, env.client.CopyField(ctx, env.mc("de"), "e3", managecms.FieldTitle, "en", true))
		assert.Equal(t, "Hello", env.title(t, "e3", "de"))
	})

	t.Run("absent source is a no-op", func(t *testing.T) {
		env.createEntry(t, "e4", map[managecms.Locale]string{"es": "Existing"})
		require.NoError(t, env.client.CopyField(ctx, env.mc("es"), "e4", managecms.FieldTitle, "en", false))
		assert.Equal(t, "Existing", env.title(t, "e4", "es"))

		entry, err := env.svc.GetEntry(ctx, env.scope, "e4")
		require.NoError(t, err)
		assert.Equal(t, 1, entry.Version)
	})

	t.Run("missing entry", func(t *testing.T) {
		err := env.client.CopyField(ctx, env.mc("es"), "nope", managecms.FieldTitle, "en", false)
		assert.ErrorIs(t, err, managecms.ErrNotFound)
	})
}

func TestCachedReadsFreshWrites(t *testing.T) {
	env := setupTestClient(t, client.WithCacheTTL(time.Minute))
	ctx := context.Background()
	env.createEntry(t, "entry42", map[managecms.Locale]string{"en": "Hello", "es": "Hola"})

	v, err := env.client.Field(ctx, env.mc("en"), "entry42", managecms.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, managecms.TextValue("Hello"), v)

	// Reads are served from the cached document and lag writes made elsewhere.
	require.NoError(t, env.svc.UpdateField(ctx, env.mc("en"), "entry42", managecms.FieldTitle, managecms.TextValue("Changed")))
	require.NoError(t, env.svc.UpdateField(ctx, env.mc("en"), "entry42", managecms.FieldSubtitle, managecms.TextValue("Sub")))
	v, err = env.client.Field(ctx, env.mc("en"), "entry42", managecms.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, managecms.TextValue("Hello"), v)

	// Mutations start from the current document.
	require.NoError(t, env.client.CopyField(ctx, env.mc("de"), "entry42", managecms.FieldTitle, "es", false))
	assert.Equal(t, "Hola", env.title(t, "entry42", "de"))
	assert.Equal(t, "Changed", env.title(t, "entry42", "en"))

	require.NoError(t, env.client.UpdateField(ctx, env.mc("es"), "entry42", managecms.FieldTitle, managecms.TextValue("Buenas")))
	assert.Equal(t, "Buenas", env.title(t, "entry42", "es"))

	subtitle, err := env.svc.GetField(ctx, env.scope, "entry42", managecms.FieldSubtitle, "en")
	require.NoError(t, err)
	assert.Equal(t, managecms.TextValue("Sub"), subtitle)

	entry, err := env.svc.GetEntry(ctx, env.scope, "entry42")
	require.NoError(t, err)
	assert.Equal(t, 5, entry.Version)

	// The write evicted the cached copy.
	v, err = env.client.Field(ctx, env.mc("en"), "entry42", managecms.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, managecms.TextValue("Changed"), v)
}

func TestReservedCharactersInIdentifiers(t *testing.T) {
	env := setupTestClient(t)
	ctx := context.Background()
	env.createEntry(t, "e1", map[managecms.Locale]string{"en": "Original"})

	ids := []managecms.ContentID{"e1?x=1", "e1/child", "e1#frag", "e1 spaced", "e1%2Fraw"}
	for _, id := range ids {
		t.Run(string(id), func(t *testing.T) {
			env.createEntry(t, id, map[managecms.Locale]string{"en": "Own " + string(id)})

			require.NoError(t, env.client.UpdateField(ctx, env.mc("es"), id, managecms.FieldTitle, managecms.TextValue("Hola")))
			require.NoError(t, env.client.CopyField(ctx, env.mc("de"), id, managecms.FieldTitle, "en", false))

			assert.Equal(t, "Hola", env.title(t, id, "es"))
			assert.Equal(t, "Own "+string(id), env.title(t, id, "de"))

			v, err := env.client.Field(ctx, env.mc("de"), id, managecms.FieldTitle)
			require.NoError(t, err)
			assert.Equal(t, managecms.TextValue("Own "+string(id)), v)
		})
	}

	// The entry sharing the prefix is untouched.
	entry, err := env.svc.GetEntry(ctx, env.scope, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, "Original", env.title(t, "e1", "en"))

	t.Run("missing entry is not resolved to a prefix", func(t *testing.T) {
		err := env.client.UpdateField(ctx, env.mc("es"), "e1?nope", managecms.FieldTitle, managecms.TextValue("x"))
		assert.ErrorIs(t, err, managecms.ErrEntryNotFound)
	})

	t.Run("asset", func(t *testing.T) {
		var id managecms.AssetID = "logos/main #1?v=2"
		_, err := env.svc.CreateAsset(ctx, env.scope, managecms.CreateAssetRequest{ID: id})
		require.NoError(t, err)
		_, err = env.svc.CreateAsset(ctx, env.scope, managecms.CreateAssetRequest{ID: "logos"})
		require.NoError(t, err)

		require.NoError(t, env.client.UploadAssetFile(ctx, env.mc("en"), id, "logo.png", "image/png", strings.NewReader("png-bytes")))
		require.NoError(t, env.client.CopyAssetFile(ctx, env.mc("es"), id, "en"))

		asset, err := env.svc.GetAsset(ctx, env.scope, id)
		require.NoError(t, err)
		assert.Contains(t, asset.Files, managecms.Locale("en"))
		assert.Contains(t, asset.Files, managecms.Locale("es"))

		require.NoError(t, env.client.RemoveAssetFile(ctx, env.mc("en"), id))
		asset, err = env.svc.GetAsset(ctx, env.scope, id)
		require.NoError(t, err)
		assert.NotContains(t, asset.Files, managecms.Locale("en"))
		assert.Contains(t, asset.Files, managecms.Locale("es"))

		other, err := env.svc.GetAsset(ctx, env.scope, "logos")
		require.NoError(t, err)
		assert.Empty(t, other.Files)
		assert.Equal(t, 1, other.Version)
	})
}

func TestAssetFiles(t *testing.T) {
	env := setupTestClient(t)
	ctx := context.Background()

	_, err := env.svc.CreateAsset(ctx, env.scope, managecms.CreateAssetRequest{ID: "asset7"})
	require.NoError(t, err)
	require.NoError(t, env.client.UploadAssetFile(ctx, env.mc("en"), "asset7", "logo.png", "image/png", strings.NewReader("png-bytes")))

	read := func(locale managecms.Locale) string {
		reader, _, err := env.svc.DownloadAssetFile(ctx, env.scope, "asset7", locale)
		require.NoError(t, err)
		defer reader.Close()
		b, err := io.ReadAll(reader)
		require.NoError(t, err)
		return string(b)
	}

	t.Run("copy", func(t *testing.T) {
		require.NoError(t, env.client.CopyAssetFile(ctx, env.mc("es"), "asset7", "en"))
		assert.Equal(t, "png-bytes", read("es"))

		asset, err := env.svc.GetAsset(ctx, env.scope, "asset7")
		require.NoError(t, err)
		assert.NotEqual(t, asset.Files["en"].ObjectKey, asset.Files["es"].ObjectKey)
	})

	t.Run("copy refuses overwrite", func(t *testing.T) {
		mc := env.mc("es")
		mc.NoOverwrite = true
		assert.ErrorIs(t, env.client.CopyAssetFile(ctx, mc, "asset7", "en"), managecms.ErrOverwriteNotAllowed)
	})

	t.Run("missing source file", func(t *testing.T) {
		err := env.client.CopyAssetFile(ctx, env.mc("es"), "asset7", "de")
		assert.ErrorIs(t, err, managecms.ErrAssetFileNotFound)

		var assetErr *managecms.AssetError
		require.True(t, errors.As(err, &assetErr))
		assert.Equal(t, managecms.AssetID("asset7"), assetErr.AssetID)
	})

	t.Run("missing asset", func(t *testing.T) {
		err := env.client.CopyAssetFile(ctx, env.mc("es"), "nope", "en")
		assert.ErrorIs(t, err, managecms.ErrAssetNotFound)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, env.client.RemoveAssetFile(ctx, env.mc("es"), "asset7"))
		asset, err := env.svc.GetAsset(ctx, env.scope, "asset7")
		require.NoError(t, err)
		assert.NotContains(t, asset.Files, managecms.Locale("es"))
		assert.Contains(t, asset.Files, managecms.Locale("en"))

		// Removing an absent variant is a no-op.
		require.NoError(t, env.client.RemoveAssetFile(ctx, env.mc("es"), "asset7"))
	})

	t.Run("dry run", func(t *testing.T) {
		mc := env.mc("en")
		mc.DryRun = true
		require.NoError(t, env.client.RemoveAssetFile(ctx, mc, "asset7"))
		assert.Equal(t, "png-bytes", read("en"))
	})
}

func TestPermission(t *testing.T) {
	env := setupTestClient(t)
	ctx := context.Background()
	env.createEntry(t, "entry42", map[managecms.Locale]string{"en": "Hello"})

	readOnly, err := api.NewToken(api.NewAuth("client-test"), "reader", []string{"space1"}, []string{api.ScopeRead}, time.Hour)
	require.NoError(t, err)

	mc := env.mc("es")
	mc.AccessToken = readOnly
	err = env.client.UpdateField(ctx, mc, "entry42", managecms.FieldTitle, managecms.TextValue("Hola"))
	assert.ErrorIs(t, err, managecms.ErrPermission)

	mc.AccessToken = "garbage"
	mc.Space = "space2"
	err = env.client.CopyField(ctx, mc, "entry42", managecms.FieldTitle, "en", false)
	assert.ErrorIs(t, err, managecms.ErrPermission)
}

func TestFieldDefaultsToDefaultLocale(t *testing.T) {
	env := setupTestClient(t)
	ctx := context.Background()
	env.createEntry(t, "entry42", map[managecms.Locale]string{"en": "Hello", "es": "Hola"})

	v, err := env.client.Field(ctx, env.mc(""), "entry42", managecms.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, managecms.TextValue("Hello"), v)

	v, err = env.client.Field(ctx, env.mc("ES"), "entry42", managecms.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, managecms.TextValue("Hola"), v)
}
