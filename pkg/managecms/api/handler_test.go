package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-manage/pkg/managecms"
	"github.com/tendant/simple-manage/pkg/managecms/api"
	"github.com/tendant/simple-manage/pkg/managecms/repo/memory"
	"github.com/tendant/simple-manage/pkg/managecms/storage/fs"
	memorystorage "github.com/tendant/simple-manage/pkg/managecms/storage/memory"
)

const testSecret = "test-secret"

type apiEnv struct {
	router chi.Router
	svc    managecms.Service
	auth   *jwtauth.JWTAuth
	token  string
	scope  managecms.Scope
}

func setupAPI(t *testing.T, store managecms.BlobStore) *apiEnv {
	t.Helper()

	if store == nil {
		store = memorystorage.New()
	}
	svc, err := managecms.New(
		managecms.WithRepository(memory.New()),
		managecms.WithBlobStore("default", store),
		managecms.WithLocales("en", "es", "de"),
	)
	require.NoError(t, err)

	auth := api.NewAuth(testSecret)
	token, err := api.NewToken(auth, "tester", []string{"space1"}, []string{api.ScopeManage}, time.Hour)
	require.NoError(t, err)

	return &apiEnv{
		router: api.NewHandler(svc, auth).Routes(),
		svc:    svc,
		auth:   auth,
		token:  token,
		scope:  managecms.Scope{Space: "space1", Environment: "master"},
	}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) path(suffix string) string {
	return api.ScopePath(e.scope) + suffix
}

func errorID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Error", resp.Sys.Type)
	return resp.Sys.ID
}

func TestHealth(t *testing.T) {
	env := setupAPI(t, nil)
	rec := env.do(t, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestAuthorization(t *testing.T) {
	env := setupAPI(t, nil)

	readOnly, err := api.NewToken(env.auth, "reader", []string{"space1"}, []string{api.ScopeRead}, time.Hour)
	require.NoError(t, err)
	foreign, err := api.NewToken(env.auth, "other", []string{"space2"}, []string{api.ScopeManage}, time.Hour)
	require.NoError(t, err)
	wildcard, err := api.NewToken(env.auth, "admin", []string{api.AllSpaces}, []string{api.ScopeManage}, time.Hour)
	require.NoError(t, err)
	forged, err := api.NewToken(api.NewAuth("other-secret"), "tester", []string{"space1"}, []string{api.ScopeManage}, time.Hour)
	require.NoError(t, err)

	_, err = env.svc.CreateEntry(context.Background(), env.scope, managecms.CreateEntryRequest{ID: "entry1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		token  string
		status int
		id     string
	}{
		{"missing token", http.MethodGet, "", http.StatusUnauthorized, api.ErrorUnauthorized},
		{"wrong signature", http.MethodGet, forged, http.StatusUnauthorized, api.ErrorUnauthorized},
		{"foreign space", http.MethodGet, foreign, http.StatusForbidden, api.ErrorAccessDenied},
		{"read token may read", http.MethodGet, readOnly, http.StatusOK, ""},
		{"read token may not write", http.MethodPut, readOnly, http.StatusForbidden, api.ErrorAccessDenied},
		{"wildcard space", http.MethodGet, wildcard, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, env.path("/entries/entry1"), tt.token, strings.NewReader(`{"fields":{}}`),
				map[string]string{api.VersionHeader: "1"})
			assert.Equal(t, tt.status, rec.Code)
			if tt.id != "" {
				assert.Equal(t, tt.id, errorID(t, rec))
			}
		})
	}
}

func TestListLocales(t *testing.T) {
	env := setupAPI(t, nil)

	rec := env.do(t, http.MethodGet, env.path("/locales"), env.token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.LocalesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, api.LocaleDocument{Code: "en", Default: true}, resp.Items[0])
	assert.False(t, resp.Items[1].Default)
}

func TestEntryRoutes(t *testing.T) {
	env := setupAPI(t, nil)

	t.Run("create", func(t *testing.T) {
		body := `{"sys":{"id":"entry42","contentType":"faq"},"fields":{"title":{"en":"Hello"},"priority":{"en":2}}}`
		rec := env.do(t, http.MethodPost, env.path("/entries"), env.token, strings.NewReader(body), nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "1", rec.Header().Get(api.VersionHeader))

		var doc api.EntryDocument
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, "entry42", doc.Sys.ID)
		assert.Equal(t, "Entry", doc.Sys.Type)
		assert.JSONEq(t, `"Hello"`, string(doc.Fields[managecms.FieldTitle]["en"]))
	})

	t.Run("create rejects invalid value", func(t *testing.T) {
		body := `{"sys":{"id":"bad"},"fields":{"priority":{"en":"high"}}}`
		rec := env.do(t, http.MethodPost, env.path("/entries"), env.token, strings.NewReader(body), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, api.ErrorValidation, errorID(t, rec))
	})

	t.Run("create duplicate", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, env.path("/entries"), env.token, strings.NewReader(`{"sys":{"id":"entry42"}}`), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, api.ErrorConflict, errorID(t, rec))
	})

	t.Run("put requires version", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, env.path("/entries/entry42"), env.token, strings.NewReader(`{"fields":{}}`), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, api.ErrorVersionMismatch, errorID(t, rec))
	})

	t.Run("put with stale version", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, env.path("/entries/entry42"), env.token, strings.NewReader(`{"fields":{}}`),
			map[string]string{api.VersionHeader: "7"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, api.ErrorVersionMismatch, errorID(t, rec))
	})

	t.Run("put rejects unknown locale", func(t *testing.T) {
		body := `{"fields":{"title":{"fr":"Bonjour"}}}`
		rec := env.do(t, http.MethodPut, env.path("/entries/entry42"), env.token, strings.NewReader(body),
			map[string]string{api.VersionHeader: "1"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("put replaces fields", func(t *testing.T) {
		body := `{"fields":{"title":{"en":"Hello","es":"Hola"}}}`
		rec := env.do(t, http.MethodPut, env.path("/entries/entry42"), env.token, strings.NewReader(body),
			map[string]string{api.VersionHeader: "1"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get(api.VersionHeader))

		rec = env.do(t, http.MethodGet, env.path("/entries/entry42"), env.token, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var doc api.EntryDocument
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, 2, doc.Sys.Version)
		assert.Equal(t, 2, doc.Sys.PublishedVersion)
		assert.JSONEq(t, `"Hola"`, string(doc.Fields[managecms.FieldTitle]["es"]))
		assert.NotContains(t, doc.Fields, managecms.FieldPriority)
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, env.path("/entries/entry42"), env.token, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, http.MethodGet, env.path("/entries/entry42"), env.token, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, api.ErrorNotFound, errorID(t, rec))
	})
}

func TestAssetRoutes(t *testing.T) {
	env := setupAPI(t, nil)

	rec := env.do(t, http.MethodPost, env.path("/assets"), env.token,
		strings.NewReader(`{"sys":{"id":"asset7"},"fields":{"title":{"en":"Logo"}}}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPut, env.path("/assets/asset7/files/en"), env.token, strings.NewReader("png-bytes"),
		map[string]string{"Content-Type": "image/png", api.FileNameHeader: "logo.png"})
	require.Equal(t, http.StatusOK, rec.Code)

	var doc api.AssetDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Contains(t, doc.Fields.File, managecms.Locale("en"))
	enFile := doc.Fields.File["en"]
	assert.Equal(t, "logo.png", enFile.FileName)
	assert.Equal(t, int64(len("png-bytes")), enFile.Details.Size)
	assert.Equal(t, env.path("/assets/asset7/files/en"), enFile.URL)

	t.Run("download streams when the backend has no urls", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, env.path("/assets/asset7/files/en"), env.token, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "png-bytes", rec.Body.String())
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "logo.png")
	})

	put := func(t *testing.T, doc api.AssetDocument) *httptest.ResponseRecorder {
		body, err := json.Marshal(doc)
		require.NoError(t, err)
		return env.do(t, http.MethodPut, env.path("/assets/asset7"), env.token, bytes.NewReader(body),
			map[string]string{api.VersionHeader: strconv.Itoa(doc.Sys.Version)})
	}

	t.Run("put copies a file referenced by another locale", func(t *testing.T) {
		doc.Fields.File["es"] = enFile
		rec := put(t, doc)
		require.Equal(t, http.StatusOK, rec.Code)

		var updated api.AssetDocument
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		require.Contains(t, updated.Fields.File, managecms.Locale("es"))
		assert.Equal(t, env.path("/assets/asset7/files/es"), updated.Fields.File["es"].URL)

		rec = env.do(t, http.MethodGet, env.path("/assets/asset7/files/es"), env.token, nil, nil)
		assert.Equal(t, "png-bytes", rec.Body.String())
		doc = updated
	})

	t.Run("put with stale version", func(t *testing.T) {
		stale := doc
		stale.Sys.Version = 1
		rec := put(t, stale)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("put rejects unknown file url", func(t *testing.T) {
		bad := doc
		bad.Fields.File = map[managecms.Locale]api.FileDocument{
			"en": doc.Fields.File["en"],
			"es": doc.Fields.File["es"],
			"de": {FileName: "x.png", URL: "https://example.com/x.png"},
		}
		rec := put(t, bad)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("put removes a dropped locale", func(t *testing.T) {
		delete(doc.Fields.File, "es")
		doc.Fields.Title = map[managecms.Locale]string{"en": "Logo", "es": "Logotipo"}
		rec := put(t, doc)
		require.Equal(t, http.StatusOK, rec.Code)

		asset, err := env.svc.GetAsset(context.Background(), env.scope, "asset7")
		require.NoError(t, err)
		assert.NotContains(t, asset.Files, managecms.Locale("es"))
		assert.Contains(t, asset.Files, managecms.Locale("en"))
		assert.Equal(t, "Logotipo", asset.Title["es"])
	})

	t.Run("missing variant", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, env.path("/assets/asset7/files/de"), env.token, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, env.path("/assets/asset7"), env.token, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, http.MethodGet, env.path("/assets/asset7"), env.token, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type failingCopyStore struct {
	*memorystorage.Backend
}

func (f *failingCopyStore) Copy(ctx context.Context, sourceKey, targetKey string) error {
	return errors.New("copy unavailable")
}

func TestPutAssetAppliesAllOrNothing(t *testing.T) {
	env := setupAPI(t, &failingCopyStore{Backend: memorystorage.New()})
	ctx := context.Background()

	_, err := env.svc.CreateAsset(ctx, env.scope, managecms.CreateAssetRequest{ID: "asset7", Title: map[managecms.Locale]string{"en": "Logo"}})
	require.NoError(t, err)
	rec := env.do(t, http.MethodPut, env.path("/assets/asset7/files/en"), env.token, strings.NewReader("png-bytes"),
		map[string]string{"Content-Type": "image/png"})
	require.Equal(t, http.StatusOK, rec.Code)

	var doc api.AssetDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	// A new title plus a copy the backend cannot perform.
	doc.Fields.Title = map[managecms.Locale]string{"en": "Renamed"}
	doc.Fields.File["es"] = doc.Fields.File["en"]
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	rec = env.do(t, http.MethodPut, env.path("/assets/asset7"), env.token, bytes.NewReader(body),
		map[string]string{api.VersionHeader: strconv.Itoa(doc.Sys.Version)})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	asset, err := env.svc.GetAsset(ctx, env.scope, "asset7")
	require.NoError(t, err)
	assert.Equal(t, doc.Sys.Version, asset.Version)
	assert.Equal(t, "Logo", asset.Title["en"])
	assert.NotContains(t, asset.Files, managecms.Locale("es"))
}

func TestEscapedIdentifiers(t *testing.T) {
	env := setupAPI(t, nil)
	ctx := context.Background()

	for _, id := range []managecms.ContentID{"faq/1", "faq?1", "faq 1", "faq%1"} {
		_, err := env.svc.CreateEntry(ctx, env.scope, managecms.CreateEntryRequest{ID: id})
		require.NoError(t, err)

		rec := env.do(t, http.MethodGet, api.EntryPath(env.scope, id), env.token, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, "entry %q", id)

		var doc api.EntryDocument
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, string(id), doc.Sys.ID)
	}

	rec := env.do(t, http.MethodGet, env.path("/entries/faq"), env.token, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadRedirect(t *testing.T) {
	store, err := fs.New(fs.Config{BaseDir: t.TempDir(), URLPrefix: "https://cdn.example.com/files"})
	require.NoError(t, err)
	env := setupAPI(t, store)

	ctx := context.Background()
	_, err = env.svc.CreateAsset(ctx, env.scope, managecms.CreateAssetRequest{ID: "asset1"})
	require.NoError(t, err)
	file, err := env.svc.UploadAssetFile(ctx, env.scope, managecms.UploadAssetFileRequest{
		AssetID: "asset1", Locale: "en", FileName: "doc.pdf", ContentType: "application/pdf",
	}, strings.NewReader("pdf"))
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, env.path("/assets/asset1/files/en"), env.token, nil, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://cdn.example.com/files/"+file.ObjectKey))
}

func TestUploadLimit(t *testing.T) {
	svc, err := managecms.New(
		managecms.WithRepository(memory.New()),
		managecms.WithBlobStore("default", memorystorage.New()),
	)
	require.NoError(t, err)
	auth := api.NewAuth(testSecret)
	token, err := api.NewToken(auth, "tester", []string{"space1"}, []string{api.ScopeManage}, 0)
	require.NoError(t, err)
	router := api.NewHandler(svc, auth, api.WithMaxUploadSize(4)).Routes()

	_, err = svc.CreateAsset(context.Background(), managecms.Scope{Space: "space1"}, managecms.CreateAssetRequest{ID: "a"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/spaces/space1/environments/master/assets/a/files/en", strings.NewReader("too large"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
