package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/simple-manage/pkg/managecms"
)

// CreateAsset creates an asset without files
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var doc AssetDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		badRequest(w, r, "invalid asset document: "+err.Error())
		return
	}
	if len(doc.Fields.File) > 0 {
		h.writeError(w, r, fmt.Errorf("%w: asset files are uploaded per locale, not on create", managecms.ErrValidation))
		return
	}

	scope := scopeOf(r)
	asset, err := h.service.CreateAsset(r.Context(), scope, managecms.CreateAssetRequest{
		ID:    managecms.AssetID(doc.Sys.ID),
		Title: doc.Fields.Title,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Asset created", "scope", scope.String(), "asset_id", string(asset.ID))
	setVersion(w, asset.Version)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newAssetDocument(scope, asset))
}

// GetAsset returns an asset document
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)
	asset, err := h.service.GetAsset(r.Context(), scope, managecms.AssetID(urlParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setVersion(w, asset.Version)
	render.JSON(w, r, newAssetDocument(scope, asset))
}

// PutAsset replaces an asset. A file whose url is the url of another
// locale's variant is copied into its locale, and a variant missing from the
// document is removed. New bytes are never accepted here. The whole change
// is applied as one write at the version the request names.
func (h *Handler) PutAsset(w http.ResponseWriter, r *http.Request) {
	version, err := expectedVersion(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var doc AssetDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		badRequest(w, r, "invalid asset document: "+err.Error())
		return
	}

	ctx := r.Context()
	scope := scopeOf(r)
	id := managecms.AssetID(urlParam(r, "id"))

	asset, err := h.service.GetAsset(ctx, scope, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if asset.Version != version {
		h.writeError(w, r, fmt.Errorf("asset %s is at version %d, not %d: %w", id, asset.Version, version, managecms.ErrVersionConflict))
		return
	}

	byURL := make(map[string]managecms.Locale, len(asset.Files))
	for locale := range asset.Files {
		byURL[FileURL(scope, id, locale)] = locale
	}

	var update managecms.AssetUpdate
	for locale, file := range doc.Fields.File {
		target := urlPath(file.URL)
		if existing, ok := lookupLocale(asset.Files, locale); ok && FileURL(scope, id, existing) == target {
			continue
		}
		from, ok := byURL[target]
		if !ok {
			h.writeError(w, r, fmt.Errorf("%w: file for locale %s must reference an existing variant of asset %s", managecms.ErrValidation, locale, id))
			return
		}
		if update.Copies == nil {
			update.Copies = make(map[managecms.Locale]managecms.Locale)
		}
		update.Copies[locale] = from
	}

	for locale := range asset.Files {
		if _, ok := lookupLocale(doc.Fields.File, locale); !ok {
			update.Removals = append(update.Removals, locale)
		}
	}

	if !maps.Equal(asset.Title, doc.Fields.Title) && (len(asset.Title) > 0 || len(doc.Fields.Title) > 0) {
		update.Title = make(map[managecms.Locale]string, len(doc.Fields.Title))
		maps.Copy(update.Title, doc.Fields.Title)
	}

	if update.Title != nil || len(update.Copies) > 0 || len(update.Removals) > 0 {
		asset, err = h.service.ReplaceAsset(ctx, scope, id, update, version)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	setVersion(w, asset.Version)
	render.JSON(w, r, newAssetDocument(scope, asset))
}

// DeleteAsset deletes an asset and all of its file variants
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)
	id := managecms.AssetID(urlParam(r, "id"))
	if err := h.service.DeleteAsset(r.Context(), scope, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "Asset deleted", "scope", scope.String(), "asset_id", string(id))
	w.WriteHeader(http.StatusNoContent)
}

// UploadFile stores the request body as the locale variant of an asset
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)
	id := managecms.AssetID(urlParam(r, "id"))
	locale := managecms.Locale(urlParam(r, "locale"))

	body := io.Reader(r.Body)
	if h.maxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	fileName := r.Header.Get(FileNameHeader)
	if fileName == "" {
		fileName = string(id)
	}

	_, err := h.service.UploadAssetFile(r.Context(), scope, managecms.UploadAssetFileRequest{
		AssetID:            id,
		Locale:             locale,
		FileName:           fileName,
		ContentType:        r.Header.Get("Content-Type"),
		StorageBackendName: r.URL.Query().Get("backend"),
	}, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorResponse(w, r, http.StatusRequestEntityTooLarge, ErrorBadRequest,
				fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
			return
		}
		h.writeError(w, r, err)
		return
	}

	asset, err := h.service.GetAsset(r.Context(), scope, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Asset file uploaded",
		"scope", scope.String(), "asset_id", string(id), "locale", locale.String(), "file_name", fileName)
	setVersion(w, asset.Version)
	render.JSON(w, r, newAssetDocument(scope, asset))
}

// DownloadFile redirects to the backend URL of a locale variant, or streams
// it when the backend serves no URLs.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)
	id := managecms.AssetID(urlParam(r, "id"))
	locale := managecms.Locale(urlParam(r, "locale"))

	downloadURL, err := h.service.GetAssetFileURL(r.Context(), scope, id, locale)
	if err == nil {
		http.Redirect(w, r, downloadURL, http.StatusTemporaryRedirect)
		return
	}
	if !errors.Is(err, managecms.ErrDirectAccessRequired) {
		h.writeError(w, r, err)
		return
	}

	reader, file, err := h.service.DownloadAssetFile(r.Context(), scope, id, locale)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.WarnContext(r.Context(), "Download interrupted", "asset_id", string(id), "locale", locale.String(), "error", err)
	}
}

// lookupLocale finds the key of m matching l case-insensitively.
func lookupLocale[T any](m map[managecms.Locale]T, l managecms.Locale) (managecms.Locale, bool) {
	if _, ok := m[l]; ok {
		return l, true
	}
	for key := range m {
		if strings.EqualFold(string(key), string(l)) {
			return key, true
		}
	}
	return "", false
}

// urlPath drops scheme and host so absolute and relative file urls compare
// equal. The path stays escaped, as FileURL renders it.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.EscapedPath()
}
