// Package api serves the management API over a managecms.Service.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/simple-manage/pkg/managecms"
)

// VersionHeader carries the version a write expects and the version a
// response reflects.
const VersionHeader = "X-Content-Version"

// FileNameHeader names the file of an uploaded asset variant.
const FileNameHeader = "X-File-Name"

// Handler handles HTTP requests for entries, assets and locales
type Handler struct {
	service       managecms.Service
	auth          *jwtauth.JWTAuth
	logger        *slog.Logger
	maxUploadSize int64
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMaxUploadSize limits asset file uploads to n bytes. Zero means no limit.
func WithMaxUploadSize(n int64) Option {
	return func(h *Handler) {
		h.maxUploadSize = n
	}
}

// NewHandler creates a new management API handler. auth verifies the
// bearer tokens of every scoped route.
func NewHandler(service managecms.Service, auth *jwtauth.JWTAuth, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		auth:    auth,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Routes returns the management API routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.Health)

	r.Route("/spaces/{space}/environments/{environment}", func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.auth))
		r.Use(h.authenticate)
		r.Use(h.authorize)

		r.Get("/locales", h.ListLocales)

		r.Route("/entries", func(r chi.Router) {
			r.Post("/", h.CreateEntry)
			r.Get("/{id}", h.GetEntry)
			r.Put("/{id}", h.PutEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		r.Route("/assets", func(r chi.Router) {
			r.Post("/", h.CreateAsset)
			r.Get("/{id}", h.GetAsset)
			r.Put("/{id}", h.PutAsset)
			r.Delete("/{id}", h.DeleteAsset)
			r.Put("/{id}/files/{locale}", h.UploadFile)
			r.Get("/{id}/files/{locale}", h.DownloadFile)
		})
	})

	return r
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// urlParam returns the decoded value of a route parameter. chi matches on the
// raw path when the request escapes a reserved character such as '/', and
// then hands back the escaped form.
func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

func scopeOf(r *http.Request) managecms.Scope {
	return managecms.Scope{
		Space:       urlParam(r, "space"),
		Environment: urlParam(r, "environment"),
	}.Normalize()
}

// expectedVersion reads the version header of a write.
func expectedVersion(r *http.Request) (int, error) {
	raw := r.Header.Get(VersionHeader)
	if raw == "" {
		return 0, fmt.Errorf("%s header is required: %w", VersionHeader, managecms.ErrVersionConflict)
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s header %q is not a version: %w", VersionHeader, raw, managecms.ErrVersionConflict)
	}
	return v, nil
}

func setVersion(w http.ResponseWriter, version int) {
	w.Header().Set(VersionHeader, strconv.Itoa(version))
}

// ListLocales lists the configured locales
func (h *Handler) ListLocales(w http.ResponseWriter, r *http.Request) {
	defaultLocale, err := h.service.DefaultLocale(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	locales, err := h.service.Locales(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := LocalesResponse{Total: len(locales), Items: make([]LocaleDocument, 0, len(locales))}
	for _, l := range locales {
		resp.Items = append(resp.Items, LocaleDocument{Code: l.String(), Default: l == defaultLocale})
	}
	render.JSON(w, r, resp)
}

// CreateEntry creates a new entry
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var doc EntryDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		badRequest(w, r, "invalid entry document: "+err.Error())
		return
	}

	req := managecms.CreateEntryRequest{
		ID:          managecms.ContentID(doc.Sys.ID),
		ContentType: doc.Sys.ContentType,
		Fields:      make(map[managecms.FieldType]map[managecms.Locale]managecms.FieldValue),
	}
	for field, byLocale := range doc.Fields {
		for locale, raw := range byLocale {
			if managecms.IsEmptyRaw(raw) {
				continue
			}
			value, err := managecms.DecodeValue(field, raw)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			if req.Fields[field] == nil {
				req.Fields[field] = make(map[managecms.Locale]managecms.FieldValue)
			}
			req.Fields[field][locale] = value
		}
	}

	scope := scopeOf(r)
	entry, err := h.service.CreateEntry(r.Context(), scope, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Entry created", "scope", scope.String(), "content_id", string(entry.ID))
	setVersion(w, entry.Version)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newEntryDocument(scope, entry))
}

// GetEntry returns an entry document
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)
	entry, err := h.service.GetEntry(r.Context(), scope, managecms.ContentID(urlParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setVersion(w, entry.Version)
	render.JSON(w, r, newEntryDocument(scope, entry))
}

// PutEntry replaces the fields of an entry and publishes it
func (h *Handler) PutEntry(w http.ResponseWriter, r *http.Request) {
	version, err := expectedVersion(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var doc EntryDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		badRequest(w, r, "invalid entry document: "+err.Error())
		return
	}

	scope := scopeOf(r)
	entry, err := h.service.PutEntry(r.Context(), scope, &managecms.Entry{
		ID:          managecms.ContentID(urlParam(r, "id")),
		ContentType: doc.Sys.ContentType,
		Fields:      doc.Fields,
	}, version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	setVersion(w, entry.Version)
	render.JSON(w, r, newEntryDocument(scope, entry))
}

// DeleteEntry deletes an entry
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	scope := scopeOf(r)
	id := managecms.ContentID(urlParam(r, "id"))
	if err := h.service.DeleteEntry(r.Context(), scope, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "Entry deleted", "scope", scope.String(), "content_id", string(id))
	w.WriteHeader(http.StatusNoContent)
}
