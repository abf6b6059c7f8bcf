package api

import (
	"net/url"
	"time"

	"github.com/tendant/simple-manage/pkg/managecms"
)

// Sys is the system block of every document.
type Sys struct {
	ID               string    `json:"id,omitempty"`
	Type             string    `json:"type"`
	ContentType      string    `json:"contentType,omitempty"`
	Space            string    `json:"space,omitempty"`
	Environment      string    `json:"environment,omitempty"`
	Version          int       `json:"version,omitempty"`
	PublishedVersion int       `json:"publishedVersion,omitempty"`
	CreatedAt        time.Time `json:"createdAt,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt,omitempty"`
}

// EntryDocument is the wire form of an entry.
type EntryDocument struct {
	Sys    Sys                   `json:"sys"`
	Fields managecms.EntryFields `json:"fields"`
}

// AssetDocument is the wire form of an asset.
type AssetDocument struct {
	Sys    Sys         `json:"sys"`
	Fields AssetFields `json:"fields"`
}

// AssetFields holds the per-locale title and file of an asset.
type AssetFields struct {
	Title map[managecms.Locale]string       `json:"title,omitempty"`
	File  map[managecms.Locale]FileDocument `json:"file,omitempty"`
}

// FileDocument describes one locale variant of an asset file. URL is the
// API path the variant downloads from; it is stable for as long as the
// variant exists.
type FileDocument struct {
	FileName    string      `json:"fileName"`
	ContentType string      `json:"contentType"`
	URL         string      `json:"url"`
	Details     FileDetails `json:"details"`
}

// FileDetails carries file facts the store computed on upload.
type FileDetails struct {
	Size int64 `json:"size"`
}

// LocaleDocument is one item of the locales listing.
type LocaleDocument struct {
	Code    string `json:"code"`
	Default bool   `json:"default"`
}

// LocalesResponse is the response body of GET /locales.
type LocalesResponse struct {
	Total int              `json:"total"`
	Items []LocaleDocument `json:"items"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Sys       Sys    `json:"sys"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// ScopePath returns the API path prefix of scope. Each segment is escaped.
func ScopePath(scope managecms.Scope) string {
	scope = scope.Normalize()
	return "/spaces/" + url.PathEscape(scope.Space) + "/environments/" + url.PathEscape(scope.Environment)
}

// EntryPath returns the API path of entry id.
func EntryPath(scope managecms.Scope, id managecms.ContentID) string {
	return ScopePath(scope) + "/entries/" + url.PathEscape(string(id))
}

// AssetPath returns the API path of asset id.
func AssetPath(scope managecms.Scope, id managecms.AssetID) string {
	return ScopePath(scope) + "/assets/" + url.PathEscape(string(id))
}

// FileURL returns the download path of the locale variant of asset id.
func FileURL(scope managecms.Scope, id managecms.AssetID, locale managecms.Locale) string {
	return AssetPath(scope, id) + "/files/" + url.PathEscape(locale.String())
}

func newEntryDocument(scope managecms.Scope, entry *managecms.Entry) *EntryDocument {
	fields := entry.Fields
	if fields == nil {
		fields = make(managecms.EntryFields)
	}
	return &EntryDocument{
		Sys: Sys{
			ID:               string(entry.ID),
			Type:             "Entry",
			ContentType:      entry.ContentType,
			Space:            scope.Space,
			Environment:      scope.Environment,
			Version:          entry.Version,
			PublishedVersion: entry.PublishedVersion,
			CreatedAt:        entry.CreatedAt,
			UpdatedAt:        entry.UpdatedAt,
		},
		Fields: fields,
	}
}

func newAssetDocument(scope managecms.Scope, asset *managecms.Asset) *AssetDocument {
	doc := &AssetDocument{
		Sys: Sys{
			ID:               string(asset.ID),
			Type:             "Asset",
			Space:            scope.Space,
			Environment:      scope.Environment,
			Version:          asset.Version,
			PublishedVersion: asset.PublishedVersion,
			CreatedAt:        asset.CreatedAt,
			UpdatedAt:        asset.UpdatedAt,
		},
		Fields: AssetFields{
			Title: asset.Title,
			File:  make(map[managecms.Locale]FileDocument, len(asset.Files)),
		},
	}
	for locale, file := range asset.Files {
		doc.Fields.File[locale] = newFileDocument(scope, asset.ID, locale, file)
	}
	return doc
}

func newFileDocument(scope managecms.Scope, id managecms.AssetID, locale managecms.Locale, file managecms.AssetFile) FileDocument {
	return FileDocument{
		FileName:    file.FileName,
		ContentType: file.ContentType,
		URL:         FileURL(scope, id, locale),
		Details:     FileDetails{Size: file.Size},
	}
}
