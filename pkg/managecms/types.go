package managecms

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-manage/pkg/nlp"
)

// ContentID identifies an entry in the store. It is opaque to the gateway.
type ContentID string

// AssetID identifies an asset in the store.
type AssetID string

// Locale is re-exported so callers do not need to import nlp for the common case.
type Locale = nlp.Locale

// DefaultEnvironment is used when a scope names no environment.
const DefaultEnvironment = "master"

// Scope is the (space, environment) pair every entry and asset lives in.
type Scope struct {
	Space       string `json:"space"`
	Environment string `json:"environment"`
}

// Normalize fills in the default environment.
func (s Scope) Normalize() Scope {
	if s.Environment == "" {
		s.Environment = DefaultEnvironment
	}
	return s
}

func (s Scope) String() string {
	s = s.Normalize()
	return s.Space + "/" + s.Environment
}

// MutationContext carries everything a mutation needs to reach the store.
// It is owned by the caller and never persisted.
type MutationContext struct {
	// Locale is the target locale of the mutation.
	Locale      Locale
	Space       string
	Environment string
	AccessToken string

	// DryRun runs lookups, validation and guards but writes nothing.
	DryRun bool
	// NoOverwrite refuses to replace a non-empty target.
	NoOverwrite bool
}

// Scope returns the store scope addressed by the context.
func (mc MutationContext) Scope() Scope {
	return Scope{Space: mc.Space, Environment: mc.Environment}.Normalize()
}

// EntryFields holds raw JSON values keyed by field and locale.
type EntryFields map[FieldType]map[Locale]json.RawMessage

// Entry is a structured record in the store.
type Entry struct {
	ID               ContentID   `json:"id"`
	ContentType      string      `json:"content_type"`
	Fields           EntryFields `json:"fields"`
	Version          int         `json:"version"`
	PublishedVersion int         `json:"published_version"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Value returns the raw value of field in locale.
func (e *Entry) Value(field FieldType, locale Locale) (json.RawMessage, bool) {
	byLocale, ok := e.Fields[field]
	if !ok {
		return nil, false
	}
	raw, ok := byLocale[locale]
	return raw, ok
}

// SetValue stores raw as the value of field in locale.
func (e *Entry) SetValue(field FieldType, locale Locale, raw json.RawMessage) {
	if e.Fields == nil {
		e.Fields = make(EntryFields)
	}
	if e.Fields[field] == nil {
		e.Fields[field] = make(map[Locale]json.RawMessage)
	}
	e.Fields[field][locale] = raw
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Fields = make(EntryFields, len(e.Fields))
	for field, byLocale := range e.Fields {
		m := make(map[Locale]json.RawMessage, len(byLocale))
		for locale, raw := range byLocale {
			m[locale] = append(json.RawMessage(nil), raw...)
		}
		c.Fields[field] = m
	}
	return &c
}

// Asset is a binary resource with one file variant per locale.
type Asset struct {
	ID               AssetID              `json:"id"`
	Title            map[Locale]string    `json:"title,omitempty"`
	Files            map[Locale]AssetFile `json:"files,omitempty"`
	Version          int                  `json:"version"`
	PublishedVersion int                  `json:"published_version"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// Clone returns a deep copy of the asset.
func (a *Asset) Clone() *Asset {
	c := *a
	c.Title = make(map[Locale]string, len(a.Title))
	for locale, title := range a.Title {
		c.Title[locale] = title
	}
	c.Files = make(map[Locale]AssetFile, len(a.Files))
	for locale, file := range a.Files {
		c.Files[locale] = file
	}
	return &c
}

// AssetFile is the locale-specific file variant of an asset.
type AssetFile struct {
	FileName           string    `json:"file_name"`
	ContentType        string    `json:"content_type"`
	Size               int64     `json:"size"`
	StorageBackendName string    `json:"storage_backend_name"`
	ObjectKey          string    `json:"object_key"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// MutationOp names a gateway operation.
type MutationOp string

const (
	OpUpdateField     MutationOp = "update_field"
	OpCopyField       MutationOp = "copy_field"
	OpCopyAssetFile   MutationOp = "copy_asset_file"
	OpRemoveAssetFile MutationOp = "remove_asset_file"
)

// MutationEvent describes a mutation that was applied to the store.
type MutationEvent struct {
	ID         uuid.UUID  `json:"id"`
	Op         MutationOp `json:"op"`
	Scope      Scope      `json:"scope"`
	ContentID  ContentID  `json:"content_id,omitempty"`
	AssetID    AssetID    `json:"asset_id,omitempty"`
	Field      FieldType  `json:"field,omitempty"`
	FromLocale Locale     `json:"from_locale,omitempty"`
	Locale     Locale     `json:"locale"`
	Version    int        `json:"version"`
	OccurredAt time.Time  `json:"occurred_at"`
}
