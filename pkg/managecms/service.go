package managecms

import (
	"context"
	"io"
)

// Service is the store side: it implements Gateway and LocaleProvider on top
// of a Repository and BlobStores, and adds the read and lifecycle operations
// the management API needs.
type Service interface {
	Gateway
	LocaleProvider

	// Entry operations
	CreateEntry(ctx context.Context, scope Scope, req CreateEntryRequest) (*Entry, error)
	GetEntry(ctx context.Context, scope Scope, id ContentID) (*Entry, error)
	GetField(ctx context.Context, scope Scope, id ContentID, field FieldType, locale Locale) (FieldValue, error)
	PutEntry(ctx context.Context, scope Scope, entry *Entry, expectedVersion int) (*Entry, error)
	DeleteEntry(ctx context.Context, scope Scope, id ContentID) error

	// Asset operations
	CreateAsset(ctx context.Context, scope Scope, req CreateAssetRequest) (*Asset, error)
	GetAsset(ctx context.Context, scope Scope, id AssetID) (*Asset, error)
	ReplaceAsset(ctx context.Context, scope Scope, id AssetID, update AssetUpdate, expectedVersion int) (*Asset, error)
	DeleteAsset(ctx context.Context, scope Scope, id AssetID) error

	// Asset file operations
	UploadAssetFile(ctx context.Context, scope Scope, req UploadAssetFileRequest, reader io.Reader) (*AssetFile, error)
	DownloadAssetFile(ctx context.Context, scope Scope, id AssetID, locale Locale) (io.ReadCloser, *AssetFile, error)
	GetAssetFileURL(ctx context.Context, scope Scope, id AssetID, locale Locale) (string, error)
}

// CreateEntryRequest contains parameters for creating an entry. An empty ID
// lets the store generate one.
type CreateEntryRequest struct {
	ID          ContentID
	ContentType string
	Fields      map[FieldType]map[Locale]FieldValue
}

// CreateAssetRequest contains parameters for creating an asset without files
type CreateAssetRequest struct {
	ID    AssetID
	Title map[Locale]string
}

// AssetUpdate is a change set applied to an asset in a single versioned write
type AssetUpdate struct {
	// Title replaces every title when non-nil.
	Title map[Locale]string
	// Copies maps a target locale to the locale whose file it receives.
	Copies map[Locale]Locale
	// Removals lists the locales whose file variant is dropped.
	Removals []Locale
}

// UploadAssetFileRequest contains parameters for uploading one locale variant
type UploadAssetFileRequest struct {
	AssetID     AssetID
	Locale      Locale
	FileName    string
	ContentType string
	// StorageBackendName selects the backend; empty means the default one.
	StorageBackendName string
}
