package managecms

import (
	"context"
	"io"
	"time"
)

// Gateway is the narrow mutation surface over a content store. Every call is
// a single independent request: no retries, no batching, no ordering between
// concurrent calls.
type Gateway interface {
	// UpdateField overwrites field of entry id in the context's locale.
	UpdateField(ctx context.Context, mc MutationContext, id ContentID, field FieldType, value FieldValue) error

	// CopyField copies field from the from locale into the context's locale.
	// It does not fail when the source has no value for the field.
	CopyField(ctx context.Context, mc MutationContext, id ContentID, field FieldType, from Locale, onlyIfTargetEmpty bool) error

	// CopyAssetFile copies the file variant of from into the context's locale.
	CopyAssetFile(ctx context.Context, mc MutationContext, id AssetID, from Locale) error

	// RemoveAssetFile deletes the context locale's file variant, keeping the asset.
	RemoveAssetFile(ctx context.Context, mc MutationContext, id AssetID) error
}

// LocaleProvider exposes the store's locale configuration.
type LocaleProvider interface {
	DefaultLocale(ctx context.Context) (Locale, error)
	Locales(ctx context.Context) ([]Locale, error)
}

// Repository defines the interface for entry and asset persistence
type Repository interface {
	// Entry operations
	CreateEntry(ctx context.Context, scope Scope, entry *Entry) error
	GetEntry(ctx context.Context, scope Scope, id ContentID) (*Entry, error)
	// UpdateEntry stores entry if the persisted version still equals
	// expectedVersion, otherwise it returns ErrVersionConflict.
	UpdateEntry(ctx context.Context, scope Scope, entry *Entry, expectedVersion int) error
	DeleteEntry(ctx context.Context, scope Scope, id ContentID) error

	// Asset operations
	CreateAsset(ctx context.Context, scope Scope, asset *Asset) error
	GetAsset(ctx context.Context, scope Scope, id AssetID) (*Asset, error)
	UpdateAsset(ctx context.Context, scope Scope, asset *Asset, expectedVersion int) error
	DeleteAsset(ctx context.Context, scope Scope, id AssetID) error
}

// BlobStore defines the interface for storage backends holding asset files
type BlobStore interface {
	// Upload uploads content directly
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams uploads content with additional parameters
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// GetDownloadURL returns a URL for downloading content
	GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// ObjectCopier is implemented by backends that copy objects without
// streaming them through the caller.
type ObjectCopier interface {
	Copy(ctx context.Context, sourceKey, targetKey string) error
}

// EventSink receives a notification after each applied mutation
type EventSink interface {
	FieldUpdated(ctx context.Context, event *MutationEvent) error
	FieldCopied(ctx context.Context, event *MutationEvent) error
	AssetFileCopied(ctx context.Context, event *MutationEvent) error
	AssetFileRemoved(ctx context.Context, event *MutationEvent) error
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}
