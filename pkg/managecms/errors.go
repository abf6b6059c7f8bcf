package managecms

import (
	"errors"
	"fmt"
)

// Error taxonomy. Remote and local implementations of Gateway both return
// errors that match one of the base errors through errors.Is.
var (
	// ErrNotFound indicates the entry, asset or file does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates the store rejected a value or request
	ErrValidation = errors.New("validation failed")

	// ErrPermission indicates the context lacks rights for the mutation
	ErrPermission = errors.New("permission denied")

	// ErrVersionConflict indicates a concurrent write changed the record first
	ErrVersionConflict = errors.New("version conflict")

	// ErrAlreadyExists indicates a create collided with an existing record
	ErrAlreadyExists = errors.New("already exists")
)

var (
	ErrEntryNotFound     = fmt.Errorf("entry %w", ErrNotFound)
	ErrAssetNotFound     = fmt.Errorf("asset %w", ErrNotFound)
	ErrAssetFileNotFound = fmt.Errorf("asset file %w", ErrNotFound)
	ErrFieldNotFound     = fmt.Errorf("field %w", ErrNotFound)

	ErrInvalidValue        = fmt.Errorf("invalid field value: %w", ErrValidation)
	ErrUnknownLocale       = fmt.Errorf("unknown locale: %w", ErrValidation)
	ErrMissingLocale       = fmt.Errorf("missing target locale: %w", ErrValidation)
	ErrOverwriteNotAllowed = fmt.Errorf("overwrite not allowed: %w", ErrValidation)

	ErrStorageBackendNotFound = errors.New("storage backend not found")
	ErrObjectNotFound         = fmt.Errorf("object %w", ErrNotFound)
	ErrDirectAccessRequired   = errors.New("backend does not serve download urls")
)

// MutationError reports a failed entry mutation with the entry, field and
// locale it targeted.
type MutationError struct {
	Op        MutationOp
	ContentID ContentID
	Field     FieldType
	Locale    Locale
	Err       error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s failed for entry %s field %s locale %s: %v", e.Op, e.ContentID, e.Field, e.Locale, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// AssetError reports a failed asset mutation.
type AssetError struct {
	Op      MutationOp
	AssetID AssetID
	Locale  Locale
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("%s failed for asset %s locale %s: %v", e.Op, e.AssetID, e.Locale, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
