package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tendant/simple-manage/pkg/managecms"
)

type entryKey struct {
	scope managecms.Scope
	id    managecms.ContentID
}

type assetKey struct {
	scope managecms.Scope
	id    managecms.AssetID
}

// Repository implements managecms.Repository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	entries map[entryKey]*managecms.Entry
	assets  map[assetKey]*managecms.Asset
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		entries: make(map[entryKey]*managecms.Entry),
		assets:  make(map[assetKey]*managecms.Asset),
	}
}

// Entry operations

func (r *Repository) CreateEntry(ctx context.Context, scope managecms.Scope, entry *managecms.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entryKey{scope: scope.Normalize(), id: entry.ID}
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("entry %s: %w", entry.ID, managecms.ErrAlreadyExists)
	}

	// Store a copy to avoid external modifications
	r.entries[key] = entry.Clone()
	return nil
}

func (r *Repository) GetEntry(ctx context.Context, scope managecms.Scope, id managecms.ContentID) (*managecms.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[entryKey{scope: scope.Normalize(), id: id}]
	if !exists {
		return nil, managecms.ErrEntryNotFound
	}
	return entry.Clone(), nil
}

func (r *Repository) UpdateEntry(ctx context.Context, scope managecms.Scope, entry *managecms.Entry, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entryKey{scope: scope.Normalize(), id: entry.ID}
	current, exists := r.entries[key]
	if !exists {
		return managecms.ErrEntryNotFound
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("entry %s is at version %d, not %d: %w", entry.ID, current.Version, expectedVersion, managecms.ErrVersionConflict)
	}

	r.entries[key] = entry.Clone()
	return nil
}

func (r *Repository) DeleteEntry(ctx context.Context, scope managecms.Scope, id managecms.ContentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entryKey{scope: scope.Normalize(), id: id}
	if _, exists := r.entries[key]; !exists {
		return managecms.ErrEntryNotFound
	}
	delete(r.entries, key)
	return nil
}

// Asset operations

func (r *Repository) CreateAsset(ctx context.Context, scope managecms.Scope, asset *managecms.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := assetKey{scope: scope.Normalize(), id: asset.ID}
	if _, exists := r.assets[key]; exists {
		return fmt.Errorf("asset %s: %w", asset.ID, managecms.ErrAlreadyExists)
	}

	r.assets[key] = asset.Clone()
	return nil
}

func (r *Repository) GetAsset(ctx context.Context, scope managecms.Scope, id managecms.AssetID) (*managecms.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, exists := r.assets[assetKey{scope: scope.Normalize(), id: id}]
	if !exists {
		return nil, managecms.ErrAssetNotFound
	}
	return asset.Clone(), nil
}

func (r *Repository) UpdateAsset(ctx context.Context, scope managecms.Scope, asset *managecms.Asset, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := assetKey{scope: scope.Normalize(), id: asset.ID}
	current, exists := r.assets[key]
	if !exists {
		return managecms.ErrAssetNotFound
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("asset %s is at version %d, not %d: %w", asset.ID, current.Version, expectedVersion, managecms.ErrVersionConflict)
	}

	r.assets[key] = asset.Clone()
	return nil
}

func (r *Repository) DeleteAsset(ctx context.Context, scope managecms.Scope, id managecms.AssetID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := assetKey{scope: scope.Normalize(), id: id}
	if _, exists := r.assets[key]; !exists {
		return managecms.ErrAssetNotFound
	}
	delete(r.assets, key)
	return nil
}
