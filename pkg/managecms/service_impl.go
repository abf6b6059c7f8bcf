package managecms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-manage/pkg/managecms/objectkey"
)

// service implements the Service interface
type service struct {
	repository     Repository
	blobStores     map[string]BlobStore
	defaultBackend string
	eventSink      EventSink
	logger         *slog.Logger
	keyGenerator   objectkey.Generator
	defaultLocale  Locale
	locales        []Locale
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore adds a blob storage backend
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
	}
}

// WithDefaultStorageBackend selects the backend new asset files go to
func WithDefaultStorageBackend(name string) Option {
	return func(s *service) {
		s.defaultBackend = name
	}
}

// WithLocales sets the default locale and the other locales the store accepts
func WithLocales(defaultLocale Locale, others ...Locale) Option {
	return func(s *service) {
		s.defaultLocale = defaultLocale
		s.locales = []Locale{defaultLocale}
		for _, l := range others {
			if l == "" || containsLocale(s.locales, l) {
				continue
			}
			s.locales = append(s.locales, l)
		}
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithKeyGenerator sets the object key strategy for asset files
func WithKeyGenerator(generator objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = generator
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores:   make(map[string]BlobStore),
		eventSink:    NewNoopEventSink(),
		logger:       slog.Default(),
		keyGenerator: objectkey.NewRecommendedGenerator(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.defaultLocale == "" {
		s.defaultLocale = "en"
		s.locales = []Locale{"en"}
	}

	if s.defaultBackend == "" && len(s.blobStores) == 1 {
		for name := range s.blobStores {
			s.defaultBackend = name
		}
	}
	if s.defaultBackend != "" {
		if _, ok := s.blobStores[s.defaultBackend]; !ok {
			return nil, fmt.Errorf("default storage backend '%s' is not registered", s.defaultBackend)
		}
	}

	return s, nil
}

// Locale handling

func containsLocale(locales []Locale, l Locale) bool {
	for _, existing := range locales {
		if strings.EqualFold(string(existing), string(l)) {
			return true
		}
	}
	return false
}

// resolveLocale maps l onto the configured spelling of the locale.
func (s *service) resolveLocale(l Locale) (Locale, error) {
	if strings.TrimSpace(string(l)) == "" {
		return "", ErrMissingLocale
	}
	for _, configured := range s.locales {
		if strings.EqualFold(string(configured), string(l)) {
			return configured, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownLocale, l)
}

// sourceLocale resolves a copy source leniently: unknown locales simply
// have no values.
func (s *service) sourceLocale(l Locale) Locale {
	if resolved, err := s.resolveLocale(l); err == nil {
		return resolved
	}
	return l
}

func (s *service) DefaultLocale(ctx context.Context) (Locale, error) {
	return s.defaultLocale, nil
}

func (s *service) Locales(ctx context.Context) ([]Locale, error) {
	return append([]Locale(nil), s.locales...), nil
}

// Gateway operations

func (s *service) UpdateField(ctx context.Context, mc MutationContext, id ContentID, field FieldType, value FieldValue) error {
	fail := func(locale Locale, err error) error {
		return &MutationError{Op: OpUpdateField, ContentID: id, Field: field, Locale: locale, Err: err}
	}

	locale, err := s.resolveLocale(mc.Locale)
	if err != nil {
		return fail(mc.Locale, err)
	}
	if err := ValidateValue(field, value); err != nil {
		return fail(locale, err)
	}
	raw, err := EncodeValue(field, value)
	if err != nil {
		return fail(locale, err)
	}

	scope := mc.Scope()
	entry, err := s.repository.GetEntry(ctx, scope, id)
	if err != nil {
		return fail(locale, err)
	}

	if current, ok := entry.Value(field, locale); ok && !IsEmptyRaw(current) && mc.NoOverwrite {
		return fail(locale, ErrOverwriteNotAllowed)
	}

	entry.SetValue(field, locale, raw)
	written, err := s.writeEntry(ctx, mc, entry)
	if err != nil {
		return fail(locale, err)
	}

	if written {
		s.emit(ctx, &MutationEvent{
			Op:        OpUpdateField,
			Scope:     scope,
			ContentID: id,
			Field:     field,
			Locale:    locale,
			Version:   entry.Version,
		})
	}
	return nil
}

func (s *service) CopyField(ctx context.Context, mc MutationContext, id ContentID, field FieldType, from Locale, onlyIfTargetEmpty bool) error {
	fail := func(locale Locale, err error) error {
		return &MutationError{Op: OpCopyField, ContentID: id, Field: field, Locale: locale, Err: err}
	}

	locale, err := s.resolveLocale(mc.Locale)
	if err != nil {
		return fail(mc.Locale, err)
	}

	scope := mc.Scope()
	entry, err := s.repository.GetEntry(ctx, scope, id)
	if err != nil {
		return fail(locale, err)
	}

	from = s.sourceLocale(from)
	if from == locale {
		return nil
	}

	source, ok := entry.Value(field, from)
	if !ok || IsEmptyRaw(source) {
		s.logger.DebugContext(ctx, "Source locale has no value, nothing to copy",
			"content_id", string(id), "field", string(field), "from", from.String())
		return nil
	}

	target, _ := entry.Value(field, locale)
	if !IsEmptyRaw(target) {
		if onlyIfTargetEmpty {
			s.logger.DebugContext(ctx, "Target locale already has a value, copy skipped",
				"content_id", string(id), "field", string(field), "locale", locale.String())
			return nil
		}
		if mc.NoOverwrite {
			return fail(locale, ErrOverwriteNotAllowed)
		}
	}

	entry.SetValue(field, locale, append(json.RawMessage(nil), source...))
	written, err := s.writeEntry(ctx, mc, entry)
	if err != nil {
		return fail(locale, err)
	}

	if written {
		s.emit(ctx, &MutationEvent{
			Op:         OpCopyField,
			Scope:      scope,
			ContentID:  id,
			Field:      field,
			FromLocale: from,
			Locale:     locale,
			Version:    entry.Version,
		})
	}
	return nil
}

func (s *service) CopyAssetFile(ctx context.Context, mc MutationContext, id AssetID, from Locale) error {
	fail := func(locale Locale, err error) error {
		return &AssetError{Op: OpCopyAssetFile, AssetID: id, Locale: locale, Err: err}
	}

	locale, err := s.resolveLocale(mc.Locale)
	if err != nil {
		return fail(mc.Locale, err)
	}

	scope := mc.Scope()
	asset, err := s.repository.GetAsset(ctx, scope, id)
	if err != nil {
		return fail(locale, err)
	}

	from = s.sourceLocale(from)
	source, ok := asset.Files[from]
	if !ok {
		return fail(locale, fmt.Errorf("%w: no file for locale %s", ErrAssetFileNotFound, from))
	}
	if from == locale {
		return nil
	}

	previous, hadPrevious := asset.Files[locale]
	if hadPrevious && mc.NoOverwrite {
		return fail(locale, ErrOverwriteNotAllowed)
	}

	if mc.DryRun {
		s.logger.InfoContext(ctx, "Dry run, asset file not copied",
			"scope", scope.String(), "asset_id", string(id), "from", from.String(), "locale", locale.String())
		return nil
	}

	file, err := s.copyBlob(ctx, scope, id, locale, source)
	if err != nil {
		return fail(locale, err)
	}

	asset.Files[locale] = file
	if err := s.writeAsset(ctx, scope, asset); err != nil {
		s.deleteBlob(ctx, file)
		return fail(locale, err)
	}
	if hadPrevious {
		s.deleteBlob(ctx, previous)
	}

	s.emit(ctx, &MutationEvent{
		Op:         OpCopyAssetFile,
		Scope:      scope,
		AssetID:    id,
		FromLocale: from,
		Locale:     locale,
		Version:    asset.Version,
	})
	return nil
}

func (s *service) RemoveAssetFile(ctx context.Context, mc MutationContext, id AssetID) error {
	fail := func(locale Locale, err error) error {
		return &AssetError{Op: OpRemoveAssetFile, AssetID: id, Locale: locale, Err: err}
	}

	locale, err := s.resolveLocale(mc.Locale)
	if err != nil {
		return fail(mc.Locale, err)
	}

	scope := mc.Scope()
	asset, err := s.repository.GetAsset(ctx, scope, id)
	if err != nil {
		return fail(locale, err)
	}

	file, ok := asset.Files[locale]
	if !ok {
		return nil
	}

	if mc.DryRun {
		s.logger.InfoContext(ctx, "Dry run, asset file not removed",
			"scope", scope.String(), "asset_id", string(id), "locale", locale.String())
		return nil
	}

	delete(asset.Files, locale)
	if err := s.writeAsset(ctx, scope, asset); err != nil {
		return fail(locale, err)
	}
	// The record no longer references the blob; a failed delete only
	// leaves an orphan object behind.
	s.deleteBlob(ctx, file)

	s.emit(ctx, &MutationEvent{
		Op:      OpRemoveAssetFile,
		Scope:   scope,
		AssetID: id,
		Locale:  locale,
		Version: asset.Version,
	})
	return nil
}

// Entry operations

func (s *service) CreateEntry(ctx context.Context, scope Scope, req CreateEntryRequest) (*Entry, error) {
	scope = scope.Normalize()
	id := req.ID
	if id == "" {
		id = ContentID(uuid.New().String())
	}

	now := time.Now().UTC()
	entry := &Entry{
		ID:               id,
		ContentType:      req.ContentType,
		Fields:           make(EntryFields),
		Version:          1,
		PublishedVersion: 1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for field, byLocale := range req.Fields {
		for locale, value := range byLocale {
			resolved, err := s.resolveLocale(locale)
			if err != nil {
				return nil, fmt.Errorf("create entry %s: %w", id, err)
			}
			if err := ValidateValue(field, value); err != nil {
				return nil, fmt.Errorf("create entry %s: %w", id, err)
			}
			raw, err := EncodeValue(field, value)
			if err != nil {
				return nil, fmt.Errorf("create entry %s: %w", id, err)
			}
			entry.SetValue(field, resolved, raw)
		}
	}

	if err := s.repository.CreateEntry(ctx, scope, entry); err != nil {
		return nil, fmt.Errorf("create entry %s: %w", id, err)
	}
	return entry, nil
}

func (s *service) GetEntry(ctx context.Context, scope Scope, id ContentID) (*Entry, error) {
	return s.repository.GetEntry(ctx, scope.Normalize(), id)
}

func (s *service) GetField(ctx context.Context, scope Scope, id ContentID, field FieldType, locale Locale) (FieldValue, error) {
	entry, err := s.repository.GetEntry(ctx, scope.Normalize(), id)
	if err != nil {
		return nil, err
	}

	raw, ok := entry.Value(field, s.sourceLocale(locale))
	if !ok || IsEmptyRaw(raw) {
		return nil, fmt.Errorf("entry %s field %s locale %s: %w", id, field, locale, ErrFieldNotFound)
	}
	return DecodeValue(field, raw)
}

func (s *service) PutEntry(ctx context.Context, scope Scope, entry *Entry, expectedVersion int) (*Entry, error) {
	scope = scope.Normalize()
	current, err := s.repository.GetEntry(ctx, scope, entry.ID)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("entry %s is at version %d, not %d: %w", entry.ID, current.Version, expectedVersion, ErrVersionConflict)
	}

	next := current.Clone()
	next.Fields = make(EntryFields)
	if entry.ContentType != "" {
		next.ContentType = entry.ContentType
	}

	for field, byLocale := range entry.Fields {
		for locale, raw := range byLocale {
			if IsEmptyRaw(raw) {
				continue
			}
			resolved, err := s.resolveLocale(locale)
			if err != nil {
				return nil, fmt.Errorf("entry %s field %s: %w", entry.ID, field, err)
			}
			value, err := DecodeValue(field, raw)
			if err != nil {
				return nil, fmt.Errorf("entry %s field %s locale %s: %w", entry.ID, field, resolved, err)
			}
			if err := ValidateValue(field, value); err != nil {
				return nil, fmt.Errorf("entry %s field %s locale %s: %w", entry.ID, field, resolved, err)
			}
			canonical, err := EncodeValue(field, value)
			if err != nil {
				return nil, fmt.Errorf("entry %s field %s locale %s: %w", entry.ID, field, resolved, err)
			}
			next.SetValue(field, resolved, canonical)
		}
	}

	next.Version = expectedVersion + 1
	next.PublishedVersion = next.Version
	next.UpdatedAt = time.Now().UTC()
	if err := s.repository.UpdateEntry(ctx, scope, next, expectedVersion); err != nil {
		return nil, err
	}

	for _, change := range changedFields(current, next) {
		s.emit(ctx, &MutationEvent{
			Op:        OpUpdateField,
			Scope:     scope,
			ContentID: next.ID,
			Field:     change.field,
			Locale:    change.locale,
			Version:   next.Version,
		})
	}
	return next, nil
}

type fieldChange struct {
	field  FieldType
	locale Locale
}

func changedFields(before, after *Entry) []fieldChange {
	var changes []fieldChange
	for field, byLocale := range after.Fields {
		for locale, raw := range byLocale {
			if old, ok := before.Value(field, locale); !ok || !bytes.Equal(old, raw) {
				changes = append(changes, fieldChange{field: field, locale: locale})
			}
		}
	}
	for field, byLocale := range before.Fields {
		for locale := range byLocale {
			if _, ok := after.Value(field, locale); !ok {
				changes = append(changes, fieldChange{field: field, locale: locale})
			}
		}
	}
	return changes
}

func (s *service) DeleteEntry(ctx context.Context, scope Scope, id ContentID) error {
	return s.repository.DeleteEntry(ctx, scope.Normalize(), id)
}

// Asset operations

func (s *service) CreateAsset(ctx context.Context, scope Scope, req CreateAssetRequest) (*Asset, error) {
	scope = scope.Normalize()
	id := req.ID
	if id == "" {
		id = AssetID(uuid.New().String())
	}

	now := time.Now().UTC()
	asset := &Asset{
		ID:               id,
		Title:            make(map[Locale]string),
		Files:            make(map[Locale]AssetFile),
		Version:          1,
		PublishedVersion: 1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for locale, title := range req.Title {
		resolved, err := s.resolveLocale(locale)
		if err != nil {
			return nil, fmt.Errorf("create asset %s: %w", id, err)
		}
		asset.Title[resolved] = title
	}

	if err := s.repository.CreateAsset(ctx, scope, asset); err != nil {
		return nil, fmt.Errorf("create asset %s: %w", id, err)
	}
	return asset, nil
}

func (s *service) GetAsset(ctx context.Context, scope Scope, id AssetID) (*Asset, error) {
	return s.repository.GetAsset(ctx, scope.Normalize(), id)
}

// ReplaceAsset applies update to asset id as one write at expectedVersion.
// Copies read the variants the asset had before the update. Blobs copied for
// the update are deleted again when any step fails, and the blobs it replaces
// or drops are deleted only once the write succeeded.
func (s *service) ReplaceAsset(ctx context.Context, scope Scope, id AssetID, update AssetUpdate, expectedVersion int) (*Asset, error) {
	scope = scope.Normalize()
	asset, err := s.repository.GetAsset(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if asset.Version != expectedVersion {
		return nil, fmt.Errorf("asset %s is at version %d, not %d: %w", id, asset.Version, expectedVersion, ErrVersionConflict)
	}

	if update.Title != nil {
		title := make(map[Locale]string, len(update.Title))
		for locale, t := range update.Title {
			resolved, err := s.resolveLocale(locale)
			if err != nil {
				return nil, fmt.Errorf("asset %s title: %w", id, err)
			}
			title[resolved] = t
		}
		asset.Title = title
	}

	removals := make(map[Locale]bool, len(update.Removals))
	for _, locale := range update.Removals {
		resolved, err := s.resolveLocale(locale)
		if err != nil {
			return nil, &AssetError{Op: OpRemoveAssetFile, AssetID: id, Locale: locale, Err: err}
		}
		removals[resolved] = true
	}

	copies := make(map[Locale]Locale, len(update.Copies))
	for to, from := range update.Copies {
		target, err := s.resolveLocale(to)
		if err != nil {
			return nil, &AssetError{Op: OpCopyAssetFile, AssetID: id, Locale: to, Err: err}
		}
		source := s.sourceLocale(from)
		if _, ok := asset.Files[source]; !ok {
			return nil, &AssetError{Op: OpCopyAssetFile, AssetID: id, Locale: target,
				Err: fmt.Errorf("%w: no file for locale %s", ErrAssetFileNotFound, source)}
		}
		if removals[target] {
			return nil, &AssetError{Op: OpCopyAssetFile, AssetID: id, Locale: target,
				Err: fmt.Errorf("%w: locale %s is both copied and removed", ErrValidation, target)}
		}
		if source != target {
			copies[target] = source
		}
	}

	sources := maps.Clone(asset.Files)
	var created, dropped []AssetFile
	discard := func() {
		for _, file := range created {
			s.deleteBlob(ctx, file)
		}
	}

	targets := slices.Sorted(maps.Keys(copies))
	for _, to := range targets {
		file, err := s.copyBlob(ctx, scope, id, to, sources[copies[to]])
		if err != nil {
			discard()
			return nil, &AssetError{Op: OpCopyAssetFile, AssetID: id, Locale: to, Err: err}
		}
		created = append(created, file)
		if previous, ok := asset.Files[to]; ok {
			dropped = append(dropped, previous)
		}
		asset.Files[to] = file
	}

	var removed []Locale
	for locale := range removals {
		if file, ok := asset.Files[locale]; ok {
			dropped = append(dropped, file)
			delete(asset.Files, locale)
			removed = append(removed, locale)
		}
	}
	slices.Sort(removed)

	if err := s.writeAsset(ctx, scope, asset); err != nil {
		discard()
		return nil, err
	}
	for _, file := range dropped {
		s.deleteBlob(ctx, file)
	}

	for _, to := range targets {
		s.emit(ctx, &MutationEvent{
			Op:         OpCopyAssetFile,
			Scope:      scope,
			AssetID:    id,
			FromLocale: copies[to],
			Locale:     to,
			Version:    asset.Version,
		})
	}
	for _, locale := range removed {
		s.emit(ctx, &MutationEvent{
			Op:      OpRemoveAssetFile,
			Scope:   scope,
			AssetID: id,
			Locale:  locale,
			Version: asset.Version,
		})
	}
	return asset, nil
}

func (s *service) DeleteAsset(ctx context.Context, scope Scope, id AssetID) error {
	scope = scope.Normalize()
	asset, err := s.repository.GetAsset(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.repository.DeleteAsset(ctx, scope, id); err != nil {
		return err
	}
	for _, file := range asset.Files {
		s.deleteBlob(ctx, file)
	}
	return nil
}

// Asset file operations

func (s *service) UploadAssetFile(ctx context.Context, scope Scope, req UploadAssetFileRequest, reader io.Reader) (*AssetFile, error) {
	scope = scope.Normalize()
	locale, err := s.resolveLocale(req.Locale)
	if err != nil {
		return nil, fmt.Errorf("upload file for asset %s: %w", req.AssetID, err)
	}

	asset, err := s.repository.GetAsset(ctx, scope, req.AssetID)
	if err != nil {
		return nil, err
	}

	backendName := req.StorageBackendName
	if backendName == "" {
		backendName = s.defaultBackend
	}
	store, err := s.backend(backendName)
	if err != nil {
		return nil, err
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := s.keyGenerator.GenerateKey(uuid.New(), &objectkey.KeyMetadata{
		Space:       scope.Space,
		Environment: scope.Environment,
		AssetID:     string(req.AssetID),
		Locale:      locale.String(),
		FileName:    req.FileName,
		ContentType: contentType,
	})

	counter := &countingReader{r: reader}
	if err := store.UploadWithParams(ctx, counter, UploadParams{ObjectKey: key, MimeType: contentType}); err != nil {
		return nil, &StorageError{Backend: backendName, Key: key, Op: "upload", Err: err}
	}

	file := AssetFile{
		FileName:           req.FileName,
		ContentType:        contentType,
		Size:               counter.n,
		StorageBackendName: backendName,
		ObjectKey:          key,
		UpdatedAt:          time.Now().UTC(),
	}

	previous, hadPrevious := asset.Files[locale]
	asset.Files[locale] = file
	if err := s.writeAsset(ctx, scope, asset); err != nil {
		s.deleteBlob(ctx, file)
		return nil, err
	}
	if hadPrevious {
		s.deleteBlob(ctx, previous)
	}

	return &file, nil
}

func (s *service) DownloadAssetFile(ctx context.Context, scope Scope, id AssetID, locale Locale) (io.ReadCloser, *AssetFile, error) {
	file, store, err := s.assetFile(ctx, scope, id, locale)
	if err != nil {
		return nil, nil, err
	}

	reader, err := store.Download(ctx, file.ObjectKey)
	if err != nil {
		return nil, nil, &StorageError{Backend: file.StorageBackendName, Key: file.ObjectKey, Op: "download", Err: err}
	}
	return reader, file, nil
}

func (s *service) GetAssetFileURL(ctx context.Context, scope Scope, id AssetID, locale Locale) (string, error) {
	file, store, err := s.assetFile(ctx, scope, id, locale)
	if err != nil {
		return "", err
	}
	return store.GetDownloadURL(ctx, file.ObjectKey, file.FileName)
}

func (s *service) assetFile(ctx context.Context, scope Scope, id AssetID, locale Locale) (*AssetFile, BlobStore, error) {
	asset, err := s.repository.GetAsset(ctx, scope.Normalize(), id)
	if err != nil {
		return nil, nil, err
	}

	file, ok := asset.Files[s.sourceLocale(locale)]
	if !ok {
		return nil, nil, fmt.Errorf("asset %s locale %s: %w", id, locale, ErrAssetFileNotFound)
	}

	store, err := s.backend(file.StorageBackendName)
	if err != nil {
		return nil, nil, err
	}
	return &file, store, nil
}

// Helpers

func (s *service) backend(name string) (BlobStore, error) {
	store, ok := s.blobStores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, name)
	}
	return store, nil
}

// writeEntry persists and publishes entry at the next version. It reports
// whether anything was written.
func (s *service) writeEntry(ctx context.Context, mc MutationContext, entry *Entry) (bool, error) {
	if mc.DryRun {
		s.logger.InfoContext(ctx, "Dry run, entry not written",
			"scope", mc.Scope().String(), "content_id", string(entry.ID), "version", entry.Version)
		return false, nil
	}

	expected := entry.Version
	entry.Version++
	entry.PublishedVersion = entry.Version
	entry.UpdatedAt = time.Now().UTC()
	if err := s.repository.UpdateEntry(ctx, mc.Scope(), entry, expected); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) writeAsset(ctx context.Context, scope Scope, asset *Asset) error {
	expected := asset.Version
	asset.Version++
	asset.PublishedVersion = asset.Version
	asset.UpdatedAt = time.Now().UTC()
	return s.repository.UpdateAsset(ctx, scope, asset, expected)
}

func (s *service) copyBlob(ctx context.Context, scope Scope, id AssetID, locale Locale, source AssetFile) (AssetFile, error) {
	store, err := s.backend(source.StorageBackendName)
	if err != nil {
		return AssetFile{}, err
	}

	key := s.keyGenerator.GenerateKey(uuid.New(), &objectkey.KeyMetadata{
		Space:       scope.Space,
		Environment: scope.Environment,
		AssetID:     string(id),
		Locale:      locale.String(),
		FileName:    source.FileName,
		ContentType: source.ContentType,
	})

	if copier, ok := store.(ObjectCopier); ok {
		if err := copier.Copy(ctx, source.ObjectKey, key); err != nil {
			return AssetFile{}, &StorageError{Backend: source.StorageBackendName, Key: key, Op: "copy", Err: err}
		}
	} else {
		reader, err := store.Download(ctx, source.ObjectKey)
		if err != nil {
			return AssetFile{}, &StorageError{Backend: source.StorageBackendName, Key: source.ObjectKey, Op: "download", Err: err}
		}
		defer reader.Close()

		if err := store.UploadWithParams(ctx, reader, UploadParams{ObjectKey: key, MimeType: source.ContentType}); err != nil {
			return AssetFile{}, &StorageError{Backend: source.StorageBackendName, Key: key, Op: "upload", Err: err}
		}
	}

	copied := source
	copied.ObjectKey = key
	copied.UpdatedAt = time.Now().UTC()
	return copied, nil
}

func (s *service) deleteBlob(ctx context.Context, file AssetFile) {
	store, err := s.backend(file.StorageBackendName)
	if err != nil {
		s.logger.WarnContext(ctx, "Cannot delete asset file blob", "object_key", file.ObjectKey, "error", err)
		return
	}
	if err := store.Delete(ctx, file.ObjectKey); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete asset file blob",
			"backend", file.StorageBackendName, "object_key", file.ObjectKey, "error", err)
	}
}

func (s *service) emit(ctx context.Context, event *MutationEvent) {
	event.ID = uuid.New()
	event.OccurredAt = time.Now().UTC()

	var err error
	switch event.Op {
	case OpUpdateField:
		err = s.eventSink.FieldUpdated(ctx, event)
	case OpCopyField:
		err = s.eventSink.FieldCopied(ctx, event)
	case OpCopyAssetFile:
		err = s.eventSink.AssetFileCopied(ctx, event)
	case OpRemoveAssetFile:
		err = s.eventSink.AssetFileRemoved(ctx, event)
	}
	// Event delivery never fails the mutation
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish mutation event", "op", string(event.Op), "error", err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
