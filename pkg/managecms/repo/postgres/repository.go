package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-manage/pkg/managecms"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements managecms.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the tables the repository needs if they are missing
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", operation, managecms.ErrAlreadyExists)
		case "23502": // not_null_violation
			return fmt.Errorf("%s: required field %s is missing: %w", operation, pgErr.ColumnName, managecms.ErrValidation)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - database migration required", operation)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Entry operations

func (r *Repository) CreateEntry(ctx context.Context, scope managecms.Scope, entry *managecms.Entry) error {
	fields, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("encode entry fields: %w", err)
	}

	scope = scope.Normalize()
	query := `
		INSERT INTO manage_entries (
			space, environment, id, content_type, fields,
			version, published_version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		scope.Space, scope.Environment, string(entry.ID), entry.ContentType, fields,
		entry.Version, entry.PublishedVersion, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create entry", err)
	}
	return nil
}

func (r *Repository) GetEntry(ctx context.Context, scope managecms.Scope, id managecms.ContentID) (*managecms.Entry, error) {
	scope = scope.Normalize()
	query := `
		SELECT id, content_type, fields, version, published_version, created_at, updated_at
		FROM manage_entries WHERE space = $1 AND environment = $2 AND id = $3`

	var (
		entry  managecms.Entry
		fields []byte
	)
	err := r.db.QueryRow(ctx, query, scope.Space, scope.Environment, string(id)).Scan(
		&entry.ID, &entry.ContentType, &fields,
		&entry.Version, &entry.PublishedVersion, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, managecms.ErrEntryNotFound
		}
		return nil, r.handlePostgresError("get entry", err)
	}

	if err := json.Unmarshal(fields, &entry.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of entry %s: %w", id, err)
	}
	if entry.Fields == nil {
		entry.Fields = make(managecms.EntryFields)
	}
	return &entry, nil
}

func (r *Repository) UpdateEntry(ctx context.Context, scope managecms.Scope, entry *managecms.Entry, expectedVersion int) error {
	fields, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("encode entry fields: %w", err)
	}

	scope = scope.Normalize()
	query := `
		UPDATE manage_entries SET
			content_type = $4, fields = $5, version = $6,
			published_version = $7, updated_at = $8
		WHERE space = $1 AND environment = $2 AND id = $3 AND version = $9`

	tag, err := r.db.Exec(ctx, query,
		scope.Space, scope.Environment, string(entry.ID),
		entry.ContentType, fields, entry.Version,
		entry.PublishedVersion, entry.UpdatedAt, expectedVersion)
	if err != nil {
		return r.handlePostgresError("update entry", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, "manage_entries", scope, string(entry.ID), expectedVersion, managecms.ErrEntryNotFound)
	}
	return nil
}

func (r *Repository) DeleteEntry(ctx context.Context, scope managecms.Scope, id managecms.ContentID) error {
	scope = scope.Normalize()
	tag, err := r.db.Exec(ctx,
		`DELETE FROM manage_entries WHERE space = $1 AND environment = $2 AND id = $3`,
		scope.Space, scope.Environment, string(id))
	if err != nil {
		return r.handlePostgresError("delete entry", err)
	}
	if tag.RowsAffected() == 0 {
		return managecms.ErrEntryNotFound
	}
	return nil
}

// Asset operations

func (r *Repository) CreateAsset(ctx context.Context, scope managecms.Scope, asset *managecms.Asset) error {
	title, files, err := encodeAsset(asset)
	if err != nil {
		return err
	}

	scope = scope.Normalize()
	query := `
		INSERT INTO manage_assets (
			space, environment, id, title, files,
			version, published_version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		scope.Space, scope.Environment, string(asset.ID), title, files,
		asset.Version, asset.PublishedVersion, asset.CreatedAt, asset.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create asset", err)
	}
	return nil
}

func (r *Repository) GetAsset(ctx context.Context, scope managecms.Scope, id managecms.AssetID) (*managecms.Asset, error) {
	scope = scope.Normalize()
	query := `
		SELECT id, title, files, version, published_version, created_at, updated_at
		FROM manage_assets WHERE space = $1 AND environment = $2 AND id = $3`

	var (
		asset       managecms.Asset
		title, file []byte
	)
	err := r.db.QueryRow(ctx, query, scope.Space, scope.Environment, string(id)).Scan(
		&asset.ID, &title, &file,
		&asset.Version, &asset.PublishedVersion, &asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, managecms.ErrAssetNotFound
		}
		return nil, r.handlePostgresError("get asset", err)
	}

	if err := json.Unmarshal(title, &asset.Title); err != nil {
		return nil, fmt.Errorf("decode title of asset %s: %w", id, err)
	}
	if err := json.Unmarshal(file, &asset.Files); err != nil {
		return nil, fmt.Errorf("decode files of asset %s: %w", id, err)
	}
	if asset.Title == nil {
		asset.Title = make(map[managecms.Locale]string)
	}
	if asset.Files == nil {
		asset.Files = make(map[managecms.Locale]managecms.AssetFile)
	}
	return &asset, nil
}

func (r *Repository) UpdateAsset(ctx context.Context, scope managecms.Scope, asset *managecms.Asset, expectedVersion int) error {
	title, files, err := encodeAsset(asset)
	if err != nil {
		return err
	}

	scope = scope.Normalize()
	query := `
		UPDATE manage_assets SET
			title = $4, files = $5, version = $6,
			published_version = $7, updated_at = $8
		WHERE space = $1 AND environment = $2 AND id = $3 AND version = $9`

	tag, err := r.db.Exec(ctx, query,
		scope.Space, scope.Environment, string(asset.ID),
		title, files, asset.Version,
		asset.PublishedVersion, asset.UpdatedAt, expectedVersion)
	if err != nil {
		return r.handlePostgresError("update asset", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, "manage_assets", scope, string(asset.ID), expectedVersion, managecms.ErrAssetNotFound)
	}
	return nil
}

func (r *Repository) DeleteAsset(ctx context.Context, scope managecms.Scope, id managecms.AssetID) error {
	scope = scope.Normalize()
	tag, err := r.db.Exec(ctx,
		`DELETE FROM manage_assets WHERE space = $1 AND environment = $2 AND id = $3`,
		scope.Space, scope.Environment, string(id))
	if err != nil {
		return r.handlePostgresError("delete asset", err)
	}
	if tag.RowsAffected() == 0 {
		return managecms.ErrAssetNotFound
	}
	return nil
}

// Helpers

func encodeAsset(asset *managecms.Asset) ([]byte, []byte, error) {
	title, err := json.Marshal(asset.Title)
	if err != nil {
		return nil, nil, fmt.Errorf("encode asset title: %w", err)
	}
	files, err := json.Marshal(asset.Files)
	if err != nil {
		return nil, nil, fmt.Errorf("encode asset files: %w", err)
	}
	return title, files, nil
}

// missingOrConflict tells apart a vanished row from a version mismatch
// after a conditional update matched nothing.
func (r *Repository) missingOrConflict(ctx context.Context, table string, scope managecms.Scope, id string, expectedVersion int, notFound error) error {
	var current int
	query := fmt.Sprintf(`SELECT version FROM %s WHERE space = $1 AND environment = $2 AND id = $3`, table)
	err := r.db.QueryRow(ctx, query, scope.Space, scope.Environment, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound
		}
		return r.handlePostgresError("check version", err)
	}
	return fmt.Errorf("%s is at version %d, not %d: %w", id, current, expectedVersion, managecms.ErrVersionConflict)
}
