package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/tendant/simple-manage/pkg/managecms"
	redisevents "github.com/tendant/simple-manage/pkg/managecms/events/redis"
	"github.com/tendant/simple-manage/pkg/managecms/objectkey"
	"github.com/tendant/simple-manage/pkg/managecms/repo/memory"
	repopg "github.com/tendant/simple-manage/pkg/managecms/repo/postgres"
	fsstorage "github.com/tendant/simple-manage/pkg/managecms/storage/fs"
	memorystorage "github.com/tendant/simple-manage/pkg/managecms/storage/memory"
	s3storage "github.com/tendant/simple-manage/pkg/managecms/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		DatabaseType:          "memory",
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{
				Name:   "memory",
				Type:   "memory",
				Config: map[string]interface{}{},
			},
		},
		DefaultLocale:      "en",
		Locales:            []string{"en"},
		ObjectKeyGenerator: "recommended",
		EventSink:          "log",
		RedisChannel:       "manage.mutations",
		RequestTimeout:     60 * time.Second,
	}
}

// ServerConfig represents server configuration for the simple-manage service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use, empty keeps the server default
	AutoMigrate  bool   // Create missing tables on start

	// Storage configuration
	DefaultStorageBackend string
	StorageBackends       []StorageBackendConfig
	ObjectKeyGenerator    string // "recommended", "locale", "git-like"

	// Locale configuration
	DefaultLocale string
	Locales       []string

	// Events
	EventSink    string // "none", "log", "redis"
	RedisURL     string
	RedisChannel string

	// API
	JWTSecret      string
	RequestTimeout time.Duration // per request deadline of the API server
	MaxUploadSize  int64         // asset file upload limit in bytes, 0 for none
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	found := false
	for _, backend := range c.StorageBackends {
		if backend.Name == c.DefaultStorageBackend {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
	}

	if c.DefaultLocale == "" {
		return errors.New("default locale is required")
	}
	found = false
	for _, l := range c.Locales {
		if strings.EqualFold(l, c.DefaultLocale) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default locale '%s' not found in configured locales", c.DefaultLocale)
	}

	switch c.EventSink {
	case "none", "log":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("redis_url is required when using the redis event sink")
		}
	default:
		return fmt.Errorf("unsupported event sink: %s", c.EventSink)
	}

	switch c.ObjectKeyGenerator {
	case "recommended", "locale", "git-like":
	default:
		return fmt.Errorf("unsupported object key generator: %s", c.ObjectKeyGenerator)
	}

	if c.Environment == "production" && c.JWTSecret == "" {
		return errors.New("jwt_secret is required in production")
	}

	return nil
}

// BuildService creates a Service instance from the server configuration. The
// returned cleanup function releases database and broker connections.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (managecms.Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	options := []managecms.Option{managecms.WithLogger(logger)}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}
	options = append(options, managecms.WithRepository(repo))

	for _, backendConfig := range c.StorageBackends {
		store, err := c.buildStorageBackend(backendConfig)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to build storage backend %s: %w", backendConfig.Name, err)
		}
		options = append(options, managecms.WithBlobStore(backendConfig.Name, store))
	}
	options = append(options,
		managecms.WithDefaultStorageBackend(c.DefaultStorageBackend),
		managecms.WithKeyGenerator(c.buildKeyGenerator()),
	)

	locales := make([]managecms.Locale, 0, len(c.Locales))
	for _, l := range c.Locales {
		locales = append(locales, managecms.Locale(l))
	}
	options = append(options, managecms.WithLocales(managecms.Locale(c.DefaultLocale), locales...))

	switch c.EventSink {
	case "log":
		options = append(options, managecms.WithEventSink(managecms.NewLoggingEventSink(logger)))
	case "redis":
		redisOptions, err := goredis.ParseURL(c.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to parse redis_url: %w", err)
		}
		client := goredis.NewClient(redisOptions)
		closers = append(closers, func() { _ = client.Close() })
		options = append(options, managecms.WithEventSink(redisevents.New(client, c.RedisChannel)))
	}

	svc, err := managecms.New(options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (managecms.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		repo := repopg.NewWithPool(pool)
		if c.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repo, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres with the configured schema.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(config StorageBackendConfig) (managecms.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   getString(config.Config, "base_dir", "./data/storage"),
			URLPrefix: getString(config.Config, "url_prefix", ""),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			PresignDuration:        getInt(config.Config, "presign_duration", 3600),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func (c *ServerConfig) buildKeyGenerator() objectkey.Generator {
	switch c.ObjectKeyGenerator {
	case "locale":
		return objectkey.NewLocaleGenerator()
	case "git-like":
		return objectkey.NewScopedGenerator(objectkey.NewGitLikeGenerator())
	default:
		return objectkey.NewRecommendedGenerator()
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		switch v := value.(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	}
	return defaultValue
}

func getInt(config map[string]interface{}, key string, defaultValue int) int {
	if value, exists := config[key]; exists {
		switch v := value.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case string:
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
	}
	return defaultValue
}
