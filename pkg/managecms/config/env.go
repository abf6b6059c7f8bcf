package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//	JWT_SECRET - HS256 secret for API bearer tokens
//
// Database:
//
//	DATABASE_URL - "memory" (default) or "postgres://..." / "postgresql://..."
//	DB_SCHEMA - Postgres schema placed on the search_path
//	AUTO_MIGRATE - Create missing tables on start
//
// Storage:
//
//	STORAGE_URL - "memory://" (default), "file:///path/to/data" or
//	              "s3://bucket?region=us-east-1&endpoint=http://localhost:9000"
//	OBJECT_KEY_GENERATOR - "recommended", "locale" or "git-like"
//
// Locales:
//
//	DEFAULT_LOCALE - Default locale (default: "en")
//	LOCALES - Comma separated list of accepted locales
//
// Events:
//
//	EVENTS_URL - "none", "log" (default) or "redis://host:6379/0?channel=name"
//
// Limits:
//
//	REQUEST_TIMEOUT - API request deadline, e.g. "60s"
//	MAX_UPLOAD_SIZE - Asset file upload limit in bytes
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "JWT_SECRET"); ok && v != "" {
			c.JWTSecret = v
		}
		if v, ok := lookupEnv(prefix, "OBJECT_KEY_GENERATOR"); ok && v != "" {
			c.ObjectKeyGenerator = v
		}
		if v, ok := lookupEnv(prefix, "REQUEST_TIMEOUT"); ok && v != "" {
			ttl, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid duration for %sREQUEST_TIMEOUT: %w", prefix, err)
			}
			c.RequestTimeout = ttl
		}
		if v, ok := lookupEnv(prefix, "MAX_UPLOAD_SIZE"); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid size for %sMAX_UPLOAD_SIZE: %q", prefix, v)
			}
			c.MaxUploadSize = n
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}
		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}
		applyLocaleEnv(prefix, c)
		return applyEventsEnv(prefix, c)
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	if v, ok := lookupEnv(prefix, "DB_SCHEMA"); ok {
		c.DBSchema = v
	}
	migrate, ok, err := parseBoolEnv(prefix, "AUTO_MIGRATE")
	if err != nil {
		return err
	}
	if ok {
		c.AutoMigrate = migrate
	}

	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")
	if !hasURL || dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
		return nil
	}
	return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")
	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.DefaultStorageBackend = "memory"
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{Name: "memory", Type: "memory"})
		return nil
	}

	switch {
	case strings.HasPrefix(storageURL, "file://"):
		return applyFilesystemStorage(storageURL, c)
	case strings.HasPrefix(storageURL, "s3://"):
		return applyS3Storage(storageURL, c)
	}
	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from file:///path/to/data
func applyFilesystemStorage(storageURL string, c *ServerConfig) error {
	path := strings.TrimPrefix(storageURL, "file://")
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}

	c.DefaultStorageBackend = "fs"
	c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
		Name:   "fs",
		Type:   "fs",
		Config: map[string]interface{}{"base_dir": path},
	})
	return nil
}

// applyS3Storage configures S3 storage from
// s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true
func applyS3Storage(storageURL string, c *ServerConfig) error {
	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	query := u.Query()
	backend := StorageBackendConfig{
		Name: "s3",
		Type: "s3",
		Config: map[string]interface{}{
			"bucket": u.Host,
			"region": "us-east-1",
		},
	}
	if v := query.Get("region"); v != "" {
		backend.Config["region"] = v
	}
	if v := query.Get("endpoint"); v != "" {
		backend.Config["endpoint"] = v
		backend.Config["use_path_style"] = true
	}
	if v := query.Get("path_style"); v != "" {
		backend.Config["use_path_style"] = v
	}
	if v := query.Get("create_bucket"); v != "" {
		backend.Config["create_bucket_if_not_exist"] = v
	}

	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		backend.Config["access_key_id"] = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		backend.Config["secret_access_key"] = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" && query.Get("region") == "" {
		backend.Config["region"] = region
	}

	c.DefaultStorageBackend = "s3"
	c.StorageBackends = upsertStorageBackend(c.StorageBackends, backend)
	return nil
}

func applyLocaleEnv(prefix string, c *ServerConfig) {
	if v, ok := lookupEnv(prefix, "LOCALES"); ok && v != "" {
		var locales []string
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				locales = append(locales, l)
			}
		}
		c.Locales = locales
	}
	if v, ok := lookupEnv(prefix, "DEFAULT_LOCALE"); ok && v != "" {
		c.DefaultLocale = v
	}
	// The default locale is always accepted
	for _, l := range c.Locales {
		if strings.EqualFold(l, c.DefaultLocale) {
			return
		}
	}
	c.Locales = append([]string{c.DefaultLocale}, c.Locales...)
}

func applyEventsEnv(prefix string, c *ServerConfig) error {
	eventsURL, ok := lookupEnv(prefix, "EVENTS_URL")
	if !ok || eventsURL == "" {
		return nil
	}

	switch {
	case eventsURL == "none" || eventsURL == "log":
		c.EventSink = eventsURL
	case strings.HasPrefix(eventsURL, "redis://") || strings.HasPrefix(eventsURL, "rediss://"):
		u, err := url.Parse(eventsURL)
		if err != nil {
			return fmt.Errorf("invalid EVENTS_URL: %w", err)
		}
		if channel := u.Query().Get("channel"); channel != "" {
			c.RedisChannel = channel
		}
		q := u.Query()
		q.Del("channel")
		u.RawQuery = q.Encode()

		c.EventSink = "redis"
		c.RedisURL = u.String()
	default:
		return fmt.Errorf("unsupported EVENTS_URL format: %s (use 'none', 'log' or 'redis://...')", eventsURL)
	}
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func upsertStorageBackend(backends []StorageBackendConfig, backend StorageBackendConfig) []StorageBackendConfig {
	if backend.Config == nil {
		backend.Config = map[string]interface{}{}
	}
	for i := range backends {
		if backends[i].Name == backend.Name {
			backends[i] = backend
			return backends
		}
	}
	return append(backends, backend)
}
