package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate creates missing tables when the service is built
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithDefaultStorage sets the default storage backend name
func WithDefaultStorage(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("default storage backend name cannot be empty")
		}
		c.DefaultStorageBackend = name
		return nil
	}
}

// WithMemoryStorage adds an in-memory storage backend
func WithMemoryStorage(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "memory"
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{Name: name, Type: "memory"})
		return nil
	}
}

// WithFilesystemStorage adds a filesystem storage backend
func WithFilesystemStorage(name, baseDir, urlPrefix string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "fs"
		}
		if baseDir == "" {
			return fmt.Errorf("base directory cannot be empty")
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: name,
			Type: "fs",
			Config: map[string]interface{}{
				"base_dir":   baseDir,
				"url_prefix": urlPrefix,
			},
		})
		return nil
	}
}

// WithS3Storage adds an S3 storage backend
func WithS3Storage(name, bucket, region string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "s3"
		}
		if bucket == "" {
			return fmt.Errorf("bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: name,
			Type: "s3",
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		})
		return nil
	}
}

// WithS3Credentials sets static credentials on an existing S3 backend
func WithS3Credentials(name, accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		backend, err := findBackend(c, name, "s3")
		if err != nil {
			return err
		}
		backend.Config["access_key_id"] = accessKeyID
		backend.Config["secret_access_key"] = secretAccessKey
		return nil
	}
}

// WithS3Endpoint points an existing S3 backend at an S3-compatible service
func WithS3Endpoint(name, endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		backend, err := findBackend(c, name, "s3")
		if err != nil {
			return err
		}
		backend.Config["endpoint"] = endpoint
		backend.Config["use_path_style"] = usePathStyle
		return nil
	}
}

func findBackend(c *ServerConfig, name, backendType string) (*StorageBackendConfig, error) {
	for i := range c.StorageBackends {
		backend := &c.StorageBackends[i]
		if backend.Name != name {
			continue
		}
		if backend.Type != backendType {
			return nil, fmt.Errorf("storage backend '%s' is of type %s, not %s", name, backend.Type, backendType)
		}
		if backend.Config == nil {
			backend.Config = map[string]interface{}{}
		}
		return backend, nil
	}
	return nil, fmt.Errorf("storage backend '%s' not found", name)
}

// WithObjectKeyGenerator selects the object key strategy
func WithObjectKeyGenerator(generator string) Option {
	return func(c *ServerConfig) error {
		c.ObjectKeyGenerator = generator
		return nil
	}
}

// WithLocales sets the default locale and the accepted locales
func WithLocales(defaultLocale string, locales ...string) Option {
	return func(c *ServerConfig) error {
		if defaultLocale == "" {
			return fmt.Errorf("default locale cannot be empty")
		}
		c.DefaultLocale = defaultLocale
		c.Locales = locales
		for _, l := range locales {
			if l == defaultLocale {
				return nil
			}
		}
		c.Locales = append([]string{defaultLocale}, locales...)
		return nil
	}
}

// WithEventSink selects the event sink ("none" or "log")
func WithEventSink(kind string) Option {
	return func(c *ServerConfig) error {
		c.EventSink = kind
		return nil
	}
}

// WithRedisEvents publishes mutation events on a Redis channel
func WithRedisEvents(redisURL, channel string) Option {
	return func(c *ServerConfig) error {
		if redisURL == "" {
			return fmt.Errorf("redis URL cannot be empty")
		}
		c.EventSink = "redis"
		c.RedisURL = redisURL
		if channel != "" {
			c.RedisChannel = channel
		}
		return nil
	}
}

// WithJWTSecret sets the HS256 secret for API tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithRequestTimeout sets the API request deadline
func WithRequestTimeout(ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if ttl < 0 {
			return fmt.Errorf("request timeout cannot be negative")
		}
		c.RequestTimeout = ttl
		return nil
	}
}

// WithMaxUploadSize limits asset file uploads to n bytes
func WithMaxUploadSize(n int64) Option {
	return func(c *ServerConfig) error {
		if n < 0 {
			return fmt.Errorf("max upload size cannot be negative")
		}
		c.MaxUploadSize = n
		return nil
	}
}
