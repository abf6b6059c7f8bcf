package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-manage/pkg/managecms"
	"github.com/tendant/simple-manage/pkg/managecms/client"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Config holds the connection settings of the CLI. Flags override the
// environment.
type Config struct {
	URL         string        `env:"MANAGE_URL" env-default:"http://localhost:8080"`
	Token       string        `env:"MANAGE_TOKEN"`
	Space       string        `env:"MANAGE_SPACE"`
	Environment string        `env:"MANAGE_ENVIRONMENT" env-default:"master"`
	Timeout     time.Duration `env:"MANAGE_CLIENT_TIMEOUT" env-default:"30s"`
	CacheTTL    time.Duration `env:"MANAGE_CACHE_TTL" env-default:"30s"`
	EventsURL   string        `env:"MANAGE_EVENTS_URL"`
}

type options struct {
	config      Config
	dryRun      bool
	noOverwrite bool
	verbose     bool
}

func main() {
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "manage",
		Short: "Content management gateway CLI",
		Long: `Command line client for the content management API.

Updates and copies localized entry fields and asset files. Connection
settings come from MANAGE_* environment variables or a .env file and
can be overridden with flags.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var env Config
			if err := cleanenv.ReadEnv(&env); err != nil {
				return fmt.Errorf("failed to read environment: %w", err)
			}
			flags := cmd.Flags()
			if !flags.Changed("url") {
				opts.config.URL = env.URL
			}
			if !flags.Changed("token") {
				opts.config.Token = env.Token
			}
			if !flags.Changed("space") {
				opts.config.Space = env.Space
			}
			if !flags.Changed("environment") {
				opts.config.Environment = env.Environment
			}
			if !flags.Changed("timeout") {
				opts.config.Timeout = env.Timeout
			}
			opts.config.CacheTTL = env.CacheTTL
			opts.config.EventsURL = env.EventsURL

			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.config.URL, "url", "", "management API base url (MANAGE_URL)")
	flags.StringVar(&opts.config.Token, "token", "", "bearer token (MANAGE_TOKEN)")
	flags.StringVar(&opts.config.Space, "space", "", "space id (MANAGE_SPACE)")
	flags.StringVar(&opts.config.Environment, "environment", "", "environment id (MANAGE_ENVIRONMENT)")
	flags.DurationVar(&opts.config.Timeout, "timeout", 0, "per request timeout (MANAGE_CLIENT_TIMEOUT)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "validate and log without writing")
	flags.BoolVar(&opts.noOverwrite, "no-overwrite", false, "refuse to replace non-empty targets")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewLocalesCommand(opts))
	rootCmd.AddCommand(NewGetCommand(opts))
	rootCmd.AddCommand(NewUpdateFieldCommand(opts))
	rootCmd.AddCommand(NewCopyFieldCommand(opts))
	rootCmd.AddCommand(NewCopyAssetFileCommand(opts))
	rootCmd.AddCommand(NewRemoveAssetFileCommand(opts))
	rootCmd.AddCommand(NewUploadCommand(opts))
	rootCmd.AddCommand(NewWatchCommand(opts))

	return rootCmd
}

func (o *options) client() (*client.Client, error) {
	if o.config.Space == "" {
		return nil, fmt.Errorf("space is required (--space or MANAGE_SPACE)")
	}
	return client.New(o.config.URL,
		client.WithToken(o.config.Token),
		client.WithScope(o.config.Space, o.config.Environment),
		client.WithTimeout(o.config.Timeout),
		client.WithCacheTTL(o.config.CacheTTL),
	)
}

func (o *options) mutationContext(locale string) managecms.MutationContext {
	return managecms.MutationContext{
		Locale:      managecms.Locale(locale),
		Space:       o.config.Space,
		Environment: o.config.Environment,
		AccessToken: o.config.Token,
		DryRun:      o.dryRun,
		NoOverwrite: o.noOverwrite,
	}
}
