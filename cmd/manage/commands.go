package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-manage/pkg/managecms"
	redisevents "github.com/tendant/simple-manage/pkg/managecms/events/redis"
	"golang.org/x/sync/errgroup"
)

// NewLocalesCommand creates the locales command
func NewLocalesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "locales",
		Short: "List the locales of the space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			def, err := c.DefaultLocale(cmd.Context())
			if err != nil {
				return err
			}
			locales, err := c.Locales(cmd.Context())
			if err != nil {
				return err
			}
			for _, l := range locales {
				marker := ""
				if l == def {
					marker = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", l, marker)
			}
			return nil
		},
	}
}

// NewGetCommand creates the get command
func NewGetCommand(opts *options) *cobra.Command {
	var field, locale string

	cmd := &cobra.Command{
		Use:   "get <entry-id>",
		Short: "Print an entry, or one field of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			id := managecms.ContentID(args[0])

			if field == "" {
				doc, err := c.Entry(cmd.Context(), opts.mutationContext(locale), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(doc))
				return nil
			}

			value, err := c.Field(cmd.Context(), opts.mutationContext(locale), id, managecms.FieldType(field))
			if err != nil {
				return err
			}
			raw, err := managecms.EncodeValue(managecms.FieldType(field), value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}

	cmd.Flags().StringVarP(&field, "field", "f", "", "field to print")
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "locale of the field (default: the space default)")
	return cmd
}

// parseValue reads a field value from the command line. Text fields take the
// argument verbatim unless it is a quoted JSON string; other fields take JSON.
func parseValue(field managecms.FieldType, arg string) (managecms.FieldValue, error) {
	raw := []byte(arg)
	isText := field.Kind() == managecms.KindText || field.Kind() == managecms.KindRichText
	if (isText && !strings.HasPrefix(arg, `"`)) || !json.Valid(raw) {
		quoted, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		raw = quoted
	}
	return managecms.DecodeValue(field, raw)
}

// NewUpdateFieldCommand creates the update-field command
func NewUpdateFieldCommand(opts *options) *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "update-field <entry-id> <field> <value>",
		Short: "Overwrite a field of an entry in one locale",
		Long: `Overwrite a field of an entry in one locale.

Text fields take the value as typed. Numbers and links are given as JSON,
for example 3 or {"sys":{"type":"Link","linkType":"Asset","id":"a1"}}.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			field := managecms.FieldType(args[1])
			value, err := parseValue(field, args[2])
			if err != nil {
				return err
			}
			if err := c.UpdateField(cmd.Context(), opts.mutationContext(locale), managecms.ContentID(args[0]), field, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s %s [%s]\n", args[0], field, locale)
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "target locale")
	_ = cmd.MarkFlagRequired("locale")
	return cmd
}

// NewCopyFieldCommand creates the copy-field command
func NewCopyFieldCommand(opts *options) *cobra.Command {
	var from, locale string
	var onlyIfEmpty bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "copy-field <field> <entry-id>...",
		Short: "Copy a field from one locale to another on many entries",
		Long: `Copy a field from one locale to another on every listed entry.

Entries are processed concurrently and in no particular order. A failure on
one entry does not stop the others; every failure is reported.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1, got %d", concurrency)
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			field := managecms.FieldType(args[0])
			mc := opts.mutationContext(locale)

			var (
				mu   sync.Mutex
				errs []error
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(concurrency)
			for _, id := range args[1:] {
				g.Go(func() error {
					err := c.CopyField(ctx, mc, managecms.ContentID(id), field, managecms.Locale(from), onlyIfEmpty)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						errs = append(errs, err)
						fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %v\n", id, err)
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "copied %s %s [%s -> %s]\n", id, field, from, locale)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d copies failed: %w", len(errs), len(args)-1, errors.Join(errs...))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source locale")
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "target locale")
	cmd.Flags().BoolVar(&onlyIfEmpty, "only-if-empty", false, "skip entries whose target already has a value")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of entries copied at once")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("locale")
	return cmd
}

// NewCopyAssetFileCommand creates the copy-asset-file command
func NewCopyAssetFileCommand(opts *options) *cobra.Command {
	var from, locale string

	cmd := &cobra.Command{
		Use:   "copy-asset-file <asset-id>",
		Short: "Copy the file of an asset from one locale to another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.CopyAssetFile(cmd.Context(), opts.mutationContext(locale), managecms.AssetID(args[0]), managecms.Locale(from)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied file of %s [%s -> %s]\n", args[0], from, locale)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source locale")
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "target locale")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("locale")
	return cmd
}

// NewRemoveAssetFileCommand creates the remove-asset-file command
func NewRemoveAssetFileCommand(opts *options) *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "remove-asset-file <asset-id>",
		Short: "Remove the file of an asset in one locale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.RemoveAssetFile(cmd.Context(), opts.mutationContext(locale), managecms.AssetID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed file of %s [%s]\n", args[0], locale)
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "target locale")
	_ = cmd.MarkFlagRequired("locale")
	return cmd
}

// NewUploadCommand creates the upload command
func NewUploadCommand(opts *options) *cobra.Command {
	var locale, contentType string

	cmd := &cobra.Command{
		Use:   "upload <asset-id> <file>",
		Short: "Upload a file as the locale variant of an asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()

			fileName := filepath.Base(args[1])
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(fileName))
			}
			if err := c.UploadAssetFile(cmd.Context(), opts.mutationContext(locale), managecms.AssetID(args[0]), fileName, contentType, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s to %s [%s]\n", fileName, args[0], locale)
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "target locale")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type (default: from the file extension)")
	_ = cmd.MarkFlagRequired("locale")
	return cmd
}

// NewWatchCommand creates the watch command
func NewWatchCommand(opts *options) *cobra.Command {
	var redisURL, channel string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print mutation events published by the server",
		Long: `Print mutation events as JSON lines until interrupted.

Requires a server started with a redis event sink (MANAGE_EVENTS_URL).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if redisURL == "" {
				redisURL = opts.config.EventsURL
			}
			if redisURL == "" {
				return fmt.Errorf("redis url is required (--redis-url or MANAGE_EVENTS_URL)")
			}
			u, err := url.Parse(redisURL)
			if err != nil {
				return fmt.Errorf("invalid redis url: %w", err)
			}
			// The server accepts the channel as a query parameter of the same url
			q := u.Query()
			if c := q.Get("channel"); c != "" && !cmd.Flags().Changed("channel") {
				channel = c
			}
			q.Del("channel")
			u.RawQuery = q.Encode()

			redisOptions, err := goredis.ParseURL(u.String())
			if err != nil {
				return fmt.Errorf("invalid redis url: %w", err)
			}
			rdb := goredis.NewClient(redisOptions)
			defer rdb.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			events, err := redisevents.Subscribe(ctx, rdb, channel)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for event := range events {
				if opts.config.Space != "" && event.Scope.Space != opts.config.Space {
					continue
				}
				if err := enc.Encode(event); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&redisURL, "redis-url", "", "redis url of the event sink (default: MANAGE_EVENTS_URL)")
	cmd.Flags().StringVar(&channel, "channel", redisevents.DefaultChannel, "pub/sub channel")
	return cmd
}
