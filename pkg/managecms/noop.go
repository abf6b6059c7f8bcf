package managecms

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) FieldUpdated(ctx context.Context, event *MutationEvent) error     { return nil }
func (n *NoopEventSink) FieldCopied(ctx context.Context, event *MutationEvent) error      { return nil }
func (n *NoopEventSink) AssetFileCopied(ctx context.Context, event *MutationEvent) error  { return nil }
func (n *NoopEventSink) AssetFileRemoved(ctx context.Context, event *MutationEvent) error { return nil }

// LoggingEventSink writes every mutation event to a structured logger
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink logging at info level. A nil
// logger means slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) log(ctx context.Context, event *MutationEvent) error {
	l.logger.InfoContext(ctx, "Content mutated",
		"event_id", event.ID.String(),
		"op", string(event.Op),
		"scope", event.Scope.String(),
		"content_id", string(event.ContentID),
		"asset_id", string(event.AssetID),
		"field", string(event.Field),
		"from_locale", event.FromLocale.String(),
		"locale", event.Locale.String(),
		"version", event.Version,
	)
	return nil
}

func (l *LoggingEventSink) FieldUpdated(ctx context.Context, event *MutationEvent) error {
	return l.log(ctx, event)
}

func (l *LoggingEventSink) FieldCopied(ctx context.Context, event *MutationEvent) error {
	return l.log(ctx, event)
}

func (l *LoggingEventSink) AssetFileCopied(ctx context.Context, event *MutationEvent) error {
	return l.log(ctx, event)
}

func (l *LoggingEventSink) AssetFileRemoved(ctx context.Context, event *MutationEvent) error {
	return l.log(ctx, event)
}
