// Package redis publishes mutation events on a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	rdb "github.com/redis/go-redis/v9"
	"github.com/tendant/simple-manage/pkg/managecms"
)

// DefaultChannel is used when no channel is given.
const DefaultChannel = "manage.mutations"

// Sink is a managecms.EventSink that publishes every event as JSON.
type Sink struct {
	client  rdb.UniversalClient
	channel string
}

// New creates a sink publishing on channel through client.
func New(client rdb.UniversalClient, channel string) *Sink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Sink{client: client, channel: channel}
}

// Channel returns the channel events are published on.
func (s *Sink) Channel() string {
	return s.channel
}

func (s *Sink) publish(ctx context.Context, event *managecms.MutationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Op, err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s event to %s: %w", event.Op, s.channel, err)
	}
	return nil
}

func (s *Sink) FieldUpdated(ctx context.Context, event *managecms.MutationEvent) error {
	return s.publish(ctx, event)
}

func (s *Sink) FieldCopied(ctx context.Context, event *managecms.MutationEvent) error {
	return s.publish(ctx, event)
}

func (s *Sink) AssetFileCopied(ctx context.Context, event *managecms.MutationEvent) error {
	return s.publish(ctx, event)
}

func (s *Sink) AssetFileRemoved(ctx context.Context, event *managecms.MutationEvent) error {
	return s.publish(ctx, event)
}

// Subscribe decodes events published on channel until ctx is done. The
// returned channel is closed when the subscription ends.
func Subscribe(ctx context.Context, client rdb.UniversalClient, channel string) (<-chan managecms.MutationEvent, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	pubsub := client.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed before returning
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	events := make(chan managecms.MutationEvent)
	go func() {
		defer close(events)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event managecms.MutationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}
