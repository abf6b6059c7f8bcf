package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-manage/pkg/managecms"
	redisevents "github.com/tendant/simple-manage/pkg/managecms/events/redis"
)

func TestSink_PublishAndSubscribe(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping redis test: REDIS_ADDR not set")
	}

	client := rdb.NewClient(&rdb.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channel := "test." + uuid.NewString()
	events, err := redisevents.Subscribe(ctx, client, channel)
	require.NoError(t, err)

	sink := redisevents.New(client, channel)
	sent := &managecms.MutationEvent{
		ID:         uuid.New(),
		Op:         managecms.OpCopyField,
		Scope:      managecms.Scope{Space: "s1", Environment: "master"},
		ContentID:  "entry42",
		Field:      managecms.FieldTitle,
		FromLocale: "en",
		Locale:     "es",
		Version:    3,
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, sink.FieldCopied(ctx, sent))

	select {
	case got := <-events:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, managecms.OpCopyField, got.Op)
		assert.Equal(t, managecms.ContentID("entry42"), got.ContentID)
		assert.Equal(t, managecms.Locale("en"), got.FromLocale)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestSink_DefaultChannel(t *testing.T) {
	sink := redisevents.New(rdb.NewClient(&rdb.Options{Addr: "localhost:0"}), "")
	assert.Equal(t, redisevents.DefaultChannel, sink.Channel())
}
