package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "site.baked", map[string]int{"staged": 3})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "site.baked", msgs[0].Topic)

	msgs[0].Topic = "modified"
	assert.Equal(t, "site.baked", pub.Messages()[0].Topic, "Messages returns a copy")

	assert.Equal(t, []any{"payload"}, pub.ByTopic("other"))
	assert.Empty(t, pub.ByTopic("missing"))
}

func TestPublisherFailures(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("boom")
	pub.FailWith(boom)
	_, err := pub.Publish(context.Background(), "site.baked", nil)
	require.ErrorIs(t, err, boom)

	pub.FailWith(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pub.Publish(ctx, "site.baked", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.Messages())
}
