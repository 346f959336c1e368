package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewMessage(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "bake")
	defer span.End()

	msg, err := NewMessage(ctx, "site.baked", map[string]int{"staged": 2})
	require.NoError(t, err)
	assert.Equal(t, "site.baked", msg.Attributes[EventAttribute])
	assert.NotEmpty(t, msg.Attributes["traceparent"])

	var body map[string]int
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, 2, body["staged"])
}

func TestNewMessageRejectsUnmarshalable(t *testing.T) {
	_, err := NewMessage(context.Background(), "site.baked", make(chan int))
	require.Error(t, err)
}

func TestPublishWithoutPublisher(t *testing.T) {
	_, err := New(nil).Publish(context.Background(), "site.baked", "x")
	require.Error(t, err)
}
