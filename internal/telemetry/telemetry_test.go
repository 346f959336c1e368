package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitWithoutProject(t *testing.T) {
	reg := prometheus.NewRegistry()
	providers, err := Init(context.Background(), Config{ServiceName: "sitebaker-test", Registerer: reg})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	_, span := otel.Tracer("test").Start(context.Background(), "bake.posts")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	counter, err := otel.Meter("test").Int64Counter("bake_test")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "bake_test_total")
}

func TestShutdownNil(t *testing.T) {
	var p *Providers
	require.NoError(t, p.Shutdown(context.Background()))
}
