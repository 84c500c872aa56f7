package app_test

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sh3r4rd/object_index/internal/app"
	"github.com/sh3r4rd/object_index/internal/config"
	"github.com/sh3r4rd/object_index/internal/handler"
	"github.com/sh3r4rd/object_index/internal/indexstore"
	"github.com/sh3r4rd/object_index/internal/metrics"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want any
	}{
		{"memory", config.Config{Backend: config.BackendMemory}, &indexstore.MemoryStore{}},
		{"pebble", config.Config{Backend: config.BackendPebble, PebbleDir: t.TempDir()}, &indexstore.PebbleStore{}},
		{"dynamodb", config.Config{Backend: config.BackendDynamoDB, TableName: "object-index", Region: "eu-west-1", Endpoint: "http://localhost:8000"}, &indexstore.DynamoStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeStore, err := app.OpenStore(t.Context(), tt.cfg, zap.NewNop())
			require.NoError(t, err)
			defer func() { assert.NoError(t, closeStore()) }()

			assert.IsType(t, tt.want, store)
		})
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	_, closeStore, err := app.OpenStore(t.Context(), config.Config{Backend: "s3"}, zap.NewNop())
	assert.ErrorIs(t, err, config.ErrUnknownBackend)
	assert.NotNil(t, closeStore)
}

func TestNewIndexerWithMetrics(t *testing.T) {
	cfg := config.DefaultConfig
	cfg.Backend = config.BackendMemory

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	idx := app.NewIndexer(cfg, indexstore.NewMemoryStore(), zap.NewNop(), m)

	err := idx.Handle(t.Context(), events.S3Event{Records: []events.S3EventRecord{{
		EventName: "ObjectCreated:Put",
		S3: events.S3Entity{
			Object: events.S3Object{Key: "a.txt", Size: 1},
		},
	}}})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "object_index_events_total", "object_index_store_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "one event series plus lookup and put")
}

func TestPolicy(t *testing.T) {
	cfg := config.DefaultConfig
	assert.Equal(t, handler.PolicySwallow, app.Policy(cfg))

	cfg.ErrorPolicy = config.ErrorPolicyPropagate
	assert.Equal(t, handler.PolicyPropagate, app.Policy(cfg))
}
