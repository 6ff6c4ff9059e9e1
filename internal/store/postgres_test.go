package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specificity-ai/specmux/internal/metrics"
)

// Integration test; needs a reachable PostgreSQL instance.
func testStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("SPECMUX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SPECMUX_TEST_POSTGRES_DSN not set")
	}

	s, err := NewPostgresStore(DefaultPostgresConfig(dsn), metrics.NewRecorder(metrics.RecorderConfig{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStore_CRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	spec := &Spec{
		Title:    "checkout latency budget",
		Content:  "p95 under 400ms for the checkout flow",
		Metadata: map[string]string{"owner": "platform"},
	}
	require.NoError(t, s.Insert(ctx, spec))
	require.NotEmpty(t, spec.ID)
	assert.Equal(t, StatusDraft, spec.Status)

	got, err := s.Get(ctx, spec.ID)
	require.NoError(t, err)
	assert.Equal(t, spec.Title, got.Title)
	assert.Equal(t, "platform", got.Metadata["owner"])
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

	got.Status = StatusActive
	got.Content = "p95 under 300ms for the checkout flow"
	require.NoError(t, s.Update(ctx, got))

	updated, err := s.Get(ctx, spec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))

	specs, err := s.List(ctx, StatusActive, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, specs)

	require.NoError(t, s.Delete(ctx, spec.ID))
	_, err = s.Get(ctx, spec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_NotFound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, &Spec{ID: "missing"}), ErrNotFound)
}
