package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxmemory/ctx-agent/internal/store"
)

func TestOpenRecordsFeatureFlagAndStartsEmpty(t *testing.T) {
	projectRoot := t.TempDir()
	memoryRoot := filepath.Join(projectRoot, ".context-memory")
	dbPath := filepath.Join(memoryRoot, "context.db")

	st, err := store.Open(projectRoot, memoryRoot, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	col, err := Open(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 0, col.Count())

	value, ok, err := st.GetFeature(ctx, FeatureKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "provisioned", value)
}
