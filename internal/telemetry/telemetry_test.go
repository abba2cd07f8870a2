package telemetry

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/plane/internal/models"
	"github.com/joescharf/plane/internal/store"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWrapStore_DisabledReturnsInner(t *testing.T) {
	require.NoError(t, Init(context.Background(), "plane", "test", Config{}))
	assert.False(t, Enabled())

	s := newStore(t)
	assert.Same(t, s, WrapStore(s))
}

func TestWrapStore_RecordsSpans(t *testing.T) {
	ctx := context.Background()
	out := &syncBuffer{}
	require.NoError(t, Init(ctx, "plane", "test", Config{Enabled: true, Stdout: true, Writer: out}))
	t.Cleanup(func() { Shutdown(context.Background()) })
	require.True(t, Enabled())

	inner := newStore(t)
	wrapped := WrapStore(inner)
	instrumented, ok := wrapped.(*InstrumentedStore)
	require.True(t, ok)
	assert.Same(t, inner, instrumented.Unwrap())

	issue := &models.Issue{ProjectID: "proj-1", Title: "Traced"}
	require.NoError(t, wrapped.CreateIssue(ctx, issue))
	assert.Equal(t, 1, issue.SequenceID)

	_, err := wrapped.GetIssue(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound, "errors pass through unchanged")

	issues, err := wrapped.ListIssues(ctx, "proj-1", store.IssueFilter{})
	require.NoError(t, err)
	assert.Len(t, issues, 1)

	Shutdown(ctx)
	assert.False(t, Enabled())

	exported := out.String()
	assert.Contains(t, exported, "store.CreateIssue")
	assert.Contains(t, exported, "store.GetIssue")
	assert.Contains(t, exported, "store.ListIssues")
	assert.Contains(t, exported, "plane.store.operations")
}
