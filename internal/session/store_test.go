package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedlytic.db")
	db, err := InitDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db, ""), path
}

func TestSQLiteStore_GetOrCreate_PersistsAcrossReopen(t *testing.T) {
	store, path := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := store.GetOrCreate(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "identifier should be a UUID")

	again, err := store.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	db, err := InitDB(path)
	require.NoError(t, err)
	defer db.Close()

	reopened, err := NewSQLiteStore(db, DefaultKey).GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, reopened)
}

func TestSQLiteStore_Reset_ReplacesIdentifier(t *testing.T) {
	store, _ := newTestSQLiteStore(t)
	ctx := context.Background()

	old, err := store.GetOrCreate(ctx)
	require.NoError(t, err)

	fresh, err := store.Reset(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)

	current, err := store.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh, current)
}

func TestSQLiteStore_SeparateKeys(t *testing.T) {
	store, _ := newTestSQLiteStore(t)
	other := NewSQLiteStore(store.db, "otherKey")
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx)
	require.NoError(t, err)
	b, err := other.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMemoryStore_ResetNeverRepeats(t *testing.T) {
	ids := []string{"same", "same", "same", "next"}
	store := NewMemoryStore()
	store.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	ctx := context.Background()

	id, err := store.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "same", id)

	fresh, err := store.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "next", fresh)
}

func TestMessage_IsBlank(t *testing.T) {
	assert.True(t, Message{Role: RoleAssistant}.IsBlank())
	assert.True(t, Message{Role: RoleAssistant, Text: " \n\t"}.IsBlank())
	assert.False(t, Message{Role: RoleAssistant, Text: "hi"}.IsBlank())
}
