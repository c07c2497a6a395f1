package blackboard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/agent-core-go/pkg/blackboard"
)

type widget struct{ Name string }

func TestMemStore_SaveLoadPreservesOrder(t *testing.T) {
	store := blackboard.NewMemStore()
	ctx := context.Background()

	bb := blackboard.New()
	bb.Bind("first", widget{Name: "a"})
	bb.Add(widget{Name: "b"})

	require.NoError(t, blackboard.Persist(ctx, store, "proc-1", bb))

	records, err := store.Load(ctx, "proc-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].Binding)
	assert.Equal(t, "", records[1].Binding)
	assert.Less(t, records[0].Seq, records[1].Seq)
	assert.Contains(t, string(records[0].Object), `"Name":"a"`)
}

func TestMemStore_DeleteClearsRecords(t *testing.T) {
	store := blackboard.NewMemStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "proc-1", blackboard.Record{Binding: "x"}))

	require.NoError(t, store.Delete(ctx, "proc-1"))

	records, err := store.Load(ctx, "proc-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemStore_LoadUnknownProcessReturnsEmpty(t *testing.T) {
	store := blackboard.NewMemStore()
	records, err := store.Load(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewRedisStore_RequiresClient(t *testing.T) {
	_, err := blackboard.NewRedisStore(blackboard.RedisStoreOptions{})
	assert.Error(t, err)
}
