package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestAppendAndLoad(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("conv1", Event{Kind: EventQuery, Text: "how many stars?"}))
	require.NoError(t, store.Append("conv1", Event{
		Kind:      EventDispatch,
		Iteration: 1,
		Tool:      "repo.get_repo_info",
		RequestID: "call_0001",
		Status:    "success",
	}))
	require.NoError(t, store.Append("conv1", Event{Kind: EventAnswer, Text: "9000 stars"}))

	entries, err := store.Load("conv1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, EventQuery, entries[0].Event.Kind)
	assert.Equal(t, "repo.get_repo_info", entries[1].Event.Tool)
	assert.Equal(t, "conv1", entries[2].ConversationID)
	assert.False(t, entries[0].Event.Timestamp.IsZero())
}

func TestLoad_MissingConversation(t *testing.T) {
	store := newTestStore(t)

	entries, err := store.Load("nope")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append("conv1", Event{Kind: EventQuery, Text: "q"}))

	f, err := os.OpenFile(store.path("conv1"), os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, store.Append("conv1", Event{Kind: EventAnswer, Text: "a"}))

	entries, err := store.Load("conv1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestValidateID(t *testing.T) {
	store := newTestStore(t)

	tests := []string{"", "../escape", "a/b", "a\\b", "a\x00b"}
	for _, id := range tests {
		assert.Error(t, store.Append(id, Event{Kind: EventQuery}), "id %q", id)
	}
}

func TestListAndDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append("conv1", Event{Kind: EventQuery}))
	require.NoError(t, store.Append("conv2", Event{Kind: EventQuery}))

	ids, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"conv1", "conv2"}, ids)

	require.NoError(t, store.Delete("conv1"))
	_, err = os.Stat(filepath.Join(store.dir, "conv1.jsonl"))
	assert.True(t, os.IsNotExist(err))

	// Deleting a missing transcript is a no-op
	require.NoError(t, store.Delete("conv1"))
}
