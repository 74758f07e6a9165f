package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etherealheim/aria/core/memory"
	"github.com/etherealheim/aria/core/temporal"
)

func openTestStore(t *testing.T) *MessageStore {
	t.Helper()
	store, err := OpenMessageStore(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertAssignsIDAndTimestamp(t *testing.T) {
	store := openTestStore(t)

	msg := &memory.StoredMessage{ConversationID: "c1", Role: memory.RoleUser, Content: "hello"}
	id, err := store.InsertMessage(msg, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.False(t, msg.CreatedAt.IsZero())

	loaded, err := store.GetMessage(id)
	require.NoError(t, err)
	assert.Equal(t, "hello", loaded.Content)
	assert.Equal(t, memory.RoleUser, loaded.Role)
	assert.False(t, loaded.HasEmbedding)
}

func TestSearchSimilarRanksByCosine(t *testing.T) {
	store := openTestStore(t)

	insert := func(content string, embedding []float32) {
		_, err := store.InsertMessage(&memory.StoredMessage{
			ConversationID: "c1", Role: memory.RoleUser, Content: content,
		}, embedding)
		require.NoError(t, err)
	}
	insert("exact direction", []float32{1, 0, 0})
	insert("same direction scaled", []float32{3, 0, 0})
	insert("orthogonal", []float32{0, 1, 0})
	insert("opposite", []float32{-1, 0, 0})
	insert("no embedding", nil)

	results, err := store.SearchSimilar([]float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6, "parallel vectors score 1 regardless of magnitude")
	assert.InDelta(t, 1.0, results[1].Similarity, 1e-6)
	assert.InDelta(t, 0.0, results[2].Similarity, 1e-6)
	assert.Equal(t, "orthogonal", results[2].Content)
	for _, r := range results {
		assert.Equal(t, memory.SourceDense, r.Source)
	}
}

func TestSearchSimilarSkipsDimensionMismatch(t *testing.T) {
	store := openTestStore(t)
	_, err := store.InsertMessage(&memory.StoredMessage{
		ConversationID: "c1", Role: memory.RoleUser, Content: "short vector",
	}, []float32{1, 0})
	require.NoError(t, err)

	results, err := store.SearchSimilar([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEmbeddingBackfillAccounting(t *testing.T) {
	store := openTestStore(t)

	old := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	oldID, err := store.InsertMessage(&memory.StoredMessage{
		ConversationID: "c1", Role: memory.RoleUser, Content: "oldest", CreatedAt: old,
	}, nil)
	require.NoError(t, err)
	_, err = store.InsertMessage(&memory.StoredMessage{
		ConversationID: "c1", Role: memory.RoleUser, Content: "newer", CreatedAt: newer,
	}, nil)
	require.NoError(t, err)

	count, err := store.CountMissingEmbeddings()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	pending, err := store.LoadMissingEmbeddings(1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "oldest", pending[0].Content, "backfill takes the oldest rows first")

	require.NoError(t, store.UpdateEmbedding(oldID, []float32{0.1, 0.2}))
	count, err = store.CountMissingEmbeddings()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	loaded, err := store.GetMessage(oldID)
	require.NoError(t, err)
	assert.True(t, loaded.HasEmbedding)
}

func TestUpdateEmbeddingMissingRowFails(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.UpdateEmbedding("no-such-id", []float32{0.1}))
}

func TestLoadRecentUserMessagesExcludesAssistant(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	for i, m := range []struct {
		role    memory.Role
		content string
	}{
		{memory.RoleUser, "first"},
		{memory.RoleAssistant, "reply"},
		{memory.RoleUser, "second"},
	} {
		_, err := store.InsertMessage(&memory.StoredMessage{
			ConversationID: "c1", Role: m.role, Content: m.content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}, nil)
		require.NoError(t, err)
	}

	recent, err := store.LoadRecentUserMessages(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Content, "newest first")
	assert.Equal(t, "first", recent[1].Content)
}

func TestLoadMessagesInRangeIsInclusive(t *testing.T) {
	store := openTestStore(t)

	days := map[string]time.Time{
		"before": time.Date(2026, 1, 18, 9, 0, 0, 0, time.UTC),
		"monday": time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC),
		"sunday": time.Date(2026, 1, 25, 23, 0, 0, 0, time.UTC),
		"after":  time.Date(2026, 1, 26, 0, 30, 0, 0, time.UTC),
	}
	for content, created := range days {
		_, err := store.InsertMessage(&memory.StoredMessage{
			ConversationID: "c1", Role: memory.RoleUser, Content: content, CreatedAt: created,
		}, nil)
		require.NoError(t, err)
	}

	week := temporal.ISOWeek{Year: 2026, Week: 4}.Range()
	messages, err := store.LoadMessagesInRange(week)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "monday", messages[0].Content)
	assert.Equal(t, "sunday", messages[1].Content, "the range end day is included in full")
}

func TestRangeKeepsSubSecondBoundaryTimestamps(t *testing.T) {
	store := openTestStore(t)

	// Both rows sit on the first day of the range; one carries a
	// fractional second. Stored timestamps must sort chronologically
	// as strings or the fractional row falls out of the range.
	times := map[string]time.Time{
		"midnight exact":    time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
		"midnight fraction": time.Date(2026, 1, 19, 0, 0, 0, 500_000_000, time.UTC),
	}
	for content, created := range times {
		_, err := store.InsertMessage(&memory.StoredMessage{
			ConversationID: "c1", Role: memory.RoleUser, Content: content, CreatedAt: created,
		}, nil)
		require.NoError(t, err)
	}

	week := temporal.ISOWeek{Year: 2026, Week: 4}.Range()
	messages, err := store.LoadMessagesInRange(week)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "midnight exact", messages[0].Content)
	assert.Equal(t, "midnight fraction", messages[1].Content, "fractional seconds order after the whole second")
}

func TestSummariesRoundTrip(t *testing.T) {
	store := openTestStore(t)

	_, err := store.InsertSummary("c1", "talked about the trip to Tokyo")
	require.NoError(t, err)

	today := time.Now().UTC()
	r := temporal.DateRange{Start: today.AddDate(0, 0, -1), End: today}
	summaries, err := store.LoadSummariesInRange(r)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "talked about the trip to Tokyo", summaries[0])
}

func TestEmbeddingCodecRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75, 0}
	assert.Equal(t, vec, decodeEmbedding(encodeEmbedding(vec)))
}
