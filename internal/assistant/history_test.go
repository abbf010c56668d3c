package assistant

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/quantdesk/internal/store"
)

func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestHistory_KeepsLastTen(t *testing.T) {
	kv := store.NewMemory()
	h := NewHistory(kv, nil, steppingClock())
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		_, err := h.Append(ctx, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	entries, err := h.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, MaxHistory)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("message %d", i+3), e.Text)
	}
	assert.True(t, entries[0].Timestamp.Before(entries[9].Timestamp))

	raw, _, err := kv.Get(ctx, store.ChatHistoryKey.Name)
	require.NoError(t, err)
	assert.Contains(t, raw, `"text":"message 12"`)
	assert.NotContains(t, raw, `"text":"message 2"`)
}

func TestHistory_EleventhDropsOldest(t *testing.T) {
	h := NewHistory(store.NewMemory(), nil, nil)
	ctx := context.Background()

	for i := 0; i < MaxHistory; i++ {
		_, err := h.Append(ctx, fmt.Sprint(i))
		require.NoError(t, err)
	}
	entries, err := h.Append(ctx, "new")
	require.NoError(t, err)

	require.Len(t, entries, MaxHistory)
	assert.Equal(t, "1", entries[0].Text)
	assert.Equal(t, "new", entries[MaxHistory-1].Text)
}

func TestHistory_Clear(t *testing.T) {
	kv := store.NewMemory()
	h := NewHistory(kv, nil, nil)
	ctx := context.Background()

	_, err := h.Append(ctx, "hello")
	require.NoError(t, err)
	require.NoError(t, h.Clear(ctx))

	entries, err := h.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)

	raw, ok, err := kv.Get(ctx, store.ChatHistoryKey.Name)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", raw)
}

func TestHistory_CorruptEntryReadsEmpty(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, store.ChatHistoryKey.Name, "{not json"))
	h := NewHistory(kv, nil, nil)

	entries, err := h.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = h.Append(ctx, "fresh")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHistory_ConcurrentAppends(t *testing.T) {
	kv := store.NewMemory()
	var mu sync.Mutex
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := NewHistory(kv, &mu, nil).Append(ctx, fmt.Sprint(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := NewHistory(kv, &mu, nil).Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, MaxHistory)
}
