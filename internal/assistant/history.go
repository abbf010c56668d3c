package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/store"
)

// MaxHistory is the number of chat entries kept per profile.
const MaxHistory = 10

var historyEntry = store.JSON[[]domain.ChatEntry](store.ChatHistoryKey)

// History is the bounded chat log of one profile. Calls are serialized by
// mu, which is shared by every History of the same profile.
type History struct {
	mu  *sync.Mutex
	kv  store.Store
	now func() time.Time
}

// NewHistory binds a history to kv. A nil mu gets a private lock.
func NewHistory(kv store.Store, mu *sync.Mutex, now func() time.Time) *History {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if now == nil {
		now = time.Now
	}
	return &History{mu: mu, kv: kv, now: now}
}

// Entries returns the stored entries, oldest first. A corrupt entry reads
// as empty.
func (h *History) Entries(ctx context.Context) ([]domain.ChatEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries(ctx)
}

func (h *History) entries(ctx context.Context) ([]domain.ChatEntry, error) {
	raw, ok, err := h.kv.Get(ctx, store.ChatHistoryKey.Name)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	var entries []domain.ChatEntry
	if !ok || json.Unmarshal([]byte(raw), &entries) != nil || entries == nil {
		return []domain.ChatEntry{}, nil
	}
	return entries, nil
}

// Append records text, drops entries beyond MaxHistory from the front and
// persists the result.
func (h *History) Append(ctx context.Context, text string) ([]domain.ChatEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.entries(ctx)
	if err != nil {
		return nil, err
	}
	entries = append(entries, domain.ChatEntry{Text: text, Timestamp: h.now().UTC()})
	if n := len(entries); n > MaxHistory {
		entries = append([]domain.ChatEntry(nil), entries[n-MaxHistory:]...)
	}
	if err := historyEntry.Save(ctx, h.kv, entries); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	return entries, nil
}

// Clear empties the log and persists an empty array.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := historyEntry.Save(ctx, h.kv, []domain.ChatEntry{}); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
