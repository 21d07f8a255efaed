package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for local runs (STORE_BACKEND=memory)
// and tests. ClaimErr and FeedErr, when set, are returned by the matching
// operations.
type MemoryStore struct {
	mu     sync.Mutex
	prefs  map[string]Preferences
	tokens map[string]string
	claims map[string]map[string]time.Time
	feed   map[string][]FeedEntry

	ClaimErr error
	FeedErr  error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prefs:  make(map[string]Preferences),
		tokens: make(map[string]string),
		claims: make(map[string]map[string]time.Time),
		feed:   make(map[string][]FeedEntry),
	}
}

func (m *MemoryStore) SetPreferences(uid string, p Preferences) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[uid] = p
}

func (m *MemoryStore) SetToken(uid, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[uid] = token
}

func (m *MemoryStore) Preferences(_ context.Context, uid string) Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prefs[uid]; ok {
		return p
	}
	return DefaultPreferences()
}

func (m *MemoryStore) Claim(_ context.Context, uid, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return false, m.ClaimErr
	}
	keys, ok := m.claims[uid]
	if !ok {
		keys = make(map[string]time.Time)
		m.claims[uid] = keys
	}
	if _, taken := keys[key]; taken {
		return false, nil
	}
	keys[key] = time.Now()
	return true, nil
}

func (m *MemoryStore) AppendFeed(_ context.Context, uid string, entry FeedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FeedErr != nil {
		return m.FeedErr
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.feed[uid] = append(m.feed[uid], entry)
	return nil
}

func (m *MemoryStore) DeviceToken(_ context.Context, uid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[uid], nil
}

// Feed returns a copy of the recipient's feed entries in write order.
func (m *MemoryStore) Feed(uid string) []FeedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FeedEntry, len(m.feed[uid]))
	copy(out, m.feed[uid])
	return out
}

// Claimed reports whether a dedup marker exists for (uid, key).
func (m *MemoryStore) Claimed(uid, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.claims[uid][key]
	return ok
}

// ClaimCount is the number of dedup markers held for uid.
func (m *MemoryStore) ClaimCount(uid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claims[uid])
}
