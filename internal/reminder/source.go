package reminder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Source returns active recurring rules whose nextDueAt lies in [from, to),
// across all owners. Documents of every shape under a "recurring" collection
// may be returned; the scanner filters them.
//
// Firestore range filters compare values of the same type only, so the
// Firestore implementation matches Timestamp nextDueAt values and never
// returns rules that store the date as a "YYYY-MM-DD" or RFC 3339 string.
// Decode still reads those strings on documents that are returned.
type Source interface {
	DueBetween(ctx context.Context, from, to time.Time) ([]Document, error)
}

type FirestoreSource struct {
	db *firestore.Client
}

func NewFirestoreSource(db *firestore.Client) *FirestoreSource {
	return &FirestoreSource{db: db}
}

func (s *FirestoreSource) DueBetween(ctx context.Context, from, to time.Time) ([]Document, error) {
	query := s.db.CollectionGroup(collectionRecurring).
		Where("status", "==", string(StatusActive)).
		Where("nextDueAt", ">=", from).
		Where("nextDueAt", "<", to)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var result []Document
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query recurring rules: %w", err)
		}

		result = append(result, Document{
			Path: relativePath(doc.Ref),
			Data: doc.Data(),
		})
	}

	return result, nil
}

// relativePath rebuilds "users/A/friends/B/recurring/R" from a reference,
// whose Path field carries the full projects/.../documents prefix.
func relativePath(ref *firestore.DocumentRef) string {
	var segs []string
	for doc := ref; doc != nil; {
		segs = append(segs, doc.ID)
		coll := doc.Parent
		if coll == nil {
			break
		}
		segs = append(segs, coll.ID)
		doc = coll.Parent
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return strings.Join(segs, "/")
}

// MemorySource holds recurring rule documents in memory for local runs and
// tests. It applies the status and nextDueAt range filter of the Firestore
// query but also matches string dates unless TimestampOnly is set.
type MemorySource struct {
	mu   sync.Mutex
	docs map[string]map[string]interface{}
	loc  *time.Location

	// TimestampOnly restricts matches to time.Time nextDueAt values, the way
	// the Firestore range query behaves.
	TimestampOnly bool
	Err           error
}

func NewMemorySource(loc *time.Location) *MemorySource {
	if loc == nil {
		loc = time.UTC
	}
	return &MemorySource{docs: make(map[string]map[string]interface{}), loc: loc}
}

// Put stores or replaces the document at path.
func (m *MemorySource) Put(path string, data map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[strings.Trim(path, "/")] = data
}

func (m *MemorySource) DueBetween(_ context.Context, from, to time.Time) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var out []Document
	for path, data := range m.docs {
		segs := strings.Split(path, "/")
		if len(segs) < 2 || segs[len(segs)-2] != collectionRecurring {
			continue
		}
		if status, _ := data["status"].(string); status != string(StatusActive) {
			continue
		}
		if _, isTime := data["nextDueAt"].(time.Time); m.TimestampOnly && !isTime {
			continue
		}
		due, ok := DueDate(data["nextDueAt"], m.loc)
		if !ok || due.Before(from) || !due.Before(to) {
			continue
		}
		out = append(out, Document{Path: path, Data: data})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
