// Package memory provides an in-process store.Backend.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assetinventory/internal/store"
)

// FailFunc lets tests inject failures. It is called before every mutating
// operation with the operation name ("create", "bulk_create", "update",
// "delete") and kind; a non-nil error aborts the operation.
type FailFunc func(op, kind string) error

type entry struct {
	id      string
	doc     json.RawMessage
	created time.Time
	seq     int
}

// Backend is a mutex-guarded map of documents per kind.
type Backend struct {
	mu    sync.RWMutex
	kinds map[string]map[string]*entry
	seq   int
	now   func() time.Time

	// Fail is consulted before mutations when set.
	Fail FailFunc
}

// New creates an empty Backend.
func New() *Backend {
	return &Backend{
		kinds: make(map[string]map[string]*entry),
		now:   time.Now,
	}
}

var _ store.Backend = (*Backend)(nil)

func (b *Backend) check(op, kind string) error {
	if b.Fail == nil {
		return nil
	}
	return b.Fail(op, kind)
}

// List returns documents of kind ordered by opts.Sort.
func (b *Backend) List(ctx context.Context, kind string, opts store.ListOptions) ([]json.RawMessage, error) {
	field, desc, err := store.ParseSort(opts.Sort)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	entries := b.sorted(kind)
	b.mu.RUnlock()

	if field != "" {
		keys := make(map[string]string, len(entries))
		for _, e := range entries {
			keys[e.id] = sortKey(e.doc, field)
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if desc {
				return keys[entries[i].id] > keys[entries[j].id]
			}
			return keys[entries[i].id] < keys[entries[j].id]
		})
	}

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	return docs(entries), nil
}

// Filter returns documents whose fields equal every value in match.
func (b *Backend) Filter(ctx context.Context, kind string, match map[string]any) ([]json.RawMessage, error) {
	b.mu.RLock()
	entries := b.sorted(kind)
	b.mu.RUnlock()

	var out []json.RawMessage
	for _, e := range entries {
		ok, err := store.Matches(e.doc, match)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e.doc)
		}
	}
	return out, nil
}

// Get returns a single document or store.ErrNotFound.
func (b *Backend) Get(ctx context.Context, kind, id string) (json.RawMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.kinds[kind][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return e.doc, nil
}

// Create stores a document under a new id.
func (b *Backend) Create(ctx context.Context, kind string, doc json.RawMessage) (json.RawMessage, error) {
	if err := b.check("create", kind); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.insert(kind, doc)
	if err != nil {
		return nil, err
	}
	return e.doc, nil
}

// BulkCreate stores all documents or none.
func (b *Backend) BulkCreate(ctx context.Context, kind string, in []json.RawMessage) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.check("bulk_create", kind); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	stamped := make([]*entry, 0, len(in))
	for i, doc := range in {
		e, err := b.stamp(doc)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		stamped = append(stamped, e)
	}

	out := make([]json.RawMessage, 0, len(stamped))
	for _, e := range stamped {
		b.put(kind, e)
		out = append(out, e.doc)
	}
	return out, nil
}

// Update merges patch into an existing document.
func (b *Backend) Update(ctx context.Context, kind, id string, patch json.RawMessage) (json.RawMessage, error) {
	if err := b.check("update", kind); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.kinds[kind][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	merged, err := store.Merge(e.doc, patch)
	if err != nil {
		return nil, err
	}
	e.doc = merged
	return merged, nil
}

// Delete removes a document.
func (b *Backend) Delete(ctx context.Context, kind, id string) error {
	if err := b.check("delete", kind); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.kinds[kind][id]; !ok {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	delete(b.kinds[kind], id)
	return nil
}

// Count returns the number of documents of kind.
func (b *Backend) Count(kind string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.kinds[kind])
}

func (b *Backend) insert(kind string, doc json.RawMessage) (*entry, error) {
	e, err := b.stamp(doc)
	if err != nil {
		return nil, err
	}
	b.put(kind, e)
	return e, nil
}

func (b *Backend) stamp(doc json.RawMessage) (*entry, error) {
	id := uuid.New().String()
	created := b.now()
	stamped, err := store.Stamp(doc, id, created)
	if err != nil {
		return nil, err
	}
	b.seq++
	return &entry{id: id, doc: stamped, created: created, seq: b.seq}, nil
}

func (b *Backend) put(kind string, e *entry) {
	m, ok := b.kinds[kind]
	if !ok {
		m = make(map[string]*entry)
		b.kinds[kind] = m
	}
	m[e.id] = e
}

// sorted returns a snapshot of kind's entries in insertion order.
// Caller must hold at least a read lock.
func (b *Backend) sorted(kind string) []*entry {
	m := b.kinds[kind]
	out := make([]*entry, 0, len(m))
	for _, e := range m {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func sortKey(doc json.RawMessage, field string) string {
	var fields map[string]any
	if json.Unmarshal(doc, &fields) != nil {
		return ""
	}
	v, ok := fields[field]
	if !ok || v == nil {
		return ""
	}
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%020.6f", f)
	}
	return fmt.Sprint(v)
}

func docs(entries []*entry) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.doc)
	}
	return out
}
