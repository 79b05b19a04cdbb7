package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/assetinventory/internal/store"
)

// Store is the typed entity store for one kind of record.
type Store[T any] interface {
	List(ctx context.Context, sort string, limit int) ([]T, error)
	Filter(ctx context.Context, match map[string]any) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, id string, patch map[string]any) (T, error)
	Delete(ctx context.Context, id string) error
	BulkCreate(ctx context.Context, recs []T) ([]T, error)
}

// Repository encodes T to JSON documents of a single kind on a store.Backend.
type Repository[T any] struct {
	backend store.Backend
	kind    string
}

// NewRepository returns a repository for kind on backend.
func NewRepository[T any](backend store.Backend, kind string) *Repository[T] {
	return &Repository[T]{backend: backend, kind: kind}
}

var _ Store[Asset] = (*Repository[Asset])(nil)

// Kind returns the stored kind name.
func (r *Repository[T]) Kind() string { return r.kind }

func (r *Repository[T]) List(ctx context.Context, sort string, limit int) ([]T, error) {
	docs, err := r.backend.List(ctx, r.kind, store.ListOptions{Sort: sort, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.kind, err)
	}
	return decodeAll[T](docs)
}

func (r *Repository[T]) Filter(ctx context.Context, match map[string]any) ([]T, error) {
	docs, err := r.backend.Filter(ctx, r.kind, match)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", r.kind, err)
	}
	return decodeAll[T](docs)
}

func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := r.backend.Get(ctx, r.kind, id)
	if err != nil {
		return zero, err
	}
	return decode[T](doc)
}

func (r *Repository[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	doc, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", r.kind, err)
	}
	out, err := r.backend.Create(ctx, r.kind, doc)
	if err != nil {
		return zero, fmt.Errorf("create %s: %w", r.kind, err)
	}
	return decode[T](out)
}

func (r *Repository[T]) Update(ctx context.Context, id string, patch map[string]any) (T, error) {
	var zero T
	doc, err := json.Marshal(patch)
	if err != nil {
		return zero, fmt.Errorf("encode %s patch: %w", r.kind, err)
	}
	out, err := r.backend.Update(ctx, r.kind, id, doc)
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", r.kind, err)
	}
	return decode[T](out)
}

func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := r.backend.Delete(ctx, r.kind, id); err != nil {
		return fmt.Errorf("delete %s: %w", r.kind, err)
	}
	return nil
}

// BulkCreate creates recs as one unit of work.
func (r *Repository[T]) BulkCreate(ctx context.Context, recs []T) ([]T, error) {
	docs := make([]json.RawMessage, 0, len(recs))
	for i, rec := range recs {
		doc, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode %s %d: %w", r.kind, i, err)
		}
		docs = append(docs, doc)
	}
	out, err := r.backend.BulkCreate(ctx, r.kind, docs)
	if err != nil {
		return nil, fmt.Errorf("bulk create %s: %w", r.kind, err)
	}
	return decodeAll[T](out)
}

func decode[T any](doc json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, fmt.Errorf("decode record: %w", err)
	}
	return v, nil
}

func decodeAll[T any](docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Inventory groups one repository per entity kind.
type Inventory struct {
	Assets      Store[Asset]
	Categories  Store[Category]
	Locations   Store[Location]
	Events      Store[Event]
	Users       Store[User]
	Roles       Store[Role]
	Checkouts   Store[CheckoutRecord]
	Notes       Store[AssetNote]
	Attachments Store[AssetAttachment]
}

// New builds an Inventory whose repositories all share backend.
func New(backend store.Backend) *Inventory {
	return &Inventory{
		Assets:      NewRepository[Asset](backend, KindAsset),
		Categories:  NewRepository[Category](backend, KindCategory),
		Locations:   NewRepository[Location](backend, KindLocation),
		Events:      NewRepository[Event](backend, KindEvent),
		Users:       NewRepository[User](backend, KindUser),
		Roles:       NewRepository[Role](backend, KindRole),
		Checkouts:   NewRepository[CheckoutRecord](backend, KindCheckout),
		Notes:       NewRepository[AssetNote](backend, KindNote),
		Attachments: NewRepository[AssetAttachment](backend, KindAttachment),
	}
}
