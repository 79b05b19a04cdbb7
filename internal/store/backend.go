// Package store defines the generic entity backend that every inventory
// repository is built on.
//
// A backend stores JSON documents grouped by kind ("Asset", "Location", ...)
// and keyed by a backend-assigned id. Documents are opaque to the backend
// apart from two fields it owns: "id" and "created_date".
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when no document exists for a kind/id pair.
var ErrNotFound = errors.New("record not found")

// ListOptions controls ordering and size of List results.
type ListOptions struct {
	// Sort is a top-level field name, prefixed with "-" for descending.
	// Empty sorts by creation time, oldest first.
	Sort  string
	Limit int
}

// Backend is the generic entity store: list, filter, get, create, update,
// delete and bulk create over JSON documents.
//
// BulkCreate is a single unit of work: either every document is created or
// the call fails and none are.
type Backend interface {
	List(ctx context.Context, kind string, opts ListOptions) ([]json.RawMessage, error)
	Filter(ctx context.Context, kind string, match map[string]any) ([]json.RawMessage, error)
	Get(ctx context.Context, kind, id string) (json.RawMessage, error)
	Create(ctx context.Context, kind string, doc json.RawMessage) (json.RawMessage, error)
	Update(ctx context.Context, kind, id string, patch json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, kind, id string) error
	BulkCreate(ctx context.Context, kind string, docs []json.RawMessage) ([]json.RawMessage, error)
}

var sortFieldRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParseSort splits a sort expression into field and direction.
// Returns an error for field names that are not plain snake_case identifiers.
func ParseSort(sort string) (field string, desc bool, err error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		return "", false, nil
	}
	if strings.HasPrefix(sort, "-") {
		desc = true
		sort = sort[1:]
	}
	if !sortFieldRegex.MatchString(sort) {
		return "", false, fmt.Errorf("invalid sort field %q", sort)
	}
	return sort, desc, nil
}

// Stamp decodes doc, sets the backend-owned id and created_date fields and
// re-encodes it. Any id or created_date supplied by the caller is replaced.
func Stamp(doc json.RawMessage, id string, created time.Time) (json.RawMessage, error) {
	fields, err := decodeObject(doc)
	if err != nil {
		return nil, err
	}
	fields["id"] = id
	fields["created_date"] = created.UTC().Format(time.RFC3339Nano)
	return json.Marshal(fields)
}

// Merge applies a shallow patch to doc. The id and created_date fields
// cannot be changed through a patch.
func Merge(doc, patch json.RawMessage) (json.RawMessage, error) {
	base, err := decodeObject(doc)
	if err != nil {
		return nil, err
	}
	changes, err := decodeObject(patch)
	if err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	delete(changes, "id")
	delete(changes, "created_date")
	for k, v := range changes {
		base[k] = v
	}
	return json.Marshal(base)
}

// Matches reports whether every field in match is present in doc with an
// equal JSON value.
func Matches(doc json.RawMessage, match map[string]any) (bool, error) {
	if len(match) == 0 {
		return true, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	for k, want := range match {
		got, ok := fields[k]
		if !ok {
			return false, nil
		}
		wantJSON, err := json.Marshal(want)
		if err != nil {
			return false, fmt.Errorf("encode match value for %s: %w", k, err)
		}
		if !jsonEqual(got, wantJSON) {
			return false, nil
		}
	}
	return true, nil
}

func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	ae, _ := json.Marshal(av)
	be, _ := json.Marshal(bv)
	return string(ae) == string(be)
}

func decodeObject(doc json.RawMessage) (map[string]any, error) {
	fields := map[string]any{}
	if len(doc) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}
