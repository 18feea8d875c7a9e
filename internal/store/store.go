// Package store keeps a normalized, entity-keyed cache of query results.
//
// Responses are flattened into records: one record per entity, identified by
// its id field when the response carries one, otherwise by its path from the
// root record. Records link to each other with Refs, so two queries touching
// the same entity share and update one record.
package store

import (
	"fmt"
	"strconv"
	"sync"

	descriptor "github.com/hanpama/ghcard/internal/descriptor"
)

// DataID identifies a record.
type DataID string

// RootID is the record holding the root query fields.
const RootID DataID = "client:root"

// Reserved record keys.
const (
	IDKey       = "__id"
	TypenameKey = "__typename"
)

// Ref links a field to another record.
type Ref struct {
	ID DataID
}

// Record maps storage keys to values. A value is a JSON scalar, nil, a Ref
// for a linked field, or []*Ref for a plural linked field (nil entries for
// null items).
type Record map[string]any

// Snapshot is a projection of the store for one descriptor.
type Snapshot struct {
	Data map[string]any
	// Missing is set when a record or field the descriptor selects has never
	// been written.
	Missing bool
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[DataID]Record
}

func New() *Store {
	return &Store{records: map[DataID]Record{
		RootID: {IDKey: string(RootID)},
	}}
}

// Publish normalizes data, shaped as desc with vars, and merges it into the
// store in one step. Fields present in data overwrite stored values; other
// fields and records are left untouched. On error nothing is merged.
func (s *Store) Publish(desc *descriptor.Descriptor, vars map[string]any, data map[string]any) error {
	n := &normalizer{vars: vars, changes: map[DataID]Record{}}
	if err := n.record(RootID, desc.RootType, desc.Selections, data); err != nil {
		return fmt.Errorf("store: %s: %w", desc.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, fields := range n.changes {
		rec, ok := s.records[id]
		if !ok {
			rec = Record{}
			s.records[id] = rec
		}
		for k, v := range fields {
			rec[k] = v
		}
	}
	return nil
}

// Lookup projects the descriptor's selections from the current store state.
// Generated selections are not projected.
func (s *Store) Lookup(desc *descriptor.Descriptor, vars map[string]any) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := &reader{records: s.records, vars: vars}
	data := r.object(RootID, desc.Selections)
	if data == nil {
		data = map[string]any{}
	}
	return Snapshot{Data: data, Missing: r.missing}
}

// Get returns a copy of the record.
func (s *Store) Get(id DataID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, true
}

// Len returns the number of records, including the root.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

type normalizer struct {
	vars    map[string]any
	changes map[DataID]Record
}

func (n *normalizer) record(id DataID, typename string, sels []*descriptor.Selection, obj map[string]any) error {
	rec := n.changes[id]
	if rec == nil {
		rec = Record{IDKey: string(id)}
		n.changes[id] = rec
	}
	if typename != "" {
		rec[TypenameKey] = typename
	}
	for _, sel := range sels {
		val, ok := obj[sel.ResponseKey()]
		if !ok {
			continue
		}
		key, err := sel.StorageKey(n.vars)
		if err != nil {
			return fmt.Errorf("%s: %w", sel.Name, err)
		}
		if sel.Kind == descriptor.KindScalar || val == nil {
			rec[key] = val
			continue
		}
		if !sel.Plural {
			child, ok := val.(map[string]any)
			if !ok {
				return fmt.Errorf("%s: expected object, got %T", key, val)
			}
			childID := identify(id, key, -1, sel, child)
			rec[key] = Ref{ID: childID}
			if err := n.record(childID, sel.ConcreteType, sel.Selections, child); err != nil {
				return err
			}
			continue
		}
		items, ok := val.([]any)
		if !ok {
			return fmt.Errorf("%s: expected list, got %T", key, val)
		}
		refs := make([]*Ref, len(items))
		for i, item := range items {
			if item == nil {
				continue
			}
			child, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("%s.%d: expected object, got %T", key, i, item)
			}
			childID := identify(id, key, i, sel, child)
			refs[i] = &Ref{ID: childID}
			if err := n.record(childID, sel.ConcreteType, sel.Selections, child); err != nil {
				return err
			}
		}
		rec[key] = refs
	}
	return nil
}

// identify returns the entity id when sel selects one and the response has
// it, otherwise a path id derived from the parent.
func identify(parent DataID, key string, index int, sel *descriptor.Selection, obj map[string]any) DataID {
	for _, sub := range sel.Selections {
		if sub.Name != descriptor.IDField || len(sub.Arguments) > 0 {
			continue
		}
		if id, ok := obj[sub.ResponseKey()].(string); ok && id != "" {
			return DataID(id)
		}
	}
	path := string(parent) + ":" + key
	if index >= 0 {
		path += ":" + strconv.Itoa(index)
	}
	return DataID(path)
}

type reader struct {
	records map[DataID]Record
	vars    map[string]any
	missing bool
}

func (r *reader) object(id DataID, sels []*descriptor.Selection) map[string]any {
	rec, ok := r.records[id]
	if !ok {
		r.missing = true
		return nil
	}
	out := make(map[string]any, len(sels))
	for _, sel := range sels {
		if sel.Generated {
			continue
		}
		key, err := sel.StorageKey(r.vars)
		if err != nil {
			r.missing = true
			continue
		}
		val, ok := rec[key]
		if !ok {
			r.missing = true
			out[sel.ResponseKey()] = nil
			continue
		}
		switch v := val.(type) {
		case Ref:
			if obj := r.object(v.ID, sel.Selections); obj != nil {
				out[sel.ResponseKey()] = obj
			} else {
				out[sel.ResponseKey()] = nil
			}
		case []*Ref:
			items := make([]any, len(v))
			for i, ref := range v {
				if ref == nil {
					continue
				}
				if obj := r.object(ref.ID, sel.Selections); obj != nil {
					items[i] = obj
				}
			}
			out[sel.ResponseKey()] = items
		default:
			out[sel.ResponseKey()] = val
		}
	}
	return out
}
