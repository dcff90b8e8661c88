package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/homelab-sensors/sensor-collector/internal/model"

	"github.com/pkg/errors"
)

type memoryDoc struct {
	hit Hit
	raw []byte
}

// Memory is a concurrency-safe in-memory implementation of Store, used in
// tests in place of a live Elasticsearch cluster. It mirrors the persisted
// layout convention: concrete indices named base-year, queried either
// directly or through the base alias.
type Memory struct {
	mu      sync.RWMutex
	indices map[string]map[string]memoryDoc
	aliases map[string]struct{}
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		indices: make(map[string]map[string]memoryDoc),
		aliases: make(map[string]struct{}),
	}
}

// matching returns the concrete index names covered by the index argument,
// which may be a concrete index or an alias.
func (s *Memory) matching(index string) []string {
	var names []string
	for name := range s.indices {
		if name == index || strings.HasPrefix(name, index+"-") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// MostRecent implements Store.
func (s *Memory) MostRecent(_ context.Context, index, seriesKey string) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Hit
	for _, name := range s.matching(index) {
		for _, doc := range s.indices[name] {
			if doc.hit.SeriesKey != seriesKey {
				continue
			}
			if best == nil || doc.hit.Timestamp.After(best.Timestamp) {
				h := doc.hit
				best = &h
			}
		}
	}

	if best == nil {
		return nil, nil
	}
	return []Hit{*best}, nil
}

// WriteBatch implements Store.
func (s *Memory) WriteBatch(_ context.Context, index string, readings []model.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.indices[index]
	if !ok {
		docs = make(map[string]memoryDoc)
		s.indices[index] = docs
	}

	for _, r := range readings {
		raw, err := json.Marshal(r.Document())
		if err != nil {
			return errors.Wrap(err, "marshalling reading")
		}
		meta := r.Meta()
		id := DocID(meta)
		docs[id] = memoryDoc{
			hit: Hit{ID: id, Index: index, SeriesKey: meta.SeriesKey, Timestamp: meta.Timestamp.UTC()},
			raw: raw,
		}
	}
	return nil
}

// EnsureAlias implements Store.
func (s *Memory) EnsureAlias(_ context.Context, baseName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[baseName] = struct{}{}
	return nil
}

// HasAlias reports whether EnsureAlias was called for baseName.
func (s *Memory) HasAlias(baseName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.aliases[baseName]
	return ok
}

// ScanAll implements Store.
func (s *Memory) ScanAll(_ context.Context, index string, fn func(Hit) error) error {
	s.mu.RLock()
	var hits []Hit
	for _, name := range s.matching(index) {
		for _, doc := range s.indices[name] {
			hits = append(hits, doc.hit)
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Timestamp.Equal(hits[j].Timestamp) {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].Timestamp.Before(hits[j].Timestamp)
	})

	for _, h := range hits {
		if err := fn(h); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements Store.
func (s *Memory) Delete(_ context.Context, hits []Hit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hits {
		if docs, ok := s.indices[h.Index]; ok {
			delete(docs, h.ID)
		}
	}
	return nil
}

// Count returns how many documents the index (or alias) currently holds.
func (s *Memory) Count(index string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, name := range s.matching(index) {
		n += len(s.indices[name])
	}
	return n
}

// Seed inserts a document directly under an explicit record id, bypassing
// the deterministic id derivation. Sweep tests use it to fabricate the
// duplicated records a real store can accumulate.
func (s *Memory) Seed(index string, hit Hit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.indices[index]
	if !ok {
		docs = make(map[string]memoryDoc)
		s.indices[index] = docs
	}
	hit.Index = index
	docs[hit.ID] = memoryDoc{hit: hit}
}
