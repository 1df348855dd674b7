package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/parser"
)

// MemorySource is an in-memory document source.
type MemorySource struct {
	mu    sync.Mutex
	docs  map[models.CollectionKey]map[string][]parser.Page
	fails map[models.CollectionKey]map[string]error
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		docs:  make(map[models.CollectionKey]map[string][]parser.Page),
		fails: make(map[models.CollectionKey]map[string]error),
	}
}

// Add stores a document whose pages hold the given texts, numbered from 1.
func (s *MemorySource) Add(key models.CollectionKey, name string, pages ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[key] == nil {
		s.docs[key] = make(map[string][]parser.Page)
	}
	ps := make([]parser.Page, len(pages))
	for i, text := range pages {
		ps[i] = parser.Page{Source: name, Number: i + 1, Text: text}
	}
	s.docs[key][name] = ps
}

// AddUnreadable lists a document whose extraction fails with err.
func (s *MemorySource) AddUnreadable(key models.CollectionKey, name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails[key] == nil {
		s.fails[key] = make(map[string]error)
	}
	s.fails[key][name] = err
}

// Remove drops a document.
func (s *MemorySource) Remove(key models.CollectionKey, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[key], name)
	delete(s.fails[key], name)
}

func (s *MemorySource) List(_ context.Context, key models.CollectionKey) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for n := range s.docs[key] {
		names = append(names, n)
	}
	for n := range s.fails[key] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemorySource) Pages(_ context.Context, key models.CollectionKey, name string) ([]parser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fails[key][name]; ok {
		return nil, err
	}
	pages, ok := s.docs[key][name]
	if !ok {
		return nil, fmt.Errorf("document %q not found", name)
	}
	return append([]parser.Page(nil), pages...), nil
}
