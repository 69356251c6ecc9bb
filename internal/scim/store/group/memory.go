package group

import (
	"context"
	"sort"
	"strings"
	"sync"

	"scimgate/internal/scim/models"
	id "scimgate/pkg/domain"
	"scimgate/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded group store for unit tests and local wiring.
type InMemory struct {
	mu     sync.RWMutex
	groups map[id.GroupID]*models.Group
}

func NewInMemory() *InMemory {
	return &InMemory{groups: make(map[id.GroupID]*models.Group)}
}

func (s *InMemory) Create(_ context.Context, g *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.groups {
		if existing.ExternalID == g.ExternalID || existing.DisplayName == g.DisplayName {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.groups[g.ID] = copyGroup(g)
	return nil
}

func (s *InMemory) Update(_ context.Context, g *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.groups[g.ID] = copyGroup(g)
	return nil
}

func (s *InMemory) Delete(_ context.Context, groupID id.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.groups, groupID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, groupID id.GroupID) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyGroup(g), nil
}

func (s *InMemory) FindByExternalID(_ context.Context, externalID string) (*models.Group, error) {
	return s.findBy(func(g *models.Group) bool { return g.ExternalID == externalID })
}

func (s *InMemory) FindByDisplayName(_ context.Context, displayName string) (*models.Group, error) {
	return s.findBy(func(g *models.Group) bool { return g.DisplayName == displayName })
}

func (s *InMemory) findBy(match func(*models.Group) bool) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if match(g) {
			return copyGroup(g), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context, filter ListFilter) ([]*models.Group, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Group
	for _, g := range s.groups {
		if filter.DisplayNameContains == "" || strings.Contains(g.DisplayName, filter.DisplayNameContains) {
			matched = append(matched, copyGroup(g))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].DisplayName < matched[j].DisplayName
	})

	total := len(matched)
	if filter.Skip >= total || filter.Take == 0 {
		return nil, total, nil
	}
	matched = matched[filter.Skip:]
	if filter.Take > 0 && filter.Take < len(matched) {
		matched = matched[:filter.Take]
	}
	return matched, total, nil
}

// copyGroup detaches the stored copy from the caller's aggregate. The event
// queue is stripped just like a SQL rehydration would, so a group loaded
// from the store never carries already-committed events.
func copyGroup(g *models.Group) *models.Group {
	copied := *g
	copied.Recorder = models.Recorder{}
	copied.Members = append([]models.Member(nil), g.Members...)
	return &copied
}
