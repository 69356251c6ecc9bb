package user

import (
	"context"
	"sort"
	"strings"
	"sync"

	"scimgate/internal/scim/models"
	id "scimgate/pkg/domain"
	"scimgate/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded user store for unit tests and local wiring.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User

	failCreate error
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserID]*models.User)}
}

// FailCreateWith makes every subsequent Create return err; nil clears it.
func (s *InMemory) FailCreateWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = err
}

func (s *InMemory) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	for _, existing := range s.users {
		if existing.ExternalID == u.ExternalID || existing.UserName == u.UserName {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *InMemory) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *InMemory) FindByExternalID(_ context.Context, externalID string) (*models.User, error) {
	return s.findBy(func(u *models.User) bool { return u.ExternalID == externalID })
}

func (s *InMemory) FindByUserName(_ context.Context, userName string) (*models.User, error) {
	return s.findBy(func(u *models.User) bool { return u.UserName == userName })
}

func (s *InMemory) findBy(match func(*models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context, filter ListFilter) ([]*models.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.User
	for _, u := range s.users {
		if filter.UserNameContains == "" || strings.Contains(u.UserName, filter.UserNameContains) {
			matched = append(matched, copyUser(u))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UserName < matched[j].UserName
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

// copyUser detaches the stored copy from the caller's aggregate. The event
// queue is stripped just like a SQL rehydration would, so a user loaded
// from the store never carries already-committed events.
func copyUser(u *models.User) *models.User {
	copied := *u
	copied.Recorder = models.Recorder{}
	return &copied
}
