package group

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"scimgate/internal/scim/models"
	id "scimgate/pkg/domain"
	"scimgate/pkg/platform/sentinel"
)

type GroupStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *GroupStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestGroupStoreSuite(t *testing.T) {
	suite.Run(t, new(GroupStoreSuite))
}

func (s *GroupStoreSuite) newGroup(externalID, displayName string) *models.Group {
	g, err := models.NewGroup(externalID, displayName, time.Now())
	s.Require().NoError(err)
	g.ClearEvents()
	return g
}

func (s *GroupStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds group by ID", func() {
		g := s.newGroup("ext-1", "Engineering")
		s.Require().NoError(s.store.Create(s.ctx, g))

		found, err := s.store.FindByID(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal("Engineering", found.DisplayName)
	})

	s.Run("finds group by external ID and by display name", func() {
		g := s.newGroup("ext-2", "Support")
		s.Require().NoError(s.store.Create(s.ctx, g))

		byExternal, err := s.store.FindByExternalID(s.ctx, "ext-2")
		s.Require().NoError(err)
		s.Equal(g.ID, byExternal.ID)

		byName, err := s.store.FindByDisplayName(s.ctx, "Support")
		s.Require().NoError(err)
		s.Equal(g.ID, byName.ID)
	})

	s.Run("rejects duplicate external ID", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newGroup("ext-dup", "First")))
		err := s.store.Create(s.ctx, s.newGroup("ext-dup", "Second"))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}

func (s *GroupStoreSuite) TestMembershipPersistence() {
	g := s.newGroup("ext-m", "Platform")
	s.Require().NoError(s.store.Create(s.ctx, g))

	userID := id.UserID(uuid.New())
	s.Require().NoError(g.AddMember(userID, "Ada Lovelace", time.Now()))
	s.Require().NoError(s.store.Update(s.ctx, g))

	found, err := s.store.FindByID(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Require().Len(found.Members, 1)
	s.Equal(userID, found.Members[0].UserID)
	s.Equal("Ada Lovelace", found.Members[0].DisplayName)

	s.Require().NoError(g.RemoveMember(userID, time.Now()))
	s.Require().NoError(s.store.Update(s.ctx, g))

	found, err = s.store.FindByID(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Empty(found.Members)
}

func (s *GroupStoreSuite) TestDelete() {
	g := s.newGroup("ext-d", "Ephemeral")
	s.Require().NoError(s.store.Create(s.ctx, g))
	s.Require().NoError(s.store.Delete(s.ctx, g.ID))

	_, err := s.store.FindByID(s.ctx, g.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(s.ctx, g.ID), sentinel.ErrNotFound)
}

func (s *GroupStoreSuite) TestList() {
	for _, name := range []string{"Core", "Core Infra", "Design"} {
		s.Require().NoError(s.store.Create(s.ctx, s.newGroup("ext-"+name, name)))
	}

	groups, total, err := s.store.List(s.ctx, ListFilter{DisplayNameContains: "Core", Take: 10})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(groups, 2)
	s.Equal("Core", groups[0].DisplayName)
	s.Equal("Core Infra", groups[1].DisplayName)

	empty, total, err := s.store.List(s.ctx, ListFilter{Take: 0})
	s.Require().NoError(err)
	s.Empty(empty)
	s.Equal(3, total)
}

func (s *GroupStoreSuite) TestLoadedGroupCarriesNoEvents() {
	g, err := models.NewGroup("ext-1", "Core", time.Now())
	s.Require().NoError(err)
	s.Require().NotEmpty(g.Events(), "creation queues an event")
	s.Require().NoError(s.store.Create(s.ctx, g))

	found, err := s.store.FindByID(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Empty(found.Events(), "rehydrated aggregates start with a clean queue")
}
