//go:build integration

package user_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"scimgate/internal/outbox"
	outboxstore "scimgate/internal/outbox/store"
	"scimgate/internal/scim/models"
	"scimgate/internal/scim/store/user"
	"scimgate/pkg/platform/sentinel"
	"scimgate/pkg/platform/tx"
	"scimgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *user.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = user.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func newTestUser(s *PostgresStoreSuite, externalID, userName string) *models.User {
	u, err := models.NewUser(externalID, userName, "Test User", userName+"@example.com", time.Now().UTC())
	s.Require().NoError(err)
	u.ClearEvents()
	return u
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	u := newTestUser(s, "ext-1", "ada")
	s.Require().NoError(s.store.Create(ctx, u))

	found, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("ada", found.UserName)
	s.Equal("ada@example.com", found.PrimaryEmail)
	s.True(found.Active)

	_, err = s.store.FindByUserName(ctx, "nobody")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentUniqueViolation verifies that concurrent creation attempts
// with the same userName result in exactly one success.
func (s *PostgresStoreSuite) TestConcurrentUniqueViolation() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			u := newTestUser(s, "ext-race-"+time.Now().Format("150405.000000000")+string(rune('a'+n)), "contested")
			err := s.store.Create(ctx, u)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

// TestRollbackLeavesNoRows verifies that a failure after the aggregate write
// rolls back the user row and its outbox messages together.
func (s *PostgresStoreSuite) TestRollbackLeavesNoRows() {
	ctx := context.Background()
	runner := tx.NewPostgresRunner(s.postgres.DB)
	outboxStore := outboxstore.NewPostgres(s.postgres.DB)

	u, err := models.NewUser("ext-rb", "rollback", "Rollback", "rollback@example.com", time.Now().UTC())
	s.Require().NoError(err)
	injected := errors.New("injected failure")

	err = runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, u); err != nil {
			return err
		}
		if err := outbox.NewRecorder(outboxStore).Record(txCtx, u.Events(), "corr"); err != nil {
			return err
		}
		return injected
	})
	s.Require().ErrorIs(err, injected)

	_, findErr := s.store.FindByID(ctx, u.ID)
	s.Require().ErrorIs(findErr, sentinel.ErrNotFound)

	pending, fetchErr := outboxStore.FetchUnprocessed(ctx, 10)
	s.Require().NoError(fetchErr)
	s.Empty(pending)
}

func (s *PostgresStoreSuite) TestListSubstringFilter() {
	ctx := context.Background()
	for _, name := range []string{"alpha", "beta", "alphabet"} {
		s.Require().NoError(s.store.Create(ctx, newTestUser(s, "ext-"+name, name)))
	}

	users, total, err := s.store.List(ctx, user.ListFilter{UserNameContains: "alpha", Take: 10})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(users, 2)
	s.Equal("alpha", users[0].UserName)
	s.Equal("alphabet", users[1].UserName)

	s.Run("wildcard characters match literally", func() {
		s.Require().NoError(s.store.Create(ctx, newTestUser(s, "ext-pct", "100%done")))

		matched, total, err := s.store.List(ctx, user.ListFilter{UserNameContains: "0%d", Take: 10})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Require().Len(matched, 1)
		s.Equal("100%done", matched[0].UserName)

		percentOnly, total, err := s.store.List(ctx, user.ListFilter{UserNameContains: "%", Take: 10})
		s.Require().NoError(err)
		s.Equal(1, total, "a bare percent only matches the user name containing one")
		s.Require().Len(percentOnly, 1)
		s.Equal("100%done", percentOnly[0].UserName)
	})
}
