package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scimgate/internal/audit"
	auditstore "scimgate/internal/audit/store"
	"scimgate/internal/outbox"
	outboxstore "scimgate/internal/outbox/store"
	"scimgate/internal/scim/models"
	groupstore "scimgate/internal/scim/store/group"
	userstore "scimgate/internal/scim/store/user"
	id "scimgate/pkg/domain"
	dErrors "scimgate/pkg/domain-errors"
	"scimgate/pkg/platform/tx"
	"scimgate/pkg/requestcontext"
)

type fixture struct {
	service *Service
	users   *userstore.InMemory
	groups  *groupstore.InMemory
	outbox  *outboxstore.InMemory
	audits  *auditstore.InMemory
}

func newFixture() *fixture {
	users := userstore.NewInMemory()
	groups := groupstore.NewInMemory()
	outboxStore := outboxstore.NewInMemory()
	auditStore := auditstore.NewInMemory()

	svc := New(
		users,
		groups,
		outbox.NewRecorder(outboxStore),
		audit.NewRecorder(auditStore),
		tx.NewInMemoryRunner(),
	)
	return &fixture{
		service: svc,
		users:   users,
		groups:  groups,
		outbox:  outboxStore,
		audits:  auditStore,
	}
}

func requestCtx() context.Context {
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	ctx = requestcontext.WithActorID(ctx, "okta-scim")
	return requestcontext.WithTime(ctx, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func validInput() CreateUserInput {
	return CreateUserInput{
		ExternalID:   "ext-1",
		UserName:     "ada",
		DisplayName:  "Ada Lovelace",
		PrimaryEmail: "Ada@Example.com",
	}
}

func TestCreateUser_WritesUserOutboxAndAudit(t *testing.T) {
	f := newFixture()

	u, err := f.service.CreateUser(requestCtx(), validInput())
	require.NoError(t, err)
	assert.True(t, u.Active)
	assert.Equal(t, "ada@example.com", u.PrimaryEmail)
	assert.Empty(t, u.Events(), "events must be cleared after commit")

	stored, err := f.users.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", stored.UserName)

	messages := f.outbox.All()
	require.Len(t, messages, 1)
	assert.Equal(t, models.KindUserProvisioned, messages[0].EventType)
	assert.Equal(t, "req-1", messages[0].CorrelationID)
	assert.False(t, messages[0].Processed)

	entries := f.audits.All()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusSuccess, entries[0].Status)
	assert.Equal(t, audit.ActionCreated, entries[0].Action)
	assert.Equal(t, audit.EntityUser, entries[0].EntityType)
	assert.Equal(t, "req-1", entries[0].CorrelationID)
	assert.Equal(t, "okta-scim", entries[0].ActorID)
}

func TestCreateUser_MintsCorrelationWithoutRequestID(t *testing.T) {
	f := newFixture()

	_, err := f.service.CreateUser(context.Background(), validInput())
	require.NoError(t, err)

	messages := f.outbox.All()
	require.Len(t, messages, 1)
	entries := f.audits.All()
	require.Len(t, entries, 1)

	require.NotEmpty(t, messages[0].CorrelationID)
	assert.Equal(t, messages[0].CorrelationID, entries[0].CorrelationID,
		"outbox rows and the audit entry share one correlation id")
}

func TestCreateUser_DuplicateRejected(t *testing.T) {
	f := newFixture()
	ctx := requestCtx()

	_, err := f.service.CreateUser(ctx, validInput())
	require.NoError(t, err)

	t.Run("same external ID", func(t *testing.T) {
		input := validInput()
		input.UserName = "other"
		_, err := f.service.CreateUser(ctx, input)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, "User already exists", dErrors.MessageOf(err))
	})

	t.Run("same user name", func(t *testing.T) {
		input := validInput()
		input.ExternalID = "ext-other"
		_, err := f.service.CreateUser(ctx, input)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	// The rejections happened before any transaction opened.
	assert.Len(t, f.outbox.All(), 1)
	assert.Len(t, f.audits.All(), 1)
}

func TestCreateUser_InvalidEmailWritesNothing(t *testing.T) {
	f := newFixture()
	input := validInput()
	input.PrimaryEmail = "not-an-email"

	_, err := f.service.CreateUser(requestCtx(), input)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.Contains(t, dErrors.MessageOf(err), "not valid")

	_, _, listErr := f.service.ListUsers(context.Background(), userstore.ListFilter{Take: 10})
	require.NoError(t, listErr)
	assert.Empty(t, f.outbox.All())
	assert.Empty(t, f.audits.All())
}

func TestCreateUser_OutboxFailureRecordsFailedAudit(t *testing.T) {
	f := newFixture()
	f.outbox.FailAppendWith(errors.New("disk full"))

	_, err := f.service.CreateUser(requestCtx(), validInput())
	require.Error(t, err)

	entries := f.audits.All()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusFailed, entries[0].Status)
	assert.Equal(t, audit.ActionCreated, entries[0].Action)
	assert.Contains(t, entries[0].ErrorMessage, "disk full")
	assert.Empty(t, f.outbox.All())
}

func TestUpdateUser_AppliesPatchAndRecordsEvent(t *testing.T) {
	f := newFixture()
	ctx := requestCtx()
	u, err := f.service.CreateUser(ctx, validInput())
	require.NoError(t, err)

	newName := "Ada King"
	inactive := false
	updated, err := f.service.UpdateUser(ctx, u.ID, models.UserPatch{
		DisplayName: &newName,
		Active:      &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada King", updated.DisplayName)
	assert.False(t, updated.Active)
	assert.Empty(t, updated.Events())

	messages := f.outbox.All()
	require.Len(t, messages, 2)
	assert.Equal(t, models.KindUserUpdated, messages[1].EventType)
}

func TestUpdateUser_InvalidEmailLeavesUserUnchanged(t *testing.T) {
	f := newFixture()
	ctx := requestCtx()
	u, err := f.service.CreateUser(ctx, validInput())
	require.NoError(t, err)

	bad := "nope"
	_, err = f.service.UpdateUser(ctx, u.ID, models.UserPatch{PrimaryEmail: &bad})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	stored, err := f.users.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.PrimaryEmail)
	assert.Len(t, f.outbox.All(), 1, "no update event for a rejected patch")
}

func TestUpdateUser_UnknownUser(t *testing.T) {
	f := newFixture()

	_, err := f.service.UpdateUser(requestCtx(), id.UserID{}, models.UserPatch{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.Equal(t, "User not found", dErrors.MessageOf(err))
	assert.Empty(t, f.outbox.All())
	assert.Empty(t, f.audits.All())
}

func TestDeleteUser_UnknownUser(t *testing.T) {
	f := newFixture()

	err := f.service.DeleteUser(requestCtx(), id.UserID{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.Equal(t, "User not found", dErrors.MessageOf(err))
	assert.Empty(t, f.outbox.All())
	assert.Empty(t, f.audits.All())
}

func TestDeleteUser_SoftDeletes(t *testing.T) {
	f := newFixture()
	ctx := requestCtx()
	u, err := f.service.CreateUser(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteUser(ctx, u.ID))

	stored, err := f.users.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active, "deletion deactivates rather than removes")

	messages := f.outbox.All()
	require.Len(t, messages, 2)
	assert.Equal(t, models.KindUserDeleted, messages[1].EventType)

	entries := f.audits.All()
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionDeleted, entries[1].Action)
	assert.Equal(t, audit.StatusSuccess, entries[1].Status)
}

func TestListUsers_FiltersAndPages(t *testing.T) {
	f := newFixture()
	ctx := requestCtx()
	for _, name := range []string{"alpha", "beta", "alphabet"} {
		input := CreateUserInput{
			ExternalID:   "ext-" + name,
			UserName:     name,
			DisplayName:  name,
			PrimaryEmail: name + "@example.com",
		}
		_, err := f.service.CreateUser(ctx, input)
		require.NoError(t, err)
	}

	users, total, err := f.service.ListUsers(ctx, userstore.ListFilter{UserNameContains: "alpha", Take: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, users, 1)
	assert.Equal(t, "alpha", users[0].UserName)
}
