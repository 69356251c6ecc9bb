package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "scimgate/pkg/domain-errors"
)

func TestNewUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("queues exactly one provisioned event", func(t *testing.T) {
		u, err := NewUser("ext-1", "jdoe", "J Doe", "j@x.com", now)
		require.NoError(t, err)

		require.Len(t, u.Events(), 1)
		assert.Equal(t, KindUserProvisioned, u.Events()[0].Kind())
		assert.Equal(t, u.ID.String(), u.Events()[0].AggregateID().String())
		assert.True(t, u.Active)
		assert.Equal(t, now, u.CreatedAt)
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		_, err := NewUser("", "jdoe", "J Doe", "j@x.com", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "External ID is required")

		_, err = NewUser("ext-1", "", "J Doe", "j@x.com", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Username is required")

		_, err = NewUser("ext-1", "jdoe", "", "j@x.com", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Display name is required")
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		_, err := NewUser("ext-1", "jdoe", "J Doe", "not-an-email", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		assert.Contains(t, err.Error(), "not valid")
	})

	t.Run("normalizes email case and whitespace", func(t *testing.T) {
		u, err := NewUser("ext-1", "jdoe", "J Doe", "  J@X.COM ", now)
		require.NoError(t, err)
		assert.Equal(t, "j@x.com", u.PrimaryEmail)
	})
}

func TestUserUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	newTestUser := func(t *testing.T) *User {
		t.Helper()
		u, err := NewUser("ext-1", "jdoe", "J Doe", "j@x.com", now)
		require.NoError(t, err)
		u.ClearEvents()
		return u
	}

	t.Run("all-nil patch bumps modified-at and queues one event", func(t *testing.T) {
		u := newTestUser(t)
		require.NoError(t, u.Update(UserPatch{}, later))

		assert.Equal(t, "J Doe", u.DisplayName)
		assert.Equal(t, "j@x.com", u.PrimaryEmail)
		assert.True(t, u.Active)
		assert.Equal(t, later, u.ModifiedAt)
		require.Len(t, u.Events(), 1)
		assert.Equal(t, KindUserUpdated, u.Events()[0].Kind())
	})

	t.Run("selectively overwrites provided fields", func(t *testing.T) {
		u := newTestUser(t)
		name := "Jane Doe"
		email := "jane@x.com"
		active := false
		require.NoError(t, u.Update(UserPatch{DisplayName: &name, PrimaryEmail: &email, Active: &active}, later))

		assert.Equal(t, "Jane Doe", u.DisplayName)
		assert.Equal(t, "jane@x.com", u.PrimaryEmail)
		assert.False(t, u.Active)
	})

	t.Run("invalid email leaves aggregate unchanged", func(t *testing.T) {
		u := newTestUser(t)
		name := "Jane Doe"
		bad := "nope"
		err := u.Update(UserPatch{DisplayName: &name, PrimaryEmail: &bad}, later)
		require.Error(t, err)

		assert.Equal(t, "J Doe", u.DisplayName)
		assert.Equal(t, "j@x.com", u.PrimaryEmail)
		assert.Equal(t, now, u.ModifiedAt)
		assert.Empty(t, u.Events())
	})
}

func TestUserDelete(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u, err := NewUser("ext-1", "jdoe", "J Doe", "j@x.com", now)
	require.NoError(t, err)
	u.ClearEvents()

	u.Delete(now.Add(time.Minute))

	assert.False(t, u.Active)
	require.Len(t, u.Events(), 1)
	assert.Equal(t, KindUserDeleted, u.Events()[0].Kind())
}

func TestEventQueueSurvivesFailure(t *testing.T) {
	// Events are only cleared explicitly after commit, so a failed use case
	// can retry and re-derive the same queue.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u, err := NewUser("ext-1", "jdoe", "J Doe", "j@x.com", now)
	require.NoError(t, err)

	require.Len(t, u.Events(), 1)
	u.ClearEvents()
	assert.Empty(t, u.Events())
}
