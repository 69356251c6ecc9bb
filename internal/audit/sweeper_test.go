package audit_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scimgate/internal/audit"
	"scimgate/internal/audit/store"
	id "scimgate/pkg/domain"
)

func seedEntry(t *testing.T, st *store.InMemory, status audit.Status, age time.Duration) id.EntryID {
	t.Helper()
	entry := &audit.Entry{
		ID:         id.EntryID(uuid.New()),
		Action:     audit.ActionCreated,
		EntityType: audit.EntityUser,
		EntityID:   uuid.New(),
		Timestamp:  time.Now().Add(-age),
		Status:     status,
	}
	require.NoError(t, st.Append(context.Background(), entry))
	return entry.ID
}

func TestSweep_PromotesOnlyStalePending(t *testing.T) {
	st := store.NewInMemory()
	stale := seedEntry(t, st, audit.StatusPending, time.Hour)
	fresh := seedEntry(t, st, audit.StatusPending, time.Second)
	failed := seedEntry(t, st, audit.StatusFailed, time.Hour)

	sweeper := audit.NewSweeper(st, slog.New(slog.DiscardHandler), time.Minute, 10*time.Minute)
	require.NoError(t, sweeper.Sweep(context.Background()))

	byID := make(map[id.EntryID]audit.Status)
	for _, entry := range st.All() {
		byID[entry.ID] = entry.Status
	}
	assert.Equal(t, audit.StatusSuccess, byID[stale])
	assert.Equal(t, audit.StatusPending, byID[fresh])
	assert.Equal(t, audit.StatusFailed, byID[failed])
}
