package transcript

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/patientsim/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "transcript.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSQLiteSaveUserIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.SaveUser(ctx, "Jordan Lee", "jordan@clinic.example")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "Jordan Lee", first.Name)

	// Saving the same identity again returns the stored record unchanged.
	second, err := store.SaveUser(ctx, "J. Lee", "jordan@clinic.example")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Jordan Lee", second.Name)

	other, err := store.SaveUser(ctx, "Sam Reyes", "sam@clinic.example")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSQLiteSaveUserRequiresIdentity(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SaveUser(context.Background(), "No Identity", "   ")
	require.Error(t, err)

	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestSQLiteSaveTurnRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stamp := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	records := []core.TurnRecord{
		{
			SessionID:      "sess-1",
			Identity:       "jordan@clinic.example",
			SenderRole:     core.SpeakerUser,
			SenderLabel:    "Jordan Lee",
			RecipientLabel: "Alan Brooks",
			Content:        "Good morning, how are you feeling?",
			Timestamp:      stamp,
		},
		{
			SessionID:      "sess-1",
			Identity:       "jordan@clinic.example",
			SenderRole:     core.SpeakerAgent,
			SenderLabel:    "Alan Brooks",
			RecipientLabel: "Jordan Lee",
			Content:        "Honestly, my shoulder aches.",
			Timestamp:      stamp.Add(time.Minute),
		},
	}
	for _, rec := range records {
		require.NoError(t, store.SaveTurn(ctx, rec))
	}

	got, err := store.Turns(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[0].Content, got[0].Content)
	assert.Equal(t, core.SpeakerUser, got[0].SenderRole)
	assert.Equal(t, "Alan Brooks", got[0].RecipientLabel)
	assert.Equal(t, core.SpeakerAgent, got[1].SenderRole)
	assert.True(t, got[1].Timestamp.Equal(stamp.Add(time.Minute)))

	other, err := store.Turns(ctx, "sess-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteSaveTurnAllowsDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := core.TurnRecord{
		SessionID:   "sess-1",
		SenderRole:  core.SpeakerUser,
		SenderLabel: "Jordan Lee",
		Content:     "Repeated after a retry.",
	}
	require.NoError(t, store.SaveTurn(ctx, rec))
	require.NoError(t, store.SaveTurn(ctx, rec))

	got, err := store.Turns(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLiteSaveTurnRequiresSessionID(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveTurn(context.Background(), core.TurnRecord{Content: "orphan"})
	require.Error(t, err)

	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestSQLiteSaveResultRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := core.ResultRecord{
		SessionID: "sess-1",
		Identity:  "jordan@clinic.example",
		Content:   "Strong rapport, missed the medication reconciliation.",
	}
	require.NoError(t, store.SaveResult(ctx, rec))
	// Retried debriefs append a second row rather than overwrite.
	require.NoError(t, store.SaveResult(ctx, rec))

	got, err := store.Results(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rec.Content, got[0].Content)
	assert.False(t, got[0].Timestamp.IsZero())
}
