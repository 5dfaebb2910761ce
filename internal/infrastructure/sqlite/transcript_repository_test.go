package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themateplatform/codemate/internal/transcripts/domain"
)

// newTestRepo opens a file-backed database in a temp dir and returns its
// transcript repository.
func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "codemate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db.TranscriptRepository()
}

func TestTranscriptRepository_SaveAssignsID(t *testing.T) {
	repo := newTestRepo(t)

	tr := domain.NewTranscript("First chat", "openai", "gpt-4o-mini")
	require.NoError(t, repo.Save(tr))

	assert.Equal(t, int64(1), tr.ID, "first insert should have ID 1")

	tr2 := domain.NewTranscript("Second chat", "openai", "gpt-4o")
	require.NoError(t, repo.Save(tr2))
	assert.Equal(t, int64(2), tr2.ID)
}

func TestTranscriptRepository_SaveRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Save(domain.NewTranscript("", "openai", "gpt-4o"))
	require.ErrorContains(t, err, "title must not be empty")
}

func TestTranscriptRepository_FindByID_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	tr := domain.NewTranscript("Watcher debugging", "openai", "gpt-4o-mini")
	require.NoError(t, repo.Save(tr))

	found, err := repo.FindByID(tr.ID)
	require.NoError(t, err)

	assert.Equal(t, tr.ID, found.ID)
	assert.Equal(t, "Watcher debugging", found.Title)
	assert.Equal(t, "openai", found.Provider)
	assert.Equal(t, "gpt-4o-mini", found.Model)
	// Timestamps are stored at second precision.
	assert.WithinDuration(t, tr.CreatedAt, found.CreatedAt, time.Second)
	assert.WithinDuration(t, tr.UpdatedAt, found.UpdatedAt, time.Second)
}

func TestTranscriptRepository_FindByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindByID(99)
	var notFound *domain.TranscriptNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(99), notFound.ID)
}

func TestTranscriptRepository_SaveUpdatesExisting(t *testing.T) {
	repo := newTestRepo(t)

	tr := domain.NewTranscript("Draft title", "openai", "gpt-4o")
	require.NoError(t, repo.Save(tr))

	tr.Title = "Final title"
	tr.UpdatedAt = tr.UpdatedAt.Add(time.Minute)
	require.NoError(t, repo.Save(tr))

	found, err := repo.FindByID(tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final title", found.Title)
}

func TestTranscriptRepository_SaveUpdateMissing(t *testing.T) {
	repo := newTestRepo(t)

	tr := domain.NewTranscript("Ghost", "openai", "gpt-4o")
	tr.ID = 42

	err := repo.Save(tr)
	var notFound *domain.TranscriptNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestTranscriptRepository_List_MostRecentFirst(t *testing.T) {
	repo := newTestRepo(t)

	older := domain.NewTranscript("Older", "openai", "gpt-4o")
	require.NoError(t, repo.Save(older))
	newer := domain.NewTranscript("Newer", "openai", "gpt-4o")
	require.NoError(t, repo.Save(newer))

	// Appending a later message bumps the older transcript to the top.
	require.NoError(t, repo.AppendMessage(&domain.Message{
		TranscriptID: older.ID,
		Role:         domain.RoleUser,
		Content:      "still here",
		CreatedAt:    time.Now().UTC().Add(time.Hour),
	}))

	all, err := repo.List(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Older", all[0].Title)
	assert.Equal(t, "Newer", all[1].Title)

	limited, err := repo.List(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "Older", limited[0].Title)
}

func TestTranscriptRepository_List_Empty(t *testing.T) {
	repo := newTestRepo(t)

	all, err := repo.List(0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTranscriptRepository_Delete(t *testing.T) {
	repo := newTestRepo(t)

	tr := domain.NewTranscript("Disposable", "openai", "gpt-4o")
	require.NoError(t, repo.Save(tr))
	require.NoError(t, repo.AppendMessage(&domain.Message{
		TranscriptID: tr.ID,
		Role:         domain.RoleUser,
		Content:      "hello?",
	}))

	require.NoError(t, repo.Delete(tr.ID))

	_, err := repo.FindByID(tr.ID)
	var notFound *domain.TranscriptNotFoundError
	require.ErrorAs(t, err, &notFound)

	msgs, err := repo.Messages(tr.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs, "messages should be removed with their transcript")
}

func TestTranscriptRepository_Delete_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Delete(7)
	var notFound *domain.TranscriptNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(7), notFound.ID)
}

func TestTranscriptRepository_AppendMessage_ConversationOrder(t *testing.T) {
	repo := newTestRepo(t)

	tr := domain.NewTranscript("Cost tracking", "openai", "gpt-4o-mini")
	require.NoError(t, repo.Save(tr))

	base := time.Now().UTC()
	require.NoError(t, repo.AppendMessage(&domain.Message{
		TranscriptID: tr.ID,
		Role:         domain.RoleUser,
		Content:      "how much does this cost?",
		CreatedAt:    base,
	}))
	require.NoError(t, repo.AppendMessage(&domain.Message{
		TranscriptID: tr.ID,
		Role:         domain.RoleAssistant,
		Content:      "very little",
		TokensUsed:   30,
		CostUSD:      0.01125,
		CreatedAt:    base.Add(2 * time.Second),
	}))

	msgs, err := repo.Messages(tr.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, 30, msgs[1].TokensUsed)
	assert.InDelta(t, 0.01125, msgs[1].CostUSD, 1e-9)
	assert.Equal(t, tr.ID, msgs[1].TranscriptID)
	assert.NotZero(t, msgs[0].ID)
}

func TestTranscriptRepository_AppendMessage_StampsZeroTime(t *testing.T) {
	repo := newTestRepo(t)

	tr := domain.NewTranscript("Timestamps", "openai", "")
	require.NoError(t, repo.Save(tr))

	m := &domain.Message{TranscriptID: tr.ID, Role: domain.RoleUser, Content: "now?"}
	require.NoError(t, repo.AppendMessage(m))
	assert.False(t, m.CreatedAt.IsZero())
}

func TestTranscriptRepository_AppendMessage_MissingTranscript(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.AppendMessage(&domain.Message{
		TranscriptID: 999,
		Role:         domain.RoleUser,
		Content:      "anyone home?",
	})
	var notFound *domain.TranscriptNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(999), notFound.ID)
}

func TestTranscriptRepository_AppendMessage_RejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)

	tr := domain.NewTranscript("Strict", "openai", "")
	require.NoError(t, repo.Save(tr))

	err := repo.AppendMessage(&domain.Message{
		TranscriptID: tr.ID,
		Role:         "narrator",
		Content:      "meanwhile",
	})
	require.ErrorContains(t, err, "message role must be")
}

func TestNewDB_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "codemate.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path)
	require.NoError(t, err, "database file should exist")
}

func TestNewDB_BacksUpExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codemate.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path + ".bak")
	require.NoError(t, err, "reopening should leave a pre-migration backup")
}
