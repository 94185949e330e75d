package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/repository/repotest"
	"github.com/m-mizutani/digiself/repository/sqlite"
	"github.com/m-mizutani/gt"
)

func newRepo(t *testing.T, path string) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.New(context.Background(), path)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) digiself.Repository {
		return newRepo(t, filepath.Join(t.TempDir(), "digiself.db"))
	})
}

func TestInMemoryDatabase(t *testing.T) {
	repotest.Run(t, func(t *testing.T) digiself.Repository {
		return newRepo(t, sqlite.MemoryPath)
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "digiself.db")
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("JST", 9*60*60))

	repo, err := sqlite.New(ctx, path)
	gt.NoError(t, err)
	gt.NoError(t, repo.PutMeeting(ctx, digiself.Meeting{ID: "m1", Title: "Review", StartTime: start, EndTime: start.Add(time.Hour)}))
	gt.NoError(t, repo.PutMode(ctx, "executive"))
	gt.NoError(t, repo.Close())

	repo = newRepo(t, path)
	meetings, err := repo.ListMeetings(ctx)
	gt.NoError(t, err)
	gt.A(t, meetings).Length(1)
	gt.True(t, meetings[0].StartTime.Equal(start))
	gt.A(t, meetings[0].Attendees).Length(0)

	mode, err := repo.GetMode(ctx)
	gt.NoError(t, err)
	gt.Equal(t, mode, "executive")
}
