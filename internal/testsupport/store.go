package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"podscrub/internal/config"
	"podscrub/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedPost inserts a post row for tests and returns it.
func SeedPost(t testing.TB, st *store.Store, guid string) *store.Post {
	t.Helper()

	now := time.Now().UTC()
	post := &store.Post{
		GUID:      guid,
		Title:     "Post " + guid,
		AudioURL:  "https://example.com/audio/" + guid + ".mp3",
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := st.WithWriteTx(context.Background(), func(ctx context.Context, tx *store.WriteTx) error {
		return tx.InsertPost(ctx, post)
	})
	if err != nil {
		t.Fatalf("seed post %s: %v", guid, err)
	}
	return post
}

// SeedJob inserts a processing job row for tests and returns it.
func SeedJob(t testing.TB, st *store.Store, postGUID string, status store.JobStatus) *store.ProcessingJob {
	t.Helper()

	job := &store.ProcessingJob{
		ID:        uuid.NewString(),
		PostGUID:  postGUID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	err := st.WithWriteTx(context.Background(), func(ctx context.Context, tx *store.WriteTx) error {
		return tx.InsertJob(ctx, job)
	})
	if err != nil {
		t.Fatalf("seed job for %s: %v", postGUID, err)
	}
	return job
}
