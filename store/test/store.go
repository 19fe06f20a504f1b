package test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/sukritx/piyanutai/internal/profile"
	"github.com/sukritx/piyanutai/store"
	"github.com/sukritx/piyanutai/store/db"
)

// NewTestingStore creates a migrated sqlite-backed store in a per-test
// directory. The store is closed on test cleanup.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	p := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	st := store.New(dbDriver, p)
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Logf("failed to close store: %v", err)
		}
	})
	return st
}

func getTestingProfile(t *testing.T) *profile.Profile {
	dir := t.TempDir()
	mode := "dev"
	return &profile.Profile{
		Mode:   mode,
		Data:   dir,
		Driver: "sqlite",
		DSN:    fmt.Sprintf("%s/piyanutai_%s.db", dir, mode),
	}
}

func createTestingUser(ctx context.Context, ts *store.Store, username string) (*store.User, error) {
	return ts.CreateUser(ctx, &store.User{
		Username:     username,
		PasswordHash: "hashed-password",
		CreatedTs:    time.Now().Unix(),
	})
}

func createTestingConversation(ctx context.Context, ts *store.Store, creatorID int32) (*store.Conversation, error) {
	now := time.Now().Unix()
	return ts.CreateConversation(ctx, &store.Conversation{
		UID:       shortuuid.New(),
		CreatorID: creatorID,
		Title:     "New Chat",
		CreatedTs: now,
		UpdatedTs: now,
	})
}
