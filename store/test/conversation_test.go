package test

import (
	"context"
	"testing"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/stretchr/testify/require"

	"github.com/sukritx/piyanutai/store"
)

func TestConversationStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	user, err := createTestingUser(ctx, ts, "piyanut")
	require.NoError(t, err)

	conversation, err := createTestingConversation(ctx, ts, user.ID)
	require.NoError(t, err)
	require.Greater(t, conversation.ID, int32(0))
	require.Equal(t, "New Chat", conversation.Title)

	// Fetch by id scoped to the owner.
	found, err := ts.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID, CreatorID: &user.ID})
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, conversation.UID, found.UID)
	require.Empty(t, found.Messages)

	// A different owner cannot see it.
	otherID := user.ID + 1
	hidden, err := ts.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID, CreatorID: &otherID})
	require.NoError(t, err)
	require.Nil(t, hidden)
}

func TestAppendMessages(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	user, err := createTestingUser(ctx, ts, "piyanut")
	require.NoError(t, err)
	conversation, err := createTestingConversation(ctx, ts, user.ID)
	require.NoError(t, err)

	now := time.Now().Unix() + 60
	appended, err := ts.AppendMessages(ctx, conversation.ID, []*store.Message{
		{UID: shortuuid.New(), Role: store.MessageRoleUser, Content: "สวัสดี", CreatedTs: now},
		{UID: shortuuid.New(), Role: store.MessageRoleAssistant, Content: "สวัสดีค่ะ", CreatedTs: now},
	})
	require.NoError(t, err)
	require.Len(t, appended, 2)
	require.Greater(t, appended[1].ID, appended[0].ID)

	// The pair comes back in append order, user first.
	found, err := ts.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID})
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.Messages, 2)
	require.Equal(t, store.MessageRoleUser, found.Messages[0].Role)
	require.Equal(t, store.MessageRoleAssistant, found.Messages[1].Role)

	// The append bumped the conversation's updated_ts.
	require.Equal(t, now, found.UpdatedTs)

	// Appending to a missing conversation fails without inserting anything.
	_, err = ts.AppendMessages(ctx, conversation.ID+100, []*store.Message{
		{UID: shortuuid.New(), Role: store.MessageRoleUser, Content: "lost", CreatedTs: now},
	})
	require.Error(t, err)
	orphaned, err := ts.ListMessages(ctx, &store.FindMessage{})
	require.NoError(t, err)
	require.Len(t, orphaned, 2)

	// An empty append is rejected and must not touch updated_ts.
	_, err = ts.AppendMessages(ctx, conversation.ID, nil)
	require.Error(t, err)
	untouched, err := ts.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID})
	require.NoError(t, err)
	require.NotNil(t, untouched)
	require.Equal(t, now, untouched.UpdatedTs)
}

func TestListConversationsOrder(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	user, err := createTestingUser(ctx, ts, "piyanut")
	require.NoError(t, err)

	first, err := createTestingConversation(ctx, ts, user.ID)
	require.NoError(t, err)
	second, err := createTestingConversation(ctx, ts, user.ID)
	require.NoError(t, err)

	// Touch the first conversation so it becomes the most recent.
	_, err = ts.AppendMessages(ctx, first.ID, []*store.Message{
		{UID: shortuuid.New(), Role: store.MessageRoleUser, Content: "hi", CreatedTs: time.Now().Unix() + 120},
		{UID: shortuuid.New(), Role: store.MessageRoleAssistant, Content: "hello", CreatedTs: time.Now().Unix() + 120},
	})
	require.NoError(t, err)

	list, err := ts.ListConversations(ctx, &store.FindConversation{CreatorID: &user.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.ID, list[0].ID)
	require.Equal(t, second.ID, list[1].ID)
}

func TestConversationCache(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	user, err := createTestingUser(ctx, ts, "piyanut")
	require.NoError(t, err)
	conversation, err := createTestingConversation(ctx, ts, user.ID)
	require.NoError(t, err)

	// Prime the cache.
	found, err := ts.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID})
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Empty(t, found.Messages)

	// Writing through the raw driver leaves the cached entry stale, so the
	// next read must come from the cache, not the database.
	now := time.Now().Unix()
	_, err = ts.GetDriver().AppendMessages(ctx, conversation.ID, []*store.Message{
		{UID: shortuuid.New(), Role: store.MessageRoleUser, Content: "hi", CreatedTs: now},
		{UID: shortuuid.New(), Role: store.MessageRoleAssistant, Content: "hello", CreatedTs: now},
	})
	require.NoError(t, err)
	cached, err := ts.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID})
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.Empty(t, cached.Messages)

	// Owner scoping applies to cache hits too.
	otherID := user.ID + 1
	hidden, err := ts.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID, CreatorID: &otherID})
	require.NoError(t, err)
	require.Nil(t, hidden)

	// Appending through the store invalidates, so the read sees every message.
	_, err = ts.AppendMessages(ctx, conversation.ID, []*store.Message{
		{UID: shortuuid.New(), Role: store.MessageRoleUser, Content: "again", CreatedTs: now},
		{UID: shortuuid.New(), Role: store.MessageRoleAssistant, Content: "still here", CreatedTs: now},
	})
	require.NoError(t, err)
	fresh, err := ts.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID})
	require.NoError(t, err)
	require.NotNil(t, fresh)
	require.Len(t, fresh.Messages, 4)

	// Deletion invalidates as well.
	require.NoError(t, ts.DeleteConversation(ctx, &store.DeleteConversation{ID: conversation.ID}))
	gone, err := ts.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID})
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestDeleteConversation(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	user, err := createTestingUser(ctx, ts, "piyanut")
	require.NoError(t, err)
	conversation, err := createTestingConversation(ctx, ts, user.ID)
	require.NoError(t, err)

	now := time.Now().Unix()
	_, err = ts.AppendMessages(ctx, conversation.ID, []*store.Message{
		{UID: shortuuid.New(), Role: store.MessageRoleUser, Content: "hi", CreatedTs: now},
		{UID: shortuuid.New(), Role: store.MessageRoleAssistant, Content: "hello", CreatedTs: now},
	})
	require.NoError(t, err)

	err = ts.DeleteConversation(ctx, &store.DeleteConversation{ID: conversation.ID})
	require.NoError(t, err)

	// Conversation and its messages are gone.
	found, err := ts.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID})
	require.NoError(t, err)
	require.Nil(t, found)
	messages, err := ts.ListMessages(ctx, &store.FindMessage{ConversationID: &conversation.ID})
	require.NoError(t, err)
	require.Empty(t, messages)

	// Deleting again reports not found.
	err = ts.DeleteConversation(ctx, &store.DeleteConversation{ID: conversation.ID})
	require.Error(t, err)
}
