package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sukritx/piyanutai/internal/profile"
	"github.com/sukritx/piyanutai/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache settings
	cacheConfig cache.Config

	// Caches
	userCache         *cache.Cache // cache for users, hit on every authenticated request
	conversationCache *cache.Cache // cache for hot conversation reads, messages included
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
		OnEviction:      nil,
	}

	store := &Store{
		driver:            driver,
		profile:           profile,
		cacheConfig:       cacheConfig,
		userCache:         cache.New(cacheConfig),
		conversationCache: cache.New(cacheConfig),
	}

	return store
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	// Stop the cache cleanup goroutines
	s.userCache.Close()
	s.conversationCache.Close()

	return s.driver.Close()
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	user, err := s.driver.CreateUser(ctx, create)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(userCacheKey(user.ID), user, 0)
	return user, nil
}

// GetUser returns the matching user or nil when absent.
func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	if find.ID != nil && find.Username == nil {
		if v, ok := s.userCache.Get(userCacheKey(*find.ID)); ok {
			return v.(*User), nil
		}
	}

	users, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	user := users[0]
	s.userCache.Set(userCacheKey(user.ID), user, 0)
	return user, nil
}

func (s *Store) DeleteUser(ctx context.Context, delete *DeleteUser) error {
	if err := s.driver.DeleteUser(ctx, delete); err != nil {
		return err
	}
	s.userCache.Delete(userCacheKey(delete.ID))
	return nil
}

func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	return s.driver.CreateConversation(ctx, create)
}

// ListConversations returns conversations most recently updated first.
// Messages are not populated.
func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

// GetConversation returns the conversation with its messages in append order,
// or nil when no conversation matches. A wrong-owner lookup is
// indistinguishable from a missing conversation. Lookups by id are served
// from the conversation cache; every mutation invalidates the cached entry.
func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	if find.ID != nil {
		if v, ok := s.conversationCache.Get(conversationCacheKey(*find.ID)); ok {
			conversation := v.(*Conversation)
			// The cached entry is the row with this id; the remaining
			// filters either match it or match nothing.
			if !conversationMatches(conversation, find) {
				return nil, nil
			}
			return conversation, nil
		}
	}

	conversations, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(conversations) == 0 {
		return nil, nil
	}

	conversation := conversations[0]
	messages, err := s.driver.ListMessages(ctx, &FindMessage{ConversationID: &conversation.ID})
	if err != nil {
		return nil, err
	}
	conversation.Messages = messages
	s.conversationCache.Set(conversationCacheKey(conversation.ID), conversation, 0)
	return conversation, nil
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error) {
	conversation, err := s.driver.UpdateConversation(ctx, update)
	if err != nil {
		return nil, err
	}
	s.conversationCache.Delete(conversationCacheKey(update.ID))
	return conversation, nil
}

func (s *Store) DeleteConversation(ctx context.Context, delete *DeleteConversation) error {
	if err := s.driver.DeleteConversation(ctx, delete); err != nil {
		return err
	}
	s.conversationCache.Delete(conversationCacheKey(delete.ID))
	return nil
}

// AppendMessages appends messages to a conversation as one atomic unit and
// bumps the conversation's updated_ts.
func (s *Store) AppendMessages(ctx context.Context, conversationID int32, appends []*Message) ([]*Message, error) {
	messages, err := s.driver.AppendMessages(ctx, conversationID, appends)
	if err != nil {
		return nil, err
	}
	s.conversationCache.Delete(conversationCacheKey(conversationID))
	return messages, nil
}

func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

func userCacheKey(id int32) string {
	return fmt.Sprintf("user:%d", id)
}

func conversationCacheKey(id int32) string {
	return fmt.Sprintf("conversation:%d", id)
}

func conversationMatches(c *Conversation, find *FindConversation) bool {
	if find.UID != nil && c.UID != *find.UID {
		return false
	}
	if find.CreatorID != nil && c.CreatorID != *find.CreatorID {
		return false
	}
	return true
}
