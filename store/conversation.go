package store

// MessageRole identifies who authored a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "USER"
	MessageRoleAssistant MessageRole = "ASSISTANT"
)

// Conversation is an append-only chat thread owned by one user.
// Messages are never reordered or edited; the only mutations are appending a
// user/assistant pair and wholesale deletion.
type Conversation struct {
	ID        int32
	UID       string
	CreatorID int32
	Title     string
	CreatedTs int64
	UpdatedTs int64

	// Messages is populated by GetConversation, ordered by occurrence.
	Messages []*Message
}

type FindConversation struct {
	ID        *int32
	UID       *string
	CreatorID *int32
}

type UpdateConversation struct {
	ID        int32
	Title     *string
	UpdatedTs *int64
}

type DeleteConversation struct {
	ID int32
}

// Message is immutable once appended.
type Message struct {
	ID             int32
	UID            string
	ConversationID int32
	Role           MessageRole
	Content        string
	// AudioUID references stored assistant audio, when kept. Empty for text turns.
	AudioUID  string
	CreatedTs int64
}

type FindMessage struct {
	ID             *int32
	UID            *string
	ConversationID *int32
}
