package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	"github.com/sukritx/piyanutai/server/ai"
	"github.com/sukritx/piyanutai/server/internal/errors"
	"github.com/sukritx/piyanutai/store"
)

// systemPrompt is the assistant persona sent ahead of every completion.
const systemPrompt = "You are a helpful girl assistant who can communicate fluently in Thai language. Please respond in Thai if the user speaks Thai. เริ่มต้นคำตอบด้วย สวัสดี นี่คือ PiyanutAI"

// MaxAudioBytes is the largest accepted voice upload.
const MaxAudioBytes = 10 << 20

// Transcriber converts the audio file at a path to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Completer produces an assistant reply for an ordered message history.
type Completer interface {
	Complete(ctx context.Context, messages []ai.Message) (string, error)
}

// Synthesizer converts text to spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ConversationStore is the slice of the store the pipeline depends on.
type ConversationStore interface {
	GetConversation(ctx context.Context, find *store.FindConversation) (*store.Conversation, error)
	AppendMessages(ctx context.Context, conversationID int32, appends []*store.Message) ([]*store.Message, error)
}

// Pipeline runs voice and text turns against a conversation. A turn either
// completes fully, appending exactly one user and one assistant message, or
// fails without mutating the conversation.
type Pipeline struct {
	store       ConversationStore
	transcriber Transcriber
	completer   Completer
	synthesizer Synthesizer

	// tempDir holds uploaded audio for the duration of transcription.
	tempDir string

	locks *turnLocks
}

// NewPipeline creates a pipeline. tempDir must exist and be writable.
func NewPipeline(s ConversationStore, stt Transcriber, llm Completer, tts Synthesizer, tempDir string) *Pipeline {
	return &Pipeline{
		store:       s,
		transcriber: stt,
		completer:   llm,
		synthesizer: tts,
		tempDir:     tempDir,
		locks:       newTurnLocks(),
	}
}

// VoiceTurnRequest is one voice message from an authenticated user.
type VoiceTurnRequest struct {
	ConversationID int32
	OwnerID        int32
	Audio          []byte
	// MIMEType is the content type the client declared for the upload.
	MIMEType string
}

// VoiceTurnResult carries the assistant reply in both text and audio form,
// plus the transcript of what the user said.
type VoiceTurnResult struct {
	Message       string
	Audio         []byte
	Transcription string
}

// VoiceTurn runs the full voice pipeline: stage the upload, transcribe it,
// complete against the conversation history, sanitize, synthesize, and append
// the user/assistant pair. Turns on the same conversation are serialized.
func (p *Pipeline) VoiceTurn(ctx context.Context, req *VoiceTurnRequest) (*VoiceTurnResult, error) {
	if len(req.Audio) == 0 {
		return nil, errors.InvalidInput("audio payload is empty")
	}
	if len(req.Audio) > MaxAudioBytes {
		return nil, errors.InvalidInput("audio payload exceeds 10MB limit")
	}

	unlock := p.locks.lock(req.ConversationID)
	defer unlock()

	conversation, err := p.findConversation(ctx, req.ConversationID, req.OwnerID)
	if err != nil {
		return nil, err
	}

	audioPath := filepath.Join(p.tempDir, fmt.Sprintf("voice-%s%s", uuid.New().String(), extensionForMIME(req.MIMEType)))
	if err := os.WriteFile(audioPath, req.Audio, 0o600); err != nil {
		return nil, errors.TranscriptionFailed("failed to stage audio for transcription", err)
	}
	defer os.Remove(audioPath)

	transcript, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, errors.TranscriptionFailed("failed to transcribe audio", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, errors.TranscriptionFailed("transcription produced no text", nil)
	}

	reply, err := p.complete(ctx, conversation, transcript)
	if err != nil {
		return nil, err
	}
	reply = SanitizeReply(reply)

	speech, err := p.synthesizer.Synthesize(ctx, reply)
	if err != nil {
		return nil, errors.SynthesisFailed("failed to synthesize reply", err)
	}

	if err := p.appendTurn(ctx, conversation.ID, transcript, reply); err != nil {
		return nil, err
	}

	return &VoiceTurnResult{
		Message:       reply,
		Audio:         speech,
		Transcription: transcript,
	}, nil
}

// TextTurnRequest is one typed message from an authenticated user.
type TextTurnRequest struct {
	ConversationID int32
	OwnerID        int32
	Message        string
}

// TextTurn runs the text pipeline: complete against the conversation history
// and append the user/assistant pair. No transcription or synthesis.
func (p *Pipeline) TextTurn(ctx context.Context, req *TextTurnRequest) (string, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", errors.InvalidInput("message is empty")
	}

	unlock := p.locks.lock(req.ConversationID)
	defer unlock()

	conversation, err := p.findConversation(ctx, req.ConversationID, req.OwnerID)
	if err != nil {
		return "", err
	}

	reply, err := p.complete(ctx, conversation, message)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)

	if err := p.appendTurn(ctx, conversation.ID, message, reply); err != nil {
		return "", err
	}

	return reply, nil
}

func (p *Pipeline) findConversation(ctx context.Context, id, ownerID int32) (*store.Conversation, error) {
	conversation, err := p.store.GetConversation(ctx, &store.FindConversation{
		ID:        &id,
		CreatorID: &ownerID,
	})
	if err != nil {
		return nil, errors.StoreFailed("failed to load conversation", err)
	}
	// A conversation owned by someone else looks exactly like a missing one.
	if conversation == nil {
		return nil, errors.NotFound("chat not found")
	}
	return conversation, nil
}

// complete builds the completion request from the persona prompt, the full
// stored history in order, and the new user text.
func (p *Pipeline) complete(ctx context.Context, conversation *store.Conversation, userText string) (string, error) {
	messages := make([]ai.Message, 0, len(conversation.Messages)+2)
	messages = append(messages, ai.Message{Role: "system", Content: systemPrompt})
	for _, m := range conversation.Messages {
		messages = append(messages, ai.Message{
			Role:    roleFor(m.Role),
			Content: m.Content,
		})
	}
	messages = append(messages, ai.Message{Role: "user", Content: userText})

	reply, err := p.completer.Complete(ctx, messages)
	if err != nil {
		return "", errors.CompletionFailed("failed to complete chat", err)
	}
	return reply, nil
}

// appendTurn persists the user/assistant pair as one atomic store call.
func (p *Pipeline) appendTurn(ctx context.Context, conversationID int32, userText, assistantText string) error {
	now := time.Now().Unix()
	_, err := p.store.AppendMessages(ctx, conversationID, []*store.Message{
		{
			UID:       shortuuid.New(),
			Role:      store.MessageRoleUser,
			Content:   userText,
			CreatedTs: now,
		},
		{
			UID:       shortuuid.New(),
			Role:      store.MessageRoleAssistant,
			Content:   assistantText,
			CreatedTs: now,
		},
	})
	if err != nil {
		return errors.StoreFailed("failed to append messages", err)
	}
	return nil
}

func roleFor(role store.MessageRole) string {
	if role == store.MessageRoleAssistant {
		return "assistant"
	}
	return "user"
}

// extensionForMIME picks the staging file extension from the declared content
// type. Anything in the mp4 family is treated as m4a, everything else as the
// browser recorder's webm.
func extensionForMIME(mimeType string) string {
	if strings.Contains(mimeType, "mp4") {
		return ".m4a"
	}
	return ".webm"
}
