package v1

import (
	"encoding/base64"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/sukritx/piyanutai/server/chat"
	"github.com/sukritx/piyanutai/server/internal/errors"
	"github.com/sukritx/piyanutai/server/internal/observability"
	"github.com/sukritx/piyanutai/store"
)

const defaultChatTitle = "New Chat"

type chatResponse struct {
	ID        int32             `json:"id"`
	UID       string            `json:"uid"`
	Title     string            `json:"title"`
	CreatedTs int64             `json:"createdTs"`
	UpdatedTs int64             `json:"updatedTs"`
	Messages  []messageResponse `json:"messages"`
}

type messageResponse struct {
	ID        int32  `json:"id"`
	UID       string `json:"uid"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedTs int64  `json:"createdTs"`
}

type sendMessageRequest struct {
	ChatID  int32  `json:"chatId"`
	Message string `json:"message"`
}

type voiceMessageResponse struct {
	Message       string `json:"message"`
	Audio         string `json:"audio"`
	Transcription string `json:"transcription"`
}

type textMessageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// CreateChat creates an empty conversation for the authenticated user.
func (s *APIV1Service) CreateChat(c echo.Context) error {
	ctx := c.Request().Context()
	now := time.Now().Unix()

	conversation, err := s.Store.CreateConversation(ctx, &store.Conversation{
		UID:       shortuuid.New(),
		CreatorID: currentUserID(c),
		Title:     defaultChatTitle,
		CreatedTs: now,
		UpdatedTs: now,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create chat session").SetInternal(err)
	}

	return c.JSON(http.StatusCreated, toChatResponse(conversation))
}

// ListChats returns the user's conversations, most recently updated first.
// Messages are not included.
func (s *APIV1Service) ListChats(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUserID(c)

	conversations, err := s.Store.ListConversations(ctx, &store.FindConversation{CreatorID: &userID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch chats").SetInternal(err)
	}

	result := make([]chatResponse, 0, len(conversations))
	for _, conversation := range conversations {
		result = append(result, toChatResponse(conversation))
	}
	return c.JSON(http.StatusOK, result)
}

// GetChat returns one conversation with its full message history.
func (s *APIV1Service) GetChat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUserID(c)

	chatID, err := parseChatID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid chat id"})
	}

	conversation, err := s.Store.GetConversation(ctx, &store.FindConversation{ID: &chatID, CreatorID: &userID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch chat").SetInternal(err)
	}
	if conversation == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Message: "Chat not found"})
	}

	return c.JSON(http.StatusOK, toChatResponse(conversation))
}

// DeleteChat removes a conversation and all its messages.
func (s *APIV1Service) DeleteChat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUserID(c)

	chatID, err := parseChatID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid chat id"})
	}

	conversation, err := s.Store.GetConversation(ctx, &store.FindConversation{ID: &chatID, CreatorID: &userID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch chat").SetInternal(err)
	}
	if conversation == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Message: "Chat not found"})
	}

	if err := s.Store.DeleteConversation(ctx, &store.DeleteConversation{ID: conversation.ID}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete chat").SetInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Chat deleted successfully"})
}

// SendMessage runs one conversation turn. Multipart requests carry a voice
// recording and get back text, synthesized audio and the transcript; JSON
// requests carry plain text and get back text only.
func (s *APIV1Service) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUserID(c)
	logger := observability.NewRequestContext(slog.Default(), userID)

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		return s.sendVoiceMessage(c, logger)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "malformed message request"})
	}

	logger.Info("text turn started",
		slog.Int(observability.LogFieldConversation, int(req.ChatID)),
		slog.Int(observability.LogFieldMessageLen, len(req.Message)),
	)

	reply, err := s.Pipeline.TextTurn(ctx, &chat.TextTurnRequest{
		ConversationID: req.ChatID,
		OwnerID:        userID,
		Message:        req.Message,
	})
	if err != nil {
		return s.writePipelineError(c, logger, err)
	}

	logger.Info("text turn completed",
		slog.Int64(observability.LogFieldDuration, logger.DurationMs()),
	)
	return c.JSON(http.StatusOK, textMessageResponse{Message: reply})
}

func (s *APIV1Service) sendVoiceMessage(c echo.Context, logger *observability.RequestContext) error {
	ctx := c.Request().Context()
	userID := currentUserID(c)

	chatID, err := parseChatID(c.FormValue("chatId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid chat id"})
	}

	fileHeader, err := c.FormFile("audioBlob")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "No audio file provided"})
	}
	if fileHeader.Size > chat.MaxAudioBytes {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "audio file exceeds 10MB limit"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "failed to read audio file"})
	}
	defer src.Close()

	audio, err := io.ReadAll(io.LimitReader(src, chat.MaxAudioBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "failed to read audio file"})
	}
	if len(audio) > chat.MaxAudioBytes {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "audio file exceeds 10MB limit"})
	}

	logger.Info("voice turn started",
		slog.Int(observability.LogFieldConversation, int(chatID)),
		slog.Int(observability.LogFieldAudioBytes, len(audio)),
	)

	result, err := s.Pipeline.VoiceTurn(ctx, &chat.VoiceTurnRequest{
		ConversationID: chatID,
		OwnerID:        userID,
		Audio:          audio,
		MIMEType:       fileHeader.Header.Get(echo.HeaderContentType),
	})
	if err != nil {
		return s.writePipelineError(c, logger, err)
	}

	logger.Info("voice turn completed",
		slog.Int(observability.LogFieldMessageLen, len(result.Message)),
		slog.Int64(observability.LogFieldDuration, logger.DurationMs()),
	)

	return c.JSON(http.StatusOK, voiceMessageResponse{
		Message:       result.Message,
		Audio:         base64.StdEncoding.EncodeToString(result.Audio),
		Transcription: result.Transcription,
	})
}

// writePipelineError maps pipeline error codes to HTTP statuses. The cause is
// logged but never sent to the client.
func (s *APIV1Service) writePipelineError(c echo.Context, logger *observability.RequestContext, err error) error {
	var pipelineErr *errors.PipelineError
	if !stderrors.As(err, &pipelineErr) {
		logger.Error("turn failed", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Message: "Error processing chat message",
			Error:   string(errors.ErrCodeStoreFailed),
		})
	}

	switch pipelineErr.Code {
	case errors.ErrCodeInvalidInput:
		return c.JSON(http.StatusBadRequest, errorResponse{Message: pipelineErr.Message, Error: string(pipelineErr.Code)})
	case errors.ErrCodeNotFound:
		return c.JSON(http.StatusNotFound, errorResponse{Message: "Chat not found", Error: string(pipelineErr.Code)})
	case errors.ErrCodeRateLimitExceeded:
		return c.JSON(http.StatusTooManyRequests, errorResponse{Message: pipelineErr.Message, Error: string(pipelineErr.Code)})
	default:
		logger.Error("turn failed", err,
			slog.String(observability.LogFieldErrorCode, string(pipelineErr.Code)),
		)
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Message: "Error processing chat message",
			Error:   string(pipelineErr.Code),
		})
	}
}

func parseChatID(raw string) (int32, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(id), nil
}

func toChatResponse(conversation *store.Conversation) chatResponse {
	messages := make([]messageResponse, 0, len(conversation.Messages))
	for _, m := range conversation.Messages {
		messages = append(messages, messageResponse{
			ID:        m.ID,
			UID:       m.UID,
			Role:      strings.ToLower(string(m.Role)),
			Content:   m.Content,
			CreatedTs: m.CreatedTs,
		})
	}
	return chatResponse{
		ID:        conversation.ID,
		UID:       conversation.UID,
		Title:     conversation.Title,
		CreatedTs: conversation.CreatedTs,
		UpdatedTs: conversation.UpdatedTs,
		Messages:  messages,
	}
}
