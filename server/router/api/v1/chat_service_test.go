package v1

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukritx/piyanutai/internal/profile"
	"github.com/sukritx/piyanutai/server/ai"
	"github.com/sukritx/piyanutai/server/chat"
	"github.com/sukritx/piyanutai/store"
	storetest "github.com/sukritx/piyanutai/store/test"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	return s.text, s.err
}

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(_ context.Context, _ []ai.Message) (string, error) {
	return s.reply, s.err
}

type stubSynthesizer struct {
	audio []byte
	err   error
}

func (s *stubSynthesizer) Synthesize(_ context.Context, _ string) ([]byte, error) {
	return s.audio, s.err
}

func newTestService(t *testing.T, stt chat.Transcriber, llm chat.Completer, tts chat.Synthesizer) (*APIV1Service, *store.Store) {
	ctx := context.Background()
	st := storetest.NewTestingStore(ctx, t)
	pipeline := chat.NewPipeline(st, stt, llm, tts, t.TempDir())
	svc := NewAPIV1Service("test-secret", &profile.Profile{Mode: "dev"}, st, pipeline)
	return svc, st
}

func newTestUserAndChat(t *testing.T, st *store.Store) (*store.User, *store.Conversation) {
	ctx := context.Background()
	now := time.Now().Unix()
	user, err := st.CreateUser(ctx, &store.User{
		Username:     "piyanut",
		PasswordHash: "hashed-password",
		CreatedTs:    now,
	})
	require.NoError(t, err)
	conversation, err := st.CreateConversation(ctx, &store.Conversation{
		UID:       shortuuid.New(),
		CreatorID: user.ID,
		Title:     "New Chat",
		CreatedTs: now,
		UpdatedTs: now,
	})
	require.NoError(t, err)
	return user, conversation
}

func postVoiceMessage(t *testing.T, svc *APIV1Service, userID int32, chatID string, audio []byte, withFile bool) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("chatId", chatID))
	if withFile {
		part, err := writer.CreateFormFile("audioBlob", "voice.webm")
		require.NoError(t, err)
		_, err = part.Write(audio)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(userIDContextKey, userID)
	require.NoError(t, svc.SendMessage(c))
	return rec
}

func postTextMessage(t *testing.T, svc *APIV1Service, userID, chatID int32, message string) *httptest.ResponseRecorder {
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Message: message})
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(userIDContextKey, userID)
	require.NoError(t, svc.SendMessage(c))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSendMessageVoice(t *testing.T) {
	t.Run("success returns text, base64 audio and transcript", func(t *testing.T) {
		svc, st := newTestService(t,
			&stubTranscriber{text: "สวัสดี"},
			&stubCompleter{reply: "**สวัสดีค่ะ**"},
			&stubSynthesizer{audio: []byte("mp3-bytes")},
		)
		user, conversation := newTestUserAndChat(t, st)

		rec := postVoiceMessage(t, svc, user.ID, strconv.Itoa(int(conversation.ID)), []byte("webm-bytes"), true)
		require.Equal(t, http.StatusOK, rec.Code)

		var body voiceMessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "สวัสดีค่ะ", body.Message)
		assert.Equal(t, "สวัสดี", body.Transcription)
		audio, err := base64.StdEncoding.DecodeString(body.Audio)
		require.NoError(t, err)
		assert.Equal(t, []byte("mp3-bytes"), audio)

		persisted, err := st.GetConversation(context.Background(), &store.FindConversation{ID: &conversation.ID})
		require.NoError(t, err)
		require.NotNil(t, persisted)
		require.Len(t, persisted.Messages, 2)
	})

	t.Run("missing file returns 400", func(t *testing.T) {
		svc, st := newTestService(t, &stubTranscriber{}, &stubCompleter{}, &stubSynthesizer{})
		user, conversation := newTestUserAndChat(t, st)

		rec := postVoiceMessage(t, svc, user.ID, strconv.Itoa(int(conversation.ID)), nil, false)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No audio file provided", decodeError(t, rec).Message)
	})

	t.Run("empty upload returns 400 invalid input and no mutation", func(t *testing.T) {
		svc, st := newTestService(t, &stubTranscriber{}, &stubCompleter{}, &stubSynthesizer{})
		user, conversation := newTestUserAndChat(t, st)

		rec := postVoiceMessage(t, svc, user.ID, strconv.Itoa(int(conversation.ID)), nil, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Error)

		persisted, err := st.GetConversation(context.Background(), &store.FindConversation{ID: &conversation.ID})
		require.NoError(t, err)
		require.NotNil(t, persisted)
		assert.Empty(t, persisted.Messages)
	})

	t.Run("missing chat returns 404", func(t *testing.T) {
		svc, st := newTestService(t, &stubTranscriber{}, &stubCompleter{}, &stubSynthesizer{})
		user, _ := newTestUserAndChat(t, st)

		rec := postVoiceMessage(t, svc, user.ID, "999", []byte("webm-bytes"), true)
		require.Equal(t, http.StatusNotFound, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "Chat not found", body.Message)
		assert.Equal(t, "NOT_FOUND", body.Error)
	})

	t.Run("other owner's chat returns 404", func(t *testing.T) {
		svc, st := newTestService(t, &stubTranscriber{}, &stubCompleter{}, &stubSynthesizer{})
		_, conversation := newTestUserAndChat(t, st)

		rec := postVoiceMessage(t, svc, conversation.CreatorID+1, strconv.Itoa(int(conversation.ID)), []byte("webm-bytes"), true)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Error)
	})

	t.Run("synthesis failure returns 500 with error body and no mutation", func(t *testing.T) {
		svc, st := newTestService(t,
			&stubTranscriber{text: "hello"},
			&stubCompleter{reply: "hi"},
			&stubSynthesizer{err: fmt.Errorf("tts down")},
		)
		user, conversation := newTestUserAndChat(t, st)

		rec := postVoiceMessage(t, svc, user.ID, strconv.Itoa(int(conversation.ID)), []byte("webm-bytes"), true)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "Error processing chat message", body.Message)
		assert.Equal(t, "SYNTHESIS_FAILED", body.Error)

		persisted, err := st.GetConversation(context.Background(), &store.FindConversation{ID: &conversation.ID})
		require.NoError(t, err)
		require.NotNil(t, persisted)
		assert.Empty(t, persisted.Messages)
	})

	t.Run("invalid chat id returns 400", func(t *testing.T) {
		svc, st := newTestService(t, &stubTranscriber{}, &stubCompleter{}, &stubSynthesizer{})
		user, _ := newTestUserAndChat(t, st)

		rec := postVoiceMessage(t, svc, user.ID, "not-a-number", []byte("webm-bytes"), true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSendMessageText(t *testing.T) {
	t.Run("success returns text only", func(t *testing.T) {
		svc, st := newTestService(t, &stubTranscriber{}, &stubCompleter{reply: "  สวัสดีค่ะ  "}, &stubSynthesizer{})
		user, conversation := newTestUserAndChat(t, st)

		rec := postTextMessage(t, svc, user.ID, conversation.ID, "สวัสดี")
		require.Equal(t, http.StatusOK, rec.Code)

		var body textMessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "สวัสดีค่ะ", body.Message)
		assert.False(t, strings.Contains(rec.Body.String(), `"audio"`))
	})

	t.Run("empty message returns 400", func(t *testing.T) {
		svc, st := newTestService(t, &stubTranscriber{}, &stubCompleter{}, &stubSynthesizer{})
		user, conversation := newTestUserAndChat(t, st)

		rec := postTextMessage(t, svc, user.ID, conversation.ID, "   ")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Error)
	})

	t.Run("completion failure returns 500", func(t *testing.T) {
		svc, st := newTestService(t, &stubTranscriber{}, &stubCompleter{err: fmt.Errorf("llm down")}, &stubSynthesizer{})
		user, conversation := newTestUserAndChat(t, st)

		rec := postTextMessage(t, svc, user.ID, conversation.ID, "hi")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "COMPLETION_FAILED", decodeError(t, rec).Error)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	svc, st := newTestService(t, &stubTranscriber{}, &stubCompleter{}, &stubSynthesizer{})
	user, _ := newTestUserAndChat(t, st)

	handler := svc.rateLimitMiddleware(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e := echo.New()
	var last *httptest.ResponseRecorder
	// The burst is five; a sixth back-to-back request must be rejected.
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(userIDContextKey, user.ID)
		require.NoError(t, handler(c))
		last = rec
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeError(t, last).Error)
}

func TestJWTMiddlewareMissingToken(t *testing.T) {
	svc, _ := newTestService(t, &stubTranscriber{}, &stubCompleter{}, &stubSynthesizer{})

	called := false
	handler := svc.JWTMiddleware(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, handler(c))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Error)
	assert.False(t, called)
}
