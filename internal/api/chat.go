package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"datachat-backend/internal/analysis"
	"datachat-backend/internal/cache"
	"datachat-backend/internal/chat"
	"datachat-backend/internal/database"
	"datachat-backend/internal/messaging"
	"datachat-backend/pkg/api"
)

type ChatService struct {
	sessions  *chat.SessionStore
	backend   *analysis.Client
	fileCache cache.FileCache
	publisher messaging.Publisher
}

func NewChatService(sessions *chat.SessionStore, backend *analysis.Client, fileCache cache.FileCache, publisher messaging.Publisher) *ChatService {
	return &ChatService{
		sessions:  sessions,
		backend:   backend,
		fileCache: fileCache,
		publisher: publisher,
	}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Get("/sessions", RestHandler(s.GetSessions))
		r.Post("/sessions", RestHandler(s.CreateSession))
		r.Get("/sessions/{session_id}", RestHandler(s.GetSession))
		r.Get("/sessions/{session_id}/history", RestHandler(s.GetHistory))
		r.Post("/sessions/{session_id}/rename", RestHandler(s.RenameSession))
		r.Post("/sessions/{session_id}/project", RestHandler(s.AssignProject))
		r.Delete("/sessions/{session_id}", RestHandler(s.DeleteSession))
		r.Post("/generate-title", RestHandler(s.GenerateTitle))
		r.Post("/unified-question-stream", RestStreamHandler(s.AskQuestion))
	})
}

// loadSession loads the session and checks it belongs to the requesting
// user. Sessions of other users read as not found.
func (s *ChatService) loadSession(r *http.Request, sessionID uuid.UUID) (string, error) {
	userID := UserID(r)
	session, err := s.sessions.GetSession(r.Context(), sessionID)
	if errors.Is(err, chat.ErrSessionNotFound) {
		return "", CodedErrorf(http.StatusNotFound, "session %v not found", sessionID)
	}
	if err != nil {
		return "", err
	}
	if session.UserId != userID {
		return "", CodedErrorf(http.StatusNotFound, "session %v not found", sessionID)
	}
	return userID, nil
}

func (s *ChatService) GetSessions(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListSessionsParams](r)
	if err != nil {
		return nil, err
	}

	userID := UserID(r)

	var rows []database.ChatSession
	if params.ProjectID != nil {
		rows = s.sessions.ListProjectSessions(r.Context(), userID, *params.ProjectID)
	} else {
		rows = s.sessions.ListSessions(r.Context(), userID)
	}
	if params.Limit > 0 && len(rows) > params.Limit {
		rows = rows[:params.Limit]
	}

	resp := api.GetSessionsResponse{Sessions: make([]api.ChatSessionMetadata, 0, len(rows))}
	for _, row := range rows {
		resp.Sessions = append(resp.Sessions, toSessionMetadata(row))
	}
	return resp, nil
}

func (s *ChatService) CreateSession(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateSessionRequest](r)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = analysis.DefaultTitle
	}

	sessionID, err := s.sessions.CreateSession(r.Context(), UserID(r), title)
	if err != nil {
		return nil, err
	}

	return api.CreateSessionResponse{SessionID: sessionID.String()}, nil
}

func (s *ChatService) GetSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.loadSession(r, sessionID); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		return nil, err
	}
	return toSessionMetadata(session), nil
}

func (s *ChatService) GetHistory(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.loadSession(r, sessionID); err != nil {
		return nil, err
	}

	messages := s.sessions.GetMessages(r.Context(), sessionID)

	resp := api.GetHistoryResponse{Messages: make([]api.ChatMessage, 0, len(messages))}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, toChatMessage(msg))
	}
	return resp, nil
}

func (s *ChatService) RenameSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.loadSession(r, sessionID); err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.RenameSessionRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "title must not be empty")
	}

	if err := s.sessions.Rename(r.Context(), sessionID, req.Title); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *ChatService) AssignProject(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.loadSession(r, sessionID); err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.AssignProjectRequest](r)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.AssignProject(r.Context(), sessionID, req.ProjectID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *ChatService) DeleteSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.loadSession(r, sessionID); err != nil {
		return nil, err
	}

	if err := s.sessions.SoftDelete(r.Context(), sessionID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *ChatService) GenerateTitle(r *http.Request) (any, error) {
	req, err := ParseRequest[api.GenerateTitleRequest](r)
	if err != nil {
		return nil, err
	}

	// Falls back to a default title internally, never errors.
	title := s.backend.GenerateTitle(r.Context(), req.Message)
	return api.GenerateTitleResponse{Title: title}, nil
}

// AskQuestion runs one full exchange: resolve (or lazily create) the session,
// persist the user's question, stream the analysis response through the
// assembler, and emit a message snapshot per chunk. The final assistant
// message is persisted off the request path.
func (s *ChatService) AskQuestion(r *http.Request) (StreamResponse, error) {
	req, err := ParseRequest[api.AskQuestionRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Question == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "question must not be empty")
	}

	userID := UserID(r)
	ctx := r.Context()

	var sessionID uuid.UUID
	if req.SessionID != nil {
		sessionID = *req.SessionID
		if _, err := s.loadSession(r, sessionID); err != nil {
			return nil, err
		}
	} else {
		// Sessions are created lazily on the first question.
		sessionID, err = s.sessions.CreateSession(ctx, userID, analysis.DefaultTitle)
		if err != nil {
			return nil, err
		}
	}

	question := chat.NewUserMessage(req.Question)
	if err := s.publisher.PublishAppendMessage(ctx, messaging.AppendMessagePayload{SessionId: sessionID, Message: question}); err != nil {
		slog.Error("error publishing user message", "session_id", sessionID, "error", err)
	}

	history := s.conversationHistory(ctx, sessionID)
	fileID := s.activeFileID(ctx, sessionID)

	store := chat.NewMessageStore()
	assembler := chat.NewAssembler(store)

	snapshot := func() api.QuestionUpdate {
		msg, _ := store.Get(assembler.MessageID())
		return api.QuestionUpdate{SessionID: sessionID, Message: toChatMessage(msg)}
	}

	return func(yield func(any, error) bool) {
		stream, err := s.backend.StreamQuestion(ctx, analysis.QuestionRequest{
			Question: req.Question,
			FileID:   fileID,
			History:  history,
		})
		if err != nil {
			slog.Error("error opening analysis stream", "session_id", sessionID, "error", err)
			assembler.Fail()
			yield(snapshot(), nil)
			return
		}
		defer stream.Close()

		gotChunk := false
		for {
			c, err := stream.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				slog.Error("analysis stream failed", "session_id", sessionID, "error", err)
				if !gotChunk {
					assembler.Fail()
					yield(snapshot(), nil)
					return
				}
				break
			}
			gotChunk = true

			done, err := assembler.Apply(c)
			if err != nil {
				slog.Error("error applying chunk", "session_id", sessionID, "error", err)
				continue
			}
			if !yield(snapshot(), nil) {
				// Client went away; still persist what was assembled.
				break
			}
			if done {
				break
			}
		}

		final := assembler.Finish()
		if err := s.publisher.PublishAppendMessage(context.WithoutCancel(ctx), messaging.AppendMessagePayload{SessionId: sessionID, Message: final}); err != nil {
			slog.Error("error publishing assistant message", "session_id", sessionID, "error", err)
		}
		yield(snapshot(), nil)
	}, nil
}

func (s *ChatService) conversationHistory(ctx context.Context, sessionID uuid.UUID) []analysis.ConversationTurn {
	messages := s.sessions.GetMessages(ctx, sessionID)

	turns := make([]analysis.ConversationTurn, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		turns = append(turns, analysis.ConversationTurn{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: analysis.FormatTimestamp(msg.Timestamp),
		})
	}
	if len(turns) > analysis.HistoryWindow {
		turns = turns[len(turns)-analysis.HistoryWindow:]
	}
	return turns
}

// activeFileID checks the cache first and falls back to the session row,
// backfilling the cache on a hit.
func (s *ChatService) activeFileID(ctx context.Context, sessionID uuid.UUID) string {
	ref, ok, err := s.fileCache.GetActiveFile(ctx, sessionID)
	if err != nil {
		slog.Warn("error reading active file cache", "session_id", sessionID, "error", err)
	}
	if ok {
		return ref.FileID
	}

	stored := s.sessions.ActiveFile(ctx, sessionID)
	if stored == nil {
		return ""
	}
	if err := s.fileCache.SetActiveFile(ctx, sessionID, *stored); err != nil {
		slog.Warn("error backfilling active file cache", "session_id", sessionID, "error", err)
	}
	return stored.FileID
}
