package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/pagination"
)

const (
	// HistoryLoadLimit is how many stored messages are read back as history.
	HistoryLoadLimit = 20
	// SessionDetailMessages is how many messages a session view includes.
	SessionDetailMessages = 50
)

// Answerer answers a question under a scope.
type Answerer interface {
	Answer(ctx context.Context, query string, history []domain.ConversationTurn, scope domain.Scope) (*Answer, error)
}

// ChatService owns chat sessions and runs questions through the answerer,
// persisting both sides of each exchange.
type ChatService struct {
	sessions SessionRepository
	messages MessageRepository
	tx       TxRunner
	answerer Answerer
	uuidGen  UUIDGenerator
	now      func() time.Time
}

func NewChatService(sessions SessionRepository, messages MessageRepository, tx TxRunner, answerer Answerer, uuidGen UUIDGenerator) *ChatService {
	if uuidGen == nil {
		uuidGen = &DefaultUUIDGenerator{}
	}
	return &ChatService{
		sessions: sessions,
		messages: messages,
		tx:       tx,
		answerer: answerer,
		uuidGen:  uuidGen,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type QueryMeta struct {
	Question    string `json:"question"`
	SessionID   string `json:"session_id"`
	ImagesCount int    `json:"images_count"`
}

type QueryResult struct {
	Answer string    `json:"answer"`
	Images []string  `json:"images"`
	Meta   QueryMeta `json:"meta"`
}

type SessionDetail struct {
	Session  *domain.ChatSession
	Messages []*domain.ChatMessage
}

func (s *ChatService) CreateSession(ctx context.Context, userID, title string) (*domain.ChatSession, error) {
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.TitleFromQuestion("")
	}

	session := domain.NewChatSession(s.uuidGen.NewString(), userID, title, s.now())
	if err := domain.ValidateChatSession(session); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid session", err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns the session with its most recent messages. Sessions of
// other users are reported as not found.
func (s *ChatService) GetSession(ctx context.Context, userID, sessionID string) (*SessionDetail, error) {
	session, err := s.sessions.GetForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListRecent(ctx, session.ID, SessionDetailMessages)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{Session: session, Messages: msgs}, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userID, cursor string, limit int) (*pagination.PageResult[*domain.ChatSession], error) {
	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.sessions.ListByUser(ctx, userID, c, limit)
}

// DeleteSession removes the session and its messages. Content indexed into
// the session stays in both tiers until its documents are deleted.
func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID, userID)
}

// Ask answers question within sessionID, or within a new session titled
// after the question when sessionID is empty. Retrieval is limited to the
// given session; an auto-created session holds no content yet, so its first
// question searches all of the user's content.
func (s *ChatService) Ask(ctx context.Context, userID, question, sessionID string) (*QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}

	scope := domain.Scope{OwnerUserID: userID, SessionID: sessionID}
	var history []domain.ConversationTurn

	if sessionID != "" {
		session, err := s.sessions.GetForUser(ctx, sessionID, userID)
		if err != nil {
			return nil, err
		}
		msgs, err := s.messages.ListRecent(ctx, session.ID, HistoryLoadLimit)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			history = append(history, m.Turn())
		}
	} else {
		session, err := s.CreateSession(ctx, userID, domain.TitleFromQuestion(question))
		if err != nil {
			return nil, err
		}
		sessionID = session.ID
	}

	ans, err := s.answerer.Answer(ctx, question, history, scope)
	if err != nil {
		return nil, err
	}

	if err := s.record(ctx, sessionID, question, ans); err != nil {
		return nil, err
	}

	return &QueryResult{
		Answer: ans.Text,
		Images: ans.Images,
		Meta: QueryMeta{
			Question:    question,
			SessionID:   sessionID,
			ImagesCount: len(ans.Images),
		},
	}, nil
}

// record stores the exchange and bumps the session in one transaction.
func (s *ChatService) record(ctx context.Context, sessionID, question string, ans *Answer) error {
	now := s.now()
	userMsg := &domain.ChatMessage{
		ID: s.uuidGen.NewString(), SessionID: sessionID, Role: domain.RoleUser,
		Content: question, Images: []string{}, CreatedAt: now,
	}
	assistantMsg := &domain.ChatMessage{
		ID: s.uuidGen.NewString(), SessionID: sessionID, Role: domain.RoleAssistant,
		Content: ans.Text, Images: ans.Images, CreatedAt: now.Add(time.Microsecond),
	}

	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		for _, m := range []*domain.ChatMessage{userMsg, assistantMsg} {
			if err := repos.Messages().Create(ctx, m); err != nil {
				return err
			}
		}
		err := repos.Sessions().Touch(ctx, sessionID, 2, assistantMsg.CreatedAt)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.NewDomainErrorWithCause(domain.ErrCodeInvalidOperation, "session was deleted while answering", err)
		}
		return err
	})
}
