package actions

import (
	"context"
	"errors"
	"strings"

	"texthelper/internal/domain"
	"texthelper/internal/gateway"
)

const maxSeededMessages = 20

// Chat continues the conversation of chatID with input and streams the
// answer. Each chat keeps one language-model session. When that session is
// gone (reset or reaped for idleness) a new one is opened and seeded with
// history.
func (s *Service) Chat(
	ctx context.Context,
	chatID int64,
	history []domain.Message,
	input string,
) (gateway.Stream, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, wrap(domain.ActionChat, errors.New("input is empty"))
	}

	session, err := s.chatSession(ctx, chatID, history)
	if err != nil {
		return nil, wrap(domain.ActionChat, err)
	}

	stream, err := session.PromptStreaming(ctx, input)
	if errors.Is(err, gateway.ErrSessionClosed) {
		s.dropChat(chatID, session)

		if session, err = s.chatSession(ctx, chatID, history); err != nil {
			return nil, wrap(domain.ActionChat, err)
		}

		stream, err = session.PromptStreaming(ctx, input)
	}
	if err != nil {
		return nil, wrap(domain.ActionChat, err)
	}

	return &chatStream{Stream: stream}, nil
}

// ResetChat forgets the conversation of chatID.
func (s *Service) ResetChat(ctx context.Context, chatID int64) {
	s.mu.Lock()
	session, ok := s.chats[chatID]
	delete(s.chats, chatID)
	s.mu.Unlock()

	if ok {
		s.closeSession(ctx, session)
	}
}

// Close releases every chat session.
func (s *Service) Close(ctx context.Context) {
	s.mu.Lock()
	sessions := s.chats
	s.chats = make(map[int64]gateway.Session)
	s.mu.Unlock()

	for _, session := range sessions {
		s.closeSession(ctx, session)
	}
}

func (s *Service) chatSession(
	ctx context.Context,
	chatID int64,
	history []domain.Message,
) (gateway.Session, error) {
	s.mu.Lock()
	session, ok := s.chats[chatID]
	s.mu.Unlock()

	if ok {
		return session, nil
	}

	// Opened unlocked. The first session stored for the chat is kept.
	opened, err := s.openReady(ctx, gateway.CapabilityLanguageModel, gateway.SessionOptions{
		SystemPrompt: seededPrompt(history),
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	session, ok = s.chats[chatID]
	if !ok {
		s.chats[chatID] = opened
	}
	s.mu.Unlock()

	if ok {
		s.closeSession(ctx, opened)

		return session, nil
	}

	return opened, nil
}

func (s *Service) dropChat(chatID int64, session gateway.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chats[chatID] == session {
		delete(s.chats, chatID)
	}
}

func seededPrompt(history []domain.Message) string {
	if len(history) > maxSeededMessages {
		history = history[len(history)-maxSeededMessages:]
	}

	if len(history) == 0 {
		return chatSystemPrompt
	}

	var b strings.Builder
	b.WriteString(chatSystemPrompt)
	b.WriteString("\n\nConversation so far:")

	for _, m := range history {
		if m.IsUser {
			b.WriteString("\nUser: ")
		} else {
			b.WriteString("\nAssistant: ")
		}
		b.WriteString(m.Text)
	}

	return b.String()
}

type chatStream struct {
	gateway.Stream
}

func (s *chatStream) Err() error {
	return wrap(domain.ActionChat, s.Stream.Err())
}
