package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"localmart/internal/api"
	"localmart/internal/store"
)

// TempMessagePrefix marks a client-assigned placeholder ID awaiting server
// confirmation.
const TempMessagePrefix = "temp-"

// ChatService holds the conversation list and the open transcript, and runs
// the optimistic send protocol: append a temp message immediately, then swap
// it for the server-confirmed one or roll it back. The temp ID minted at
// insertion is retained and used for both the replace and the remove; it is
// never re-derived.
type ChatService struct {
	session *SessionService
	client  *api.Client

	mu            sync.Mutex
	conversations []store.Conversation

	conversationID string
	otherUser      store.UserSummary
	messages       []store.Message
	input          string
	sending        bool
}

func NewChatService(session *SessionService, client *api.Client) *ChatService {
	return &ChatService{session: session, client: client}
}

// Conversations fetches and replaces the conversation list. Any failure,
// auth included, surfaces as a plain load failure; unlike the profile
// refresh, a 401 here does not log the session out.
func (s *ChatService) Conversations(ctx context.Context) ([]store.Conversation, error) {
	conversations, err := s.client.Conversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()
	return conversations, nil
}

// Open loads the full message history for one conversation. There is no
// incremental paging; the transcript is replaced wholesale.
func (s *ChatService) Open(ctx context.Context, conversationID string, otherUser store.UserSummary) error {
	messages, err := s.client.Messages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	s.mu.Lock()
	s.conversationID = conversationID
	s.otherUser = otherUser
	s.messages = messages
	s.input = ""
	s.mu.Unlock()
	return nil
}

// Transcript returns a copy of the visible messages, temp entries included.
func (s *ChatService) Transcript() []store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Input returns the text the composer currently holds; a failed send puts
// its text back here.
func (s *ChatService) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *ChatService) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

// SendMessage runs one optimistic send. Empty-after-trim text and a send
// already in flight are both silent no-ops: nothing is appended and nothing
// is dispatched.
func (s *ChatService) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.sending || s.conversationID == "" {
		s.mu.Unlock()
		return nil
	}
	s.sending = true

	sender := store.UserSummary{}
	if profile, ok := s.session.CurrentUser(); ok {
		sender = store.UserSummary{ID: profile.ID, Username: profile.Username}
	}
	tempID := TempMessagePrefix + ulid.Make().String()
	s.messages = append(s.messages, store.Message{
		ID:        tempID,
		Text:      text,
		Sender:    sender,
		CreatedAt: time.Now(),
	})
	s.input = ""
	receiverID := s.otherUser.ID
	conversationID := s.conversationID
	s.mu.Unlock()

	confirmed, err := s.client.SendMessage(ctx, receiverID, text, conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false
	if err != nil {
		s.removeMessage(tempID)
		s.input = text
		return fmt.Errorf("failed to send message: %w", err)
	}
	s.replaceMessage(tempID, *confirmed)
	return nil
}

// removeMessage drops the entry with the given ID; callers hold mu.
func (s *ChatService) removeMessage(id string) {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// replaceMessage swaps the entry with the given ID in place; callers hold mu.
func (s *ChatService) replaceMessage(id string, msg store.Message) {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages[i] = msg
			return
		}
	}
	// The temp entry vanished (e.g. the transcript was reloaded mid-send);
	// append so the confirmed message is not lost.
	s.messages = append(s.messages, msg)
}

// Users lists every account the new-chat screen can start a conversation
// with.
func (s *ChatService) Users(ctx context.Context) ([]store.UserSummary, error) {
	users, err := s.client.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

// StartConversation creates (or finds) the conversation with the receiver
// and returns its ID; callers follow up with Open.
func (s *ChatService) StartConversation(ctx context.Context, receiverID string) (string, error) {
	conversationID, err := s.client.CreateConversation(ctx, receiverID)
	if err != nil {
		return "", fmt.Errorf("failed to start conversation: %w", err)
	}
	return conversationID, nil
}
