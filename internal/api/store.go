package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Chatbot is a tenant's deployed website assistant.
type Chatbot struct {
	ID        string    `json:"id"`
	Tenant    string    `json:"-"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Greeting  string    `json:"greeting"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one turn inside a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "visitor" or "assistant"
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation groups widget messages from one site visitor.
type Conversation struct {
	ID        string    `json:"id"`
	Tenant    string    `json:"-"`
	ChatbotID string    `json:"chatbotId"`
	VisitorID string    `json:"visitorId"`
	Messages  []Message `json:"messages"`
	StartedAt time.Time `json:"startedAt"`
}

// Subscription mirrors the billing provider's view of a tenant.
type Subscription struct {
	Tenant    string    `json:"-"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store holds all platform state in memory, tenant scoped. A database
// would slot in behind the same methods.
type Store struct {
	mu            sync.RWMutex
	chatbots      map[string]*Chatbot
	conversations map[string]*Conversation
	subscriptions map[string]*Subscription // keyed by tenant
}

func NewStore() *Store {
	return &Store{
		chatbots:      make(map[string]*Chatbot),
		conversations: make(map[string]*Conversation),
		subscriptions: make(map[string]*Subscription),
	}
}

func (s *Store) CreateChatbot(tenant, name, model, greeting string) Chatbot {
	s.mu.Lock()
	defer s.mu.Unlock()
	bot := &Chatbot{
		ID:        uuid.NewString(),
		Tenant:    tenant,
		Name:      name,
		Model:     model,
		Greeting:  greeting,
		CreatedAt: time.Now().UTC(),
	}
	s.chatbots[bot.ID] = bot
	return *bot
}

func (s *Store) Chatbot(tenant, id string) (Chatbot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bot, ok := s.chatbots[id]
	if !ok || bot.Tenant != tenant {
		return Chatbot{}, false
	}
	return *bot, true
}

// ChatbotExists checks presence without tenant scoping, for the public
// widget ingress where no tenant header is available.
func (s *Store) ChatbotExists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chatbots[id]
	return ok
}

func (s *Store) ListChatbots(tenant string) []Chatbot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chatbot, 0)
	for _, bot := range s.chatbots {
		if bot.Tenant == tenant {
			out = append(out, *bot)
		}
	}
	return out
}

func (s *Store) DeleteChatbot(tenant, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	bot, ok := s.chatbots[id]
	if !ok || bot.Tenant != tenant {
		return false
	}
	delete(s.chatbots, id)
	for cid, conv := range s.conversations {
		if conv.ChatbotID == id {
			delete(s.conversations, cid)
		}
	}
	return true
}

// AppendWidgetMessage records a visitor message, creating the
// conversation on first contact. The conversation inherits the chatbot's
// tenant so dashboard queries stay scoped.
func (s *Store) AppendWidgetMessage(chatbotID, conversationID, visitorID, body string) (Conversation, Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bot, ok := s.chatbots[chatbotID]
	if !ok {
		return Conversation{}, Message{}, false
	}

	conv, ok := s.conversations[conversationID]
	if !ok || conv.ChatbotID != chatbotID {
		conv = &Conversation{
			ID:        uuid.NewString(),
			Tenant:    bot.Tenant,
			ChatbotID: chatbotID,
			VisitorID: visitorID,
			StartedAt: time.Now().UTC(),
		}
		s.conversations[conv.ID] = conv
	}

	msg := Message{
		ID:        uuid.NewString(),
		Role:      "visitor",
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	conv.Messages = append(conv.Messages, msg)
	return *conv, msg, true
}

func (s *Store) Conversation(tenant, id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok || conv.Tenant != tenant {
		return Conversation{}, false
	}
	return *conv, true
}

func (s *Store) ListConversations(tenant, chatbotID string) []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, 0)
	for _, conv := range s.conversations {
		if conv.Tenant != tenant {
			continue
		}
		if chatbotID != "" && conv.ChatbotID != chatbotID {
			continue
		}
		out = append(out, *conv)
	}
	return out
}

func (s *Store) UpsertSubscription(tenant, plan, status string) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &Subscription{
		Tenant:    tenant,
		Plan:      plan,
		Status:    status,
		UpdatedAt: time.Now().UTC(),
	}
	s.subscriptions[tenant] = sub
	return *sub
}

func (s *Store) Subscription(tenant string) (Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[tenant]
	if !ok {
		return Subscription{}, false
	}
	return *sub, true
}

// TenantExport collects everything stored for a tenant, the payload of a
// GDPR subject access request.
type TenantExport struct {
	Tenant        string         `json:"tenant"`
	Chatbots      []Chatbot      `json:"chatbots"`
	Conversations []Conversation `json:"conversations"`
	Subscription  *Subscription  `json:"subscription,omitempty"`
	ExportedAt    time.Time      `json:"exportedAt"`
}

func (s *Store) ExportTenant(tenant string) TenantExport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp := TenantExport{
		Tenant:        tenant,
		Chatbots:      make([]Chatbot, 0),
		Conversations: make([]Conversation, 0),
		ExportedAt:    time.Now().UTC(),
	}
	for _, bot := range s.chatbots {
		if bot.Tenant == tenant {
			exp.Chatbots = append(exp.Chatbots, *bot)
		}
	}
	for _, conv := range s.conversations {
		if conv.Tenant == tenant {
			exp.Conversations = append(exp.Conversations, *conv)
		}
	}
	if sub, ok := s.subscriptions[tenant]; ok {
		cp := *sub
		exp.Subscription = &cp
	}
	return exp
}

// DeleteTenant erases every record belonging to a tenant.
func (s *Store) DeleteTenant(tenant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, bot := range s.chatbots {
		if bot.Tenant == tenant {
			delete(s.chatbots, id)
		}
	}
	for id, conv := range s.conversations {
		if conv.Tenant == tenant {
			delete(s.conversations, id)
		}
	}
	delete(s.subscriptions, tenant)
}
