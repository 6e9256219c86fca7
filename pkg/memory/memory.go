package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hiroq/engram/pkg/model"
	"github.com/hiroq/engram/pkg/prompt"
	"github.com/hiroq/engram/pkg/repository"
)

// Embedder produces fixed-length embedding vectors for text.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Memory orchestrates the in-memory stores and the durable ledger. The
// stores mirror the ledger: every persisted record is reachable in memory
// after construction, and every write goes through Memory. All operations
// are serialized behind one mutex per instance, since the dedup sequence is
// check-then-act.
type Memory struct {
	mu       sync.Mutex
	ledger   repository.Ledger
	embedder Embedder

	messages     *MessageStore
	interactions *InteractionStore

	// IDs known to be durable; messages created by GetMessage stay out of
	// this set until AddInteraction persists them.
	persisted map[model.MessageID]struct{}
}

// New ensures the ledger schema and fully loads all persisted messages and
// interactions into the in-memory stores. Startup cost is proportional to
// stored history size.
func New(ctx context.Context, ledger repository.Ledger, embedder Embedder) (*Memory, error) {
	m := &Memory{
		ledger:    ledger,
		embedder:  embedder,
		messages:  NewMessageStore(),
		persisted: map[model.MessageID]struct{}{},
	}
	m.interactions = NewInteractionStore(m.messages)

	if err := ledger.CreateSchema(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to create ledger schema")
	}
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Memory) load(ctx context.Context) error {
	messages, err := m.ledger.LoadMessages(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load messages")
	}
	for _, msg := range messages {
		m.messages.Add(msg)
		m.persisted[msg.ID] = struct{}{}
	}

	interactions, err := m.ledger.LoadInteractions(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load interactions")
	}
	for _, interaction := range interactions {
		m.interactions.Add(interaction)
	}
	return nil
}

// GetMessage returns the stored message for (role, text) if one is indexed,
// without recomputing its embedding. Otherwise it computes an embedding and
// constructs a message with a fresh identity. New messages are not persisted
// here; persistence happens only through AddInteraction.
func (m *Memory) GetMessage(ctx context.Context, role model.Role, text string) (*model.Message, error) {
	if err := role.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getMessageLocked(ctx, role, text)
}

func (m *Memory) getMessageLocked(ctx context.Context, role model.Role, text string) (*model.Message, error) {
	if msg := m.messages.LookupByText(role, text); msg != nil {
		return msg, nil
	}

	vec, err := m.embedder.Embedding(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compute embedding")
	}

	msg := &model.Message{
		ID:        model.NewMessageID(),
		Role:      role,
		Text:      text,
		Embedding: model.Vector(vec),
		CreatedAt: time.Now().UTC(),
	}
	m.messages.Add(msg)
	return msg, nil
}

// saveMessageLocked persists the message unless it is already durable. On
// failure the message is dropped from the index so failed writes never
// become visible through lookups.
func (m *Memory) saveMessageLocked(ctx context.Context, msg *model.Message) error {
	if _, ok := m.persisted[msg.ID]; ok {
		return nil
	}

	if err := m.ledger.PutMessage(ctx, msg); err != nil {
		m.messages.Remove(msg.ID)
		return goerr.Wrap(err, "failed to persist message", goerr.V("message_id", msg.ID))
	}
	m.persisted[msg.ID] = struct{}{}
	return nil
}

// AddInteraction records one completed exchange: it persists the prompt's
// user message, the reply (as assistant), and each system message, then
// writes and indexes the interaction. Messages are persisted before the
// interaction row that references them.
func (m *Memory) AddInteraction(ctx context.Context, p *prompt.Builder, replyText string) (*model.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userMsg := p.UserMessage()
	if userMsg == nil {
		return nil, goerr.New("prompt has no user message")
	}
	if err := m.saveMessageLocked(ctx, userMsg); err != nil {
		return nil, err
	}

	replyMsg, err := m.getMessageLocked(ctx, model.RoleAssistant, replyText)
	if err != nil {
		return nil, err
	}
	if err := m.saveMessageLocked(ctx, replyMsg); err != nil {
		return nil, err
	}

	systemIDs := make([]model.MessageID, 0, len(p.SystemMessages()))
	for _, sysMsg := range p.SystemMessages() {
		if err := m.saveMessageLocked(ctx, sysMsg); err != nil {
			return nil, err
		}
		systemIDs = append(systemIDs, sysMsg.ID)
	}

	interaction := &model.Interaction{
		ID:                     model.NewInteractionID(),
		CreatedAt:              time.Now().UTC(),
		UserMessageID:          userMsg.ID,
		ResponseMessageID:      replyMsg.ID,
		SystemMessageIDs:       systemIDs,
		RelevantInteractionIDs: p.RelevantInteractionIDs(),
		RecentInteractionIDs:   p.RecentInteractionIDs(),
	}

	if err := m.ledger.PutInteraction(ctx, interaction); err != nil {
		return nil, goerr.Wrap(err, "failed to persist interaction", goerr.V("interaction_id", interaction.ID))
	}
	m.interactions.Add(interaction)

	return interaction, nil
}

// KMostSimilarInputs ranks recorded user messages by dot-product similarity
// to the text and returns the originating interactions, best first, without
// duplicates, at most k.
func (m *Memory) KMostSimilarInputs(ctx context.Context, text string, k int) ([]*model.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []Candidate
	for _, msg := range m.messages.Values() {
		if msg.Role != model.RoleUser {
			continue
		}
		// Only messages that originated an interaction can be recalled.
		if m.interactions.LookupByUserMessageID(msg.ID) == nil {
			continue
		}
		candidates = append(candidates, Candidate{ID: msg.ID, Embedding: msg.Embedding})
	}
	if len(candidates) == 0 || k <= 0 {
		return nil, nil
	}

	vec, err := m.embedder.Embedding(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compute query embedding")
	}

	ids, err := TopK(model.Vector(vec), candidates, k)
	if err != nil {
		return nil, err
	}

	seen := map[model.InteractionID]struct{}{}
	var results []*model.Interaction
	for _, id := range ids {
		interaction := m.interactions.LookupByUserMessageID(id)
		if interaction == nil {
			continue
		}
		if _, ok := seen[interaction.ID]; ok {
			continue
		}
		seen[interaction.ID] = struct{}{}
		results = append(results, interaction)
	}
	return results, nil
}

// KMostRecent returns the k most recently created interactions, most recent
// first.
func (m *Memory) KMostRecent(k int) []*model.Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k <= 0 {
		return nil
	}

	sorted := m.interactions.TimeSorted()
	if k > len(sorted) {
		k = len(sorted)
	}

	results := make([]*model.Interaction, 0, k)
	for i := len(sorted) - 1; i >= len(sorted)-k; i-- {
		results = append(results, sorted[i])
	}
	return results
}

// LookupInteraction resolves the interaction originated by a user message
// with the given text, or nil.
func (m *Memory) LookupInteraction(text string) *model.Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interactions.LookupByText(text)
}

// RenderPriorInteraction projects an interaction and its two messages into a
// RememberedInteraction. Pure read, no store mutation.
func (m *Memory) RenderPriorInteraction(interaction *model.Interaction) (*model.RememberedInteraction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userMsg := m.messages.LookupByID(interaction.UserMessageID)
	if userMsg == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "user message of interaction is missing",
			goerr.V("interaction_id", interaction.ID), goerr.V("message_id", interaction.UserMessageID))
	}
	responseMsg := m.messages.LookupByID(interaction.ResponseMessageID)
	if responseMsg == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "response message of interaction is missing",
			goerr.V("interaction_id", interaction.ID), goerr.V("message_id", interaction.ResponseMessageID))
	}

	return &model.RememberedInteraction{
		ID:           interaction.ID,
		CreatedAt:    userMsg.CreatedAt,
		UserText:     userMsg.Text,
		ResponseText: responseMsg.Text,
	}, nil
}

// Messages returns all indexed messages in unspecified order.
func (m *Memory) Messages() []*model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages.Values()
}

// UserMessages returns all indexed user-role messages.
func (m *Memory) UserMessages() []*model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var users []*model.Message
	for _, msg := range m.messages.Values() {
		if msg.Role == model.RoleUser {
			users = append(users, msg)
		}
	}
	return users
}

// Interactions returns all indexed interactions in unspecified order.
func (m *Memory) Interactions() []*model.Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interactions.Values()
}
