package prompt

import (
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hiroq/engram/pkg/model"
)

const defaultBudget = 1000

// Message is one entry of the rendered chat transcript.
type Message struct {
	Role    model.Role `json:"role"`
	Content string     `json:"content"`
	Name    string     `json:"name,omitempty"`
}

type section int

const (
	sectionSystem section = iota
	sectionRelevantMemory
	sectionRecentMemory
	sectionUser
	sectionCount
)

// Builder accumulates system, recalled-memory and user content under a token
// budget. Additions may arrive in any order; the rendered transcript always
// places sections as system, relevant memory, recent memory, user.
type Builder struct {
	budget     int
	tokenizer  Tokenizer
	perMessage int
	perName    int

	sections  [sectionCount][]Message
	numTokens int

	userMessage    *model.Message
	systemMessages []*model.Message
	relevantIDs    []model.InteractionID
	recentIDs      []model.InteractionID
}

// Option configures a Builder.
type Option func(*Builder)

// WithBudget overrides the default token budget.
func WithBudget(budget int) Option {
	return func(b *Builder) {
		b.budget = budget
	}
}

// WithTokenizer replaces the default heuristic token estimator.
func WithTokenizer(tokenizer Tokenizer) Option {
	return func(b *Builder) {
		b.tokenizer = tokenizer
	}
}

// New creates a Builder using the token accounting table of the given model.
// Unknown model identifiers fail with model.ErrUnsupportedModel.
func New(modelID string, opts ...Option) (*Builder, error) {
	perMessage, perName, err := modelTokens(modelID)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		budget:     defaultBudget,
		tokenizer:  heuristicTokenizer{},
		perMessage: perMessage,
		perName:    perName,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Builder) messageCost(msg Message) int {
	cost := b.perMessage + b.tokenizer.Count(msg.Content)
	if msg.Name != "" {
		cost += b.perName + b.tokenizer.Count(msg.Name)
	}
	return cost
}

// add admits the message into its section, or fails with ErrBudgetExceeded
// leaving the builder unchanged. A candidate is never partially admitted.
func (b *Builder) add(sec section, msg Message) error {
	cost := b.messageCost(msg)
	if b.numTokens+cost > b.budget {
		return goerr.Wrap(model.ErrBudgetExceeded, "message does not fit in token budget",
			goerr.V("cost", cost), goerr.V("used", b.numTokens), goerr.V("budget", b.budget))
	}

	b.sections[sec] = append(b.sections[sec], msg)
	b.numTokens += cost
	return nil
}

// AddSystemMessage appends a system instruction.
func (b *Builder) AddSystemMessage(msg *model.Message) error {
	if err := b.add(sectionSystem, Message{Role: model.RoleSystem, Content: msg.Text}); err != nil {
		return err
	}
	b.systemMessages = append(b.systemMessages, msg)
	return nil
}

// AddUserMessage sets the current user ask.
func (b *Builder) AddUserMessage(msg *model.Message) error {
	if err := b.add(sectionUser, Message{Role: model.RoleUser, Content: msg.Text}); err != nil {
		return err
	}
	b.userMessage = msg
	return nil
}

// AddRelevantMemory appends a semantically related prior exchange.
func (b *Builder) AddRelevantMemory(prior *model.RememberedInteraction) error {
	content := fmt.Sprintf("MemoryLog-%s: We talked about something similar previously when I said, %q and you replied with %q.",
		prior.CreatedAt.Format(time.RFC3339), prior.UserText, prior.ResponseText)
	if err := b.add(sectionRelevantMemory, Message{Role: model.RoleUser, Content: content}); err != nil {
		return err
	}
	b.relevantIDs = append(b.relevantIDs, prior.ID)
	return nil
}

// AddRecentMemory appends a recent prior exchange.
func (b *Builder) AddRecentMemory(prior *model.RememberedInteraction) error {
	content := fmt.Sprintf("MemoryLog-%s: Remember when I said, %q you replied with %q.",
		prior.CreatedAt.Format(time.RFC3339), prior.UserText, prior.ResponseText)
	if err := b.add(sectionRecentMemory, Message{Role: model.RoleUser, Content: content}); err != nil {
		return err
	}
	b.recentIDs = append(b.recentIDs, prior.ID)
	return nil
}

// Chat renders the transcript in fixed section order, silently dropping
// messages with empty content.
func (b *Builder) Chat() []Message {
	var chat []Message
	for sec := sectionSystem; sec < sectionCount; sec++ {
		for _, msg := range b.sections[sec] {
			if msg.Content == "" {
				continue
			}
			chat = append(chat, msg)
		}
	}
	return chat
}

// TokenCount returns the running token total of admitted messages.
func (b *Builder) TokenCount() int {
	return b.numTokens
}

// UserMessage returns the admitted user message, or nil.
func (b *Builder) UserMessage() *model.Message {
	return b.userMessage
}

// SystemMessages returns the admitted system messages in addition order.
func (b *Builder) SystemMessages() []*model.Message {
	return b.systemMessages
}

// RelevantInteractionIDs returns the IDs of admitted relevant memories.
func (b *Builder) RelevantInteractionIDs() []model.InteractionID {
	return b.relevantIDs
}

// RecentInteractionIDs returns the IDs of admitted recent memories.
func (b *Builder) RecentInteractionIDs() []model.InteractionID {
	return b.recentIDs
}
