package chat

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hiroq/engram/pkg/adapter"
	"github.com/hiroq/engram/pkg/agent"
	"github.com/hiroq/engram/pkg/memory"
	"github.com/hiroq/engram/pkg/model"
	"github.com/hiroq/engram/pkg/prompt"
	"github.com/hiroq/engram/pkg/utils/logging"
)

const defaultRecallLimit = 5

// ErrProfileTooLarge means the profile's system prompts alone do not fit the
// token budget. Retrying with different user input cannot succeed; the budget
// or the profile has to change.
var ErrProfileTooLarge = goerr.New("profile system prompts exceed the token budget")

// Session runs conversation turns against the memory and the completion
// service.
type Session struct {
	memory    *memory.Memory
	llm       adapter.Gemini
	profile   *agent.Profile
	budget    int
	relevantK int
	recentK   int
}

// NewInput bundles the dependencies of a chat session.
type NewInput struct {
	Memory  *memory.Memory
	LLM     adapter.Gemini
	Profile *agent.Profile

	// Budget caps the prompt token total; zero keeps the builder default.
	Budget int
	// RelevantK / RecentK bound how many memories pad the prompt; zero
	// means 5.
	RelevantK int
	RecentK   int
}

// New creates a chat session.
func New(input NewInput) (*Session, error) {
	if input.Memory == nil {
		return nil, goerr.New("memory is required")
	}
	if input.LLM == nil {
		return nil, goerr.New("llm is required")
	}
	if input.Profile == nil {
		return nil, goerr.New("profile is required")
	}

	s := &Session{
		memory:    input.Memory,
		llm:       input.LLM,
		profile:   input.Profile,
		budget:    input.Budget,
		relevantK: input.RelevantK,
		recentK:   input.RecentK,
	}
	if s.relevantK == 0 {
		s.relevantK = defaultRecallLimit
	}
	if s.recentK == 0 {
		s.recentK = defaultRecallLimit
	}
	return s, nil
}

// BuildPrompt assembles the transcript for one user message: system prompts
// and objectives first, then the user message, then relevant and recent
// memories padded into the remaining budget. A user message that does not
// fit surfaces model.ErrBudgetExceeded so the caller can ask for shorter
// input; memories that do not fit are silently left out.
func (s *Session) BuildPrompt(ctx context.Context, userText string) (*prompt.Builder, error) {
	opts := []prompt.Option{}
	if s.budget > 0 {
		opts = append(opts, prompt.WithBudget(s.budget))
	}
	builder, err := prompt.New(s.profile.Model, opts...)
	if err != nil {
		return nil, err
	}

	for _, text := range s.profile.SystemPrompts() {
		msg, err := s.memory.GetMessage(ctx, model.RoleSystem, text)
		if err != nil {
			return nil, err
		}
		if err := builder.AddSystemMessage(msg); err != nil {
			if errors.Is(err, model.ErrBudgetExceeded) {
				return nil, goerr.Wrap(ErrProfileTooLarge, "system prompts do not fit",
					goerr.V("tokens", builder.TokenCount()), goerr.V("prompt", text))
			}
			return nil, err
		}
	}

	userMsg, err := s.memory.GetMessage(ctx, model.RoleUser, userText)
	if err != nil {
		return nil, err
	}
	if err := builder.AddUserMessage(userMsg); err != nil {
		return nil, err
	}

	if err := s.padWithMemories(ctx, builder, userText); err != nil {
		return nil, err
	}
	return builder, nil
}

// padWithMemories fills the remaining budget with relevant then recent
// exchanges, stopping at the first one that does not fit.
func (s *Session) padWithMemories(ctx context.Context, builder *prompt.Builder, userText string) error {
	relevant, err := s.memory.KMostSimilarInputs(ctx, userText, s.relevantK)
	if err != nil {
		return err
	}
	for _, interaction := range relevant {
		prior, err := s.memory.RenderPriorInteraction(interaction)
		if err != nil {
			return err
		}
		if err := builder.AddRelevantMemory(prior); err != nil {
			if errors.Is(err, model.ErrBudgetExceeded) {
				logging.From(ctx).Debug("prompt full, skipping remaining memories",
					"tokens", builder.TokenCount())
				return nil
			}
			return err
		}
	}

	for _, interaction := range s.memory.KMostRecent(s.recentK) {
		prior, err := s.memory.RenderPriorInteraction(interaction)
		if err != nil {
			return err
		}
		if err := builder.AddRecentMemory(prior); err != nil {
			if errors.Is(err, model.ErrBudgetExceeded) {
				logging.From(ctx).Debug("prompt full, skipping remaining memories",
					"tokens", builder.TokenCount())
				return nil
			}
			return err
		}
	}
	return nil
}

// Send runs one full turn: build the prompt, obtain the completion, and
// record the exchange into memory.
func (s *Session) Send(ctx context.Context, userText string) (string, error) {
	builder, err := s.BuildPrompt(ctx, userText)
	if err != nil {
		return "", err
	}

	reply, err := s.llm.Complete(ctx, builder.Chat())
	if err != nil {
		return "", goerr.Wrap(err, "failed to obtain completion")
	}

	if _, err := s.memory.AddInteraction(ctx, builder, reply); err != nil {
		return "", err
	}
	return reply, nil
}
