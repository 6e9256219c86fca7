package memory_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/hiroq/engram/pkg/memory"
	"github.com/hiroq/engram/pkg/model"
	"github.com/hiroq/engram/pkg/prompt"
	"github.com/hiroq/engram/pkg/repository"
)

// fakeEmbedder returns canned vectors per text and counts invocations.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0.5, 0.5, 0.5}, nil
}

func setupMemory(t *testing.T, embedder memory.Embedder) (*memory.Memory, string) {
	dbPath := filepath.Join(t.TempDir(), "memory.db")
	ledger, err := repository.NewSQLite(dbPath)
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = ledger.Close()
	})

	mem, err := memory.New(context.Background(), ledger, embedder)
	gt.NoError(t, err)
	return mem, dbPath
}

// recordExchange runs the write path of one turn: prompt with a single user
// message, then AddInteraction with the given reply.
func recordExchange(t *testing.T, mem *memory.Memory, userText, replyText string) *model.Interaction {
	ctx := context.Background()

	builder, err := prompt.New("gemini-2.5-flash")
	gt.NoError(t, err)

	userMsg, err := mem.GetMessage(ctx, model.RoleUser, userText)
	gt.NoError(t, err)
	gt.NoError(t, builder.AddUserMessage(userMsg))

	interaction, err := mem.AddInteraction(ctx, builder, replyText)
	gt.NoError(t, err)
	return interaction
}

func TestGetMessageDedup(t *testing.T) {
	embedder := &fakeEmbedder{}
	mem, _ := setupMemory(t, embedder)
	ctx := context.Background()

	first, err := mem.GetMessage(ctx, model.RoleUser, "hello")
	gt.NoError(t, err)
	second, err := mem.GetMessage(ctx, model.RoleUser, "hello")
	gt.NoError(t, err)

	gt.Equal(t, first.ID, second.ID)
	gt.Equal(t, embedder.calls, 1)

	// Same text under a different role is a distinct message
	other, err := mem.GetMessage(ctx, model.RoleSystem, "hello")
	gt.NoError(t, err)
	gt.True(t, other.ID != first.ID)
}

func TestGetMessageInvalidRole(t *testing.T) {
	mem, _ := setupMemory(t, &fakeEmbedder{})

	_, err := mem.GetMessage(context.Background(), model.Role("operator"), "hello")
	gt.Error(t, err)
}

func TestAddInteractionRoundTrip(t *testing.T) {
	embedder := &fakeEmbedder{}
	mem, dbPath := setupMemory(t, embedder)
	ctx := context.Background()

	builder, err := prompt.New("gemini-2.5-flash")
	gt.NoError(t, err)

	sysMsg, err := mem.GetMessage(ctx, model.RoleSystem, "be concise")
	gt.NoError(t, err)
	gt.NoError(t, builder.AddSystemMessage(sysMsg))

	userMsg, err := mem.GetMessage(ctx, model.RoleUser, "what is Go")
	gt.NoError(t, err)
	gt.NoError(t, builder.AddUserMessage(userMsg))

	interaction, err := mem.AddInteraction(ctx, builder, "a programming language")
	gt.NoError(t, err)
	gt.Equal(t, interaction.UserMessageID, userMsg.ID)
	gt.A(t, interaction.SystemMessageIDs).Length(1)

	gt.Equal(t, mem.LookupInteraction("what is Go").ID, interaction.ID)

	// A fresh Memory over the same database sees the same records
	ledger, err := repository.NewSQLite(dbPath)
	gt.NoError(t, err)
	defer ledger.Close()

	reloaded, err := memory.New(ctx, ledger, &fakeEmbedder{})
	gt.NoError(t, err)

	got := reloaded.LookupInteraction("what is Go")
	gt.V(t, got).NotNil()
	gt.Equal(t, got.ID, interaction.ID)
	gt.A(t, got.SystemMessageIDs).Length(1)
	gt.Equal(t, got.SystemMessageIDs[0], sysMsg.ID)

	prior, err := reloaded.RenderPriorInteraction(got)
	gt.NoError(t, err)
	gt.Equal(t, prior.UserText, "what is Go")
	gt.Equal(t, prior.ResponseText, "a programming language")
}

func TestKMostSimilarInputs(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"apples":  {1, 0, 0},
		"bridges": {0, 1, 0},
		"pears":   {0.9, 0.1, 0},
		"fruit":   {1, 0, 0},
	}}
	mem, _ := setupMemory(t, embedder)
	ctx := context.Background()

	apples := recordExchange(t, mem, "apples", "they are red")
	recordExchange(t, mem, "bridges", "they span rivers")
	pears := recordExchange(t, mem, "pears", "they are green")

	results, err := mem.KMostSimilarInputs(ctx, "fruit", 2)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].ID, apples.ID)
	gt.Equal(t, results[1].ID, pears.ID)
}

func TestKMostSimilarInputsEmpty(t *testing.T) {
	mem, _ := setupMemory(t, &fakeEmbedder{})

	results, err := mem.KMostSimilarInputs(context.Background(), "anything", 3)
	gt.NoError(t, err)
	gt.A(t, results).Length(0)
}

func TestKMostRecent(t *testing.T) {
	mem, _ := setupMemory(t, &fakeEmbedder{vectors: map[string][]float32{
		"one":   {1, 0, 0},
		"two":   {0, 1, 0},
		"three": {0, 0, 1},
	}})

	recordExchange(t, mem, "one", "first")
	second := recordExchange(t, mem, "two", "second")
	third := recordExchange(t, mem, "three", "third")

	results := mem.KMostRecent(2)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].ID, third.ID)
	gt.Equal(t, results[1].ID, second.ID)

	gt.A(t, mem.KMostRecent(0)).Length(0)
	gt.A(t, mem.KMostRecent(10)).Length(3)
}

// brokenLedger rejects every message write.
type brokenLedger struct{}

func (brokenLedger) CreateSchema(ctx context.Context) error { return nil }
func (brokenLedger) PutMessage(ctx context.Context, msg *model.Message) error {
	return goerr.New("write refused")
}
func (brokenLedger) PutInteraction(ctx context.Context, interaction *model.Interaction) error {
	return goerr.New("write refused")
}
func (brokenLedger) LoadMessages(ctx context.Context) ([]*model.Message, error) { return nil, nil }
func (brokenLedger) LoadInteractions(ctx context.Context) ([]*model.Interaction, error) {
	return nil, nil
}
func (brokenLedger) DeleteMessage(ctx context.Context, id model.MessageID) error         { return nil }
func (brokenLedger) DeleteInteraction(ctx context.Context, id model.InteractionID) error { return nil }
func (brokenLedger) Close() error                                                        { return nil }

func TestFailedPersistIsNotVisible(t *testing.T) {
	embedder := &fakeEmbedder{}
	ctx := context.Background()

	mem, err := memory.New(ctx, brokenLedger{}, embedder)
	gt.NoError(t, err)

	builder, err := prompt.New("gemini-2.5-flash")
	gt.NoError(t, err)

	userMsg, err := mem.GetMessage(ctx, model.RoleUser, "doomed")
	gt.NoError(t, err)
	gt.NoError(t, builder.AddUserMessage(userMsg))

	_, err = mem.AddInteraction(ctx, builder, "never stored")
	gt.Error(t, err)

	gt.V(t, mem.LookupInteraction("doomed")).Nil()

	// The failed user message was dropped from the index, so the next
	// lookup re-embeds instead of returning stale identity.
	before := embedder.calls
	again, err := mem.GetMessage(ctx, model.RoleUser, "doomed")
	gt.NoError(t, err)
	gt.Equal(t, embedder.calls, before+1)
	gt.True(t, again.ID != userMsg.ID)
}
