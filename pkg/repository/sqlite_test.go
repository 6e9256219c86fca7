package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/hiroq/engram/pkg/model"
	"github.com/hiroq/engram/pkg/repository"
)

func setupSQLite(t *testing.T) *repository.SQLite {
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Close()
	})

	ctx := context.Background()
	gt.NoError(t, repo.CreateSchema(ctx))
	// Schema creation is idempotent
	gt.NoError(t, repo.CreateSchema(ctx))
	return repo
}

func putMessage(t *testing.T, repo *repository.SQLite, role model.Role, text string) *model.Message {
	msg := &model.Message{
		ID:        model.NewMessageID(),
		Role:      role,
		Text:      text,
		Embedding: model.Vector{0.1, 0.2, 0.3},
		CreatedAt: time.Now().UTC(),
	}
	gt.NoError(t, repo.PutMessage(context.Background(), msg))
	return msg
}

func TestSQLiteMessageRoundTrip(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	msg := putMessage(t, repo, model.RoleUser, "hello world")

	messages, err := repo.LoadMessages(ctx)
	gt.NoError(t, err)
	gt.A(t, messages).Length(1)
	gt.Equal(t, messages[0].ID, msg.ID)
	gt.Equal(t, messages[0].Role, model.RoleUser)
	gt.Equal(t, messages[0].Text, "hello world")
	gt.Equal(t, messages[0].Embedding, msg.Embedding)
	gt.True(t, messages[0].CreatedAt.Equal(msg.CreatedAt))
}

func TestSQLiteDuplicateMessage(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	msg := putMessage(t, repo, model.RoleUser, "once")

	err := repo.PutMessage(ctx, msg)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDuplicateKey))
}

func TestSQLiteInteractionRoundTrip(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	userMsg := putMessage(t, repo, model.RoleUser, "question")
	replyMsg := putMessage(t, repo, model.RoleAssistant, "answer")
	sysA := putMessage(t, repo, model.RoleSystem, "rule a")
	sysB := putMessage(t, repo, model.RoleSystem, "rule b")

	prior := &model.Interaction{
		ID:                model.NewInteractionID(),
		CreatedAt:         time.Now().UTC().Add(-time.Hour),
		UserMessageID:     putMessage(t, repo, model.RoleUser, "old question").ID,
		ResponseMessageID: putMessage(t, repo, model.RoleAssistant, "old answer").ID,
	}
	gt.NoError(t, repo.PutInteraction(ctx, prior))

	interaction := &model.Interaction{
		ID:                     model.NewInteractionID(),
		CreatedAt:              time.Now().UTC(),
		UserMessageID:          userMsg.ID,
		ResponseMessageID:      replyMsg.ID,
		SystemMessageIDs:       []model.MessageID{sysB.ID, sysA.ID},
		RelevantInteractionIDs: []model.InteractionID{prior.ID},
		RecentInteractionIDs:   []model.InteractionID{prior.ID},
	}
	gt.NoError(t, repo.PutInteraction(ctx, interaction))

	loaded, err := repo.LoadInteractions(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(2)

	// Ordered by creation time, so prior comes first
	gt.Equal(t, loaded[0].ID, prior.ID)

	got := loaded[1]
	gt.Equal(t, got.ID, interaction.ID)
	gt.Equal(t, got.UserMessageID, userMsg.ID)
	gt.Equal(t, got.ResponseMessageID, replyMsg.ID)

	// Link lists come back in write order
	gt.Equal(t, got.SystemMessageIDs, []model.MessageID{sysB.ID, sysA.ID})
	gt.Equal(t, got.RelevantInteractionIDs, []model.InteractionID{prior.ID})
	gt.Equal(t, got.RecentInteractionIDs, []model.InteractionID{prior.ID})
}

func TestSQLiteDuplicateInteraction(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	interaction := &model.Interaction{
		ID:                model.NewInteractionID(),
		CreatedAt:         time.Now().UTC(),
		UserMessageID:     putMessage(t, repo, model.RoleUser, "q").ID,
		ResponseMessageID: putMessage(t, repo, model.RoleAssistant, "a").ID,
	}
	gt.NoError(t, repo.PutInteraction(ctx, interaction))

	err := repo.PutInteraction(ctx, interaction)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDuplicateKey))
}

func TestSQLiteDeleteInteraction(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	target := &model.Interaction{
		ID:                model.NewInteractionID(),
		CreatedAt:         time.Now().UTC().Add(-time.Hour),
		UserMessageID:     putMessage(t, repo, model.RoleUser, "q1").ID,
		ResponseMessageID: putMessage(t, repo, model.RoleAssistant, "a1").ID,
	}
	gt.NoError(t, repo.PutInteraction(ctx, target))

	// A later interaction references the target as a relevant memory
	referrer := &model.Interaction{
		ID:                     model.NewInteractionID(),
		CreatedAt:              time.Now().UTC(),
		UserMessageID:          putMessage(t, repo, model.RoleUser, "q2").ID,
		ResponseMessageID:      putMessage(t, repo, model.RoleAssistant, "a2").ID,
		RelevantInteractionIDs: []model.InteractionID{target.ID},
	}
	gt.NoError(t, repo.PutInteraction(ctx, referrer))

	gt.NoError(t, repo.DeleteInteraction(ctx, target.ID))

	loaded, err := repo.LoadInteractions(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(1)
	gt.Equal(t, loaded[0].ID, referrer.ID)

	// The dangling reference was cleaned up with the target
	gt.A(t, loaded[0].RelevantInteractionIDs).Length(0)
}

func TestSQLiteDeleteMessageCascades(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	userMsg := putMessage(t, repo, model.RoleUser, "q")
	replyMsg := putMessage(t, repo, model.RoleAssistant, "a")

	interaction := &model.Interaction{
		ID:                model.NewInteractionID(),
		CreatedAt:         time.Now().UTC(),
		UserMessageID:     userMsg.ID,
		ResponseMessageID: replyMsg.ID,
	}
	gt.NoError(t, repo.PutInteraction(ctx, interaction))

	gt.NoError(t, repo.DeleteMessage(ctx, userMsg.ID))

	messages, err := repo.LoadMessages(ctx)
	gt.NoError(t, err)
	gt.A(t, messages).Length(1)
	gt.Equal(t, messages[0].ID, replyMsg.ID)

	interactions, err := repo.LoadInteractions(ctx)
	gt.NoError(t, err)
	gt.A(t, interactions).Length(0)
}
