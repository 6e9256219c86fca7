package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/hiroq/engram/pkg/model"
	"github.com/hiroq/engram/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func firestoreMessage(t *testing.T, repo *repository.Firestore, role model.Role, text string) *model.Message {
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

func TestFirestoreMessageRoundTrip(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	msg := firestoreMessage(t, repo, model.RoleUser, "firestore round trip")

	messages, err := repo.LoadMessages(ctx)
	gt.NoError(t, err)

	var found *model.Message
	for _, m := range messages {
		if m.ID == msg.ID {
			found = m
		}
	}
	gt.V(t, found).NotNil()
	gt.Equal(t, found.Text, "firestore round trip")
	gt.Equal(t, found.Embedding, msg.Embedding)
}

func TestFirestoreDuplicateMessage(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	msg := firestoreMessage(t, repo, model.RoleUser, "only once")

	err := repo.PutMessage(ctx, msg)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDuplicateKey))
}

func TestFirestoreInteractionRoundTrip(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	userMsg := firestoreMessage(t, repo, model.RoleUser, "question")
	replyMsg := firestoreMessage(t, repo, model.RoleAssistant, "answer")
	sysMsg := firestoreMessage(t, repo, model.RoleSystem, "rule")

	interaction := &model.Interaction{
		ID:                model.NewInteractionID(),
		CreatedAt:         time.Now().UTC(),
		UserMessageID:     userMsg.ID,
		ResponseMessageID: replyMsg.ID,
		SystemMessageIDs:  []model.MessageID{sysMsg.ID},
	}
	gt.NoError(t, repo.PutInteraction(ctx, interaction))

	loaded, err := repo.LoadInteractions(ctx)
	gt.NoError(t, err)

	var found *model.Interaction
	for _, it := range loaded {
		if it.ID == interaction.ID {
			found = it
		}
	}
	gt.V(t, found).NotNil()
	gt.Equal(t, found.UserMessageID, userMsg.ID)
	gt.Equal(t, found.ResponseMessageID, replyMsg.ID)
	gt.Equal(t, found.SystemMessageIDs, []model.MessageID{sysMsg.ID})
}
