package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hiroq/engram/pkg/model"
)

const (
	collectionMessages     = "messages"
	collectionInteractions = "interactions"
)

// Firestore implements Ledger on Cloud Firestore. The relational link tables
// are projected onto ordered array fields of the interaction document, which
// preserves write order on reload by construction.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore-backed ledger.
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}
	return &Firestore{client: client}, nil
}

// Close closes the underlying client.
func (f *Firestore) Close() error {
	return f.client.Close()
}

// CreateSchema is a no-op: Firestore collections materialize on first write.
func (f *Firestore) CreateSchema(ctx context.Context) error {
	return nil
}

type firestoreMessage struct {
	Role      string             `firestore:"role"`
	Content   string             `firestore:"content"`
	Embedding firestore.Vector32 `firestore:"embedding"`
	CreatedAt time.Time          `firestore:"created_at"`
}

type firestoreInteraction struct {
	CreatedAt              time.Time `firestore:"created_at"`
	UserMessageID          string    `firestore:"user_message_id"`
	ResponseMessageID      string    `firestore:"response_message_id"`
	SystemMessageIDs       []string  `firestore:"system_message_ids"`
	RelevantInteractionIDs []string  `firestore:"relevant_interaction_ids"`
	RecentInteractionIDs   []string  `firestore:"recent_interaction_ids"`
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// PutMessage creates the message document. A colliding ID fails with
// model.ErrDuplicateKey.
func (f *Firestore) PutMessage(ctx context.Context, msg *model.Message) error {
	doc := f.client.Collection(collectionMessages).Doc(string(msg.ID))
	_, err := doc.Create(ctx, &firestoreMessage{
		Role:      string(msg.Role),
		Content:   msg.Text,
		Embedding: firestore.Vector32(msg.Embedding),
		CreatedAt: msg.CreatedAt.UTC(),
	})
	if err != nil {
		if isAlreadyExists(err) {
			return goerr.Wrap(model.ErrDuplicateKey, "message id already exists", goerr.V("message_id", msg.ID))
		}
		return goerr.Wrap(err, "failed to create message document", goerr.V("message_id", msg.ID))
	}
	return nil
}

// PutInteraction creates the interaction document, link lists included, in a
// single transaction.
func (f *Firestore) PutInteraction(ctx context.Context, interaction *model.Interaction) error {
	doc := f.client.Collection(collectionInteractions).Doc(string(interaction.ID))
	record := &firestoreInteraction{
		CreatedAt:              interaction.CreatedAt.UTC(),
		UserMessageID:          string(interaction.UserMessageID),
		ResponseMessageID:      string(interaction.ResponseMessageID),
		SystemMessageIDs:       messageIDsToStrings(interaction.SystemMessageIDs),
		RelevantInteractionIDs: interactionIDsToStrings(interaction.RelevantInteractionIDs),
		RecentInteractionIDs:   interactionIDsToStrings(interaction.RecentInteractionIDs),
	}

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return tx.Create(doc, record)
	})
	if err != nil {
		if isAlreadyExists(err) {
			return goerr.Wrap(model.ErrDuplicateKey, "interaction id already exists", goerr.V("interaction_id", interaction.ID))
		}
		return goerr.Wrap(err, "failed to create interaction document", goerr.V("interaction_id", interaction.ID))
	}
	return nil
}

// LoadMessages returns every persisted message.
func (f *Firestore) LoadMessages(ctx context.Context) ([]*model.Message, error) {
	iter := f.client.Collection(collectionMessages).Documents(ctx)
	defer iter.Stop()

	var messages []*model.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate message documents")
		}

		var record firestoreMessage
		if err := doc.DataTo(&record); err != nil {
			return nil, goerr.Wrap(err, "failed to decode message document", goerr.V("message_id", doc.Ref.ID))
		}

		messages = append(messages, &model.Message{
			ID:        model.MessageID(doc.Ref.ID),
			Role:      model.Role(record.Role),
			Text:      record.Content,
			Embedding: model.Vector(record.Embedding),
			CreatedAt: record.CreatedAt,
		})
	}
	return messages, nil
}

// LoadInteractions returns every persisted interaction. The array fields
// come back in write order.
func (f *Firestore) LoadInteractions(ctx context.Context) ([]*model.Interaction, error) {
	iter := f.client.Collection(collectionInteractions).Documents(ctx)
	defer iter.Stop()

	var interactions []*model.Interaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate interaction documents")
		}

		var record firestoreInteraction
		if err := doc.DataTo(&record); err != nil {
			return nil, goerr.Wrap(err, "failed to decode interaction document", goerr.V("interaction_id", doc.Ref.ID))
		}

		interactions = append(interactions, &model.Interaction{
			ID:                     model.InteractionID(doc.Ref.ID),
			CreatedAt:              record.CreatedAt,
			UserMessageID:          model.MessageID(record.UserMessageID),
			ResponseMessageID:      model.MessageID(record.ResponseMessageID),
			SystemMessageIDs:       stringsToMessageIDs(record.SystemMessageIDs),
			RelevantInteractionIDs: stringsToInteractionIDs(record.RelevantInteractionIDs),
			RecentInteractionIDs:   stringsToInteractionIDs(record.RecentInteractionIDs),
		})
	}
	return interactions, nil
}

// DeleteInteraction removes the interaction document and strips its ID from
// the link arrays of interactions referencing it.
func (f *Firestore) DeleteInteraction(ctx context.Context, id model.InteractionID) error {
	for _, field := range []string{"relevant_interaction_ids", "recent_interaction_ids"} {
		if err := f.removeFromArrays(ctx, field, string(id)); err != nil {
			return err
		}
	}

	if _, err := f.client.Collection(collectionInteractions).Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete interaction document", goerr.V("interaction_id", id))
	}
	return nil
}

// DeleteMessage removes the message document, deletes interactions that use
// it as user or response message, and strips it from system message arrays.
func (f *Firestore) DeleteMessage(ctx context.Context, id model.MessageID) error {
	for _, field := range []string{"user_message_id", "response_message_id"} {
		iter := f.client.Collection(collectionInteractions).Where(field, "==", string(id)).Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return goerr.Wrap(err, "failed to query dependent interactions", goerr.V("message_id", id))
			}
			if err := f.DeleteInteraction(ctx, model.InteractionID(doc.Ref.ID)); err != nil {
				iter.Stop()
				return err
			}
		}
		iter.Stop()
	}

	if err := f.removeFromArrays(ctx, "system_message_ids", string(id)); err != nil {
		return err
	}

	if _, err := f.client.Collection(collectionMessages).Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete message document", goerr.V("message_id", id))
	}
	return nil
}

// removeFromArrays strips value from the named array field of every
// interaction document containing it.
func (f *Firestore) removeFromArrays(ctx context.Context, field, value string) error {
	iter := f.client.Collection(collectionInteractions).
		Where(field, "array-contains", value).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to query referencing interactions", goerr.V("field", field))
		}
		if _, err := doc.Ref.Update(ctx, []firestore.Update{
			{Path: field, Value: firestore.ArrayRemove(value)},
		}); err != nil {
			return goerr.Wrap(err, "failed to remove reference", goerr.V("field", field), goerr.V("interaction_id", doc.Ref.ID))
		}
	}
	return nil
}

func messageIDsToStrings(ids []model.MessageID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func interactionIDsToStrings(ids []model.InteractionID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func stringsToMessageIDs(ids []string) []model.MessageID {
	out := make([]model.MessageID, len(ids))
	for i, id := range ids {
		out[i] = model.MessageID(id)
	}
	return out
}

func stringsToInteractionIDs(ids []string) []model.InteractionID {
	out := make([]model.InteractionID, len(ids))
	for i, id := range ids {
		out[i] = model.InteractionID(id)
	}
	return out
}
