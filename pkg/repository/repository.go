package repository

import (
	"context"

	"github.com/hiroq/engram/pkg/model"
)

// Ledger is the durable storage for messages and interactions. Referential
// integrity between messages, interactions and their link records is
// emulated at this layer even when the storage engine does not enforce it.
type Ledger interface {
	// CreateSchema prepares the storage. Idempotent.
	CreateSchema(ctx context.Context) error

	// PutMessage writes a message exactly once. A colliding ID fails with
	// model.ErrDuplicateKey.
	PutMessage(ctx context.Context, msg *model.Message) error

	// PutInteraction writes the interaction and all of its link records as
	// one atomic transaction.
	PutInteraction(ctx context.Context, interaction *model.Interaction) error

	// LoadMessages returns every persisted message.
	LoadMessages(ctx context.Context) ([]*model.Message, error)

	// LoadInteractions returns every persisted interaction with its link
	// lists reconstructed in write order.
	LoadInteractions(ctx context.Context) ([]*model.Interaction, error)

	// DeleteMessage removes a message and cascades to interactions and link
	// records referencing it. Administrative use only.
	DeleteMessage(ctx context.Context, id model.MessageID) error

	// DeleteInteraction removes an interaction, its link records, and link
	// records of other interactions referencing it. Administrative use only.
	DeleteInteraction(ctx context.Context, id model.InteractionID) error

	// Close releases the underlying storage handle.
	Close() error
}
