package model

import (
	"time"

	"github.com/google/uuid"
)

type InteractionID string

// NewInteractionID generates a new unique InteractionID
func NewInteractionID() InteractionID {
	return InteractionID(uuid.New().String())
}

// Interaction is one recorded exchange: the user message, the reply, and the
// contextual messages that were used to produce it. It is never mutated
// after creation.
type Interaction struct {
	ID                InteractionID
	CreatedAt         time.Time
	UserMessageID     MessageID
	ResponseMessageID MessageID

	SystemMessageIDs       []MessageID
	RelevantInteractionIDs []InteractionID
	RecentInteractionIDs   []InteractionID
}

// RememberedInteraction is a flattened read-only projection of an
// interaction and its two messages, produced on demand for prompt rendering.
// CreatedAt carries the user message's creation time.
type RememberedInteraction struct {
	ID           InteractionID
	CreatedAt    time.Time
	UserText     string
	ResponseText string
}
