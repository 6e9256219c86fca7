package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// Role identifies the author of a message. The set is closed.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Validate checks if the role is one of the known values
func (r Role) Validate() error {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return nil
	default:
		return goerr.New("invalid role", goerr.V("role", r))
	}
}

type MessageID string

// NewMessageID generates a new unique MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// Message is a single utterance with its embedding. The ID is immutable once
// assigned; two messages with the same role and text resolve to one record.
type Message struct {
	ID        MessageID
	Role      Role
	Text      string
	Embedding Vector
	CreatedAt time.Time
}
