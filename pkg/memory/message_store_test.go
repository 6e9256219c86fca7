package memory_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/hiroq/engram/pkg/memory"
	"github.com/hiroq/engram/pkg/model"
)

func newTestMessage(role model.Role, text string) *model.Message {
	return &model.Message{
		ID:        model.NewMessageID(),
		Role:      role,
		Text:      text,
		Embedding: model.Vector{1, 0, 0},
		CreatedAt: time.Now().UTC(),
	}
}

func TestMessageStoreLookup(t *testing.T) {
	store := memory.NewMessageStore()
	msg := newTestMessage(model.RoleUser, "hello there")
	store.Add(msg)

	gt.Equal(t, store.LookupByText(model.RoleUser, "hello there"), msg)
	gt.Equal(t, store.LookupByID(msg.ID), msg)
	gt.V(t, store.LookupByText(model.RoleUser, "something else")).Nil()
}

func TestMessageStoreRoleSeparation(t *testing.T) {
	store := memory.NewMessageStore()
	userMsg := newTestMessage(model.RoleUser, "same text")
	systemMsg := newTestMessage(model.RoleSystem, "same text")
	store.Add(userMsg)
	store.Add(systemMsg)

	gt.Equal(t, store.LookupByText(model.RoleUser, "same text").ID, userMsg.ID)
	gt.Equal(t, store.LookupByText(model.RoleSystem, "same text").ID, systemMsg.ID)
	gt.V(t, store.LookupByText(model.RoleAssistant, "same text")).Nil()
}

func TestMessageStoreAddIdempotent(t *testing.T) {
	store := memory.NewMessageStore()
	msg := newTestMessage(model.RoleUser, "hello")
	store.Add(msg)
	store.Add(msg)

	gt.A(t, store.Values()).Length(1)
}

func TestMessageStoreRemove(t *testing.T) {
	store := memory.NewMessageStore()
	msg := newTestMessage(model.RoleUser, "hello")
	store.Add(msg)
	store.Remove(msg.ID)

	gt.V(t, store.LookupByText(model.RoleUser, "hello")).Nil()
	gt.V(t, store.LookupByID(msg.ID)).Nil()
	gt.A(t, store.Values()).Length(0)

	// Removing an absent ID is a no-op
	store.Remove(msg.ID)
}
