package memory

import (
	"sort"

	"github.com/hiroq/engram/pkg/model"
)

// InteractionStore is an in-memory index of interactions by ID and by the ID
// of the user message that originated them.
type InteractionStore struct {
	messages        *MessageStore
	byUserMessageID map[model.MessageID]*model.Interaction
	byID            map[model.InteractionID]*model.Interaction

	// insertion order, kept so TimeSorted can break timestamp ties stably
	order []*model.Interaction
}

// NewInteractionStore creates an empty store that resolves text lookups
// through the given message store.
func NewInteractionStore(messages *MessageStore) *InteractionStore {
	return &InteractionStore{
		messages:        messages,
		byUserMessageID: map[model.MessageID]*model.Interaction{},
		byID:            map[model.InteractionID]*model.Interaction{},
	}
}

// LookupByText resolves the text to a user message and returns the
// interaction it originated, or nil.
func (s *InteractionStore) LookupByText(text string) *model.Interaction {
	msg := s.messages.LookupByText(model.RoleUser, text)
	if msg == nil {
		return nil
	}
	return s.byUserMessageID[msg.ID]
}

// LookupByUserMessageID returns the interaction originated by the given user
// message, or nil.
func (s *InteractionStore) LookupByUserMessageID(id model.MessageID) *model.Interaction {
	return s.byUserMessageID[id]
}

// LookupByID returns the interaction with the given ID, or nil.
func (s *InteractionStore) LookupByID(id model.InteractionID) *model.Interaction {
	return s.byID[id]
}

// Add inserts the interaction into both indexes. Re-inserting an already
// indexed ID is a no-op.
func (s *InteractionStore) Add(interaction *model.Interaction) {
	if _, ok := s.byID[interaction.ID]; ok {
		return
	}
	s.byUserMessageID[interaction.UserMessageID] = interaction
	s.byID[interaction.ID] = interaction
	s.order = append(s.order, interaction)
}

// Remove drops the interaction from all indexes.
func (s *InteractionStore) Remove(id model.InteractionID) {
	interaction, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	if current := s.byUserMessageID[interaction.UserMessageID]; current != nil && current.ID == id {
		delete(s.byUserMessageID, interaction.UserMessageID)
	}
	for i, it := range s.order {
		if it.ID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Values returns all indexed interactions in unspecified order.
func (s *InteractionStore) Values() []*model.Interaction {
	values := make([]*model.Interaction, 0, len(s.byID))
	for _, it := range s.byID {
		values = append(values, it)
	}
	return values
}

// TimeSorted returns interactions ascending by creation time. Timestamp ties
// keep insertion order, since creation clocks may share resolution with the
// persistence layer.
func (s *InteractionStore) TimeSorted() []*model.Interaction {
	sorted := make([]*model.Interaction, len(s.order))
	copy(sorted, s.order)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}
