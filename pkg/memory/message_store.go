package memory

import (
	"hash/fnv"

	"github.com/hiroq/engram/pkg/model"
)

// contentHash returns a stable 64-bit hash of the message text. Two
// different texts that collide under this hash resolve to the same logical
// message; collisions are not detected.
func contentHash(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}

// MessageStore is an in-memory index of messages keyed by role plus content
// hash, and by ID. It never touches persistence.
type MessageStore struct {
	hashToMessage map[model.Role]map[uint64]*model.Message
	idToMessage   map[model.MessageID]*model.Message
}

// NewMessageStore creates an empty store with one hash bucket per role.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		hashToMessage: map[model.Role]map[uint64]*model.Message{
			model.RoleSystem:    {},
			model.RoleUser:      {},
			model.RoleAssistant: {},
		},
		idToMessage: map[model.MessageID]*model.Message{},
	}
}

// LookupByText returns the message with matching role and text, or nil.
func (s *MessageStore) LookupByText(role model.Role, text string) *model.Message {
	return s.hashToMessage[role][contentHash(text)]
}

// LookupByID returns the message with the given ID, or nil.
func (s *MessageStore) LookupByID(id model.MessageID) *model.Message {
	return s.idToMessage[id]
}

// Add inserts the message into both indexes. Re-inserting a message with an
// already indexed ID is a no-op.
func (s *MessageStore) Add(msg *model.Message) {
	if _, ok := s.idToMessage[msg.ID]; ok {
		return
	}

	bucket, ok := s.hashToMessage[msg.Role]
	if !ok {
		bucket = map[uint64]*model.Message{}
		s.hashToMessage[msg.Role] = bucket
	}
	bucket[contentHash(msg.Text)] = msg
	s.idToMessage[msg.ID] = msg
}

// Remove drops the message from both indexes. The hash index entry is only
// removed if it still points at this ID.
func (s *MessageStore) Remove(id model.MessageID) {
	msg, ok := s.idToMessage[id]
	if !ok {
		return
	}
	delete(s.idToMessage, id)

	key := contentHash(msg.Text)
	if current := s.hashToMessage[msg.Role][key]; current != nil && current.ID == id {
		delete(s.hashToMessage[msg.Role], key)
	}
}

// Values returns all indexed messages in unspecified order.
func (s *MessageStore) Values() []*model.Message {
	msgs := make([]*model.Message, 0, len(s.idToMessage))
	for _, m := range s.idToMessage {
		msgs = append(msgs, m)
	}
	return msgs
}
