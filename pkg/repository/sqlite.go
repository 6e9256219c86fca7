package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"github.com/hiroq/engram/pkg/model"
)

// SQLite implements Ledger on a local SQLite database file. This is the
// default backend.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	// One shared connection avoids writer lock contention with SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLite{db: db}, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Link tables keep their AUTOINCREMENT rowid; loads order by it so the link
// lists round-trip in write order.
var sqliteSchema = []string{
	`PRAGMA journal_mode=WAL`,
	`PRAGMA busy_timeout=5000`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		user_message_id TEXT NOT NULL,
		response_message_id TEXT NOT NULL,
		FOREIGN KEY (user_message_id) REFERENCES messages (id) ON DELETE CASCADE,
		FOREIGN KEY (response_message_id) REFERENCES messages (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS interaction_system_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		interaction_id TEXT NOT NULL,
		system_message_id TEXT NOT NULL,
		FOREIGN KEY (interaction_id) REFERENCES interactions (id) ON DELETE CASCADE,
		FOREIGN KEY (system_message_id) REFERENCES messages (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS interaction_relevant_interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		interaction_id TEXT NOT NULL,
		related_interaction_id TEXT NOT NULL,
		FOREIGN KEY (interaction_id) REFERENCES interactions (id) ON DELETE CASCADE,
		FOREIGN KEY (related_interaction_id) REFERENCES interactions (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS interaction_recent_interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		interaction_id TEXT NOT NULL,
		related_interaction_id TEXT NOT NULL,
		FOREIGN KEY (interaction_id) REFERENCES interactions (id) ON DELETE CASCADE,
		FOREIGN KEY (related_interaction_id) REFERENCES interactions (id) ON DELETE CASCADE
	)`,
}

// CreateSchema creates the message, interaction and link tables. Idempotent.
func (s *SQLite) CreateSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to create schema", goerr.V("statement", stmt))
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// PutMessage inserts the message row. A colliding ID fails with
// model.ErrDuplicateKey.
func (s *SQLite) PutMessage(ctx context.Context, msg *model.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, timestamp, role, content, embedding) VALUES (?, ?, ?, ?, ?)`,
		string(msg.ID),
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(msg.Role),
		msg.Text,
		msg.Embedding.Blob(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return goerr.Wrap(model.ErrDuplicateKey, "message id already exists", goerr.V("message_id", msg.ID))
		}
		return goerr.Wrap(err, "failed to insert message", goerr.V("message_id", msg.ID))
	}
	return nil
}

// PutInteraction writes the interaction row and one link row per referenced
// ID, all in a single transaction.
func (s *SQLite) PutInteraction(ctx context.Context, interaction *model.Interaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO interactions (id, created_at, user_message_id, response_message_id) VALUES (?, ?, ?, ?)`,
		string(interaction.ID),
		interaction.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(interaction.UserMessageID),
		string(interaction.ResponseMessageID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return goerr.Wrap(model.ErrDuplicateKey, "interaction id already exists", goerr.V("interaction_id", interaction.ID))
		}
		return goerr.Wrap(err, "failed to insert interaction", goerr.V("interaction_id", interaction.ID))
	}

	for _, msgID := range interaction.SystemMessageIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO interaction_system_messages (interaction_id, system_message_id) VALUES (?, ?)`,
			string(interaction.ID), string(msgID),
		); err != nil {
			return goerr.Wrap(err, "failed to insert system message link", goerr.V("interaction_id", interaction.ID))
		}
	}
	for _, relID := range interaction.RelevantInteractionIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO interaction_relevant_interactions (interaction_id, related_interaction_id) VALUES (?, ?)`,
			string(interaction.ID), string(relID),
		); err != nil {
			return goerr.Wrap(err, "failed to insert relevant interaction link", goerr.V("interaction_id", interaction.ID))
		}
	}
	for _, relID := range interaction.RecentInteractionIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO interaction_recent_interactions (interaction_id, related_interaction_id) VALUES (?, ?)`,
			string(interaction.ID), string(relID),
		); err != nil {
			return goerr.Wrap(err, "failed to insert recent interaction link", goerr.V("interaction_id", interaction.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit interaction", goerr.V("interaction_id", interaction.ID))
	}
	return nil
}

// LoadMessages returns every persisted message.
func (s *SQLite) LoadMessages(ctx context.Context) ([]*model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, role, content, embedding FROM messages`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query messages")
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		var (
			id, timestamp, role, content string
			blob                         []byte
		)
		if err := rows.Scan(&id, &timestamp, &role, &content, &blob); err != nil {
			return nil, goerr.Wrap(err, "failed to scan message row")
		}

		createdAt, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse message timestamp", goerr.V("message_id", id))
		}
		embedding, err := model.VectorFromBlob(blob)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode embedding", goerr.V("message_id", id))
		}

		messages = append(messages, &model.Message{
			ID:        model.MessageID(id),
			Role:      model.Role(role),
			Text:      content,
			Embedding: embedding,
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate message rows")
	}
	return messages, nil
}

// loadLinks reads one link table into interaction-keyed lists, ordered by
// rowid so each list keeps its write order.
func (s *SQLite) loadLinks(ctx context.Context, table, column string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT interaction_id, `+column+` FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query link table", goerr.V("table", table))
	}
	defer rows.Close()

	links := map[string][]string{}
	for rows.Next() {
		var interactionID, relatedID string
		if err := rows.Scan(&interactionID, &relatedID); err != nil {
			return nil, goerr.Wrap(err, "failed to scan link row", goerr.V("table", table))
		}
		links[interactionID] = append(links[interactionID], relatedID)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate link rows", goerr.V("table", table))
	}
	return links, nil
}

// LoadInteractions returns every persisted interaction with its three link
// lists in write order.
func (s *SQLite) LoadInteractions(ctx context.Context) ([]*model.Interaction, error) {
	systemLinks, err := s.loadLinks(ctx, "interaction_system_messages", "system_message_id")
	if err != nil {
		return nil, err
	}
	relevantLinks, err := s.loadLinks(ctx, "interaction_relevant_interactions", "related_interaction_id")
	if err != nil {
		return nil, err
	}
	recentLinks, err := s.loadLinks(ctx, "interaction_recent_interactions", "related_interaction_id")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, user_message_id, response_message_id FROM interactions ORDER BY created_at`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query interactions")
	}
	defer rows.Close()

	var interactions []*model.Interaction
	for rows.Next() {
		var id, createdAt, userMessageID, responseMessageID string
		if err := rows.Scan(&id, &createdAt, &userMessageID, &responseMessageID); err != nil {
			return nil, goerr.Wrap(err, "failed to scan interaction row")
		}

		created, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse interaction timestamp", goerr.V("interaction_id", id))
		}

		interactions = append(interactions, &model.Interaction{
			ID:                     model.InteractionID(id),
			CreatedAt:              created,
			UserMessageID:          model.MessageID(userMessageID),
			ResponseMessageID:      model.MessageID(responseMessageID),
			SystemMessageIDs:       toMessageIDs(systemLinks[id]),
			RelevantInteractionIDs: toInteractionIDs(relevantLinks[id]),
			RecentInteractionIDs:   toInteractionIDs(recentLinks[id]),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate interaction rows")
	}
	return interactions, nil
}

func toMessageIDs(ids []string) []model.MessageID {
	out := make([]model.MessageID, len(ids))
	for i, id := range ids {
		out[i] = model.MessageID(id)
	}
	return out
}

func toInteractionIDs(ids []string) []model.InteractionID {
	out := make([]model.InteractionID, len(ids))
	for i, id := range ids {
		out[i] = model.InteractionID(id)
	}
	return out
}

// deleteInteractionTx removes the interaction row, its own link rows, and
// link rows of other interactions pointing at it.
func (s *SQLite) deleteInteractionTx(ctx context.Context, tx *sql.Tx, id model.InteractionID) error {
	stmts := []string{
		`DELETE FROM interaction_system_messages WHERE interaction_id = ?`,
		`DELETE FROM interaction_relevant_interactions WHERE interaction_id = ? OR related_interaction_id = ?`,
		`DELETE FROM interaction_recent_interactions WHERE interaction_id = ? OR related_interaction_id = ?`,
	}
	args := [][]any{
		{string(id)},
		{string(id), string(id)},
		{string(id), string(id)},
	}
	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, args[i]...); err != nil {
			return goerr.Wrap(err, "failed to delete interaction links", goerr.V("interaction_id", id))
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM interactions WHERE id = ?`, string(id)); err != nil {
		return goerr.Wrap(err, "failed to delete interaction", goerr.V("interaction_id", id))
	}
	return nil
}

// DeleteInteraction removes the interaction and every link row that depends
// on it.
func (s *SQLite) DeleteInteraction(ctx context.Context, id model.InteractionID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.deleteInteractionTx(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit interaction deletion", goerr.V("interaction_id", id))
	}
	return nil
}

// DeleteMessage removes the message, cascading to interactions that use it
// as user or response message and to system-message link rows.
func (s *SQLite) DeleteMessage(ctx context.Context, id model.MessageID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM interactions WHERE user_message_id = ? OR response_message_id = ?`,
		string(id), string(id))
	if err != nil {
		return goerr.Wrap(err, "failed to query dependent interactions", goerr.V("message_id", id))
	}
	var dependents []model.InteractionID
	for rows.Next() {
		var interactionID string
		if err := rows.Scan(&interactionID); err != nil {
			rows.Close()
			return goerr.Wrap(err, "failed to scan dependent interaction")
		}
		dependents = append(dependents, model.InteractionID(interactionID))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return goerr.Wrap(err, "failed to iterate dependent interactions")
	}
	rows.Close()

	for _, interactionID := range dependents {
		if err := s.deleteInteractionTx(ctx, tx, interactionID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM interaction_system_messages WHERE system_message_id = ?`, string(id)); err != nil {
		return goerr.Wrap(err, "failed to delete system message links", goerr.V("message_id", id))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, string(id)); err != nil {
		return goerr.Wrap(err, "failed to delete message", goerr.V("message_id", id))
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit message deletion", goerr.V("message_id", id))
	}
	return nil
}
