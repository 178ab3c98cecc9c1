package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/shadowchat/internal/store"
)

// Schema creates every table used by the client state and the dev backend.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id            TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	room_id       TEXT NOT NULL,
	sender_id     TEXT NOT NULL,
	body          TEXT NOT NULL,
	kind          TEXT NOT NULL,
	reply_sender  TEXT,
	reply_message TEXT,
	timestamp     TEXT NOT NULL DEFAULT '',
	caption       TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS reactions (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL,
	room_id    TEXT NOT NULL,
	emoji_id   TEXT NOT NULL,
	reactor_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS captions (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id TEXT NOT NULL,
	image   TEXT NOT NULL,
	caption TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, seq);
CREATE INDEX IF NOT EXISTS idx_reactions_room ON reactions(room_id, seq);
CREATE INDEX IF NOT EXISTS idx_captions_room ON captions(room_id, seq);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// ApplySchema creates the tables if they do not exist yet.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// New opens the SQLite database at dbPath and applies the schema.
// Use ":memory:" for a throwaway store.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to seed data on top of the schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps ":memory:" databases alive across queries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== StateStore implementation ====

// Get returns the value stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("key %q: %w", key, store.ErrNotFound)
		}
		return "", fmt.Errorf("query key %q: %w", key, err)
	}
	return value, nil
}

// Set inserts or replaces the value stored under key.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set key %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete key %q: %w", key, err)
	}
	return nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, id, passwordHash string) (*store.Room, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, password_hash, created_at) VALUES (?, ?, ?)`,
		id, passwordHash, now,
	)
	if err != nil {
		if isConstraint(err) {
			return nil, fmt.Errorf("room %q: %w", id, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return &store.Room{ID: id, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// GetRoom retrieves a room by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	var room store.Room
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash, created_at FROM rooms WHERE id = ?`, id,
	).Scan(&room.ID, &room.PasswordHash, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %q: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return &room, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	var replySender, replyMessage sql.NullString
	if msg.HasReply {
		replySender = sql.NullString{String: msg.ReplySender, Valid: true}
		replyMessage = sql.NullString{String: msg.ReplyMessage, Valid: true}
	}

	query := `
		INSERT INTO messages (id, room_id, sender_id, body, kind, reply_sender, reply_message, timestamp, caption, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.RoomID, msg.SenderID, msg.Body, msg.Kind,
		replySender, replyMessage, msg.Timestamp, msg.Caption, msg.CreatedAt,
	)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("message %q: %w", msg.ID, store.ErrConflict)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

const messageColumns = `id, room_id, sender_id, body, kind, reply_sender, reply_message, timestamp, caption, created_at`

// ListMessages returns the most recent messages of a room, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT ` + messageColumns + ` FROM (
			SELECT seq, ` + messageColumns + ` FROM messages
			WHERE room_id = ?
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// GetMessage retrieves one message of a room.
func (s *SQLiteStore) GetMessage(ctx context.Context, roomID, id string) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE room_id = ? AND id = ?`, roomID, id,
	)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %q: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	return msg, nil
}

// DeleteMessage removes one message of a room.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, roomID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE room_id = ? AND id = ?`, roomID, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %q: %w", id, store.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*store.Message, error) {
	var (
		msg                       store.Message
		replySender, replyMessage sql.NullString
	)
	err := row.Scan(
		&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Body, &msg.Kind,
		&replySender, &replyMessage, &msg.Timestamp, &msg.Caption, &msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if replySender.Valid || replyMessage.Valid {
		msg.HasReply = true
		msg.ReplySender = replySender.String
		msg.ReplyMessage = replyMessage.String
	}
	return &msg, nil
}

// ==== ReactionStore implementation ====

// AddReaction appends an entry to the reaction log.
func (s *SQLiteStore) AddReaction(ctx context.Context, r *store.Reaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reactions (message_id, room_id, emoji_id, reactor_id) VALUES (?, ?, ?, ?)`,
		r.MessageID, r.RoomID, r.EmojiID, r.ReactorID,
	)
	if err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}

// ListReactions returns a room's reaction log in insertion order.
func (s *SQLiteStore) ListReactions(ctx context.Context, roomID string) ([]*store.Reaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, room_id, emoji_id, reactor_id FROM reactions WHERE room_id = ? ORDER BY seq ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	reactions := make([]*store.Reaction, 0)
	for rows.Next() {
		var r store.Reaction
		if err := rows.Scan(&r.MessageID, &r.RoomID, &r.EmojiID, &r.ReactorID); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return reactions, nil
}

// ==== CaptionStore implementation ====

// SaveCaption records the caption of an uploaded image.
func (s *SQLiteStore) SaveCaption(ctx context.Context, c *store.Caption) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO captions (room_id, image, caption) VALUES (?, ?, ?)`,
		c.RoomID, c.Image, c.Caption,
	)
	if err != nil {
		return fmt.Errorf("insert caption: %w", err)
	}
	return nil
}

// ListCaptions returns a room's captions in insertion order.
func (s *SQLiteStore) ListCaptions(ctx context.Context, roomID string) ([]*store.Caption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, image, caption FROM captions WHERE room_id = ? ORDER BY seq ASC`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("query captions: %w", err)
	}
	defer rows.Close()

	captions := make([]*store.Caption, 0)
	for rows.Next() {
		var c store.Caption
		if err := rows.Scan(&c.RoomID, &c.Image, &c.Caption); err != nil {
			return nil, fmt.Errorf("scan caption: %w", err)
		}
		captions = append(captions, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate captions: %w", err)
	}
	return captions, nil
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
