// Package store persists the interaction log: everything the session
// hears, confirms, runs, and says.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// Kind labels an interaction row.
type Kind string

const (
	// KindUtterance records recognized speech.
	KindUtterance Kind = "utterance"

	// KindCommand records a confirmed instruction being executed.
	KindCommand Kind = "command"

	// KindResult records a command's outcome summary.
	KindResult Kind = "result"

	// KindChatUser records a user chat turn.
	KindChatUser Kind = "chat_user"

	// KindChatReply records an assistant chat reply.
	KindChatReply Kind = "chat_reply"

	// KindSpoken records text sent to the speaker.
	KindSpoken Kind = "spoken"
)

// Interaction is one row of the log.
type Interaction struct {
	ID        int64
	SessionID string
	Kind      Kind
	Text      string
	CreatedAt time.Time
}

// Store is the SQLite-backed interaction log.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the interaction database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open interaction store: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize interaction schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_created_at ON interactions(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one interaction row.
func (s *Store) Record(sessionID string, kind Kind, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO interactions (session_id, kind, text)
		VALUES (?, ?, ?)
	`, sessionID, string(kind), text)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// Recent returns the n most recent interactions, newest first.
func (s *Store) Recent(n int) ([]Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, session_id, kind, text, created_at
		FROM interactions
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var it Interaction
		var kind string
		if err := rows.Scan(&it.ID, &it.SessionID, &kind, &it.Text, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		it.Kind = Kind(kind)
		out = append(out, it)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
