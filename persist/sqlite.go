package persist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/siteassist/gateway/core/protocol"
)

// SQLiteRecorder persists transcripts and leads in a local SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the schema
// exists. The parent directory is created if missing.
func NewSQLite(path string) (*SQLiteRecorder, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db at %s: %w", path, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteRecorder{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tokens INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);

		CREATE TABLE IF NOT EXISTS leads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT,
			name TEXT,
			email TEXT,
			phone TEXT,
			message TEXT,
			page_url TEXT,
			consent INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email);
	`)
	return err
}

// SaveMessage implements Recorder.
func (r *SQLiteRecorder) SaveMessage(ctx context.Context, conversationID string, role protocol.Role, content string, tokens int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, tokens) VALUES (?, ?, ?, ?)`,
		conversationID, string(role), content, tokens,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// SaveLead implements Recorder.
func (r *SQLiteRecorder) SaveLead(ctx context.Context, lead Lead) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO leads (conversation_id, name, email, phone, message, page_url, consent) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lead.ConversationID, lead.Name, lead.Email, lead.Phone, lead.Message, lead.PageURL, lead.Consent,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// Messages returns a conversation's recorded messages, oldest first. Used by
// transcript export and tests.
func (r *SQLiteRecorder) Messages(ctx context.Context, conversationID string) ([]RecordedMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role, content, tokens FROM messages WHERE conversation_id = ? ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []RecordedMessage
	for rows.Next() {
		var m RecordedMessage
		var role string
		if err := rows.Scan(&role, &m.Content, &m.Tokens); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = protocol.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordedMessage is one persisted transcript entry.
type RecordedMessage struct {
	Role    protocol.Role
	Content string
	Tokens  int
}

// Close implements Recorder.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

var _ Recorder = (*SQLiteRecorder)(nil)
