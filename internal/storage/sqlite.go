package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/manasgoel2002/DTW-ChatInterface/internal/schema"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite is a durable Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*SQLite, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "dtwchat.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(name string) (int, error) {
	idx := strings.Index(name, "_")
	if idx <= 0 {
		return 0, fmt.Errorf("malformed migration filename %q", name)
	}
	version, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 0, fmt.Errorf("malformed migration filename %q: %w", name, err)
	}
	return version, nil
}

func (s *SQLite) Load(key Key) (Conversation, error) {
	conv := NewConversation()

	var profileJSON, skippedJSON string
	err := s.db.QueryRow(
		"SELECT profile_json, skipped_json FROM conversations WHERE user_id = ? AND session_id = ?",
		key.UserID, key.SessionID,
	).Scan(&profileJSON, &skippedJSON)
	if err == sql.ErrNoRows {
		return conv, nil
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("loading conversation %s: %w", key, err)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(profileJSON), &raw); err != nil {
		return Conversation{}, fmt.Errorf("decoding profile for %s: %w", key, err)
	}
	// JSON round-trips turn ints into float64; re-coerce to canonical types.
	profile, err := schema.ValidateAndCoerce(raw)
	if err != nil {
		return Conversation{}, fmt.Errorf("validating stored profile for %s: %w", key, err)
	}
	conv.Profile = profile

	var skipped []string
	if err := json.Unmarshal([]byte(skippedJSON), &skipped); err != nil {
		return Conversation{}, fmt.Errorf("decoding skipped set for %s: %w", key, err)
	}
	for _, name := range skipped {
		conv.Skipped[name] = true
	}

	rows, err := s.db.Query(
		"SELECT role, content FROM messages WHERE user_id = ? AND session_id = ? ORDER BY seq",
		key.UserID, key.SessionID,
	)
	if err != nil {
		return Conversation{}, fmt.Errorf("loading history for %s: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return Conversation{}, fmt.Errorf("scanning message for %s: %w", key, err)
		}
		conv.History = append(conv.History, m)
	}
	if err := rows.Err(); err != nil {
		return Conversation{}, fmt.Errorf("iterating history for %s: %w", key, err)
	}

	return conv, nil
}

func (s *SQLite) Save(key Key, conv Conversation) error {
	profileJSON, err := json.Marshal(conv.Profile)
	if err != nil {
		return fmt.Errorf("encoding profile for %s: %w", key, err)
	}

	skipped := make([]string, 0, len(conv.Skipped))
	for name := range conv.Skipped {
		skipped = append(skipped, name)
	}
	sort.Strings(skipped)
	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return fmt.Errorf("encoding skipped set for %s: %w", key, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning save for %s: %w", key, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO conversations (user_id, session_id, profile_json, skipped_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			profile_json = excluded.profile_json,
			skipped_json = excluded.skipped_json,
			updated_at = CURRENT_TIMESTAMP`,
		key.UserID, key.SessionID, string(profileJSON), string(skippedJSON),
	); err != nil {
		return fmt.Errorf("upserting conversation %s: %w", key, err)
	}

	// History is append-only: insert only messages past the stored high water mark.
	var maxSeq sql.NullInt64
	if err := tx.QueryRow(
		"SELECT MAX(seq) FROM messages WHERE user_id = ? AND session_id = ?",
		key.UserID, key.SessionID,
	).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading history length for %s: %w", key, err)
	}
	next := 0
	if maxSeq.Valid {
		next = int(maxSeq.Int64) + 1
	}

	for i := next; i < len(conv.History); i++ {
		m := conv.History[i]
		if _, err := tx.Exec(
			"INSERT INTO messages (id, user_id, session_id, seq, role, content) VALUES (?, ?, ?, ?, ?, ?)",
			uuid.New().String(), key.UserID, key.SessionID, i, m.Role, m.Content,
		); err != nil {
			return fmt.Errorf("appending message %d for %s: %w", i, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save for %s: %w", key, err)
	}
	return nil
}
