package entries

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/daybookhq/daybook/internal/assemble"
)

// Record is one locally-persisted journal entry.
type Record struct {
	ID          string
	RemoteID    string
	Title       string
	Description string
	Workspace   string
	Tools       []string
	Activities  int
	CreatedAt   time.Time
	Entry       *assemble.Entry
}

// RunRecord is the audit trail of one wizard run.
type RunRecord struct {
	SessionID   string
	StartedAt   time.Time
	CompletedAt time.Time
	Tools       []string
	Fetched     int
	Selected    int
	Status      string // completed, closed, failed
}

// Store persists created entries and wizard run audit records in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the local history database.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		remote_id   TEXT,
		title       TEXT NOT NULL,
		description TEXT,
		workspace   TEXT,
		tools       TEXT,
		activities  INTEGER NOT NULL DEFAULT 0,
		created_at  TIMESTAMP NOT NULL,
		entry_json  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at);

	CREATE TABLE IF NOT EXISTS runs (
		session_id   TEXT PRIMARY KEY,
		started_at   TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		tools        TEXT,
		fetched      INTEGER NOT NULL DEFAULT 0,
		selected     INTEGER NOT NULL DEFAULT 0,
		status       TEXT NOT NULL DEFAULT 'open'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveEntry records a created entry in local history.
func (s *Store) SaveEntry(rec Record) error {
	var entryJSON []byte
	if rec.Entry != nil {
		var err error
		entryJSON, err = json.Marshal(rec.Entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO entries (remote_id, title, description, workspace, tools, activities, created_at, entry_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RemoteID, rec.Title, rec.Description, rec.Workspace,
		strings.Join(rec.Tools, ","), rec.Activities, createdAt, string(entryJSON),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// RecentEntries returns the last n entries, newest first.
func (s *Store) RecentEntries(n int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT remote_id, title, description, workspace, tools, activities, created_at, entry_json
		 FROM entries ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var tools, entryJSON sql.NullString
		var remoteID, description, workspace sql.NullString
		if err := rows.Scan(&remoteID, &rec.Title, &description, &workspace, &tools, &rec.Activities, &rec.CreatedAt, &entryJSON); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		rec.RemoteID = remoteID.String
		rec.Description = description.String
		rec.Workspace = workspace.String
		if tools.String != "" {
			rec.Tools = strings.Split(tools.String, ",")
		}
		if entryJSON.String != "" {
			var entry assemble.Entry
			if err := json.Unmarshal([]byte(entryJSON.String), &entry); err == nil {
				rec.Entry = &entry
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StartRun records the beginning of a wizard run.
func (s *Store) StartRun(sessionID string, tools []string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs (session_id, started_at, tools, status) VALUES (?, ?, ?, 'open')`,
		sessionID, time.Now().UTC(), strings.Join(tools, ","))
	return err
}

// FinishRun closes out a run's audit record.
func (s *Store) FinishRun(sessionID, status string, fetched, selected int) error {
	_, err := s.db.Exec(
		`UPDATE runs SET completed_at = ?, status = ?, fetched = ?, selected = ? WHERE session_id = ?`,
		time.Now().UTC(), status, fetched, selected, sessionID)
	return err
}

// RecentRuns returns the last n runs, newest first.
func (s *Store) RecentRuns(n int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id, started_at, completed_at, tools, fetched, selected, status
		 FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var completed sql.NullTime
		var tools sql.NullString
		if err := rows.Scan(&rec.SessionID, &rec.StartedAt, &completed, &tools, &rec.Fetched, &rec.Selected, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.CompletedAt = completed.Time
		if tools.String != "" {
			rec.Tools = strings.Split(tools.String, ",")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
