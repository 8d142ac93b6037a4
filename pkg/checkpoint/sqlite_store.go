package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-go-golems/duet/pkg/state"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const sqliteCheckpointSchemaV1 = `
CREATE TABLE IF NOT EXISTS thread_checkpoints (
    thread_id TEXT PRIMARY KEY,
    payload_json TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 0,
    updated_at_ms INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore keeps one JSON snapshot per thread row.
//
// Unlike the in-memory store, nothing is cached: every Load hits the database,
// so several processes can share one file.
type SQLiteStore struct {
	mu     sync.RWMutex
	dsn    string
	db     *sql.DB
	closed bool
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite checkpoint store: empty dsn")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, unavailable("open", err)
	}

	s := &SQLiteStore{
		dsn: dsn,
		db:  db,
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, unavailable("migrate", err)
	}
	return s, nil
}

func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*state.ThreadState, error) {
	if err := checkThreadID(threadID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen("load"); err != nil {
		return nil, err
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM thread_checkpoints WHERE thread_id = ?`,
		threadID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return state.NewThreadState(threadID), nil
	}
	if err != nil {
		return nil, unavailable("load", err)
	}

	ts := &state.ThreadState{}
	if err := json.Unmarshal([]byte(payload), ts); err != nil {
		return nil, errors.Wrapf(err, "sqlite checkpoint store: decode thread %q", threadID)
	}
	if ts.ThreadID == "" {
		ts.ThreadID = threadID
	}
	if ts.ThreadID != threadID {
		return nil, errors.Errorf("sqlite checkpoint store: thread mismatch payload=%q row=%q", ts.ThreadID, threadID)
	}
	return snapshotFor(threadID, ts), nil
}

func (s *SQLiteStore) Save(ctx context.Context, threadID string, ts *state.ThreadState) error {
	if err := checkThreadID(threadID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen("save"); err != nil {
		return err
	}

	snapshot := snapshotFor(threadID, ts)
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO thread_checkpoints (thread_id, payload_json, version, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(thread_id) DO UPDATE SET payload_json = excluded.payload_json, version = excluded.version, updated_at_ms = excluded.updated_at_ms`,
		threadID,
		string(payload),
		snapshot.Version,
		time.Now().UnixMilli(),
	)
	return unavailable("save", err)
}

func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen("delete"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM thread_checkpoints WHERE thread_id = ?`, threadID)
	return unavailable("delete", err)
}

func (s *SQLiteStore) ListThreads(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen("list"); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT thread_id FROM thread_checkpoints ORDER BY thread_id ASC`)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("list", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return ids, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	if s.db == nil {
		return errors.New("sqlite checkpoint store: db is nil")
	}
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return err
	}
	if _, err := s.db.Exec(sqliteCheckpointSchemaV1); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) ensureOpen(op string) error {
	if s.closed {
		return unavailable(op, ErrStoreClosed)
	}
	if s.db == nil {
		return unavailable(op, errors.New("sqlite checkpoint store db is nil"))
	}
	return nil
}

// SQLiteDSNForFile builds a WAL-mode DSN with a busy timeout for a database file.
func SQLiteDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite checkpoint store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

var _ Store = (*SQLiteStore)(nil)
var _ Lister = (*SQLiteStore)(nil)
var _ Deleter = (*SQLiteStore)(nil)
