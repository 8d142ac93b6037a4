package registry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// The table layout matches registry files written by earlier tooling, so existing files open unchanged.
const sqliteRegistrySchemaV1 = `
CREATE TABLE IF NOT EXISTS config (
    provider TEXT NOT NULL PRIMARY KEY,
    api TEXT NOT NULL,
    api_env_name TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS models (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    provider TEXT,
    display_name TEXT,
    model_name TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS personality (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    personality_name TEXT NOT NULL UNIQUE,
    personality_description TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteRegistry is a Store backed by a sqlite database file.
type SQLiteRegistry struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

var _ Store = (*SQLiteRegistry)(nil)

func NewSQLiteRegistry(dsn string) (*SQLiteRegistry, error) {
	if dsn == "" {
		return nil, errors.New("sqlite registry: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite registry: open")
	}
	r := &SQLiteRegistry{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite registry: migrate")
	}
	return r, nil
}

// NewSQLiteRegistryFromFile opens (and creates if needed) the registry stored at path.
func NewSQLiteRegistryFromFile(path string) (*SQLiteRegistry, error) {
	if path == "" {
		return nil, errors.New("sqlite registry: empty path")
	}
	return NewSQLiteRegistry(fmt.Sprintf("file:%s?_busy_timeout=5000", path))
}

func (r *SQLiteRegistry) migrate() error {
	_, err := r.db.Exec(sqliteRegistrySchemaV1)
	return err
}

func (r *SQLiteRegistry) ensureOpen() error {
	if r.closed || r.db == nil {
		return ErrClosed
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func (r *SQLiteRegistry) queryOptionalString(ctx context.Context, query string, args ...interface{}) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return "", false, err
	}
	var v sql.NullString
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "sqlite registry: query")
	}
	return v.String, true, nil
}

func (r *SQLiteRegistry) GetModelDisplayName(ctx context.Context, provider string, model string) (string, bool, error) {
	return r.queryOptionalString(ctx,
		`SELECT display_name FROM models WHERE provider = ? AND model_name = ? ORDER BY id ASC LIMIT 1`,
		provider, model)
}

func (r *SQLiteRegistry) GetPersonalityDescription(ctx context.Context, name string) (string, bool, error) {
	return r.queryOptionalString(ctx,
		`SELECT personality_description FROM personality WHERE personality_name = ?`, name)
}

func (r *SQLiteRegistry) GetAPIKey(ctx context.Context, provider string) (string, bool, error) {
	return r.queryOptionalString(ctx, `SELECT api FROM config WHERE provider = ?`, provider)
}

func (r *SQLiteRegistry) GetAPIEnvName(ctx context.Context, provider string) (string, bool, error) {
	return r.queryOptionalString(ctx, `SELECT api_env_name FROM config WHERE provider = ?`, provider)
}

func (r *SQLiteRegistry) RegisterModel(ctx context.Context, model ModelEntry) error {
	if err := validateModel(model); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite registry: begin")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM models WHERE provider = ? AND model_name = ?`,
		model.Provider, model.ModelName,
	).Scan(&n); err != nil {
		return errors.Wrap(err, "sqlite registry: check model")
	}
	if n > 0 {
		return &AlreadyExistsError{Kind: "model", Name: model.Provider + "/" + model.ModelName}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO models (provider, display_name, model_name) VALUES (?, ?, ?)`,
		model.Provider, model.DisplayName, model.ModelName,
	); err != nil {
		return errors.Wrap(err, "sqlite registry: insert model")
	}
	return errors.Wrap(tx.Commit(), "sqlite registry: commit")
}

func (r *SQLiteRegistry) RegisterConfig(ctx context.Context, config ProviderConfig) error {
	if err := validateConfig(config); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO config (provider, api, api_env_name) VALUES (?, ?, ?)`,
		config.Provider, config.APIKey, config.APIEnvName,
	)
	if isConstraintError(err) {
		return &AlreadyExistsError{Kind: "config", Name: config.Provider}
	}
	return errors.Wrap(err, "sqlite registry: insert config")
}

func (r *SQLiteRegistry) RegisterPersonality(ctx context.Context, personality Personality) error {
	if err := validatePersonality(personality); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO personality (personality_name, personality_description) VALUES (?, ?)`,
		personality.Name, personality.Description,
	)
	if isConstraintError(err) {
		return &AlreadyExistsError{Kind: "personality", Name: personality.Name}
	}
	return errors.Wrap(err, "sqlite registry: insert personality")
}

// execAffecting runs a statement and maps zero affected rows to a NotFoundError.
func (r *SQLiteRegistry) execAffecting(ctx context.Context, nf *NotFoundError, query string, args ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "sqlite registry: %s %s", nf.Kind, nf.Name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "sqlite registry: rows affected")
	}
	if n == 0 {
		return nf
	}
	return nil
}

func (r *SQLiteRegistry) EditPersonality(ctx context.Context, name string, description string) error {
	if err := validatePersonality(Personality{Name: name, Description: description}); err != nil {
		return err
	}
	return r.execAffecting(ctx, &NotFoundError{Kind: "personality", Name: name},
		`UPDATE personality SET personality_description = ? WHERE personality_name = ?`,
		description, name)
}

func (r *SQLiteRegistry) DeletePersonality(ctx context.Context, name string) error {
	return r.execAffecting(ctx, &NotFoundError{Kind: "personality", Name: name},
		`DELETE FROM personality WHERE personality_name = ?`, name)
}

func (r *SQLiteRegistry) DeleteModel(ctx context.Context, provider string, model string) error {
	return r.execAffecting(ctx, &NotFoundError{Kind: "model", Name: provider + "/" + model},
		`DELETE FROM models WHERE provider = ? AND model_name = ?`, provider, model)
}

func (r *SQLiteRegistry) DeleteConfig(ctx context.Context, provider string) error {
	return r.execAffecting(ctx, &NotFoundError{Kind: "config", Name: provider},
		`DELETE FROM config WHERE provider = ?`, provider)
}

func (r *SQLiteRegistry) ListProviders(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT provider FROM config
UNION
SELECT DISTINCT provider FROM models WHERE provider IS NOT NULL
ORDER BY provider ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite registry: list providers")
	}
	defer func() {
		_ = rows.Close()
	}()

	ret := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errors.Wrap(err, "sqlite registry: scan provider")
		}
		ret = append(ret, p)
	}
	return ret, rows.Err()
}

func (r *SQLiteRegistry) ListModels(ctx context.Context, provider string) ([]ModelEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT COALESCE(provider, ''), COALESCE(display_name, ''), model_name FROM models
WHERE ? = '' OR provider = ?
ORDER BY provider ASC, model_name ASC`, provider, provider)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite registry: list models")
	}
	defer func() {
		_ = rows.Close()
	}()

	ret := []ModelEntry{}
	for rows.Next() {
		var m ModelEntry
		if err := rows.Scan(&m.Provider, &m.DisplayName, &m.ModelName); err != nil {
			return nil, errors.Wrap(err, "sqlite registry: scan model")
		}
		ret = append(ret, m)
	}
	return ret, rows.Err()
}

func (r *SQLiteRegistry) ListConfigs(ctx context.Context) ([]ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT provider, api, api_env_name FROM config ORDER BY provider ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite registry: list configs")
	}
	defer func() {
		_ = rows.Close()
	}()

	ret := []ProviderConfig{}
	for rows.Next() {
		var c ProviderConfig
		if err := rows.Scan(&c.Provider, &c.APIKey, &c.APIEnvName); err != nil {
			return nil, errors.Wrap(err, "sqlite registry: scan config")
		}
		ret = append(ret, c)
	}
	return ret, rows.Err()
}

func (r *SQLiteRegistry) ListPersonalities(ctx context.Context) ([]Personality, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT personality_name, personality_description FROM personality ORDER BY personality_name ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite registry: list personalities")
	}
	defer func() {
		_ = rows.Close()
	}()

	ret := []Personality{}
	for rows.Next() {
		var p Personality
		if err := rows.Scan(&p.Name, &p.Description); err != nil {
			return nil, errors.Wrap(err, "sqlite registry: scan personality")
		}
		ret = append(ret, p)
	}
	return ret, rows.Err()
}

func (r *SQLiteRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
