package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"
)

const defaultPollInterval = 500 * time.Millisecond

// PostgresStore keeps documents in a single table keyed by path, with a
// version column driving conditional writes. See the documents migration.
type PostgresStore struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewPostgresStore creates a Store backed by the documents table.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, pollInterval: defaultPollInterval}
}

func (p *PostgresStore) Read(ctx context.Context, path string) (*Snapshot, error) {
	query := `SELECT doc, version FROM documents WHERE path = $1`

	var raw []byte
	var version int64
	err := p.db.QueryRowContext(ctx, query, path).Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &ProviderError{Op: "read", Path: path, Err: err}
	}
	return &Snapshot{Value: raw, Version: version}, nil
}

func (p *PostgresStore) Write(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &ProviderError{Op: "write", Path: path, Err: err}
	}

	query := `
		INSERT INTO documents (path, doc, version, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (path) DO UPDATE
		SET doc = EXCLUDED.doc, version = documents.version + 1, updated_at = now()
	`
	if _, err := p.db.ExecContext(ctx, query, path, raw); err != nil {
		return &ProviderError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func (p *PostgresStore) WriteIf(ctx context.Context, path string, value interface{}, version int64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &ProviderError{Op: "writeIf", Path: path, Err: err}
	}

	var result sql.Result
	if version == 0 {
		query := `
			INSERT INTO documents (path, doc, version, updated_at)
			VALUES ($1, $2, 1, now())
			ON CONFLICT (path) DO NOTHING
		`
		result, err = p.db.ExecContext(ctx, query, path, raw)
	} else {
		query := `
			UPDATE documents
			SET doc = $2, version = version + 1, updated_at = now()
			WHERE path = $1 AND version = $3
		`
		result, err = p.db.ExecContext(ctx, query, path, raw, version)
	}
	if err != nil {
		return &ProviderError{Op: "writeIf", Path: path, Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &ProviderError{Op: "writeIf", Path: path, Err: err}
	}
	if rowsAffected == 0 {
		return ErrVersionMismatch
	}
	return nil
}

func (p *PostgresStore) Update(ctx context.Context, values map[string]interface{}) error {
	var succeeded, failed []string
	var firstErr error
	for path, value := range values {
		if err := p.Write(ctx, path, value); err != nil {
			failed = append(failed, path)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded = append(succeeded, path)
	}
	if firstErr == nil {
		return nil
	}
	if len(succeeded) == 0 {
		return firstErr
	}
	return &PartialWriteError{Succeeded: succeeded, Failed: failed, Err: firstErr}
}

func (p *PostgresStore) Delete(ctx context.Context, path string) error {
	query := `DELETE FROM documents WHERE path = $1`

	if _, err := p.db.ExecContext(ctx, query, path); err != nil {
		return &ProviderError{Op: "delete", Path: path, Err: err}
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, prefix string) (map[string]json.RawMessage, error) {
	query := `SELECT path, doc FROM documents WHERE path LIKE $1 || '%'`

	rows, err := p.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, &ProviderError{Op: "list", Path: prefix, Err: err}
	}
	defer rows.Close()

	result := make(map[string]json.RawMessage)
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, &ProviderError{Op: "list", Path: prefix, Err: err}
		}
		result[path] = raw
	}
	if err := rows.Err(); err != nil {
		return nil, &ProviderError{Op: "list", Path: prefix, Err: err}
	}
	return result, nil
}

// Watch polls the documents table for version changes under prefix. The
// table has no push channel, so watchers see changes with up to one poll
// interval of delay.
func (p *PostgresStore) Watch(ctx context.Context, prefix string, fn func(Event)) (func(), error) {
	known, err := p.versions(ctx, prefix)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() { once.Do(cancel) }

	go func() {
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
			}

			current, err := p.versions(watchCtx, prefix)
			if err != nil {
				continue
			}

			for path, entry := range current {
				if prev, ok := known[path]; !ok || prev.version != entry.version {
					fn(Event{Path: path, Value: entry.raw})
				}
			}
			for path := range known {
				if _, ok := current[path]; !ok {
					fn(Event{Path: path, Deleted: true})
				}
			}
			known = current
		}
	}()

	return stop, nil
}

type versionedDoc struct {
	raw     json.RawMessage
	version int64
}

func (p *PostgresStore) versions(ctx context.Context, prefix string) (map[string]versionedDoc, error) {
	query := `SELECT path, doc, version FROM documents WHERE path LIKE $1 || '%'`

	rows, err := p.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, &ProviderError{Op: "watch", Path: prefix, Err: err}
	}
	defer rows.Close()

	result := make(map[string]versionedDoc)
	for rows.Next() {
		var path string
		var raw []byte
		var version int64
		if err := rows.Scan(&path, &raw, &version); err != nil {
			return nil, &ProviderError{Op: "watch", Path: prefix, Err: err}
		}
		result[path] = versionedDoc{raw: raw, version: version}
	}
	if err := rows.Err(); err != nil {
		return nil, &ProviderError{Op: "watch", Path: prefix, Err: err}
	}
	return result, nil
}
