// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/corevault-io/core/internal/logger"
)

// sqlPlaceholders is the query builder used by SQLiteFacade. SQLite uses
// positional "?" placeholders rather than the PostgreSQL "$N" style the
// teacher's server-side query builder uses, but the same squirrel library
// builds both (internal/store/sql_queries.go).
var sqlPlaceholders = sq.StatementBuilder.PlaceholderFormat(sq.Question)

const (
	createKVTable = `
		CREATE TABLE IF NOT EXISTS storage_kv (
			namespace TEXT NOT NULL,
			domain    TEXT NOT NULL,
			key       TEXT NOT NULL,
			value     BLOB,
			PRIMARY KEY (namespace, domain, key)
		);`

	createPayloadTable = `
		CREATE TABLE IF NOT EXISTS storage_payloads (
			namespace TEXT NOT NULL,
			uuid      TEXT NOT NULL,
			content   BLOB,
			deleted   BOOLEAN NOT NULL DEFAULT 0,
			PRIMARY KEY (namespace, uuid)
		);`

	createNamespaceTable = `
		CREATE TABLE IF NOT EXISTS storage_namespaces (
			namespace   TEXT PRIMARY KEY,
			persistence INTEGER NOT NULL,
			encryption  INTEGER NOT NULL,
			launched    BOOLEAN NOT NULL DEFAULT 0
		);`
)

type namespaceState struct {
	persistence StoragePersistencePolicy
	encryption  StorageEncryptionPolicy
	launched    bool
}

// SQLiteFacade is the concrete Facade backed by SQLite (via
// github.com/mattn/go-sqlite3) with queries built through
// github.com/Masterminds/squirrel, mirroring the teacher's
// internal/store/sql_sqlite.go connection pattern (file-creation-if-missing
// plus a ping check) and internal/store/sql_queries.go query-building
// style, repointed at the client's own on-disk layout (spec §6
// "On-disk layout").
type SQLiteFacade struct {
	db  *sql.DB
	log *logger.Logger

	mu         sync.RWMutex
	namespaces map[string]*namespaceState
}

// NewSQLiteFacade opens (creating if necessary) the SQLite file at dsn and
// returns a ready-to-launch Facade.
func NewSQLiteFacade(ctx context.Context, dsn string, log *logger.Logger) (*SQLiteFacade, error) {
	if err := createLocalDBFileIfNotExists(dsn); err != nil {
		log.Err(err).Str("func", "NewSQLiteFacade").Msg("error creating database file")
		return nil, fmt.Errorf("storage: error creating database file: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.Err(err).Str("func", "NewSQLiteFacade").Msg("error opening connection to DB")
		return nil, fmt.Errorf("storage: error opening connection: %w", err)
	}

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewSQLiteFacade").Msg("error connecting database (ping)")
		return nil, fmt.Errorf("storage: ping failed: %w", err)
	}

	for _, ddl := range []string{createKVTable, createPayloadTable, createNamespaceTable} {
		if _, err = conn.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("storage: migrate: %w", err)
		}
	}

	log.Debug().Str("func", "NewSQLiteFacade").Msg("connected to storage database successfully")

	return &SQLiteFacade{
		db:         conn,
		log:        log,
		namespaces: make(map[string]*namespaceState),
	}, nil
}

func createLocalDBFileIfNotExists(dbFile string) error {
	if dbFile == "" || dbFile == ":memory:" {
		return nil
	}
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		f.Close()
	}
	return nil
}

// Launch implements Facade.
func (f *SQLiteFacade) Launch(namespace string, persistence StoragePersistencePolicy, encryption StorageEncryptionPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.namespaces[namespace] = &namespaceState{
		persistence: persistence,
		encryption:  encryption,
		launched:    true,
	}

	query, args, err := sqlPlaceholders.
		Insert("storage_namespaces").
		Columns("namespace", "persistence", "encryption", "launched").
		Values(namespace, int(persistence), int(encryption), true).
		Suffix("ON CONFLICT(namespace) DO UPDATE SET persistence = excluded.persistence, encryption = excluded.encryption, launched = excluded.launched").
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build launch query: %w", err)
	}
	if _, err = f.db.Exec(query, args...); err != nil {
		return fmt.Errorf("storage: launch: %w", err)
	}

	if persistence == PersistenceEphemeral {
		return f.ClearNamespace(namespace)
	}
	return nil
}

func (f *SQLiteFacade) stateFor(namespace string) (*namespaceState, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st, ok := f.namespaces[namespace]
	if !ok || !st.launched {
		return nil, ErrNotLaunched
	}
	return st, nil
}

// SetValue implements Facade.
func (f *SQLiteFacade) SetValue(namespace string, domain Domain, key string, value []byte) error {
	st, err := f.stateFor(namespace)
	if err != nil {
		return err
	}
	if st.persistence == PersistenceEphemeral {
		return nil
	}

	query, args, err := sqlPlaceholders.
		Insert("storage_kv").
		Columns("namespace", "domain", "key", "value").
		Values(namespace, string(domain), key, value).
		Suffix("ON CONFLICT(namespace, domain, key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build set query: %w", err)
	}
	if _, err = f.db.Exec(query, args...); err != nil {
		return fmt.Errorf("storage: set value: %w", err)
	}
	return nil
}

// GetValue implements Facade.
func (f *SQLiteFacade) GetValue(namespace string, domain Domain, key string) ([]byte, bool, error) {
	if _, err := f.stateFor(namespace); err != nil {
		return nil, false, err
	}

	query, args, err := sqlPlaceholders.
		Select("value").
		From("storage_kv").
		Where(sq.Eq{"namespace": namespace, "domain": string(domain), "key": key}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("storage: build get query: %w", err)
	}

	var value []byte
	err = f.db.QueryRow(query, args...).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: get value: %w", err)
	}
	return value, true, nil
}

// DeleteValue implements Facade.
func (f *SQLiteFacade) DeleteValue(namespace string, domain Domain, key string) error {
	if _, err := f.stateFor(namespace); err != nil {
		return err
	}

	query, args, err := sqlPlaceholders.
		Delete("storage_kv").
		Where(sq.Eq{"namespace": namespace, "domain": string(domain), "key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build delete query: %w", err)
	}
	if _, err = f.db.Exec(query, args...); err != nil {
		return fmt.Errorf("storage: delete value: %w", err)
	}
	return nil
}

// SavePayload implements Facade.
func (f *SQLiteFacade) SavePayload(namespace, uuid string, content []byte, deleted bool) error {
	st, err := f.stateFor(namespace)
	if err != nil {
		return err
	}
	if st.persistence == PersistenceEphemeral {
		return nil
	}

	query, args, err := sqlPlaceholders.
		Insert("storage_payloads").
		Columns("namespace", "uuid", "content", "deleted").
		Values(namespace, uuid, content, deleted).
		Suffix("ON CONFLICT(namespace, uuid) DO UPDATE SET content = excluded.content, deleted = excluded.deleted").
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build save payload query: %w", err)
	}
	if _, err = f.db.Exec(query, args...); err != nil {
		return fmt.Errorf("storage: save payload: %w", err)
	}
	return nil
}

// AllPayloads implements Facade.
func (f *SQLiteFacade) AllPayloads(namespace string) (map[string][]byte, error) {
	if _, err := f.stateFor(namespace); err != nil {
		return nil, err
	}

	query, args, err := sqlPlaceholders.
		Select("uuid", "content").
		From("storage_payloads").
		Where(sq.Eq{"namespace": namespace}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("storage: build all payloads query: %w", err)
	}

	rows, err := f.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: all payloads: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var uuid string
		var content []byte
		if err = rows.Scan(&uuid, &content); err != nil {
			return nil, fmt.Errorf("storage: scan payload row: %w", err)
		}
		out[uuid] = content
	}
	return out, rows.Err()
}

// DeletePayload implements Facade.
func (f *SQLiteFacade) DeletePayload(namespace, uuid string) error {
	if _, err := f.stateFor(namespace); err != nil {
		return err
	}

	query, args, err := sqlPlaceholders.
		Delete("storage_payloads").
		Where(sq.Eq{"namespace": namespace, "uuid": uuid}).
		ToSql()
	if err != nil {
		return fmt.Errorf("storage: build delete payload query: %w", err)
	}
	if _, err = f.db.Exec(query, args...); err != nil {
		return fmt.Errorf("storage: delete payload: %w", err)
	}
	return nil
}

// ClearNamespace implements Facade.
func (f *SQLiteFacade) ClearNamespace(namespace string) error {
	for _, table := range []string{"storage_kv", "storage_payloads"} {
		query, args, err := sqlPlaceholders.Delete(table).Where(sq.Eq{"namespace": namespace}).ToSql()
		if err != nil {
			return fmt.Errorf("storage: build clear query: %w", err)
		}
		if _, err = f.db.Exec(query, args...); err != nil {
			return fmt.Errorf("storage: clear namespace (%s): %w", table, err)
		}
	}
	return nil
}

// Close implements Facade.
func (f *SQLiteFacade) Close() error {
	return f.db.Close()
}
