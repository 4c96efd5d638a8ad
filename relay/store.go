// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/hokipoki/hokipoki/lib/sqlitepool"
)

// Store persists task snapshots for durability across relay restarts.
// The hub loop remains the single source of truth for matching order
// at all times; Store only needs to reconstruct Task records well
// enough that in-flight tasks are not silently lost across a restart.
// A nil Store (the default) means the relay is purely in-memory, which
// matches the state-model note that reimplementers may choose to
// persist without the spec mandating exact durability semantics.
type Store interface {
	SaveTask(ctx context.Context, task *Task) error
	LoadTasks(ctx context.Context) ([]*Task, error)
	Close() error
}

// SQLiteStore is the optional --state-db-backed persistence mode. Task
// records round-trip through CBOR rather than a hand-maintained column
// schema: the task shape is still evolving and CBOR lets the schema
// grow without a migration for every new field, at the cost of losing
// SQL-level queryability over task contents — acceptable since nothing
// here needs to query by task field, only to reload the full set at
// startup.
type SQLiteStore struct {
	pool *sqlitepool.Pool
}

// OpenSQLiteStore opens (creating if necessary) a SQLite-backed task
// store at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: 1,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteTransient(conn, `
				CREATE TABLE IF NOT EXISTS tasks (
					id   TEXT PRIMARY KEY,
					blob BLOB NOT NULL
				)`, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("relay: opening state db: %w", err)
	}
	return &SQLiteStore{pool: pool}, nil
}

// taskRecord is the CBOR-serializable projection of Task. Unexported
// fields (declined) are intentionally dropped: a restart starts every
// reloaded task's decline set fresh, which only risks re-offering a
// task to a provider that already declined it once, not a correctness
// violation.
type taskRecord struct {
	ID                string
	RequesterID       string
	Tool              string
	Model             string
	Task              string
	Description       string
	EstimatedDuration int
	Credits           float64
	WorkspaceID       string
	State             TaskState
	ProviderID        string
}

func toRecord(t *Task) taskRecord {
	return taskRecord{
		ID: t.ID, RequesterID: t.RequesterID, Tool: t.Tool, Model: t.Model,
		Task: t.Task, Description: t.Description, EstimatedDuration: t.EstimatedDuration,
		Credits: t.Credits, WorkspaceID: t.WorkspaceID, State: t.State, ProviderID: t.ProviderID,
	}
}

func fromRecord(r taskRecord) *Task {
	return &Task{
		ID: r.ID, RequesterID: r.RequesterID, Tool: r.Tool, Model: r.Model,
		Task: r.Task, Description: r.Description, EstimatedDuration: r.EstimatedDuration,
		Credits: r.Credits, WorkspaceID: r.WorkspaceID, State: r.State, ProviderID: r.ProviderID,
	}
}

func (s *SQLiteStore) SaveTask(ctx context.Context, task *Task) error {
	blob, err := cbor.Marshal(toRecord(task))
	if err != nil {
		return fmt.Errorf("relay: encoding task snapshot: %w", err)
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return sqlitex.Execute(conn, `INSERT INTO tasks(id, blob) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET blob = excluded.blob`,
		&sqlitex.ExecOptions{Args: []any{task.ID, blob}})
}

func (s *SQLiteStore) LoadTasks(ctx context.Context) ([]*Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var tasks []*Task
	var decodeErr error
	err = sqlitex.Execute(conn, `SELECT blob FROM tasks`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			blob := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, blob)
			var record taskRecord
			if err := cbor.Unmarshal(blob, &record); err != nil {
				decodeErr = err
				return nil
			}
			tasks = append(tasks, fromRecord(record))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("relay: loading task snapshots: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("relay: decoding task snapshot: %w", decodeErr)
	}
	return tasks, nil
}

func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}
