// Package postgres provides a PostgreSQL-backed implementation of
// history.Store.
//
// Two tables are used: chat_histories holds one row per conversation,
// chat_messages its time-ordered messages. [New] runs the idempotent
// migration on startup.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lunavoice/lunavoice/internal/history"
)

const ddl = `
CREATE TABLE IF NOT EXISTS chat_histories (
    conf_uid    TEXT         NOT NULL,
    history_uid TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (conf_uid, history_uid)
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id          BIGSERIAL    PRIMARY KEY,
    conf_uid    TEXT         NOT NULL,
    history_uid TEXT         NOT NULL,
    role        TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    name        TEXT         NOT NULL DEFAULT '',
    avatar      TEXT         NOT NULL DEFAULT '',
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    FOREIGN KEY (conf_uid, history_uid)
        REFERENCES chat_histories (conf_uid, history_uid)
        ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_history
    ON chat_messages (conf_uid, history_uid, timestamp);
`

// Store is the PostgreSQL chat history store.
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn, verifies the connection and runs the
// schema migration.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history postgres: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// NewHistory implements history.Store.
func (s *Store) NewHistory(ctx context.Context, confUID string) (string, error) {
	uid := uuid.NewString()
	const q = `INSERT INTO chat_histories (conf_uid, history_uid) VALUES ($1, $2)`
	if _, err := s.pool.Exec(ctx, q, confUID, uid); err != nil {
		return "", fmt.Errorf("history postgres: new history: %w", err)
	}
	return uid, nil
}

// Append implements history.Store.
func (s *Store) Append(ctx context.Context, confUID, historyUID string, msg history.Message) error {
	const q = `
		INSERT INTO chat_messages (conf_uid, history_uid, role, content, name, avatar, timestamp)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE EXISTS (
		    SELECT 1 FROM chat_histories WHERE conf_uid = $1 AND history_uid = $2
		)`

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	tag, err := s.pool.Exec(ctx, q,
		confUID, historyUID, msg.Role, msg.Content, msg.Name, msg.Avatar, ts)
	if err != nil {
		return fmt.Errorf("history postgres: append: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return history.ErrNotFound
	}
	return nil
}

// Messages implements history.Store.
func (s *Store) Messages(ctx context.Context, confUID, historyUID string) ([]history.Message, error) {
	const exists = `SELECT EXISTS (SELECT 1 FROM chat_histories WHERE conf_uid = $1 AND history_uid = $2)`
	var ok bool
	if err := s.pool.QueryRow(ctx, exists, confUID, historyUID).Scan(&ok); err != nil {
		return nil, fmt.Errorf("history postgres: check history: %w", err)
	}
	if !ok {
		return nil, history.ErrNotFound
	}

	const q = `
		SELECT role, content, name, avatar, timestamp
		FROM   chat_messages
		WHERE  conf_uid = $1 AND history_uid = $2
		ORDER  BY timestamp, id`

	rows, err := s.pool.Query(ctx, q, confUID, historyUID)
	if err != nil {
		return nil, fmt.Errorf("history postgres: messages: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Message, error) {
		var m history.Message
		err := row.Scan(&m.Role, &m.Content, &m.Name, &m.Avatar, &m.Timestamp)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("history postgres: scan messages: %w", err)
	}
	return msgs, nil
}

// List implements history.Store.
func (s *Store) List(ctx context.Context, confUID string) ([]history.Info, error) {
	const q = `
		SELECT h.history_uid, h.created_at,
		       m.role, m.content, m.name, m.avatar, m.timestamp
		FROM   chat_histories h
		LEFT JOIN LATERAL (
		    SELECT role, content, name, avatar, timestamp
		    FROM   chat_messages
		    WHERE  conf_uid = h.conf_uid AND history_uid = h.history_uid
		    ORDER  BY timestamp DESC, id DESC
		    LIMIT  1
		) m ON true
		WHERE  h.conf_uid = $1
		ORDER  BY h.created_at DESC`

	rows, err := s.pool.Query(ctx, q, confUID)
	if err != nil {
		return nil, fmt.Errorf("history postgres: list: %w", err)
	}
	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Info, error) {
		var (
			info                        history.Info
			role, content, name, avatar *string
			ts                          *time.Time
		)
		if err := row.Scan(&info.HistoryUID, &info.CreatedAt,
			&role, &content, &name, &avatar, &ts); err != nil {
			return history.Info{}, err
		}
		if role != nil {
			info.Latest = &history.Message{
				Role:      *role,
				Content:   deref(content),
				Name:      deref(name),
				Avatar:    deref(avatar),
				Timestamp: derefTime(ts),
			}
		}
		return info, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history postgres: scan list: %w", err)
	}
	return infos, nil
}

// Delete implements history.Store. Messages go with the history via the
// cascading foreign key.
func (s *Store) Delete(ctx context.Context, confUID, historyUID string) error {
	const q = `DELETE FROM chat_histories WHERE conf_uid = $1 AND history_uid = $2`
	if _, err := s.pool.Exec(ctx, q, confUID, historyUID); err != nil {
		return fmt.Errorf("history postgres: delete: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

var _ history.Store = (*Store)(nil)
