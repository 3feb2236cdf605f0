package wall

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements MessageStore over PostgreSQL.
// The pgx pool is owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the DB schema used by this store (default: "twidder").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return errors.New("wall: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed message store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "twidder"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("wall: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string { return `"` + s.schema + `".messages` }

// Insert persists a message row.
func (s *PostgresStore) Insert(ctx context.Context, m Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` (id, writer, recipient, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.Writer, m.Recipient, m.Content, m.CreatedAt)
	return err
}

// ListByRecipient returns the recipient's messages, newest first.
func (s *PostgresStore) ListByRecipient(ctx context.Context, recipient string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, writer, recipient, content, created_at
		FROM `+s.table()+`
		WHERE recipient = $1
		ORDER BY created_at DESC, id DESC
	`, recipient)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Writer, &m.Recipient, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
