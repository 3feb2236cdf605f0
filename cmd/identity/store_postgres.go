package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must not close it.
// Schema identifiers are validated and safely quoted.
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
			return errors.New("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed identity store.
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
		return nil, errors.New("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) usersTable() string { return `"` + s.schema + `".users` }

// CreateUser inserts a new user row.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	email := NormalizeEmail(in.Email)
	if email == "" || in.PasswordHash == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email and password hash are required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.usersTable()+` (
			email, password_hash,
			firstname, familyname, gender, city, country,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, email, in.PasswordHash,
		in.Profile.FirstName, in.Profile.FamilyName, in.Profile.Gender,
		in.Profile.City, in.Profile.Country, now)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		return User{}, err
	}

	return User{Email: email, Profile: in.Profile, CreatedAt: now}, nil
}

// GetUserByEmail loads a user's profile.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	email = NormalizeEmail(email)
	if email == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty email"}
	}

	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT email, firstname, familyname, gender, city, country, created_at
		FROM `+s.usersTable()+`
		WHERE email = $1
	`, email).Scan(
		&u.Email,
		&u.Profile.FirstName,
		&u.Profile.FamilyName,
		&u.Profile.Gender,
		&u.Profile.City,
		&u.Profile.Country,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Email: email}
	}
	if err != nil {
		return User{}, err
	}

	return u, nil
}

// GetUserAuthByEmail loads a user together with its password hash.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	email = NormalizeEmail(email)
	if email == "" {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty email"}
	}

	var ua UserAuth
	err := s.pool.QueryRow(ctx, `
		SELECT email, password_hash, firstname, familyname, gender, city, country, created_at
		FROM `+s.usersTable()+`
		WHERE email = $1
	`, email).Scan(
		&ua.User.Email,
		&ua.PasswordHash,
		&ua.User.Profile.FirstName,
		&ua.User.Profile.FamilyName,
		&ua.User.Profile.Gender,
		&ua.User.Profile.City,
		&ua.User.Profile.Country,
		&ua.User.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, NotFoundError{Op: op, Email: email}
	}
	if err != nil {
		return UserAuth{}, err
	}

	return ua, nil
}

// UpdatePassword replaces the stored password hash.
func (s *PostgresStore) UpdatePassword(ctx context.Context, email string, newHash string) error {
	const op = "identity.UpdatePassword"

	email = NormalizeEmail(email)
	if email == "" || newHash == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "email and new hash are required"}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.usersTable()+`
		SET password_hash = $2
		WHERE email = $1
	`, email, newHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Email: email}
	}
	return nil
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
