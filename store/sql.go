package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	session "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// SessionTokenModel is the Bun model for stored session tokens
type SessionTokenModel struct {
	bun.BaseModel `bun:"table:session_tokens"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	StorageKey string    `bun:"storage_key,notnull,unique"`
	Token      string    `bun:"token,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

// SQLOption configures a SQL store
type SQLOption func(*SQL)

// WithSQLStorageKey sets the row key the token is stored under
func WithSQLStorageKey(key string) SQLOption {
	return func(s *SQL) {
		if key != "" {
			s.key = key
		}
	}
}

// WithSQLClock injects a custom clock
func WithSQLClock(clock func() time.Time) SQLOption {
	return func(s *SQL) {
		if clock != nil {
			s.now = clock
		}
	}
}

// SQL keeps the token in the session_tokens table. Row ids are derived from
// the storage key so every installation writes the same row.
type SQL struct {
	db  *bun.DB
	key string
	now func() time.Time
}

var _ session.Store = (*SQL)(nil)

// NewSQL creates a store on top of db. Call Migrate before first use.
func NewSQL(db *bun.DB, opts ...SQLOption) *SQL {
	s := &SQL{
		db:  db,
		key: session.DefaultStorageKey,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// OpenSQLite opens a SQLite database through sqliteshim and returns a store
// with its table created.
func OpenSQLite(ctx context.Context, dsn string, opts ...SQLOption) (*SQL, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not open session database")
	}
	sqldb.SetMaxOpenConns(1)

	s := NewSQL(bun.NewDB(sqldb, sqlitedialect.New()), opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying database
func (s *SQL) DB() *bun.DB {
	return s.db
}

// Close closes the underlying database
func (s *SQL) Close() error {
	return s.db.Close()
}

// Migrate creates the session_tokens table when missing
func (s *SQL) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*SessionTokenModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create session_tokens table")
	}
	return nil
}

// Read implements session.Store
func (s *SQL) Read(ctx context.Context) (string, bool, error) {
	var model SessionTokenModel
	err := s.db.NewSelect().
		Model(&model).
		Where("storage_key = ?", s.key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerrors.Wrap(err, goerrors.CategoryInternal, "could not read session token")
	}
	return model.Token, model.Token != "", nil
}

// Write implements session.Store
func (s *SQL) Write(ctx context.Context, token string) error {
	id, err := hashid.NewUUID(s.key)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not derive session row id")
	}

	model := &SessionTokenModel{
		ID:         id,
		StorageKey: s.key,
		Token:      token,
		UpdatedAt:  s.now().UTC(),
	}

	_, err = s.db.NewInsert().
		Model(model).
		On("CONFLICT (storage_key) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not write session token")
	}
	return nil
}

// Clear implements session.Store
func (s *SQL) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*SessionTokenModel)(nil)).
		Where("storage_key = ?", s.key).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not clear session token")
	}
	return nil
}
