// Package sqlstore implements the domain repositories over database/sql.
// Queries are written with `?` placeholders and rebound per dialect, so the
// same repositories serve the Postgres and SQLite drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"estatehub/internal/domain"
)

// Dialect selects placeholder syntax and transaction options.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Rebind rewrites `?` placeholders into `$n` for Postgres.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q       querier
	dialect Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.dialect.Rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.dialect.Rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.dialect.Rebind(query), args...)
}

// repos binds every repository to one querier.
type repos struct {
	inquiries     *InquiryRepo
	conversations *ConversationRepo
	participants  *ParticipantRepo
	messages      *MessageRepo
	directory     *DirectoryRepo
}

func newRepos(c conn) repos {
	return repos{
		inquiries:     &InquiryRepo{c: c},
		conversations: &ConversationRepo{c: c},
		participants:  &ParticipantRepo{c: c},
		messages:      &MessageRepo{c: c},
		directory:     &DirectoryRepo{c: c},
	}
}

func (r repos) Inquiries() domain.InquiryRepository           { return r.inquiries }
func (r repos) Conversations() domain.ConversationRepository { return r.conversations }
func (r repos) Participants() domain.ParticipantRepository   { return r.participants }
func (r repos) Messages() domain.MessageRepository           { return r.messages }
func (r repos) Directory() domain.Directory                  { return r.directory }

// Store is the database-backed UnitOfWorkFactory.
type Store struct {
	repos
	db      *sql.DB
	dialect Dialect
}

var _ domain.UnitOfWorkFactory = (*Store)(nil)

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		repos:   newRepos(conn{q: db, dialect: dialect}),
		db:      db,
		dialect: dialect,
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Begin starts a database transaction and returns repositories bound to it.
func (s *Store) Begin(ctx context.Context, opts domain.TxOptions) (domain.UnitOfWork, error) {
	txOpts := &sql.TxOptions{}
	if s.dialect == Postgres {
		txOpts.ReadOnly = opts.ReadOnly
	}
	tx, err := s.db.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Unit{
		repos: newRepos(conn{q: tx, dialect: s.dialect}),
		tx:    tx,
	}, nil
}

// Unit is a transaction-scoped set of repositories.
type Unit struct {
	repos
	tx *sql.Tx
}

func (u *Unit) Commit(ctx context.Context) error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// timeLayouts covers the textual forms SQLite hands back for timestamp columns.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// nullTime scans timestamps from either driver, including values produced by
// expressions where SQLite loses the declared column type.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case int64:
		n.Time, n.Valid = time.Unix(0, v).UTC(), true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullStringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
