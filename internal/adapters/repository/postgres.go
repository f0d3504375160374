package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/okian/rehearsal/internal/domain/availability"
	"github.com/okian/rehearsal/pkg/metrics"
)

// Pool defaults for PostgresStore.
const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
)

// schema mirrors the group_members and availability tables of the
// scheduling database. Foreign keys to users and groups are left out because
// this service does not own those tables.
var schema = []string{ //nolint:gochecknoglobals // immutable DDL
	`CREATE TABLE IF NOT EXISTS group_members (
		id UUID PRIMARY KEY,
		group_id UUID NOT NULL,
		user_id UUID NOT NULL,
		role VARCHAR(50) DEFAULT 'member',
		joined_at TIMESTAMP DEFAULT NOW(),
		UNIQUE(group_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS availability (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
		start_time TIME NOT NULL,
		end_time TIME NOT NULL,
		is_recurring BOOLEAN DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS availability_user_idx ON availability (user_id)`,
}

const (
	membersQuery = `SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY joined_at, user_id`

	isMemberQuery = `SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`

	groupsOfQuery = `SELECT group_id FROM group_members WHERE user_id = $1 ORDER BY joined_at, group_id`

	availabilityQuery = `SELECT user_id, day_of_week, start_time, end_time, is_recurring
		FROM availability
		WHERE user_id = ANY($1) AND is_recurring
		ORDER BY day_of_week, start_time, user_id`

	deleteAvailabilityQuery = `DELETE FROM availability WHERE user_id = $1 AND is_recurring`

	insertAvailabilityQuery = `INSERT INTO availability (id, user_id, day_of_week, start_time, end_time, is_recurring)
		VALUES ($1, $2, $3, $4, $5, $6)`

	addMemberQuery = `INSERT INTO group_members (id, group_id, user_id) VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING`
)

// availabilityRow is the scan target for availabilityQuery.
type availabilityRow struct {
	UserID    string             `db:"user_id"`
	Day       int                `db:"day_of_week"`
	Start     availability.Clock `db:"start_time"`
	End       availability.Clock `db:"end_time"`
	Recurring bool               `db:"is_recurring"`
}

// PostgresStore is a Store backed by PostgreSQL through sqlx and lib/pq.
type PostgresStore struct {
	db              *sqlx.DB
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	newID           func() string
}

// OpenPostgres connects to dsn and returns a configured store.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrUnavailable, err)
	}
	return NewPostgresStore(db, opts...), nil
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sqlx.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:              db,
		maxOpenConns:    defaultMaxOpenConns,
		maxIdleConns:    defaultMaxIdleConns,
		connMaxLifetime: defaultConnMaxLifetime,
		newID:           func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.db.SetMaxOpenConns(s.maxOpenConns)
	s.db.SetMaxIdleConns(s.maxIdleConns)
	s.db.SetConnMaxLifetime(s.connMaxLifetime)
	return s
}

// Migrate creates the tables the store needs if they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("repository: migrate: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Members implements Store.
func (s *PostgresStore) Members(ctx context.Context, groupID string) ([]string, error) {
	defer observe("members", time.Now())
	groupID, err := canonicalUUID(groupID)
	if err != nil {
		return nil, err
	}

	var users []string
	if err := s.db.SelectContext(ctx, &users, membersQuery, groupID); err != nil {
		return nil, storeError("members", err)
	}
	if len(users) == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, ErrNotFound
	}
	return users, nil
}

// IsMember implements Store.
func (s *PostgresStore) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	defer observe("is_member", time.Now())
	ids, err := validateIDs(groupID, userID)
	if err != nil {
		return false, err
	}
	groupID, userID = ids[0], ids[1]

	var ok bool
	if err := s.db.GetContext(ctx, &ok, isMemberQuery, groupID, userID); err != nil {
		return false, storeError("is_member", err)
	}
	return ok, nil
}

// GroupsOf implements Store.
func (s *PostgresStore) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	defer observe("groups_of", time.Now())
	userID, err := canonicalUUID(userID)
	if err != nil {
		return nil, err
	}

	var groups []string
	if err := s.db.SelectContext(ctx, &groups, groupsOfQuery, userID); err != nil {
		return nil, storeError("groups_of", err)
	}
	return groups, nil
}

// Availability implements Store.
func (s *PostgresStore) Availability(ctx context.Context, userIDs []string) ([]availability.Record, error) {
	defer observe("availability", time.Now())
	if len(userIDs) == 0 {
		return nil, nil
	}
	userIDs, err := validateIDs(userIDs...)
	if err != nil {
		return nil, err
	}

	var rows []availabilityRow
	if err := s.db.SelectContext(ctx, &rows, availabilityQuery, pq.Array(userIDs)); err != nil {
		return nil, storeError("availability", err)
	}

	out := make([]availability.Record, len(rows))
	for i, r := range rows {
		day, err := availability.ParseWeekday(r.Day)
		if err != nil {
			return nil, storeError("availability", fmt.Errorf("corrupt row for user %s: %v", r.UserID, err))
		}
		out[i] = availability.Record{
			UserID:    r.UserID,
			Day:       day,
			Start:     r.Start,
			End:       r.End,
			Recurring: r.Recurring,
		}
	}
	return out, nil
}

// ReplaceAvailability implements Store. The delete and inserts run in one
// transaction so readers never see a half-written week.
func (s *PostgresStore) ReplaceAvailability(ctx context.Context, userID string, records []availability.Record) (err error) {
	defer observe("replace_availability", time.Now())
	if userID, err = canonicalUUID(userID); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeError("replace_availability", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, deleteAvailabilityQuery, userID); err != nil {
		return storeError("replace_availability", err)
	}
	for _, r := range records {
		if _, err = tx.ExecContext(ctx, insertAvailabilityQuery,
			s.newID(), userID, int(r.Day), r.Start, r.End, r.Recurring); err != nil {
			return storeError("replace_availability", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return storeError("replace_availability", err)
	}
	return nil
}

// AddMember implements Store.
func (s *PostgresStore) AddMember(ctx context.Context, groupID, userID string) error {
	defer observe("add_member", time.Now())
	ids, err := validateIDs(groupID, userID)
	if err != nil {
		return err
	}
	groupID, userID = ids[0], ids[1]

	if _, err := s.db.ExecContext(ctx, addMemberQuery, s.newID(), groupID, userID); err != nil {
		return storeError("add_member", err)
	}
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		metrics.RecordStoreError("ping")
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// validateIDs rejects ids the UUID columns would refuse and returns the rest
// in canonical form, matching how PostgreSQL renders UUID columns.
func validateIDs(ids ...string) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		c, err := canonicalUUID(id)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func canonicalUUID(id string) (string, error) {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return u.String(), nil
}

func storeError(op string, err error) error {
	metrics.RecordStoreError(op)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("repository: %s: %w", op, err)
}
