// Package user provides postgres and in-memory user stores.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"scimgate/internal/scim/models"
	id "scimgate/pkg/domain"
	"scimgate/pkg/platform/sentinel"
	txcontext "scimgate/pkg/platform/tx"
)

// ListFilter narrows and pages a user listing.
type ListFilter struct {
	// UserNameContains keeps only users whose userName contains the
	// substring. Empty matches everything.
	UserNameContains string
	Skip             int
	// Take of zero returns an empty page; the total is still computed.
	Take int
}

const uniqueViolation = "23505"

// Postgres persists users in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts a user. Returns sentinel.ErrAlreadyUsed when external_id or
// user_name collides with an existing row.
func (s *Postgres) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, external_id, user_name, display_name, primary_email, active, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(u.ID),
		u.ExternalID,
		u.UserName,
		u.DisplayName,
		u.PrimaryEmail,
		u.Active,
		u.CreatedAt,
		u.ModifiedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns. Returns sentinel.ErrNotFound when
// the row does not exist.
func (s *Postgres) Update(ctx context.Context, u *models.User) error {
	query := `
		UPDATE users
		SET display_name = $2, primary_email = $3, active = $4, modified_at = $5
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(u.ID),
		u.DisplayName,
		u.PrimaryEmail,
		u.Active,
		u.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := selectUser + ` WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(userID)))
}

func (s *Postgres) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := selectUser + ` WHERE external_id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, externalID))
}

func (s *Postgres) FindByUserName(ctx context.Context, userName string) (*models.User, error) {
	query := selectUser + ` WHERE user_name = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, userName))
}

// List returns one page ordered by user_name plus the total count matching
// the filter. The substring match is a plain contains, consistent with the
// in-memory store; LIKE metacharacters in the filter are matched literally.
func (s *Postgres) List(ctx context.Context, filter ListFilter) ([]*models.User, int, error) {
	where := `WHERE ($1 = '' OR user_name LIKE '%' || $1 || '%')`
	contains := escapeLike(filter.UserNameContains)

	var total int
	countQuery := `SELECT COUNT(*) FROM users ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, contains).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := selectUser + ` ` + where + `
		ORDER BY user_name ASC
		OFFSET $2 LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, contains, filter.Skip, filter.Take)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

const selectUser = `
	SELECT id, external_id, user_name, display_name, primary_email, active, created_at, modified_at
	FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanOne(row *sql.Row) (*models.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return u, err
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u      models.User
		userID uuid.UUID
	)
	err := row.Scan(
		&userID,
		&u.ExternalID,
		&u.UserName,
		&u.DisplayName,
		&u.PrimaryEmail,
		&u.Active,
		&u.CreatedAt,
		&u.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id.UserID(userID)
	return &u, nil
}

// escapeLike makes a substring safe for use inside a LIKE pattern so that
// % and _ in a filter value match themselves.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
