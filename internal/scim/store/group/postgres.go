// Package group provides postgres and in-memory group stores.
package group

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

// ListFilter narrows and pages a group listing. A Take of zero returns an
// empty page; the total is still computed.
type ListFilter struct {
	DisplayNameContains string
	Skip                int
	Take                int
}

const uniqueViolation = "23505"

// Postgres persists groups and their memberships in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts the group row and any seed members. Returns
// sentinel.ErrAlreadyUsed when external_id or display_name collides.
func (s *Postgres) Create(ctx context.Context, g *models.Group) error {
	query := `
		INSERT INTO groups (id, external_id, display_name, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(g.ID),
		g.ExternalID,
		g.DisplayName,
		g.CreatedAt,
		g.ModifiedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert group: %w", err)
	}
	return s.replaceMembers(ctx, g)
}

// Update overwrites the group row and reconciles the membership table to
// match the aggregate. Runs inside the caller's transaction.
func (s *Postgres) Update(ctx context.Context, g *models.Group) error {
	query := `
		UPDATE groups
		SET display_name = $2, modified_at = $3
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(g.ID),
		g.DisplayName,
		g.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return s.replaceMembers(ctx, g)
}

// Delete removes the group; memberships cascade.
func (s *Postgres) Delete(ctx context.Context, groupID id.GroupID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, uuid.UUID(groupID))
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) replaceMembers(ctx context.Context, g *models.Group) error {
	execer := s.execer(ctx)
	if _, err := execer.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1`, uuid.UUID(g.ID)); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}
	query := `
		INSERT INTO group_members (group_id, user_id, display_name, added_at)
		VALUES ($1, $2, $3, $4)
	`
	for _, m := range g.Members {
		_, err := execer.ExecContext(ctx, query,
			uuid.UUID(m.GroupID),
			uuid.UUID(m.UserID),
			m.DisplayName,
			m.AddedAt,
		)
		if err != nil {
			return fmt.Errorf("insert group member: %w", err)
		}
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, groupID id.GroupID) (*models.Group, error) {
	query := selectGroup + ` WHERE id = $1`
	g, err := s.scanOne(ctx, s.db.QueryRowContext(ctx, query, uuid.UUID(groupID)))
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Postgres) FindByExternalID(ctx context.Context, externalID string) (*models.Group, error) {
	query := selectGroup + ` WHERE external_id = $1`
	return s.scanOne(ctx, s.db.QueryRowContext(ctx, query, externalID))
}

func (s *Postgres) FindByDisplayName(ctx context.Context, displayName string) (*models.Group, error) {
	query := selectGroup + ` WHERE display_name = $1`
	return s.scanOne(ctx, s.db.QueryRowContext(ctx, query, displayName))
}

// List returns one page ordered by display_name plus the total count. Pages
// carry their members; LIKE metacharacters in the filter are matched
// literally.
func (s *Postgres) List(ctx context.Context, filter ListFilter) ([]*models.Group, int, error) {
	where := `WHERE ($1 = '' OR display_name LIKE '%' || $1 || '%')`
	contains := escapeLike(filter.DisplayNameContains)

	var total int
	countQuery := `SELECT COUNT(*) FROM groups ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, contains).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}

	query := selectGroup + ` ` + where + `
		ORDER BY display_name ASC
		OFFSET $2 LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, contains, filter.Skip, filter.Take)
	if err != nil {
		return nil, 0, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate groups: %w", err)
	}

	for _, g := range groups {
		members, err := s.loadMembers(ctx, g.ID)
		if err != nil {
			return nil, 0, err
		}
		g.Members = members
	}
	return groups, total, nil
}

const selectGroup = `
	SELECT id, external_id, display_name, created_at, modified_at
	FROM groups`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanOne(ctx context.Context, row *sql.Row) (*models.Group, error) {
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	members, err := s.loadMembers(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	g.Members = members
	return g, nil
}

func scanGroup(row rowScanner) (*models.Group, error) {
	var (
		g       models.Group
		groupID uuid.UUID
	)
	err := row.Scan(
		&groupID,
		&g.ExternalID,
		&g.DisplayName,
		&g.CreatedAt,
		&g.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan group: %w", err)
	}
	g.ID = id.GroupID(groupID)
	return &g, nil
}

func (s *Postgres) loadMembers(ctx context.Context, groupID id.GroupID) ([]models.Member, error) {
	query := `
		SELECT group_id, user_id, display_name, added_at
		FROM group_members
		WHERE group_id = $1
		ORDER BY added_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var (
			m      models.Member
			gID    uuid.UUID
			userID uuid.UUID
		)
		if err := rows.Scan(&gID, &userID, &m.DisplayName, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		m.GroupID = id.GroupID(gID)
		m.UserID = id.UserID(userID)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return members, nil
}

// escapeLike makes a substring safe for use inside a LIKE pattern so that
// % and _ in a filter value match themselves.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
