// Package directory is the Postgres-backed audience registry: named
// groups and their members, plus the membership checks the broadcast
// workflow authorizes against.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"herald/core/logger"
)

var (
	// ErrGroupNotFound is returned when a group handle or id is unknown.
	ErrGroupNotFound = errors.New("directory: group not found")
	// ErrNotMember is returned by RemoveMember when there was nothing to remove.
	ErrNotMember = errors.New("directory: user is not a member")
)

// Group is a named audience a broadcast can target.
type Group struct {
	ID          int64  `db:"id"`
	Handle      string `db:"handle"`
	Title       string `db:"title"`
	MemberCount int    `db:"member_count"`
}

// Member is a single recipient inside a group.
type Member struct {
	UserID    int64  `db:"user_id"`
	Username  string `db:"username"`
	FirstName string `db:"first_name"`
	IsBot     bool   `db:"is_bot"`
}

// DisplayName returns the best human-readable label for the member.
func (m Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	if m.FirstName != "" {
		return m.FirstName
	}
	return fmt.Sprintf("id:%d", m.UserID)
}

// Service exposes directory queries over the configured database.
type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// EligibleGroups returns groups with at least minMembers members,
// ordered by handle. Groups below the threshold are not offered as
// broadcast targets.
func (s *Service) EligibleGroups(ctx context.Context, minMembers int) ([]Group, error) {
	start := time.Now()
	const q = `
		SELECT g.id, g.handle, g.title, COUNT(m.user_id) AS member_count
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		GROUP BY g.id, g.handle, g.title
		HAVING COUNT(m.user_id) >= $1
		ORDER BY g.handle`

	var groups []Group
	if err := s.db.SelectContext(ctx, &groups, q, minMembers); err != nil {
		return nil, fmt.Errorf("directory: list eligible groups: %w", err)
	}

	logger.Debug(ctx, "service.directory", "groups.listed",
		slog.Int("min_members", minMembers),
		slog.Int("count", len(groups)),
		slog.Duration("duration", logger.Took(start)),
	)
	return groups, nil
}

// GroupByID resolves a single group with its current member count.
func (s *Service) GroupByID(ctx context.Context, id int64) (*Group, error) {
	const q = `
		SELECT g.id, g.handle, g.title, COUNT(m.user_id) AS member_count
		FROM groups g
		LEFT JOIN group_members m ON m.group_id = g.id
		WHERE g.id = $1
		GROUP BY g.id, g.handle, g.title`

	var g Group
	if err := s.db.GetContext(ctx, &g, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("directory: get group %d: %w", id, err)
	}
	return &g, nil
}

// GroupByHandle resolves a group by its handle (the name used in
// /join and /leave commands).
func (s *Service) GroupByHandle(ctx context.Context, handle string) (*Group, error) {
	const q = `
		SELECT g.id, g.handle, g.title, COUNT(m.user_id) AS member_count
		FROM groups g
		LEFT JOIN group_members m ON m.group_id = g.id
		WHERE g.handle = $1
		GROUP BY g.id, g.handle, g.title`

	var g Group
	if err := s.db.GetContext(ctx, &g, q, handle); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("directory: get group %q: %w", handle, err)
	}
	return &g, nil
}

// Members returns the full member list of a group in join order.
func (s *Service) Members(ctx context.Context, groupID int64) ([]Member, error) {
	start := time.Now()
	const q = `
		SELECT m.user_id, m.username, m.first_name, m.is_bot
		FROM group_members m
		WHERE m.group_id = $1
		ORDER BY m.joined_at, m.user_id`

	var members []Member
	if err := s.db.SelectContext(ctx, &members, q, groupID); err != nil {
		return nil, fmt.Errorf("directory: list members of group %d: %w", groupID, err)
	}

	logger.Debug(ctx, "service.directory", "members.listed",
		slog.Int64("group_id", groupID),
		slog.Int("members", len(members)),
		slog.Duration("duration", logger.Took(start)),
	)
	return members, nil
}

// IsMember reports whether the user belongs to the group with the
// given handle. Unknown handles read as "not a member".
func (s *Service) IsMember(ctx context.Context, handle string, userID int64) (bool, error) {
	const q = `
		SELECT EXISTS(
			SELECT 1
			FROM group_members m
			JOIN groups g ON g.id = m.group_id
			WHERE g.handle = $1 AND m.user_id = $2
		)`

	var ok bool
	if err := s.db.GetContext(ctx, &ok, q, handle, userID); err != nil {
		return false, fmt.Errorf("directory: membership check %q/%d: %w", handle, userID, err)
	}
	return ok, nil
}

// AddMember upserts the user into the group, refreshing the profile
// fields on repeat joins.
func (s *Service) AddMember(ctx context.Context, groupID int64, m Member) error {
	const q = `
		INSERT INTO group_members (group_id, user_id, username, first_name, is_bot, joined_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (group_id, user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    is_bot = EXCLUDED.is_bot`

	if _, err := s.db.ExecContext(ctx, q, groupID, m.UserID, m.Username, m.FirstName, m.IsBot); err != nil {
		return fmt.Errorf("directory: add member %d to group %d: %w", m.UserID, groupID, err)
	}

	logger.Info(ctx, "service.directory", "member.added",
		slog.Int64("group_id", groupID),
		slog.Int64("user_id", m.UserID),
	)
	return nil
}

// RemoveMember deletes the user from the group. Returns ErrNotMember
// when the user was not in it.
func (s *Service) RemoveMember(ctx context.Context, groupID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("directory: remove member %d from group %d: %w", userID, groupID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("directory: remove member %d from group %d: %w", userID, groupID, err)
	}
	if affected == 0 {
		return ErrNotMember
	}

	logger.Info(ctx, "service.directory", "member.removed",
		slog.Int64("group_id", groupID),
		slog.Int64("user_id", userID),
	)
	return nil
}
