package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/legionews/legio/wpmap"
)

// User is the target users row as written by the import.
type User struct {
	ID        int64
	Username  string
	Password  string
	Role      string
	Points    int
	Level     int
	Avatar    string
	Name      string
	CreatedAt string
}

// News is the target news row as written by the import.
type News struct {
	ID          int64
	Title       string
	Description string
	Image       string
	Tags        []string
	Category    string
	CreatedAt   string
}

// Vote is one imported vote. ID zero means "let SQLite assign".
type Vote struct {
	ID        int64
	UserID    int64
	PollID    int64
	OptionID  int64
	CreatedAt string
}

// ErrorReport is one imported complaint. UserID is null for reports whose
// author no longer exists in the source.
type ErrorReport struct {
	ID        int64
	NewsID    int64
	UserID    sql.NullInt64
	Message   string
	CreatedAt string
}

// PointsEntry is one imported points_history row.
type PointsEntry struct {
	ID      int64
	UserID  int64
	Points  int
	Date    string
	Comment string
}

// NameRow is an existing users row as seen by the name allocator.
type NameRow struct {
	ID       int64
	Username string
	Name     string
}

// UpsertPointsSettings writes the singleton points_settings row.
func (s *Store) UpsertPointsSettings(ctx context.Context, settings wpmap.PointsSettings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO points_settings (id, start_points, wins_points, level_points, updated_at)
		 VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
		   start_points = excluded.start_points,
		   wins_points = excluded.wins_points,
		   level_points = excluded.level_points,
		   updated_at = CURRENT_TIMESTAMP`,
		settings.StartPoints, settings.WinsPoints, settings.LevelPoints)
	if err != nil {
		return fmt.Errorf("store: upsert points settings: %w", err)
	}
	return nil
}

// PointsSettings returns the stored settings, or the defaults when the
// singleton row has never been written.
func (s *Store) PointsSettings(ctx context.Context) (wpmap.PointsSettings, error) {
	settings := wpmap.DefaultPointsSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT start_points, wins_points, level_points FROM points_settings WHERE id = 1`).
		Scan(&settings.StartPoints, &settings.WinsPoints, &settings.LevelPoints)
	if errors.Is(err, sql.ErrNoRows) {
		return wpmap.DefaultPointsSettings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("store: points settings: %w", err)
	}
	return settings, nil
}

// ExistingNames returns id plus lowercased username and display name of
// every user, used to seed the name allocator before an incremental run.
func (s *Store) ExistingNames(ctx context.Context) ([]NameRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, LOWER(username), LOWER(name) FROM users`)
	if err != nil {
		return nil, fmt.Errorf("store: existing names: %w", err)
	}
	defer rows.Close()

	var names []NameRow
	for rows.Next() {
		var n NameRow
		var username, name sql.NullString
		if err := rows.Scan(&n.ID, &username, &name); err != nil {
			return nil, fmt.Errorf("store: existing names: %w", err)
		}
		n.Username = username.String
		n.Name = name.String
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: existing names: %w", err)
	}
	return names, nil
}

// UpsertUser writes one user keyed on the source id. bio and birthdate are
// app-side fields and never touched by the import.
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password, role, points, level, avatar, name, bio, birthdate, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   username = excluded.username,
		   password = excluded.password,
		   role = excluded.role,
		   points = excluded.points,
		   level = excluded.level,
		   avatar = excluded.avatar,
		   name = excluded.name,
		   created_at = excluded.created_at`,
		u.ID, u.Username, u.Password, u.Role, u.Points, u.Level, u.Avatar, u.Name, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert user %d: %w", u.ID, err)
	}
	return nil
}

// PromoteFirstAdmin makes the lowest-id user an admin. No-op on an empty
// users table.
func (s *Store) PromoteFirstAdmin(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = 'admin' WHERE id = (SELECT MIN(id) FROM users)`)
	if err != nil {
		return fmt.Errorf("store: promote first admin: %w", err)
	}
	return nil
}

// UpsertNews writes one news row keyed on the source post id.
func (s *Store) UpsertNews(ctx context.Context, n News) error {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("store: encode tags for news %d: %w", n.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO news (id, title, description, image, tags, category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   description = excluded.description,
		   image = excluded.image,
		   tags = excluded.tags,
		   category = excluded.category,
		   created_at = excluded.created_at`,
		n.ID, n.Title, n.Description, n.Image, string(encoded), n.Category, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert news %d: %w", n.ID, err)
	}
	return nil
}

// DeletePoll removes a poll with its votes and options. Used when a
// previously synced post no longer carries poll meta.
func (s *Store) DeletePoll(ctx context.Context, pollID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM votes WHERE poll_id = ?`, pollID); err != nil {
		return fmt.Errorf("store: delete poll votes %d: %w", pollID, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM poll_options WHERE poll_id = ?`, pollID); err != nil {
		return fmt.Errorf("store: delete poll options %d: %w", pollID, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM polls WHERE id = ?`, pollID); err != nil {
		return fmt.Errorf("store: delete poll %d: %w", pollID, err)
	}
	return nil
}

// UpsertPoll writes one poll keyed on the post id. Outcome columns are not
// reset here; SetPollOutcome runs after the options are rebuilt.
func (s *Store) UpsertPoll(ctx context.Context, pollID int64, question string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO polls (id, news_id, question, correct_option_id, is_resolved)
		 VALUES (?, ?, ?, NULL, 0)
		 ON CONFLICT(id) DO UPDATE SET
		   news_id = excluded.news_id,
		   question = excluded.question`,
		pollID, pollID, question)
	if err != nil {
		return fmt.Errorf("store: upsert poll %d: %w", pollID, err)
	}
	return nil
}

// ReplacePollOptions deletes and reinserts the options of one poll and
// returns plugin counter -> new option id for vote resolution. Existing
// votes go with the old options; the import re-creates them against the
// new ids right after.
func (s *Store) ReplacePollOptions(ctx context.Context, pollID int64, options []wpmap.PollOption) (map[int]int64, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM votes WHERE poll_id = ?`, pollID); err != nil {
		return nil, fmt.Errorf("store: clear poll votes %d: %w", pollID, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM poll_options WHERE poll_id = ?`, pollID); err != nil {
		return nil, fmt.Errorf("store: clear poll options %d: %w", pollID, err)
	}

	counterMap := make(map[int]int64, len(options))
	for _, option := range options {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO poll_options (poll_id, text) VALUES (?, ?)`, pollID, option.Text)
		if err != nil {
			return nil, fmt.Errorf("store: insert option for poll %d: %w", pollID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("store: option id for poll %d: %w", pollID, err)
		}
		counterMap[option.Counter] = id
	}
	return counterMap, nil
}

// SetPollOutcome records the winning option. correctOptionID zero clears
// the outcome and marks the poll unresolved.
func (s *Store) SetPollOutcome(ctx context.Context, pollID, correctOptionID int64) error {
	var option any
	resolved := 0
	if correctOptionID != 0 {
		option = correctOptionID
		resolved = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE polls SET correct_option_id = ?, is_resolved = ? WHERE id = ?`,
		option, resolved, pollID)
	if err != nil {
		return fmt.Errorf("store: set poll outcome %d: %w", pollID, err)
	}
	return nil
}

// InsertVote inserts one vote, silently skipping duplicates on
// (user_id, poll_id).
func (s *Store) InsertVote(ctx context.Context, v Vote) error {
	var id any
	if v.ID != 0 {
		id = v.ID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO votes (id, user_id, poll_id, option_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, v.UserID, v.PollID, v.OptionID, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert vote: %w", err)
	}
	return nil
}

// InsertLike inserts one like, silently skipping duplicates on
// (user_id, news_id).
func (s *Store) InsertLike(ctx context.Context, userID, newsID int64, createdAt string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO likes (user_id, news_id, created_at) VALUES (?, ?, ?)`,
		userID, newsID, createdAt)
	if err != nil {
		return fmt.Errorf("store: insert like: %w", err)
	}
	return nil
}

// UpsertErrorReport writes one report keyed on the source complaint id.
// status stays at whatever moderation set it to; only fresh inserts start
// as 'pending'.
func (s *Store) UpsertErrorReport(ctx context.Context, r ErrorReport) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO error_reports (id, news_id, user_id, message, status, created_at)
		 VALUES (?, ?, ?, ?, 'pending', ?)
		 ON CONFLICT(id) DO UPDATE SET
		   news_id = excluded.news_id,
		   user_id = excluded.user_id,
		   message = excluded.message,
		   created_at = excluded.created_at`,
		r.ID, r.NewsID, r.UserID, r.Message, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert error report %d: %w", r.ID, err)
	}
	return nil
}

// UpsertPointsHistory writes one history entry keyed on the source row id.
func (s *Store) UpsertPointsHistory(ctx context.Context, e PointsEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO points_history (id, user_id, points, calculation_date, comment)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id,
		   points = excluded.points,
		   calculation_date = excluded.calculation_date,
		   comment = excluded.comment`,
		e.ID, e.UserID, e.Points, e.Date, e.Comment)
	if err != nil {
		return fmt.Errorf("store: upsert points history %d: %w", e.ID, err)
	}
	return nil
}
