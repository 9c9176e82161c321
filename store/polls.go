package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PollOptionRow is one poll_options row in insertion order.
type PollOptionRow struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// PollRow is one polls row.
type PollRow struct {
	ID              int64  `json:"id"`
	NewsID          int64  `json:"newsId"`
	Question        string `json:"question"`
	CorrectOptionID int64  `json:"correctOptionId,omitempty"`
	IsResolved      bool   `json:"isResolved"`
}

// PollByID returns one poll. Returns ErrPollNotFound when no row matches.
func (s *Store) PollByID(ctx context.Context, pollID int64) (PollRow, error) {
	var p PollRow
	var correct sql.NullInt64
	var resolved int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, news_id, question, correct_option_id, is_resolved FROM polls WHERE id = ?`,
		pollID).Scan(&p.ID, &p.NewsID, &p.Question, &correct, &resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return PollRow{}, ErrPollNotFound
	}
	if err != nil {
		return PollRow{}, fmt.Errorf("store: poll %d: %w", pollID, err)
	}
	p.CorrectOptionID = correct.Int64
	p.IsResolved = resolved != 0
	return p, nil
}

// PollOptions returns the options of one poll ordered by id, which is the
// order the import inserted them in.
func (s *Store) PollOptions(ctx context.Context, pollID int64) ([]PollOptionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text FROM poll_options WHERE poll_id = ? ORDER BY id ASC`, pollID)
	if err != nil {
		return nil, fmt.Errorf("store: options of poll %d: %w", pollID, err)
	}
	defer rows.Close()

	var options []PollOptionRow
	for rows.Next() {
		var o PollOptionRow
		if err := rows.Scan(&o.ID, &o.Text); err != nil {
			return nil, fmt.Errorf("store: options of poll %d: %w", pollID, err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: options of poll %d: %w", pollID, err)
	}
	return options, nil
}
