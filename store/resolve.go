package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/legionews/legio/wpmap"
)

// ResolveResult summarises one poll resolution.
type ResolveResult struct {
	PollID     int64 `json:"pollId"`
	OptionID   int64 `json:"optionId"`
	TotalVotes int   `json:"totalVotes"`
	Winners    int   `json:"winners"`
	Award      int   `json:"award"`
}

// ResolvePoll marks optionID as the winning answer of pollID and awards
// points to everyone who voted for it, in one transaction.
//
// The award scales inversely with how popular the winning answer was:
//
//	award = wins_points + round(100 - 100 * winners/totalVotes)
//
// A unanimous poll pays exactly wins_points; a lone correct voter among
// many gets close to wins_points + 100. With no winners the poll is still
// resolved and nobody is paid.
func (s *Store) ResolvePoll(ctx context.Context, pollID, optionID int64) (ResolveResult, error) {
	result := ResolveResult{PollID: pollID, OptionID: optionID}

	settings, err := s.PointsSettings(ctx)
	if err != nil {
		return result, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("store: resolve: begin: %w", err)
	}
	defer tx.Rollback()

	var resolved int
	err = tx.QueryRowContext(ctx, `SELECT is_resolved FROM polls WHERE id = ?`, pollID).Scan(&resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return result, ErrPollNotFound
	}
	if err != nil {
		return result, fmt.Errorf("store: resolve: poll lookup: %w", err)
	}
	if resolved != 0 {
		return result, ErrAlreadyResolved
	}

	var belongs int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM poll_options WHERE id = ? AND poll_id = ?`, optionID, pollID).Scan(&belongs)
	if errors.Is(err, sql.ErrNoRows) {
		return result, ErrOptionNotFound
	}
	if err != nil {
		return result, fmt.Errorf("store: resolve: option lookup: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE polls SET correct_option_id = ?, is_resolved = 1 WHERE id = ?`,
		optionID, pollID); err != nil {
		return result, fmt.Errorf("store: resolve: mark poll: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE poll_id = ?`, pollID).Scan(&result.TotalVotes); err != nil {
		return result, fmt.Errorf("store: resolve: count votes: %w", err)
	}

	winnerRows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM votes WHERE poll_id = ? AND option_id = ?`, pollID, optionID)
	if err != nil {
		return result, fmt.Errorf("store: resolve: winners: %w", err)
	}
	var winners []int64
	for winnerRows.Next() {
		var userID int64
		if err := winnerRows.Scan(&userID); err != nil {
			winnerRows.Close()
			return result, fmt.Errorf("store: resolve: winners: %w", err)
		}
		winners = append(winners, userID)
	}
	if err := winnerRows.Err(); err != nil {
		winnerRows.Close()
		return result, fmt.Errorf("store: resolve: winners: %w", err)
	}
	winnerRows.Close()

	result.Winners = len(winners)
	if result.Winners > 0 {
		share := float64(result.Winners) / float64(result.TotalVotes)
		result.Award = settings.WinsPoints + int(math.Round(100-100*share))

		for _, userID := range winners {
			var points int
			if err := tx.QueryRowContext(ctx,
				`SELECT points FROM users WHERE id = ?`, userID).Scan(&points); err != nil {
				return result, fmt.Errorf("store: resolve: points of %d: %w", userID, err)
			}
			points += result.Award
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET points = ?, level = ? WHERE id = ?`,
				points, wpmap.CalculateLevel(points), userID); err != nil {
				return result, fmt.Errorf("store: resolve: award %d: %w", userID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO points_history (user_id, points, calculation_date, comment)
				 VALUES (?, ?, CURRENT_TIMESTAMP, ?)`,
				userID, result.Award, fmt.Sprintf("Победа в опросе #%d", pollID)); err != nil {
				return result, fmt.Errorf("store: resolve: history for %d: %w", userID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("store: resolve: commit: %w", err)
	}
	return result, nil
}
