package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/romanzh1/mnemosyne/pkg/utils"
)

var sessionColumns = []string{
	"id", "deck_name", "session_type", "max_cards", "cards_studied", "cards_correct", "started_at", "ended_at",
}

func (r *DB) CreateSession(ctx context.Context, session *models.StudySession) error {
	query := r.sb.Insert("study_sessions").
		Columns("deck_name", "session_type", "max_cards", "cards_studied", "cards_correct", "started_at", "ended_at").
		Values(session.DeckName, session.SessionType, session.MaxCards, session.CardsStudied, session.CardsCorrect,
			utils.DBTime(session.StartedAt), nullableTime(session.EndedAt))

	id, err := r.insertReturningID(ctx, query)
	if err != nil {
		return fmt.Errorf("create session (session_type: %s): %w", session.SessionType, err)
	}

	session.ID = id
	return nil
}

func (r *DB) GetSession(ctx context.Context, id int64) (*models.StudySession, error) {
	sqlStr, args, err := r.sb.Select(sessionColumns...).From("study_sessions").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (id: %d): %w", id, err)
	}

	var session models.StudySession
	if err := r.GetContext(ctx, &session, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get session (id: %d): %w", id, models.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("get session (id: %d): %w", id, err)
	}

	return &session, nil
}

// IncrementSessionCounters bumps cards_studied and, for a correct answer,
// cards_correct in a single statement.
func (r *DB) IncrementSessionCounters(ctx context.Context, id int64, correct bool) error {
	correctDelta := 0
	if correct {
		correctDelta = 1
	}

	query := r.sb.Update("study_sessions").
		Set("cards_studied", squirrel.Expr("cards_studied + 1")).
		Set("cards_correct", squirrel.Expr("cards_correct + ?", correctDelta)).
		Where(squirrel.Eq{"id": id})

	if err := r.execExisting(ctx, query, id); err != nil {
		return fmt.Errorf("increment session counters (id: %d, correct: %t): %w", id, correct, err)
	}
	return nil
}

func (r *DB) EndSession(ctx context.Context, id int64, endedAt time.Time) error {
	query := r.sb.Update("study_sessions").
		Set("ended_at", utils.DBTime(endedAt)).
		Where(squirrel.Eq{"id": id})

	if err := r.execExisting(ctx, query, id); err != nil {
		return fmt.Errorf("end session (id: %d): %w", id, err)
	}
	return nil
}

func (r *DB) execExisting(ctx context.Context, query squirrel.UpdateBuilder, id int64) error {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (id: %d): %w", id, err)
	}

	res, err := r.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// ListSessionsStartedBetween returns sessions with started_at in [from, to).
func (r *DB) ListSessionsStartedBetween(ctx context.Context, from, to time.Time) ([]*models.StudySession, error) {
	sqlStr, args, err := r.sb.Select(sessionColumns...).From("study_sessions").
		Where(squirrel.GtOrEq{"started_at": utils.DBTime(from)}).
		Where(squirrel.Lt{"started_at": utils.DBTime(to)}).
		OrderBy("started_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query: %w", err)
	}

	sessions := make([]*models.StudySession, 0)
	if err := r.SelectContext(ctx, &sessions, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list sessions (from: %s, to: %s): %w", from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}
	return sessions, nil
}

// ListSessionStartTimes returns the start time of every session, newest first.
func (r *DB) ListSessionStartTimes(ctx context.Context) ([]time.Time, error) {
	sqlStr, args, err := r.sb.Select("started_at").From("study_sessions").OrderBy("started_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query: %w", err)
	}

	starts := make([]time.Time, 0)
	if err := r.SelectContext(ctx, &starts, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list session start times: %w", err)
	}
	return starts, nil
}

func (r *DB) GetSessionTotals(ctx context.Context) (*models.SessionTotals, error) {
	sqlStr, args, err := r.sb.Select(
		"COUNT(*) AS sessions",
		"COALESCE(SUM(cards_studied), 0) AS cards_studied",
		"COALESCE(SUM(cards_correct), 0) AS cards_correct",
	).From("study_sessions").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query: %w", err)
	}

	var totals models.SessionTotals
	if err := r.GetContext(ctx, &totals, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("get session totals: %w", err)
	}
	return &totals, nil
}
