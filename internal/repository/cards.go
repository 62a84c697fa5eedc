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

var cardColumns = []string{
	"id", "front", "back", "deck_name", "ease_factor", "interval_days", "repetitions",
	"version", "created_at", "updated_at", "next_review", "last_reviewed",
}

func (r *DB) selectCards() squirrel.SelectBuilder {
	return r.sb.Select(cardColumns...).From("cards")
}

func withDeck(query squirrel.SelectBuilder, deckName string) squirrel.SelectBuilder {
	if deckName == "" {
		return query
	}
	return query.Where(squirrel.Eq{"deck_name": deckName})
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return utils.DBTime(*t)
}

func (r *DB) CreateCard(ctx context.Context, card *models.Card) error {
	if card.Version == 0 {
		card.Version = 1
	}

	query := r.sb.Insert("cards").
		Columns("front", "back", "deck_name", "ease_factor", "interval_days", "repetitions",
			"version", "created_at", "updated_at", "next_review", "last_reviewed").
		Values(card.Front, card.Back, card.DeckName, card.EaseFactor, card.Interval, card.Repetitions,
			card.Version, utils.DBTime(card.CreatedAt), utils.DBTime(card.UpdatedAt),
			utils.DBTime(card.NextReview), nullableTime(card.LastReviewed))

	id, err := r.insertReturningID(ctx, query)
	if err != nil {
		return fmt.Errorf("create card (deck_name: %s): %w", card.DeckName, err)
	}

	card.ID = id
	return nil
}

func (r *DB) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	sqlStr, args, err := r.selectCards().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (id: %d): %w", id, err)
	}

	var card models.Card
	if err := r.GetContext(ctx, &card, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get card (id: %d): %w", id, models.ErrCardNotFound)
		}
		return nil, fmt.Errorf("get card (id: %d): %w", id, err)
	}

	return &card, nil
}

// UpdateCardContent writes front, back and deck_name if the stored version
// still matches card.Version. On success card.Version is advanced.
func (r *DB) UpdateCardContent(ctx context.Context, card *models.Card) error {
	query := r.sb.Update("cards").
		Set("front", card.Front).
		Set("back", card.Back).
		Set("deck_name", card.DeckName).
		Set("updated_at", utils.DBTime(card.UpdatedAt)).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": card.ID, "version": card.Version})

	if err := r.execVersioned(ctx, query, card.ID); err != nil {
		return fmt.Errorf("update card content (id: %d): %w", card.ID, err)
	}

	card.Version++
	return nil
}

// UpdateCardSchedule writes the scheduling field group as one statement,
// guarded by the optimistic version.
func (r *DB) UpdateCardSchedule(ctx context.Context, card *models.Card) error {
	query := r.sb.Update("cards").
		Set("ease_factor", card.EaseFactor).
		Set("interval_days", card.Interval).
		Set("repetitions", card.Repetitions).
		Set("next_review", utils.DBTime(card.NextReview)).
		Set("last_reviewed", nullableTime(card.LastReviewed)).
		Set("updated_at", utils.DBTime(card.UpdatedAt)).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": card.ID, "version": card.Version})

	if err := r.execVersioned(ctx, query, card.ID); err != nil {
		return fmt.Errorf("update card schedule (id: %d, version: %d): %w", card.ID, card.Version, err)
	}

	card.Version++
	return nil
}

func (r *DB) execVersioned(ctx context.Context, query squirrel.UpdateBuilder, id int64) error {
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
		return models.ErrConflict
	}
	return nil
}

func (r *DB) DeleteCard(ctx context.Context, id int64) error {
	sqlStr, args, err := r.sb.Delete("cards").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (id: %d): %w", id, err)
	}

	res, err := r.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete card (id: %d): %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete card (id: %d): %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete card (id: %d): %w", id, models.ErrCardNotFound)
	}
	return nil
}

func (r *DB) ListCards(ctx context.Context, filter models.CardFilter) ([]*models.Card, error) {
	query := withDeck(r.selectCards(), filter.DeckName).OrderBy("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	return r.selectCardList(ctx, query, "list cards (deck_name: %q)", filter.DeckName)
}

func (r *DB) CountCards(ctx context.Context, deckName string) (int, error) {
	query := withDeck(r.sb.Select("COUNT(*)").From("cards"), deckName)
	return r.count(ctx, query, "count cards (deck_name: %q)", deckName)
}

// ListDueCards returns cards with next_review at or before the cutoff,
// oldest first with ties broken by id.
func (r *DB) ListDueCards(ctx context.Context, before time.Time, deckName string, limit uint64) ([]*models.Card, error) {
	query := withDeck(r.selectCards(), deckName).
		Where(squirrel.LtOrEq{"next_review": utils.DBTime(before)}).
		OrderBy("next_review ASC", "id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	return r.selectCardList(ctx, query, "list due cards (before: %s, deck_name: %q)", before.Format(time.RFC3339), deckName)
}

func (r *DB) CountDueCards(ctx context.Context, before time.Time, deckName string) (int, error) {
	query := withDeck(r.sb.Select("COUNT(*)").From("cards"), deckName).
		Where(squirrel.LtOrEq{"next_review": utils.DBTime(before)})
	return r.count(ctx, query, "count due cards (before: %s, deck_name: %q)", before.Format(time.RFC3339), deckName)
}

// ListCardsDueBetween returns cards with next_review in [from, to], both ends inclusive.
func (r *DB) ListCardsDueBetween(ctx context.Context, from, to time.Time) ([]*models.Card, error) {
	query := r.selectCards().
		Where(squirrel.GtOrEq{"next_review": utils.DBTime(from)}).
		Where(squirrel.LtOrEq{"next_review": utils.DBTime(to)}).
		OrderBy("next_review ASC", "id ASC")

	return r.selectCardList(ctx, query, "list cards due between (from: %s, to: %s)", from.Format(time.RFC3339), to.Format(time.RFC3339))
}

// ListCardsReviewedBetween returns cards of a deck whose last review falls in [from, to).
func (r *DB) ListCardsReviewedBetween(ctx context.Context, deckName string, from, to time.Time) ([]*models.Card, error) {
	query := withDeck(r.selectCards(), deckName).
		Where(squirrel.GtOrEq{"last_reviewed": utils.DBTime(from)}).
		Where(squirrel.Lt{"last_reviewed": utils.DBTime(to)}).
		OrderBy("last_reviewed ASC", "id ASC")

	return r.selectCardList(ctx, query, "list cards reviewed between (deck_name: %q, from: %s)", deckName, from.Format(time.RFC3339))
}

func (r *DB) selectCardList(ctx context.Context, query squirrel.SelectBuilder, format string, args ...any) ([]*models.Card, error) {
	sqlStr, queryArgs, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query: %w", err)
	}

	cards := make([]*models.Card, 0)
	if err := r.SelectContext(ctx, &cards, sqlStr, queryArgs...); err != nil {
		return nil, fmt.Errorf(format+": %w", append(args, err)...)
	}
	return cards, nil
}

func (r *DB) count(ctx context.Context, query squirrel.SelectBuilder, format string, args ...any) (int, error) {
	sqlStr, queryArgs, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build SQL query: %w", err)
	}

	var n int
	if err := r.QueryRowxContext(ctx, sqlStr, queryArgs...).Scan(&n); err != nil {
		return 0, fmt.Errorf(format+": %w", append(args, err)...)
	}
	return n, nil
}
