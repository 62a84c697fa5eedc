package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/romanzh1/mnemosyne/pkg/utils"
)

func (r *DB) AddCardReview(ctx context.Context, review *models.CardReview) error {
	query := r.sb.Insert("card_reviews").
		Columns("id", "session_id", "card_id", "quality", "response_time", "reviewed_at").
		Values(review.ID, review.SessionID, review.CardID, review.Quality, review.ResponseTime, utils.DBTime(review.ReviewedAt))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (card_id: %d): %w", review.CardID, err)
	}

	if _, err := r.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("add card review (card_id: %d, quality: %d): %w", review.CardID, review.Quality, err)
	}
	return nil
}

// ListCardReviews returns the review history of a card, newest first.
func (r *DB) ListCardReviews(ctx context.Context, cardID int64) ([]*models.CardReview, error) {
	sqlStr, args, err := r.sb.Select("id", "session_id", "card_id", "quality", "response_time", "reviewed_at").
		From("card_reviews").
		Where(squirrel.Eq{"card_id": cardID}).
		OrderBy("reviewed_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (card_id: %d): %w", cardID, err)
	}

	reviews := make([]*models.CardReview, 0)
	if err := r.SelectContext(ctx, &reviews, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list card reviews (card_id: %d): %w", cardID, err)
	}
	return reviews, nil
}
