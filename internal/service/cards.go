package service

import (
	"context"
	"fmt"

	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/romanzh1/mnemosyne/internal/service/srs"
	"go.uber.org/zap"
)

func deckOrDefault(deck string) string {
	if deck == "" {
		return models.DefaultDeck
	}
	return deck
}

func (s *Service) CreateCard(ctx context.Context, in models.CreateCardInput) (*models.Card, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	now := s.now()
	card := &models.Card{
		Front:       in.Front,
		Back:        in.Back,
		DeckName:    deckOrDefault(in.DeckName),
		EaseFactor:  models.DefaultEaseFactor,
		Interval:    models.DefaultInterval,
		Repetitions: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextReview:  now,
	}

	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("create card (deck_name: %s): %w", card.DeckName, err)
	}

	zap.L().Info("card created", zap.Int64("card_id", card.ID), zap.String("deck_name", card.DeckName))
	return card, nil
}

func (s *Service) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	card, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateCard edits card content. Scheduling fields are only changed by reviews.
func (s *Service) UpdateCard(ctx context.Context, id int64, in models.UpdateCardInput) (*models.Card, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.Front != nil && *in.Front == "" {
		return nil, models.NewValidationError("front", "is required")
	}
	if in.Back != nil && *in.Back == "" {
		return nil, models.NewValidationError("back", "is required")
	}

	var updated *models.Card
	err := s.withConflictRetry(ctx, "update card", func(ctx context.Context) error {
		return s.repo.RunInTx(ctx, func(tx models.Repository) error {
			card, err := tx.GetCard(ctx, id)
			if err != nil {
				return err
			}

			if in.Front != nil {
				card.Front = *in.Front
			}
			if in.Back != nil {
				card.Back = *in.Back
			}
			if in.DeckName != nil {
				card.DeckName = deckOrDefault(*in.DeckName)
			}
			card.UpdatedAt = s.now()

			if err := tx.UpdateCardContent(ctx, card); err != nil {
				return err
			}
			updated = card
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update card (id: %d): %w", id, err)
	}

	return updated, nil
}

func (s *Service) DeleteCard(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCard(ctx, id); err != nil {
		return err
	}

	zap.L().Info("card deleted", zap.Int64("card_id", id))
	return nil
}

func (s *Service) ListCards(ctx context.Context, page, size int, deckName string) (*models.PagedCards, error) {
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = defaultPageSize
	}
	if page < 1 {
		return nil, models.NewValidationError("page", "must be at least 1")
	}
	if err := checkRange("size", size, 1, maxPageSize); err != nil {
		return nil, err
	}

	total, err := s.repo.CountCards(ctx, deckName)
	if err != nil {
		return nil, fmt.Errorf("count cards (deck_name: %q): %w", deckName, err)
	}

	cards, err := s.repo.ListCards(ctx, models.CardFilter{
		DeckName: deckName,
		Offset:   uint64((page - 1) * size),
		Limit:    uint64(size),
	})
	if err != nil {
		return nil, fmt.Errorf("list cards (page: %d, size: %d): %w", page, size, err)
	}

	return &models.PagedCards{
		Cards: cards,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: (total + size - 1) / size,
	}, nil
}

// ListDueCards returns up to limit cards due now, earliest first, together
// with the total number of due cards matching the deck filter.
func (s *Service) ListDueCards(ctx context.Context, deckName string, limit int) (*models.DueCards, error) {
	if limit == 0 {
		limit = defaultDueLimit
	}
	if err := checkRange("limit", limit, 1, maxDueLimit); err != nil {
		return nil, err
	}

	now := s.now()
	cards, err := s.repo.ListDueCards(ctx, now, deckName, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("list due cards (deck_name: %q): %w", deckName, err)
	}

	total, err := s.repo.CountDueCards(ctx, now, deckName)
	if err != nil {
		return nil, fmt.Errorf("count due cards (deck_name: %q): %w", deckName, err)
	}

	return &models.DueCards{Cards: cards, Total: total, Limit: limit}, nil
}

// reviewQuality validates a review input and returns its grade.
func (s *Service) reviewQuality(in any, quality *int) (int, error) {
	if err := s.check(in); err != nil {
		return 0, err
	}
	if quality == nil {
		return 0, models.NewValidationError("quality", "is required")
	}
	if !srs.ValidQuality(*quality) {
		return 0, models.NewValidationError("quality", "must be between %d and %d", srs.MinQuality, srs.MaxQuality)
	}
	return *quality, nil
}

// applyReview grades a card inside tx: it writes the new schedule and logs
// the review. sessionID is nil for standalone reviews.
func (s *Service) applyReview(ctx context.Context, tx models.Repository, cardID int64, sessionID *int64, quality int, responseTime float64) (*models.Card, error) {
	card, err := tx.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := srs.Next(quality, srs.State{
		EaseFactor:  card.EaseFactor,
		Interval:    card.Interval,
		Repetitions: card.Repetitions,
	}, now)

	card.EaseFactor = next.EaseFactor
	card.Interval = next.Interval
	card.Repetitions = next.Repetitions
	card.NextReview = next.NextReview
	card.LastReviewed = &now
	card.UpdatedAt = now

	if err := tx.UpdateCardSchedule(ctx, card); err != nil {
		return nil, err
	}

	review := &models.CardReview{
		ID:           s.ids.New(),
		SessionID:    sessionID,
		CardID:       card.ID,
		Quality:      quality,
		ResponseTime: responseTime,
		ReviewedAt:   now,
	}
	if err := tx.AddCardReview(ctx, review); err != nil {
		return nil, err
	}

	return card, nil
}

func (s *Service) ReviewCard(ctx context.Context, id int64, in models.ReviewInput) (*models.Card, error) {
	quality, err := s.reviewQuality(in, in.Quality)
	if err != nil {
		return nil, err
	}

	var reviewed *models.Card
	err = s.withConflictRetry(ctx, "review card", func(ctx context.Context) error {
		return s.repo.RunInTx(ctx, func(tx models.Repository) error {
			card, err := s.applyReview(ctx, tx, id, nil, quality, in.ResponseTime)
			if err != nil {
				return err
			}
			reviewed = card
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("review card (id: %d, quality: %d): %w", id, quality, err)
	}

	zap.L().Debug("card reviewed",
		zap.Int64("card_id", id),
		zap.Int("quality", quality),
		zap.Int("interval", reviewed.Interval),
		zap.Time("next_review", reviewed.NextReview),
	)
	return reviewed, nil
}

func (s *Service) ListCardReviews(ctx context.Context, id int64) ([]*models.CardReview, error) {
	if _, err := s.repo.GetCard(ctx, id); err != nil {
		return nil, err
	}

	reviews, err := s.repo.ListCardReviews(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list card reviews (card_id: %d): %w", id, err)
	}
	return reviews, nil
}
