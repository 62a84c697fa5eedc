package service

import (
	"context"
	"fmt"

	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/romanzh1/mnemosyne/internal/service/progress"
	"github.com/romanzh1/mnemosyne/internal/service/srs"
	"go.uber.org/zap"
)

func (s *Service) StartSession(ctx context.Context, in models.StartSessionInput) (*models.StudySession, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	if in.SessionType == "" {
		in.SessionType = models.SessionTypeReview
	}
	if in.MaxCards == 0 {
		in.MaxCards = models.DefaultMaxCards
	}
	if in.DeckName != nil && *in.DeckName == "" {
		in.DeckName = nil
	}

	session := &models.StudySession{
		DeckName:    in.DeckName,
		SessionType: in.SessionType,
		MaxCards:    in.MaxCards,
		StartedAt:   s.now(),
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("start session (session_type: %s): %w", session.SessionType, err)
	}

	zap.L().Info("study session started",
		zap.Int64("session_id", session.ID),
		zap.Stringp("deck_name", session.DeckName),
		zap.Int("max_cards", session.MaxCards),
	)
	return session, nil
}

// NextCard peeks at the earliest due card for the session. Nothing is marked
// as shown, so repeated calls return the same card until it is reviewed.
func (s *Service) NextCard(ctx context.Context, sessionID int64) (*models.NextCard, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.CardsStudied >= session.MaxCards {
		return &models.NextCard{Complete: true}, nil
	}

	deck := ""
	if session.DeckName != nil {
		deck = *session.DeckName
	}

	cards, err := s.repo.ListDueCards(ctx, s.now(), deck, 1)
	if err != nil {
		return nil, fmt.Errorf("next card (session_id: %d): %w", sessionID, err)
	}

	if len(cards) == 0 {
		return &models.NextCard{Complete: true}, nil
	}
	return &models.NextCard{Card: cards[0]}, nil
}

// SubmitSessionReview grades a card and counts it against the session. The
// card update, the review log entry and the counters commit together.
func (s *Service) SubmitSessionReview(ctx context.Context, sessionID int64, in models.SessionReviewInput) (*models.StudySession, error) {
	quality, err := s.reviewQuality(in, in.Quality)
	if err != nil {
		return nil, err
	}

	var session *models.StudySession
	err = s.withConflictRetry(ctx, "session review", func(ctx context.Context) error {
		return s.repo.RunInTx(ctx, func(tx models.Repository) error {
			if _, err := tx.GetSession(ctx, sessionID); err != nil {
				return err
			}

			if _, err := s.applyReview(ctx, tx, in.CardID, &sessionID, quality, in.ResponseTime); err != nil {
				return err
			}

			if err := tx.IncrementSessionCounters(ctx, sessionID, srs.IsCorrect(quality)); err != nil {
				return err
			}

			updated, err := tx.GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			session = updated
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("submit session review (session_id: %d, card_id: %d): %w", sessionID, in.CardID, err)
	}

	zap.L().Debug("session review applied",
		zap.Int64("session_id", sessionID),
		zap.Int64("card_id", in.CardID),
		zap.Int("quality", quality),
		zap.Int("cards_studied", session.CardsStudied),
	)
	return session, nil
}

// EndSession stamps ended_at. Ending an already ended session stamps it again.
func (s *Service) EndSession(ctx context.Context, sessionID int64) (*models.StudySession, error) {
	if err := s.repo.EndSession(ctx, sessionID, s.now()); err != nil {
		return nil, err
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	zap.L().Info("study session ended",
		zap.Int64("session_id", session.ID),
		zap.Int("cards_studied", session.CardsStudied),
		zap.Int("cards_correct", session.CardsCorrect),
	)
	return session, nil
}

func (s *Service) GetStudyStats(ctx context.Context) (*models.StudyStats, error) {
	totals, err := s.repo.GetSessionTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("get study stats: %w", err)
	}

	stats := progress.StudyStats(*totals)
	return &stats, nil
}
