package service

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/romanzh1/mnemosyne/internal/service/progress"
	"github.com/romanzh1/mnemosyne/pkg/utils"
	"go.uber.org/zap"
)

func (s *Service) parseDate(field, value string) (time.Time, error) {
	t, err := utils.ParseDate(value, s.loc)
	if err != nil {
		return time.Time{}, models.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

func (s *Service) GetDueCount(ctx context.Context, date string) (*models.DueCount, error) {
	day, err := s.parseDate("date", date)
	if err != nil {
		return nil, err
	}

	cards, err := s.repo.ListDueCards(ctx, day, "", 0)
	if err != nil {
		return nil, fmt.Errorf("get due count (date: %s): %w", date, err)
	}

	result := progress.DueCount(day, cards, s.loc)
	return &result, nil
}

func (s *Service) GetWeeklyProgress(ctx context.Context, startDate string) (*models.WeeklyProgress, error) {
	start, err := s.parseDate("start_date", startDate)
	if err != nil {
		return nil, err
	}

	sessions, err := s.repo.ListSessionsStartedBetween(ctx, start, utils.AddDays(start, progress.WeekDays))
	if err != nil {
		return nil, fmt.Errorf("get weekly progress (start_date: %s): %w", startDate, err)
	}

	result := progress.WeeklyProgress(start, sessions, s.loc)
	return &result, nil
}

func (s *Service) GetStreak(ctx context.Context) (*models.Streak, error) {
	starts, err := s.repo.ListSessionStartTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}

	result := progress.Streak(starts, s.now(), s.loc)
	return &result, nil
}

func (s *Service) GetHeatmap(ctx context.Context, yearMonth string) (*models.Heatmap, error) {
	month, err := utils.ParseYearMonth(yearMonth, s.loc)
	if err != nil {
		return nil, models.NewValidationError("year_month", "must be in YYYY-MM format")
	}

	sessions, err := s.repo.ListSessionsStartedBetween(ctx, month, month.AddDate(0, 1, 0))
	if err != nil {
		return nil, fmt.Errorf("get heatmap (year_month: %s): %w", yearMonth, err)
	}

	result := progress.Heatmap(month, sessions, s.loc)
	return &result, nil
}

func (s *Service) GetDeckProgress(ctx context.Context, deckName string, days int) (*models.DeckProgress, error) {
	if deckName == "" {
		return nil, models.NewValidationError("deck_name", "is required")
	}
	if days == 0 {
		days = defaultPeriodDays
	}
	if err := checkRange("days", days, 1, maxPeriodDays); err != nil {
		return nil, err
	}

	now := s.now()
	today := utils.StartOfDayIn(now, s.loc)
	from := utils.AddDays(today, -(days - 1))

	total, err := s.repo.CountCards(ctx, deckName)
	if err != nil {
		return nil, fmt.Errorf("get deck progress (deck_name: %s): %w", deckName, err)
	}

	reviewed, err := s.repo.ListCardsReviewedBetween(ctx, deckName, from, utils.AddDays(today, 1))
	if err != nil {
		return nil, fmt.Errorf("get deck progress (deck_name: %s): %w", deckName, err)
	}

	result := progress.DeckProgress(deckName, days, now, total, reviewed, s.loc)
	return &result, nil
}

func (s *Service) GetUpcoming(ctx context.Context, days int) (*models.Upcoming, error) {
	if days == 0 {
		days = defaultUpcoming
	}
	if err := checkRange("days", days, 1, maxPeriodDays); err != nil {
		return nil, err
	}

	now := s.now()
	cards, err := s.repo.ListCardsDueBetween(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("get upcoming (days: %d): %w", days, err)
	}

	result := progress.Upcoming(days, now, cards, s.loc)
	return &result, nil
}

func (s *Service) CreateReminder(ctx context.Context, in models.ReminderInput) (*models.Reminder, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	at, err := utils.ParseClock(in.Time)
	if err != nil {
		return nil, models.NewValidationError("time", "must be a time of day in HH:MM format")
	}

	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	reminder := &models.Reminder{
		Time:      at.Format(utils.ClockLayout),
		Enabled:   enabled,
		DeckNames: in.DeckNames,
		CreatedAt: s.now(),
	}

	if err := s.repo.CreateReminder(ctx, reminder); err != nil {
		return nil, fmt.Errorf("create reminder (time: %s): %w", reminder.Time, err)
	}

	zap.L().Info("reminder saved", zap.Int64("reminder_id", reminder.ID), zap.String("time", reminder.Time))
	return reminder, nil
}

func (s *Service) ListReminders(ctx context.Context) ([]*models.Reminder, error) {
	reminders, err := s.repo.ListReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}
