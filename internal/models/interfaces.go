package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the transactional store behind the service. Every deck
// argument treats an empty string as "all decks".
type Repository interface {
	RunInTx(ctx context.Context, fn func(Repository) error) error

	CreateCard(ctx context.Context, card *Card) error
	GetCard(ctx context.Context, id int64) (*Card, error)
	UpdateCardContent(ctx context.Context, card *Card) error
	UpdateCardSchedule(ctx context.Context, card *Card) error
	DeleteCard(ctx context.Context, id int64) error
	ListCards(ctx context.Context, filter CardFilter) ([]*Card, error)
	CountCards(ctx context.Context, deckName string) (int, error)
	ListDueCards(ctx context.Context, before time.Time, deckName string, limit uint64) ([]*Card, error)
	CountDueCards(ctx context.Context, before time.Time, deckName string) (int, error)
	ListCardsDueBetween(ctx context.Context, from, to time.Time) ([]*Card, error)
	ListCardsReviewedBetween(ctx context.Context, deckName string, from, to time.Time) ([]*Card, error)

	CreateSession(ctx context.Context, session *StudySession) error
	GetSession(ctx context.Context, id int64) (*StudySession, error)
	IncrementSessionCounters(ctx context.Context, id int64, correct bool) error
	EndSession(ctx context.Context, id int64, endedAt time.Time) error
	ListSessionsStartedBetween(ctx context.Context, from, to time.Time) ([]*StudySession, error)
	ListSessionStartTimes(ctx context.Context) ([]time.Time, error)
	GetSessionTotals(ctx context.Context) (*SessionTotals, error)

	AddCardReview(ctx context.Context, review *CardReview) error
	ListCardReviews(ctx context.Context, cardID int64) ([]*CardReview, error)

	CreateReminder(ctx context.Context, reminder *Reminder) error
	ListReminders(ctx context.Context) ([]*Reminder, error)
}

type Service interface {
	CreateCard(ctx context.Context, in CreateCardInput) (*Card, error)
	GetCard(ctx context.Context, id int64) (*Card, error)
	UpdateCard(ctx context.Context, id int64, in UpdateCardInput) (*Card, error)
	DeleteCard(ctx context.Context, id int64) error
	ListCards(ctx context.Context, page, size int, deckName string) (*PagedCards, error)
	ListDueCards(ctx context.Context, deckName string, limit int) (*DueCards, error)
	ReviewCard(ctx context.Context, id int64, in ReviewInput) (*Card, error)
	ListCardReviews(ctx context.Context, id int64) ([]*CardReview, error)

	StartSession(ctx context.Context, in StartSessionInput) (*StudySession, error)
	NextCard(ctx context.Context, sessionID int64) (*NextCard, error)
	SubmitSessionReview(ctx context.Context, sessionID int64, in SessionReviewInput) (*StudySession, error)
	EndSession(ctx context.Context, sessionID int64) (*StudySession, error)
	GetStudyStats(ctx context.Context) (*StudyStats, error)

	GetDueCount(ctx context.Context, date string) (*DueCount, error)
	GetWeeklyProgress(ctx context.Context, startDate string) (*WeeklyProgress, error)
	GetStreak(ctx context.Context) (*Streak, error)
	GetHeatmap(ctx context.Context, yearMonth string) (*Heatmap, error)
	GetDeckProgress(ctx context.Context, deckName string, days int) (*DeckProgress, error)
	GetUpcoming(ctx context.Context, days int) (*Upcoming, error)

	CreateReminder(ctx context.Context, in ReminderInput) (*Reminder, error)
	ListReminders(ctx context.Context) ([]*Reminder, error)
}

// Clock abstracts "now" so scheduling and analytics are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type IDGenerator interface {
	New() string
}

type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
