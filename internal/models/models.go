package models

import "time"

const (
	DefaultDeck = "default"

	DefaultEaseFactor = 2.5
	DefaultInterval   = 1

	SessionTypeReview = "review"
	SessionTypeNew    = "new"
	SessionTypeMixed  = "mixed"

	DefaultMaxCards = 20
)

type Card struct {
	ID           int64      `db:"id" json:"id"`
	Front        string     `db:"front" json:"front"`
	Back         string     `db:"back" json:"back"`
	DeckName     string     `db:"deck_name" json:"deck_name"`
	EaseFactor   float64    `db:"ease_factor" json:"ease_factor"`
	Interval     int        `db:"interval_days" json:"interval"`
	Repetitions  int        `db:"repetitions" json:"repetitions"`
	Version      int64      `db:"version" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	NextReview   time.Time  `db:"next_review" json:"next_review"`
	LastReviewed *time.Time `db:"last_reviewed" json:"last_reviewed"`
}

type StudySession struct {
	ID           int64      `db:"id" json:"id"`
	DeckName     *string    `db:"deck_name" json:"deck_name"`
	SessionType  string     `db:"session_type" json:"session_type"`
	MaxCards     int        `db:"max_cards" json:"max_cards"`
	CardsStudied int        `db:"cards_studied" json:"cards_studied"`
	CardsCorrect int        `db:"cards_correct" json:"cards_correct"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	EndedAt      *time.Time `db:"ended_at" json:"ended_at"`
}

// CardReview is one entry of the append-only review log. SessionID is nil
// for reviews submitted outside of a study session.
type CardReview struct {
	ID           string    `db:"id" json:"id"`
	SessionID    *int64    `db:"session_id" json:"session_id"`
	CardID       int64     `db:"card_id" json:"card_id"`
	Quality      int       `db:"quality" json:"quality"`
	ResponseTime float64   `db:"response_time" json:"response_time"`
	ReviewedAt   time.Time `db:"reviewed_at" json:"reviewed_at"`
}

// Reminder holds study reminder settings. Delivery is handled elsewhere.
type Reminder struct {
	ID        int64     `db:"id" json:"id"`
	Time      string    `db:"remind_at" json:"time"`
	Enabled   bool      `db:"enabled" json:"enabled"`
	DeckNames []string  `db:"-" json:"deck_names"`
	DecksJSON string    `db:"deck_names" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CardFilter narrows card listings. Empty DeckName matches every deck.
type CardFilter struct {
	DeckName string
	Offset   uint64
	Limit    uint64
}

type SessionTotals struct {
	Sessions     int `db:"sessions"`
	CardsStudied int `db:"cards_studied"`
	CardsCorrect int `db:"cards_correct"`
}

type PagedCards struct {
	Cards []*Card `json:"cards"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Size  int     `json:"size"`
	Pages int     `json:"pages"`
}

type DueCards struct {
	Cards []*Card `json:"cards"`
	Total int     `json:"total"`
	Limit int     `json:"limit"`
}

// NextCard is the answer of a session peek: either a card to show or a
// signal that the session has nothing more to offer.
type NextCard struct {
	Card     *Card `json:"card"`
	Complete bool  `json:"session_complete"`
}

type SessionState struct {
	*StudySession
	Complete bool `json:"session_complete"`
}

type StudyStats struct {
	TotalSessions     int     `json:"total_sessions"`
	TotalCardsStudied int     `json:"total_cards_studied"`
	AverageAccuracy   float64 `json:"average_accuracy"`
}

type DueCount struct {
	Date     string         `json:"date"`
	DueCount int            `json:"due_count"`
	ByDeck   map[string]int `json:"by_deck"`
}

type DailyStat struct {
	Date         string  `json:"date"`
	Sessions     int     `json:"sessions"`
	CardsStudied int     `json:"cards_studied"`
	Accuracy     float64 `json:"accuracy"`
}

type WeeklyProgress struct {
	StartDate  string      `json:"start_date"`
	EndDate    string      `json:"end_date"`
	DailyStats []DailyStat `json:"daily_stats"`
}

type Streak struct {
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	LastStudyDate *string `json:"last_study_date"`
}

type HeatmapDay struct {
	Date         string  `json:"date"`
	Sessions     int     `json:"sessions"`
	CardsStudied int     `json:"cards_studied"`
	Intensity    float64 `json:"intensity"`
}

type Heatmap struct {
	YearMonth    string       `json:"year_month"`
	ActivityData []HeatmapDay `json:"activity_data"`
}

type DeckProgressDay struct {
	Date            string  `json:"date"`
	TotalCards      int     `json:"total_cards"`
	ReviewedCards   int     `json:"reviewed_cards"`
	ProgressPercent float64 `json:"progress_percent"`
}

type DeckProgress struct {
	DeckName     string            `json:"deck_name"`
	PeriodDays   int               `json:"period_days"`
	ProgressData []DeckProgressDay `json:"progress_data"`
}

type UpcomingDay struct {
	Date      string   `json:"date"`
	CardCount int      `json:"card_count"`
	Decks     []string `json:"decks"`
}

type Upcoming struct {
	PeriodDays      int           `json:"period_days"`
	UpcomingReviews []UpcomingDay `json:"upcoming_reviews"`
}
