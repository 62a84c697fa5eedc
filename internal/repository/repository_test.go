package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/romanzh1/mnemosyne/internal/models"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	return db
}

func newCard(front, deck string, nextReview time.Time) *models.Card {
	return &models.Card{
		Front:      front,
		Back:       front + " back",
		DeckName:   deck,
		EaseFactor: models.DefaultEaseFactor,
		Interval:   models.DefaultInterval,
		CreatedAt:  t0,
		UpdatedAt:  t0,
		NextReview: nextReview,
	}
}

func mustCreateCard(t *testing.T, db *DB, card *models.Card) *models.Card {
	t.Helper()
	if err := db.CreateCard(context.Background(), card); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	return card
}

func TestUpVersion(t *testing.T) {
	db := newTestDB(t)

	version, err := db.Up(context.Background())
	if err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
}

func TestCardCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	card := mustCreateCard(t, db, newCard("hola", "Spanish", t0))
	if card.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}

	got, err := db.GetCard(ctx, card.ID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.Front != "hola" || got.DeckName != "Spanish" {
		t.Errorf("got %q/%q, want hola/Spanish", got.Front, got.DeckName)
	}
	if !got.NextReview.Equal(t0) {
		t.Errorf("NextReview = %v, want %v", got.NextReview, t0)
	}
	if got.LastReviewed != nil {
		t.Errorf("LastReviewed = %v, want nil", got.LastReviewed)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}

	got.Front = "adiós"
	got.UpdatedAt = t0.Add(time.Hour)
	if err := db.UpdateCardContent(ctx, got); err != nil {
		t.Fatalf("UpdateCardContent: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version after update = %d, want 2", got.Version)
	}

	if err := db.DeleteCard(ctx, card.ID); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	if _, err := db.GetCard(ctx, card.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetCard after delete: got %v, want ErrNotFound", err)
	}
	if err := db.DeleteCard(ctx, card.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second DeleteCard: got %v, want ErrNotFound", err)
	}
}

func TestUpdateCardScheduleVersionConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	card := mustCreateCard(t, db, newCard("q", "default", t0))

	first, _ := db.GetCard(ctx, card.ID)
	second, _ := db.GetCard(ctx, card.ID)

	reviewed := t0.Add(time.Minute)
	first.Interval = 6
	first.Repetitions = 2
	first.NextReview = t0.AddDate(0, 0, 6)
	first.LastReviewed = &reviewed
	if err := db.UpdateCardSchedule(ctx, first); err != nil {
		t.Fatalf("first UpdateCardSchedule: %v", err)
	}

	second.Interval = 1
	if err := db.UpdateCardSchedule(ctx, second); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("stale UpdateCardSchedule: got %v, want ErrConflict", err)
	}

	got, _ := db.GetCard(ctx, card.ID)
	if got.Interval != 6 || got.Repetitions != 2 {
		t.Errorf("got interval=%d reps=%d, want 6/2", got.Interval, got.Repetitions)
	}
	if got.LastReviewed == nil || !got.LastReviewed.Equal(reviewed) {
		t.Errorf("LastReviewed = %v, want %v", got.LastReviewed, reviewed)
	}
}

func TestListDueCardsOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c1 := mustCreateCard(t, db, newCard("a", "Math", t0))
	c2 := mustCreateCard(t, db, newCard("b", "Math", t0.Add(-time.Hour)))
	c3 := mustCreateCard(t, db, newCard("c", "Math", t0))
	mustCreateCard(t, db, newCard("d", "Math", t0.Add(time.Hour)))
	mustCreateCard(t, db, newCard("e", "History", t0.Add(-2*time.Hour)))

	cards, err := db.ListDueCards(ctx, t0, "Math", 0)
	if err != nil {
		t.Fatalf("ListDueCards: %v", err)
	}

	want := []int64{c2.ID, c1.ID, c3.ID}
	if len(cards) != len(want) {
		t.Fatalf("got %d cards, want %d", len(cards), len(want))
	}
	for i, id := range want {
		if cards[i].ID != id {
			t.Errorf("cards[%d].ID = %d, want %d", i, cards[i].ID, id)
		}
	}

	all, err := db.ListDueCards(ctx, t0, "", 2)
	if err != nil {
		t.Fatalf("ListDueCards all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("limit: got %d cards, want 2", len(all))
	}

	total, err := db.CountDueCards(ctx, t0, "")
	if err != nil {
		t.Fatalf("CountDueCards: %v", err)
	}
	if total != 4 {
		t.Errorf("CountDueCards = %d, want 4", total)
	}
}

func TestListCardsPaging(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, front := range []string{"1", "2", "3", "4", "5"} {
		mustCreateCard(t, db, newCard(front, "default", t0))
	}
	mustCreateCard(t, db, newCard("x", "Other", t0))

	page, err := db.ListCards(ctx, models.CardFilter{DeckName: "default", Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(page) != 2 || page[0].Front != "3" || page[1].Front != "4" {
		t.Errorf("unexpected page: %+v", page)
	}

	n, err := db.CountCards(ctx, "default")
	if err != nil {
		t.Fatalf("CountCards: %v", err)
	}
	if n != 5 {
		t.Errorf("CountCards(default) = %d, want 5", n)
	}

	n, _ = db.CountCards(ctx, "")
	if n != 6 {
		t.Errorf("CountCards(all) = %d, want 6", n)
	}
}

func TestCardsInRanges(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustCreateCard(t, db, newCard("past", "default", t0.Add(-time.Minute)))
	mustCreateCard(t, db, newCard("now", "default", t0))
	mustCreateCard(t, db, newCard("edge", "default", t0.AddDate(0, 0, 7)))
	mustCreateCard(t, db, newCard("late", "default", t0.AddDate(0, 0, 7).Add(time.Second)))

	upcoming, err := db.ListCardsDueBetween(ctx, t0, t0.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("ListCardsDueBetween: %v", err)
	}
	if len(upcoming) != 2 || upcoming[0].Front != "now" || upcoming[1].Front != "edge" {
		t.Errorf("unexpected upcoming cards: %d", len(upcoming))
	}

	reviewedAt := t0.Add(2 * time.Hour)
	card := mustCreateCard(t, db, newCard("reviewed", "Deck", t0))
	card.LastReviewed = &reviewedAt
	if err := db.UpdateCardSchedule(ctx, card); err != nil {
		t.Fatalf("UpdateCardSchedule: %v", err)
	}

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	reviewed, err := db.ListCardsReviewedBetween(ctx, "Deck", day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListCardsReviewedBetween: %v", err)
	}
	if len(reviewed) != 1 {
		t.Errorf("got %d reviewed cards, want 1", len(reviewed))
	}

	reviewed, _ = db.ListCardsReviewedBetween(ctx, "default", day, day.AddDate(0, 0, 1))
	if len(reviewed) != 0 {
		t.Errorf("other deck: got %d reviewed cards, want 0", len(reviewed))
	}
}

func TestSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	deck := "Math"
	session := &models.StudySession{DeckName: &deck, SessionType: models.SessionTypeReview, MaxCards: 5, StartedAt: t0}
	if err := db.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := db.IncrementSessionCounters(ctx, session.ID, true); err != nil {
		t.Fatalf("IncrementSessionCounters: %v", err)
	}
	if err := db.IncrementSessionCounters(ctx, session.ID, false); err != nil {
		t.Fatalf("IncrementSessionCounters: %v", err)
	}

	got, err := db.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CardsStudied != 2 || got.CardsCorrect != 1 {
		t.Errorf("counters = %d/%d, want 2/1", got.CardsStudied, got.CardsCorrect)
	}
	if got.DeckName == nil || *got.DeckName != "Math" {
		t.Errorf("DeckName = %v, want Math", got.DeckName)
	}

	ended := t0.Add(time.Hour)
	if err := db.EndSession(ctx, session.ID, ended); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	got, _ = db.GetSession(ctx, session.ID)
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Errorf("EndedAt = %v, want %v", got.EndedAt, ended)
	}

	if err := db.IncrementSessionCounters(ctx, 999, true); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("increment missing session: got %v, want ErrNotFound", err)
	}
	if _, err := db.GetSession(ctx, 999); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetSession missing: got %v, want ErrNotFound", err)
	}
}

func TestSessionHistoryQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, start := range []time.Time{t0.AddDate(0, 0, -2), t0, t0.Add(time.Hour)} {
		s := &models.StudySession{SessionType: models.SessionTypeReview, MaxCards: 20, CardsStudied: i + 1, CardsCorrect: i, StartedAt: start}
		if err := db.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	starts, err := db.ListSessionStartTimes(ctx)
	if err != nil {
		t.Fatalf("ListSessionStartTimes: %v", err)
	}
	if len(starts) != 3 || !starts[0].Equal(t0.Add(time.Hour)) {
		t.Errorf("unexpected start times: %v", starts)
	}

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	sessions, err := db.ListSessionsStartedBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListSessionsStartedBetween: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("got %d sessions, want 2", len(sessions))
	}

	totals, err := db.GetSessionTotals(ctx)
	if err != nil {
		t.Fatalf("GetSessionTotals: %v", err)
	}
	want := models.SessionTotals{Sessions: 3, CardsStudied: 6, CardsCorrect: 3}
	if *totals != want {
		t.Errorf("totals = %+v, want %+v", *totals, want)
	}
}

func TestSessionTotalsEmpty(t *testing.T) {
	db := newTestDB(t)

	totals, err := db.GetSessionTotals(context.Background())
	if err != nil {
		t.Fatalf("GetSessionTotals: %v", err)
	}
	if *totals != (models.SessionTotals{}) {
		t.Errorf("totals = %+v, want zero", *totals)
	}
}

func TestCardReviews(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	card := mustCreateCard(t, db, newCard("q", "default", t0))
	session := &models.StudySession{SessionType: models.SessionTypeReview, MaxCards: 20, StartedAt: t0}
	if err := db.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	reviews := []*models.CardReview{
		{ID: "r1", SessionID: &session.ID, CardID: card.ID, Quality: 4, ResponseTime: 2.5, ReviewedAt: t0},
		{ID: "r2", CardID: card.ID, Quality: 1, ReviewedAt: t0.Add(time.Minute)},
	}
	for _, r := range reviews {
		if err := db.AddCardReview(ctx, r); err != nil {
			t.Fatalf("AddCardReview: %v", err)
		}
	}

	got, err := db.ListCardReviews(ctx, card.ID)
	if err != nil {
		t.Fatalf("ListCardReviews: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d reviews, want 2", len(got))
	}
	if got[0].ID != "r2" || got[0].SessionID != nil {
		t.Errorf("newest review = %+v, want r2 without session", got[0])
	}
	if got[1].SessionID == nil || *got[1].SessionID != session.ID {
		t.Errorf("session review SessionID = %v, want %d", got[1].SessionID, session.ID)
	}
}

func TestRunInTxRollback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.RunInTx(ctx, func(repo models.Repository) error {
		if err := repo.CreateCard(ctx, newCard("tx", "default", t0)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx: got %v, want boom", err)
	}

	n, err := db.CountCards(ctx, "")
	if err != nil {
		t.Fatalf("CountCards: %v", err)
	}
	if n != 0 {
		t.Errorf("CountCards after rollback = %d, want 0", n)
	}

	err = db.RunInTx(ctx, func(repo models.Repository) error {
		return repo.CreateCard(ctx, newCard("tx", "default", t0))
	})
	if err != nil {
		t.Fatalf("RunInTx commit: %v", err)
	}
	if n, _ := db.CountCards(ctx, ""); n != 1 {
		t.Errorf("CountCards after commit = %d, want 1", n)
	}
}

func TestReminders(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.CreateReminder(ctx, &models.Reminder{Time: "20:00", Enabled: true, DeckNames: []string{"Math", "Spanish"}, CreatedAt: t0}); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}
	if err := db.CreateReminder(ctx, &models.Reminder{Time: "08:30", Enabled: false, CreatedAt: t0}); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	got, err := db.ListReminders(ctx)
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d reminders, want 2", len(got))
	}
	if got[0].Time != "08:30" || got[0].Enabled || len(got[0].DeckNames) != 0 {
		t.Errorf("first reminder = %+v", got[0])
	}
	if got[1].Time != "20:00" || !got[1].Enabled || len(got[1].DeckNames) != 2 || got[1].DeckNames[1] != "Spanish" {
		t.Errorf("second reminder = %+v", got[1])
	}
}
