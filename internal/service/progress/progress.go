// Package progress derives study analytics from card and session history.
// Every function is pure: history and the reference time come in as
// arguments, and calendar days are taken in the supplied location.
package progress

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/romanzh1/mnemosyne/pkg/utils"
)

const (
	WeekDays = 7

	// HeatmapSaturation is the number of cards per day that maps to full intensity.
	HeatmapSaturation = 50
)

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// civilDay maps t to midnight UTC of its calendar day in loc, so that day
// arithmetic ignores DST shifts.
func civilDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StudyStats summarises all sessions ever recorded.
func StudyStats(totals models.SessionTotals) models.StudyStats {
	return models.StudyStats{
		TotalSessions:     totals.Sessions,
		TotalCardsStudied: totals.CardsStudied,
		AverageAccuracy:   roundTo(percent(totals.CardsCorrect, totals.CardsStudied), 2),
	}
}

// DueCount counts cards due at or before the first instant of day, grouped
// by deck. A card due later the same day is not counted.
func DueCount(day time.Time, cards []*models.Card, loc *time.Location) models.DueCount {
	cutoff := utils.StartOfDayIn(day, loc)
	result := models.DueCount{
		Date:   utils.DateKey(cutoff, loc),
		ByDeck: map[string]int{},
	}

	for _, card := range cards {
		if card.NextReview.After(cutoff) {
			continue
		}
		deck := card.DeckName
		if deck == "" {
			deck = models.DefaultDeck
		}
		result.ByDeck[deck]++
		result.DueCount++
	}
	return result
}

// WeeklyProgress aggregates sessions over the seven days starting at start.
func WeeklyProgress(start time.Time, sessions []*models.StudySession, loc *time.Location) models.WeeklyProgress {
	first := utils.StartOfDayIn(start, loc)

	type bucket struct{ sessions, studied, correct int }
	byDay := make(map[string]*bucket, WeekDays)
	for _, s := range sessions {
		key := utils.DateKey(s.StartedAt, loc)
		b, ok := byDay[key]
		if !ok {
			b = &bucket{}
			byDay[key] = b
		}
		b.sessions++
		b.studied += s.CardsStudied
		b.correct += s.CardsCorrect
	}

	stats := make([]models.DailyStat, 0, WeekDays)
	for i := 0; i < WeekDays; i++ {
		key := utils.DateKey(utils.AddDays(first, i), loc)
		stat := models.DailyStat{Date: key}
		if b, ok := byDay[key]; ok {
			stat.Sessions = b.sessions
			stat.CardsStudied = b.studied
			stat.Accuracy = roundTo(percent(b.correct, b.studied), 1)
		}
		stats = append(stats, stat)
	}

	return models.WeeklyProgress{
		StartDate:  utils.DateKey(first, loc),
		EndDate:    utils.DateKey(utils.AddDays(first, WeekDays-1), loc),
		DailyStats: stats,
	}
}

// Streak computes the current and longest runs of consecutive study days.
// The current streak survives only if the latest study day is today or
// yesterday relative to now.
func Streak(starts []time.Time, now time.Time, loc *time.Location) models.Streak {
	if len(starts) == 0 {
		return models.Streak{}
	}

	days := make([]time.Time, 0, len(starts))
	for _, s := range starts {
		days = append(days, civilDay(s, loc))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return b.Compare(a) })
	days = slices.CompactFunc(days, func(a, b time.Time) bool { return a.Equal(b) })

	last := days[0].Format(utils.DateLayout)
	result := models.Streak{LastStudyDate: &last}

	today := civilDay(now, loc)
	if gap := utils.DaysBetween(days[0], today); gap == 0 || gap == 1 {
		result.CurrentStreak = 1
		for i := 1; i < len(days); i++ {
			if utils.DaysBetween(days[i], days[i-1]) != 1 {
				break
			}
			result.CurrentStreak++
		}
	}

	run := 1
	result.LongestStreak = 1
	for i := 1; i < len(days); i++ {
		if utils.DaysBetween(days[i], days[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		result.LongestStreak = max(result.LongestStreak, run)
	}

	return result
}

// Heatmap reports activity for each day of month that has at least one
// session, in date order.
func Heatmap(month time.Time, sessions []*models.StudySession, loc *time.Location) models.Heatmap {
	m := month.In(loc)
	first := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)

	byDay := map[string]*models.HeatmapDay{}
	for _, s := range sessions {
		if s.StartedAt.Before(first) || !s.StartedAt.Before(next) {
			continue
		}
		key := utils.DateKey(s.StartedAt, loc)
		day, ok := byDay[key]
		if !ok {
			day = &models.HeatmapDay{Date: key}
			byDay[key] = day
		}
		day.Sessions++
		day.CardsStudied += s.CardsStudied
	}

	activity := make([]models.HeatmapDay, 0, len(byDay))
	for _, day := range byDay {
		day.Intensity = float64(min(max(day.CardsStudied, 0), HeatmapSaturation)) / HeatmapSaturation
		activity = append(activity, *day)
	}
	sort.Slice(activity, func(i, j int) bool { return activity[i].Date < activity[j].Date })

	return models.Heatmap{
		YearMonth:    first.Format(utils.YearMonthLayout),
		ActivityData: activity,
	}
}

// DeckProgress reports, for each of the trailing days ending on now's day,
// how many cards of the deck were last reviewed that day. totalCards is the
// current deck size and is reported unchanged for every day.
func DeckProgress(deckName string, days int, now time.Time, totalCards int, reviewed []*models.Card, loc *time.Location) models.DeckProgress {
	perDay := map[string]int{}
	for _, card := range reviewed {
		if card.LastReviewed == nil || card.DeckName != deckName {
			continue
		}
		perDay[utils.DateKey(*card.LastReviewed, loc)]++
	}

	start := utils.AddDays(utils.StartOfDayIn(now, loc), -(days - 1))
	data := make([]models.DeckProgressDay, 0, max(days, 0))
	for i := 0; i < days; i++ {
		key := utils.DateKey(utils.AddDays(start, i), loc)
		count := perDay[key]
		data = append(data, models.DeckProgressDay{
			Date:            key,
			TotalCards:      totalCards,
			ReviewedCards:   count,
			ProgressPercent: percent(count, totalCards),
		})
	}

	return models.DeckProgress{
		DeckName:     deckName,
		PeriodDays:   days,
		ProgressData: data,
	}
}

// Upcoming groups cards due in [now, now+days] by calendar day.
func Upcoming(days int, now time.Time, cards []*models.Card, loc *time.Location) models.Upcoming {
	end := now.AddDate(0, 0, days)

	due := make([]*models.Card, 0, len(cards))
	for _, card := range cards {
		if card.NextReview.Before(now) || card.NextReview.After(end) {
			continue
		}
		due = append(due, card)
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].NextReview.Equal(due[j].NextReview) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextReview.Before(due[j].NextReview)
	})

	reviews := make([]models.UpcomingDay, 0)
	for _, card := range due {
		key := utils.DateKey(card.NextReview, loc)
		if len(reviews) == 0 || reviews[len(reviews)-1].Date != key {
			reviews = append(reviews, models.UpcomingDay{Date: key, Decks: []string{}})
		}
		cur := &reviews[len(reviews)-1]
		cur.CardCount++
		if !slices.Contains(cur.Decks, card.DeckName) {
			cur.Decks = append(cur.Decks, card.DeckName)
		}
	}
	for i := range reviews {
		slices.Sort(reviews[i].Decks)
	}

	return models.Upcoming{
		PeriodDays:      days,
		UpcomingReviews: reviews,
	}
}
