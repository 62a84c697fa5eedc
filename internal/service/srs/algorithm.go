package srs

import (
	"math"
	"time"
)

const (
	MinQuality = 0
	MaxQuality = 5

	// PassingQuality is the lowest grade that counts as a correct recall.
	PassingQuality = 3

	MinEaseFactor = 1.3

	firstInterval  = 1
	secondInterval = 6
)

// State is the scheduling part of a card.
type State struct {
	EaseFactor  float64
	Interval    int
	Repetitions int
}

// Result is the outcome of grading a card at some moment.
type Result struct {
	State
	NextReview time.Time
}

// IsCorrect reports whether quality counts as a successful recall.
func IsCorrect(quality int) bool {
	return quality >= PassingQuality
}

// ValidQuality reports whether quality is within the 0..5 grading scale.
func ValidQuality(quality int) bool {
	return quality >= MinQuality && quality <= MaxQuality
}

// Next applies SM-2 to the current state. quality must already be validated.
func Next(quality int, current State, base time.Time) Result {
	next := State{}

	if IsCorrect(quality) {
		switch current.Repetitions {
		case 0:
			next.Interval = firstInterval
		case 1:
			next.Interval = secondInterval
		default:
			next.Interval = int(math.Round(float64(current.Interval) * current.EaseFactor))
		}
		next.Repetitions = current.Repetitions + 1
	} else {
		next.Repetitions = 0
		next.Interval = firstInterval
	}

	next.EaseFactor = NextEase(current.EaseFactor, quality)

	// Не даём интервалу упасть ниже одного дня
	if next.Interval < firstInterval {
		next.Interval = firstInterval
	}

	return Result{
		State:      next,
		NextReview: base.AddDate(0, 0, next.Interval),
	}
}

// NextEase adjusts the ease factor for a grade and clamps it at MinEaseFactor.
func NextEase(ease float64, quality int) float64 {
	miss := float64(MaxQuality - quality)
	ease += 0.1 - miss*(0.08+miss*0.02)
	if ease < MinEaseFactor {
		return MinEaseFactor
	}
	return ease
}
