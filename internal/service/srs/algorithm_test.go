package srs

import (
	"math"
	"testing"
	"time"
)

var base = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		quality  int
		current  State
		want     State
		easeUp   bool
		easeDown bool
	}{
		{
			name:    "first correct recall",
			quality: 5,
			current: State{EaseFactor: 2.5, Interval: 1, Repetitions: 0},
			want:    State{Interval: 1, Repetitions: 1},
			easeUp:  true,
		},
		{
			name:    "second correct recall",
			quality: 5,
			current: State{EaseFactor: 2.6, Interval: 1, Repetitions: 1},
			want:    State{Interval: 6, Repetitions: 2},
			easeUp:  true,
		},
		{
			name:    "third correct recall multiplies by ease",
			quality: 5,
			current: State{EaseFactor: 2.7, Interval: 6, Repetitions: 2},
			want:    State{Interval: 16, Repetitions: 3},
			easeUp:  true,
		},
		{
			name:     "failed recall resets",
			quality:  1,
			current:  State{EaseFactor: 2.5, Interval: 15, Repetitions: 3},
			want:     State{Interval: 1, Repetitions: 0},
			easeDown: true,
		},
		{
			name:     "quality three passes but lowers ease",
			quality:  3,
			current:  State{EaseFactor: 2.5, Interval: 6, Repetitions: 2},
			want:     State{Interval: 15, Repetitions: 3},
			easeDown: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Next(tt.quality, tt.current, base)

			if got.Interval != tt.want.Interval {
				t.Errorf("Interval = %d, want %d", got.Interval, tt.want.Interval)
			}
			if got.Repetitions != tt.want.Repetitions {
				t.Errorf("Repetitions = %d, want %d", got.Repetitions, tt.want.Repetitions)
			}
			if tt.easeUp && got.EaseFactor <= tt.current.EaseFactor {
				t.Errorf("EaseFactor = %v, want > %v", got.EaseFactor, tt.current.EaseFactor)
			}
			if tt.easeDown && got.EaseFactor >= tt.current.EaseFactor {
				t.Errorf("EaseFactor = %v, want < %v", got.EaseFactor, tt.current.EaseFactor)
			}
			if want := base.AddDate(0, 0, tt.want.Interval); !got.NextReview.Equal(want) {
				t.Errorf("NextReview = %v, want %v", got.NextReview, want)
			}
		})
	}
}

func TestNextEaseFloor(t *testing.T) {
	for _, ease := range []float64{-10, 0, 1, 1.3, 1.31, 1.5, 2.5, 4} {
		for q := MinQuality; q <= MaxQuality; q++ {
			if got := NextEase(ease, q); got < MinEaseFactor {
				t.Errorf("NextEase(%v, %d) = %v, want >= %v", ease, q, got, MinEaseFactor)
			}
		}
	}
}

func TestNextEaseDeltas(t *testing.T) {
	tests := []struct {
		quality int
		delta   float64
	}{
		{5, 0.1},
		{4, 0},
		{3, -0.14},
		{2, -0.32},
		{1, -0.54},
		{0, -0.8},
	}

	for _, tt := range tests {
		got := NextEase(2.5, tt.quality) - 2.5
		if math.Abs(got-tt.delta) > 1e-9 {
			t.Errorf("quality %d: delta = %v, want %v", tt.quality, got, tt.delta)
		}
	}
}

func TestNextNoCeiling(t *testing.T) {
	state := State{EaseFactor: 2.5}
	for i := 0; i < 10; i++ {
		state = Next(5, state, base).State
	}
	if state.EaseFactor < 3.49 {
		t.Errorf("EaseFactor = %v, expected to keep growing", state.EaseFactor)
	}
}

func TestValidQuality(t *testing.T) {
	for _, q := range []int{-1, 6, 100} {
		if ValidQuality(q) {
			t.Errorf("ValidQuality(%d) = true", q)
		}
	}
	for q := 0; q <= 5; q++ {
		if !ValidQuality(q) {
			t.Errorf("ValidQuality(%d) = false", q)
		}
	}
}
