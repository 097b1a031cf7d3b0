package risk

import (
	"testing"

	"github.com/vigil/vigil/internal/domain/crisis"
)

func TestScorer_Score(t *testing.T) {
	s := NewScorer(DefaultRules())

	cases := []struct {
		name       string
		indicators []crisis.IndicatorCategory
		hist       *SubjectHistory
		want       int
	}{
		{
			name:       "no indicators",
			indicators: nil,
			want:       0,
		},
		{
			name:       "single top-weight indicator",
			indicators: []crisis.IndicatorCategory{crisis.IndicatorSuicidalIdeation},
			want:       4,
		},
		{
			name:       "two mid-weight indicators",
			indicators: []crisis.IndicatorCategory{crisis.IndicatorSelfHarm, crisis.IndicatorHopelessness},
			want:       5,
		},
		{
			name:       "history bonus applies",
			indicators: []crisis.IndicatorCategory{crisis.IndicatorHopelessness},
			hist:       &SubjectHistory{PreviousCrisisEpisodes: 2},
			want:       3,
		},
		{
			name:       "history without indicators scores zero",
			indicators: nil,
			hist:       &SubjectHistory{PreviousCrisisEpisodes: 5},
			want:       0,
		},
		{
			name:       "zero episodes no bonus",
			indicators: []crisis.IndicatorCategory{crisis.IndicatorPanic},
			hist:       &SubjectHistory{PreviousCrisisEpisodes: 0},
			want:       2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Score(tc.indicators, tc.hist); got != tc.want {
				t.Fatalf("expected score %d, got %d", tc.want, got)
			}
		})
	}
}

func TestScorer_LevelFor(t *testing.T) {
	s := NewScorer(DefaultRules())
	one := []crisis.IndicatorCategory{crisis.IndicatorHopelessness}

	cases := []struct {
		name       string
		indicators []crisis.IndicatorCategory
		score      int
		want       crisis.Level
	}{
		{"no indicators is none regardless of score", nil, 10, crisis.LevelNone},
		{"score 1 is low", one, 1, crisis.LevelLow},
		{"score 2 is moderate", one, 2, crisis.LevelModerate},
		{"score 3 is high", one, 3, crisis.LevelHigh},
		{"score 4 is critical", one, 4, crisis.LevelCritical},
		{"score above 4 stays critical", one, 9, crisis.LevelCritical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.LevelFor(tc.indicators, tc.score); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestScorer_HistoryBonusCrossesThreshold(t *testing.T) {
	s := NewScorer(DefaultRules())
	indicators := []crisis.IndicatorCategory{crisis.IndicatorSelfHarm}

	// Without history: score 3, high.
	base := s.Score(indicators, nil)
	if lvl := s.LevelFor(indicators, base); lvl != crisis.LevelHigh {
		t.Fatalf("expected high without history, got %s", lvl)
	}

	// With a prior episode the bonus pushes it to critical.
	bumped := s.Score(indicators, &SubjectHistory{PreviousCrisisEpisodes: 1})
	if bumped != base+1 {
		t.Fatalf("expected +1 bonus, got %d vs %d", bumped, base)
	}
	if lvl := s.LevelFor(indicators, bumped); lvl != crisis.LevelCritical {
		t.Fatalf("expected critical with history, got %s", lvl)
	}
}
