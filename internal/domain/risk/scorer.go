package risk

import "github.com/vigil/vigil/internal/domain/crisis"

// SubjectHistory carries caller-supplied history used to adjust scoring.
type SubjectHistory struct {
	PreviousCrisisEpisodes int `json:"previous_crisis_episode_count"`
}

// Scorer converts detected indicators plus optional subject history into a
// numeric severity score and an ordered crisis level.
//
// The level mapping is fixed and documented because dashboards sort by it:
//
//	score >= 4            -> critical
//	score >= 3            -> high
//	score >= 2            -> moderate
//	any indicator, score<2 -> low
//	no indicators         -> none
type Scorer struct {
	weights      map[crisis.IndicatorCategory]int
	historyBonus int
}

// NewScorer builds a Scorer from the rule table's weights. The history
// bonus is fixed at +1 for subjects with at least one prior episode.
func NewScorer(rules []Rule) *Scorer {
	weights := make(map[crisis.IndicatorCategory]int, len(rules))
	for _, r := range rules {
		weights[r.Category] = r.Weight
	}
	return &Scorer{weights: weights, historyBonus: 1}
}

// Score sums the severity weights of the detected indicators and applies
// the history bonus when the subject has at least one prior episode.
func (s *Scorer) Score(indicators []crisis.IndicatorCategory, hist *SubjectHistory) int {
	if len(indicators) == 0 {
		return 0
	}
	total := 0
	for _, ind := range indicators {
		total += s.weights[ind]
	}
	if hist != nil && hist.PreviousCrisisEpisodes >= 1 {
		total += s.historyBonus
	}
	return total
}

// LevelFor maps a score to a crisis level. The level is none exactly when
// no indicator was detected, regardless of score.
func (s *Scorer) LevelFor(indicators []crisis.IndicatorCategory, score int) crisis.Level {
	if len(indicators) == 0 {
		return crisis.LevelNone
	}
	switch {
	case score >= 4:
		return crisis.LevelCritical
	case score >= 3:
		return crisis.LevelHigh
	case score >= 2:
		return crisis.LevelModerate
	default:
		return crisis.LevelLow
	}
}
