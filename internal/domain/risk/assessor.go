package risk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/crisis"
	"github.com/vigil/vigil/internal/platform/clock"
)

// Assessment is the result of scoring one piece of user input.
type Assessment struct {
	Detected              bool                       `json:"detected"`
	Level                 crisis.Level               `json:"level"`
	Indicators            []crisis.IndicatorCategory `json:"indicators"`
	Score                 int                        `json:"score"`
	ImmediateIntervention bool                       `json:"immediate_intervention"`
	RiskFactors           []string                   `json:"risk_factors"`
	ProtectiveFactors     []string                   `json:"protective_factors"`
	Latency               time.Duration              `json:"latency_ns"`
	BudgetExceeded        bool                       `json:"budget_exceeded,omitempty"`
	Degraded              bool                       `json:"degraded,omitempty"`
	DegradedReason        string                     `json:"degraded_reason,omitempty"`
}

var riskFactorNames = map[crisis.IndicatorCategory]string{
	crisis.IndicatorSuicidalIdeation: "active suicidal ideation",
	crisis.IndicatorSelfHarm:         "self-harm behavior or intent",
	crisis.IndicatorHopelessness:     "expressed hopelessness",
	crisis.IndicatorSevereDepression: "severe depressive symptoms",
	crisis.IndicatorPanic:            "acute panic symptoms",
	crisis.IndicatorPsychosis:        "possible psychotic symptoms",
	crisis.IndicatorSubstanceAbuse:   "substance abuse indicators",
	crisis.IndicatorDomesticViolence: "domestic violence exposure",
}

// Assessor orchestrates detection and scoring under a soft latency budget
// and maintains each subject's rolling risk history. It never returns an
// error: internal failures degrade to a safe not-detected result carrying
// an audit flag, because a thrown failure here must not interrupt the
// caller's conversation turn.
type Assessor struct {
	detector *Detector
	scorer   *Scorer
	history  *HistoryLog
	budget   time.Duration
	clk      clock.Clock
	logger   zerolog.Logger

	statsMu      sync.Mutex
	totalLatency time.Duration
	assessed     int64
}

// NewAssessor wires a detector, scorer, and history log. A zero budget
// defaults to one second.
func NewAssessor(detector *Detector, scorer *Scorer, history *HistoryLog, budget time.Duration, clk clock.Clock, logger zerolog.Logger) *Assessor {
	if budget <= 0 {
		budget = time.Second
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Assessor{
		detector: detector,
		scorer:   scorer,
		history:  history,
		budget:   budget,
		clk:      clk,
		logger:   logger,
	}
}

// Assess scores free-text input for the subject. Blank input short-circuits
// to a not-detected result without invoking the detector. The context is
// accepted for interface symmetry with the rest of the engine; the scoring
// path itself never blocks on I/O.
func (a *Assessor) Assess(_ context.Context, subjectID, text string, hist *SubjectHistory) Assessment {
	if strings.TrimSpace(text) == "" {
		return Assessment{Level: crisis.LevelNone}
	}

	start := time.Now()
	result := a.evaluate(subjectID, text, hist)
	result.Latency = time.Since(start)

	if result.Latency > a.budget {
		result.BudgetExceeded = true
		a.logger.Warn().
			Str("subject_id", subjectID).
			Dur("latency", result.Latency).
			Dur("budget", a.budget).
			Msg("risk assessment exceeded latency budget")
	}

	a.recordLatency(result.Latency)

	if a.history != nil && !result.Degraded {
		a.history.Append(subjectID, result.Level, result.Score)
	}
	return result
}

// evaluate runs detection and scoring, converting any panic from the
// pluggable scoring path into a degraded safe result.
func (a *Assessor) evaluate(subjectID, text string, hist *SubjectHistory) (result Assessment) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("subject_id", subjectID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("risk assessment failed; degrading to safe result")
			result = Assessment{
				Level:          crisis.LevelNone,
				Degraded:       true,
				DegradedReason: fmt.Sprintf("%v", r),
			}
		}
	}()

	indicators := a.detector.Detect(text)
	score := a.scorer.Score(indicators, hist)
	level := a.scorer.LevelFor(indicators, score)

	result = Assessment{
		Detected:              len(indicators) > 0,
		Level:                 level,
		Indicators:            indicators,
		Score:                 score,
		ImmediateIntervention: level >= crisis.LevelHigh,
		ProtectiveFactors:     a.detector.DetectProtective(text),
	}
	for _, ind := range indicators {
		result.RiskFactors = append(result.RiskFactors, riskFactorNames[ind])
	}
	return result
}

// History exposes the assessor's rolling history log.
func (a *Assessor) History() *HistoryLog { return a.history }

func (a *Assessor) recordLatency(d time.Duration) {
	a.statsMu.Lock()
	a.totalLatency += d
	a.assessed++
	a.statsMu.Unlock()
}

// AverageLatency returns the running average assessment latency and the
// number of assessments it covers.
func (a *Assessor) AverageLatency() (time.Duration, int64) {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	if a.assessed == 0 {
		return 0, 0
	}
	return a.totalLatency / time.Duration(a.assessed), a.assessed
}
