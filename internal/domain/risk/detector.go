// Package risk implements crisis risk assessment: indicator detection over
// free text, severity scoring, and the assessor that orchestrates both
// under a latency budget while maintaining a rolling per-subject history.
package risk

import (
	"strings"

	"github.com/vigil/vigil/internal/domain/crisis"
)

// Rule binds an indicator category to its severity weight and the phrase
// list that triggers it. The first matching phrase detects the category;
// remaining phrases are skipped so a category is never counted twice.
type Rule struct {
	Category crisis.IndicatorCategory
	Weight   int
	Patterns []string
}

// DefaultRules returns the built-in indicator table. Suicidal ideation and
// psychosis carry the highest weight: either alone maps to a critical
// severity score.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: crisis.IndicatorSuicidalIdeation,
			Weight:   4,
			Patterns: []string{
				"kill myself", "end my life", "want to die", "suicide",
				"suicidal", "better off dead", "not want to be here anymore",
			},
		},
		{
			Category: crisis.IndicatorPsychosis,
			Weight:   4,
			Patterns: []string{
				"hearing voices", "voices tell me", "they are watching me",
				"they're watching me", "people are following me", "not real anymore",
			},
		},
		{
			Category: crisis.IndicatorSelfHarm,
			Weight:   3,
			Patterns: []string{
				"hurt myself", "cut myself", "cutting myself", "self-harm",
				"self harm", "burn myself",
			},
		},
		{
			Category: crisis.IndicatorDomesticViolence,
			Weight:   3,
			Patterns: []string{
				"afraid of my partner", "hits me", "threatens me",
				"not safe at home", "he will hurt me", "she will hurt me",
			},
		},
		{
			Category: crisis.IndicatorSevereDepression,
			Weight:   3,
			Patterns: []string{
				"can't get out of bed", "completely numb", "severely depressed",
				"crushing sadness", "empty inside",
			},
		},
		{
			Category: crisis.IndicatorHopelessness,
			Weight:   2,
			Patterns: []string{
				"hopeless", "no way out", "can't go on", "cannot go on",
				"nothing matters", "no point anymore", "give up",
			},
		},
		{
			Category: crisis.IndicatorPanic,
			Weight:   2,
			Patterns: []string{
				"panic attack", "can't breathe", "heart is racing",
				"losing control", "walls closing in",
			},
		},
		{
			Category: crisis.IndicatorSubstanceAbuse,
			Weight:   2,
			Patterns: []string{
				"overdose", "drinking too much", "can't stop using",
				"relapsed", "blacked out again",
			},
		},
	}
}

// protectivePattern maps a protective-factor phrase to its factor name.
type protectivePattern struct {
	Factor   string
	Patterns []string
}

func defaultProtectivePatterns() []protectivePattern {
	return []protectivePattern{
		{Factor: "family support", Patterns: []string{"my family", "my kids", "my children", "my parents"}},
		{Factor: "social support", Patterns: []string{"my friends", "people who care", "someone to talk to"}},
		{Factor: "treatment engagement", Patterns: []string{"my therapist", "my counselor", "my medication", "therapy"}},
		{Factor: "future orientation", Patterns: []string{"looking forward", "reasons to live", "want to get better", "my plans"}},
	}
}

// Detector matches normalized free text against a configured pattern table.
// It is a pure function of (text, rules) with no side effects.
type Detector struct {
	rules      []Rule
	protective []protectivePattern
}

// NewDetector creates a Detector over the given rules, or DefaultRules when
// rules is nil.
func NewDetector(rules []Rule) *Detector {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Detector{rules: rules, protective: defaultProtectivePatterns()}
}

// Rules returns the detector's rule table in declaration order.
func (d *Detector) Rules() []Rule { return d.rules }

// Detect returns the deduplicated set of detected indicator categories,
// order-preserving by rule declaration. Matching is case-insensitive
// substring matching; the first matching pattern short-circuits its category.
func (d *Detector) Detect(text string) []crisis.IndicatorCategory {
	lowered := strings.ToLower(text)
	var detected []crisis.IndicatorCategory
	for _, rule := range d.rules {
		for _, pat := range rule.Patterns {
			if strings.Contains(lowered, pat) {
				detected = append(detected, rule.Category)
				break
			}
		}
	}
	return detected
}

// DetectProtective returns the names of protective factors present in the
// text, order-preserving by declaration.
func (d *Detector) DetectProtective(text string) []string {
	lowered := strings.ToLower(text)
	var factors []string
	for _, pp := range d.protective {
		for _, pat := range pp.Patterns {
			if strings.Contains(lowered, pat) {
				factors = append(factors, pp.Factor)
				break
			}
		}
	}
	return factors
}
