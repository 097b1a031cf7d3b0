package risk

import (
	"testing"

	"github.com/vigil/vigil/internal/domain/crisis"
)

func TestDetector_DetectSingleCategory(t *testing.T) {
	d := NewDetector(nil)

	got := d.Detect("I want to kill myself")
	if len(got) != 1 {
		t.Fatalf("expected 1 indicator, got %d: %v", len(got), got)
	}
	if got[0] != crisis.IndicatorSuicidalIdeation {
		t.Fatalf("expected suicidal_ideation, got %s", got[0])
	}
}

func TestDetector_CaseInsensitive(t *testing.T) {
	d := NewDetector(nil)

	got := d.Detect("I WANT TO KILL MYSELF")
	if len(got) != 1 || got[0] != crisis.IndicatorSuicidalIdeation {
		t.Fatalf("uppercase input not detected: %v", got)
	}
}

func TestDetector_MultipleCategories(t *testing.T) {
	d := NewDetector(nil)

	got := d.Detect("I feel hopeless and I want to hurt myself")
	if len(got) != 2 {
		t.Fatalf("expected 2 indicators, got %d: %v", len(got), got)
	}
	// Declaration order: self_harm (weight 3) precedes hopelessness (weight 2).
	if got[0] != crisis.IndicatorSelfHarm {
		t.Fatalf("expected self_harm first, got %s", got[0])
	}
	if got[1] != crisis.IndicatorHopelessness {
		t.Fatalf("expected hopelessness second, got %s", got[1])
	}
}

func TestDetector_CategoryCountedOnce(t *testing.T) {
	d := NewDetector(nil)

	// Two phrases from the same rule must yield one indicator.
	got := d.Detect("I feel hopeless, there is no way out")
	if len(got) != 1 {
		t.Fatalf("expected 1 indicator for duplicate category, got %d: %v", len(got), got)
	}
	if got[0] != crisis.IndicatorHopelessness {
		t.Fatalf("expected hopelessness, got %s", got[0])
	}
}

func TestDetector_NoIndicators(t *testing.T) {
	d := NewDetector(nil)

	if got := d.Detect("the weather is lovely today"); len(got) != 0 {
		t.Fatalf("expected no indicators, got %v", got)
	}
	if got := d.Detect(""); len(got) != 0 {
		t.Fatalf("expected no indicators for empty text, got %v", got)
	}
}

func TestDetector_CustomRules(t *testing.T) {
	rules := []Rule{
		{Category: crisis.IndicatorPanic, Weight: 2, Patterns: []string{"spiraling"}},
	}
	d := NewDetector(rules)

	got := d.Detect("I am spiraling again")
	if len(got) != 1 || got[0] != crisis.IndicatorPanic {
		t.Fatalf("custom rule not matched: %v", got)
	}
	// Built-in phrases must not match on a custom table.
	if got := d.Detect("I want to kill myself"); len(got) != 0 {
		t.Fatalf("built-in phrase matched custom table: %v", got)
	}
}

func TestDetector_ProtectiveFactors(t *testing.T) {
	d := NewDetector(nil)

	got := d.DetectProtective("my family keeps me going and my therapist helps")
	if len(got) != 2 {
		t.Fatalf("expected 2 protective factors, got %v", got)
	}
	if got[0] != "family support" || got[1] != "treatment engagement" {
		t.Fatalf("unexpected factors: %v", got)
	}

	if got := d.DetectProtective("nothing here"); len(got) != 0 {
		t.Fatalf("expected no protective factors, got %v", got)
	}
}

func TestDefaultRules_Weights(t *testing.T) {
	weights := map[crisis.IndicatorCategory]int{}
	for _, r := range DefaultRules() {
		weights[r.Category] = r.Weight
	}

	// Either top-weight category alone must reach the critical threshold.
	if weights[crisis.IndicatorSuicidalIdeation] != 4 {
		t.Fatalf("expected weight 4 for suicidal ideation, got %d", weights[crisis.IndicatorSuicidalIdeation])
	}
	if weights[crisis.IndicatorPsychosis] != 4 {
		t.Fatalf("expected weight 4 for psychosis, got %d", weights[crisis.IndicatorPsychosis])
	}
	if weights[crisis.IndicatorHopelessness] != 2 {
		t.Fatalf("expected weight 2 for hopelessness, got %d", weights[crisis.IndicatorHopelessness])
	}
}
