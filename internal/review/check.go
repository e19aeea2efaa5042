// Package review compares a model-generated routine against the rules the
// prompt asked for. Findings are advisory; a routine is never modified or
// rejected because of them.
package review

import (
	"fmt"
	"strings"

	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/routine"
)

// Severity levels for findings.
type Severity string

const (
	SeverityInfo Severity = "INFO"
	SeverityWarn Severity = "WARN"
)

// Finding codes.
const (
	CodeStepBudget        = "STEP_BUDGET"
	CodeMissingSPF        = "MISSING_SPF"
	CodeUnexpectedSPF     = "UNEXPECTED_SPF"
	CodeMissingCleanse    = "MISSING_DOUBLE_CLEANSE"
	CodeUnexpectedCleanse = "UNEXPECTED_DOUBLE_CLEANSE"
	CodeAllergen          = "ALLERGEN"
	CodeFragrance         = "FRAGRANCE"
)

// Finding is one deviation from the requested constraints.
type Finding struct {
	Severity Severity       `json:"severity"`
	Code     string         `json:"code"`
	Period   routine.Period `json:"period,omitempty"`
	Message  string         `json:"message"`
}

// Check returns the findings for r against p in a stable order: step budget,
// SPF, double cleanse, allergens, fragrance.
func Check(p *profile.Profile, r routine.Routine) []Finding {
	var out []Finding

	lo, hi := profile.StepBudget(p.DesiredRoutineTime)
	for _, period := range []routine.Period{routine.Morning, routine.Evening} {
		n := len(r.Steps(period))
		if n < lo || n > hi {
			out = append(out, Finding{
				Severity: SeverityWarn,
				Code:     CodeStepBudget,
				Period:   period,
				Message:  fmt.Sprintf("%d steps, expected %d-%d", n, lo, hi),
			})
		}
	}

	hasSPF := anyStep(r.Morning, isSPF)
	switch {
	case p.UsesSPF && !hasSPF:
		out = append(out, Finding{SeverityWarn, CodeMissingSPF, routine.Morning, "no SPF step in the morning routine"})
	case !p.UsesSPF && hasSPF:
		out = append(out, Finding{SeverityInfo, CodeUnexpectedSPF, routine.Morning, "SPF step included although the user does not wear sunscreen"})
	}

	hasDouble := anyStep(r.Evening, isDoubleCleanse)
	switch {
	case p.DoubleCleanses && !hasDouble:
		out = append(out, Finding{SeverityWarn, CodeMissingCleanse, routine.Evening, "no Double Cleanse step in the evening routine"})
	case !p.DoubleCleanses && hasDouble:
		out = append(out, Finding{SeverityInfo, CodeUnexpectedCleanse, routine.Evening, "Double Cleanse step included although the user does not double cleanse"})
	}

	allergens := Allergens(p.Allergies)
	for _, s := range allSteps(r) {
		text := strings.ToLower(s.Name() + " " + s.Product())
		for _, a := range allergens {
			if strings.Contains(text, a) {
				out = append(out, Finding{SeverityWarn, CodeAllergen, s.Period(), fmt.Sprintf("%s mentions listed allergy %q", s, a)})
			}
		}
	}

	if p.FragrancePreference == profile.FragranceFree {
		for _, s := range allSteps(r) {
			if isScented(s) {
				out = append(out, Finding{SeverityWarn, CodeFragrance, s.Period(), fmt.Sprintf("%s looks scented", s)})
			}
		}
	}
	return out
}

// Counts returns the warn and info counts.
func Counts(findings []Finding) (warn, info int) {
	for _, f := range findings {
		switch f.Severity {
		case SeverityWarn:
			warn++
		case SeverityInfo:
			info++
		}
	}
	return
}

// Allergens splits a free-text allergy answer into lowercase terms. Terms
// shorter than three characters are dropped to avoid matching fragments.
func Allergens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == '\n'
	})
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(f), "and "))
		if len([]rune(f)) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

func allSteps(r routine.Routine) []routine.Step {
	return append(append([]routine.Step(nil), r.Morning...), r.Evening...)
}

func anyStep(steps []routine.Step, pred func(routine.Step) bool) bool {
	for _, s := range steps {
		if pred(s) {
			return true
		}
	}
	return false
}

func isSPF(s routine.Step) bool {
	text := strings.ToLower(s.Name() + " " + s.Product())
	return strings.Contains(text, "spf") || strings.Contains(text, "sunscreen") || strings.EqualFold(s.Name(), "protect")
}

func isDoubleCleanse(s routine.Step) bool {
	return strings.EqualFold(strings.TrimSpace(s.Name()), "double cleanse")
}

func isScented(s routine.Step) bool {
	p := strings.ToLower(s.Product())
	if strings.Contains(p, "fragrance-free") || strings.Contains(p, "fragrance free") || strings.Contains(p, "unscented") {
		return false
	}
	return strings.Contains(p, "scented") || strings.Contains(p, "perfume") || strings.Contains(p, "fragrance")
}
