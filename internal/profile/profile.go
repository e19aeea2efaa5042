// Package profile holds the structured answer set collected by the onboarding
// quiz. Both routine generators read a Profile; nothing in this package
// performs I/O.
package profile

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrUnknownField  = errors.New("unknown profile field")
	ErrWrongKind     = errors.New("value kind does not match field")
	ErrInvalidOption = errors.New("value is not a valid option")
)

// Profile is one user's quiz answers. The empty string is the "unanswered"
// sentinel for every enum field.
type Profile struct {
	SkinType                    SkinType            `json:"skinType"`
	SkinGoals                   []Goal              `json:"skinGoals"`
	SensitivityLevel            SensitivityLevel    `json:"sensitivityLevel"`
	RoutineFrequency            RoutineFrequency    `json:"routineFrequency"`
	ExperienceLevel             ExperienceLevel     `json:"experienceLevel"`
	PrimaryConcern              Concern             `json:"primaryConcern"`
	Allergies                   string              `json:"allergies"`
	PreferredIngredients        string              `json:"preferredIngredients"`
	UsingPrescription           bool                `json:"usingPrescription"`
	UsesSPF                     bool                `json:"usesSPF"`
	DoubleCleanses              bool                `json:"doubleCleanses"`
	WantsProductRecommendations bool                `json:"wantsProductRecommendations"`
	Climate                     Climate             `json:"climate"`
	DesiredRoutineTime          RoutineTime         `json:"desiredRoutineTime"`
	FragrancePreference         FragrancePreference `json:"fragrancePreference"`
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	c := *p
	c.SkinGoals = slices.Clone(p.SkinGoals)
	return &c
}

// SetChoice stores a single-choice answer. The empty string clears the field.
func (p *Profile) SetChoice(f Field, v string) error {
	if err := checkKind(f, KindChoice); err != nil {
		return err
	}
	if v != "" && !slices.Contains(options[f], v) {
		return fmt.Errorf("%w: %q for %s", ErrInvalidOption, v, f)
	}
	switch f {
	case FieldSkinType:
		p.SkinType = SkinType(v)
	case FieldSensitivityLevel:
		p.SensitivityLevel = SensitivityLevel(v)
	case FieldRoutineFrequency:
		p.RoutineFrequency = RoutineFrequency(v)
	case FieldExperienceLevel:
		p.ExperienceLevel = ExperienceLevel(v)
	case FieldPrimaryConcern:
		p.PrimaryConcern = Concern(v)
	case FieldClimate:
		p.Climate = Climate(v)
	case FieldDesiredRoutineTime:
		p.DesiredRoutineTime = RoutineTime(v)
	case FieldFragrancePreference:
		p.FragrancePreference = FragrancePreference(v)
	}
	return nil
}

// SetChoices stores a multi-choice answer as a deduplicated, sorted set.
func (p *Profile) SetChoices(f Field, vs []string) error {
	if err := checkKind(f, KindChoices); err != nil {
		return err
	}
	goals := make([]Goal, 0, len(vs))
	for _, v := range vs {
		if !slices.Contains(options[f], v) {
			return fmt.Errorf("%w: %q for %s", ErrInvalidOption, v, f)
		}
		goals = append(goals, Goal(v))
	}
	p.SkinGoals = NormalizeGoals(goals)
	return nil
}

// SetText stores a free-text answer, trimmed.
func (p *Profile) SetText(f Field, v string) error {
	if err := checkKind(f, KindText); err != nil {
		return err
	}
	v = strings.TrimSpace(v)
	switch f {
	case FieldAllergies:
		p.Allergies = v
	case FieldPreferredIngredients:
		p.PreferredIngredients = v
	}
	return nil
}

// SetToggle stores a yes/no answer.
func (p *Profile) SetToggle(f Field, v bool) error {
	if err := checkKind(f, KindToggle); err != nil {
		return err
	}
	switch f {
	case FieldUsingPrescription:
		p.UsingPrescription = v
	case FieldUsesSPF:
		p.UsesSPF = v
	case FieldDoubleCleanses:
		p.DoubleCleanses = v
	case FieldWantsProductRecommendations:
		p.WantsProductRecommendations = v
	}
	return nil
}

// Choice returns the current value of a single-choice field, "" when unanswered.
func (p *Profile) Choice(f Field) string {
	switch f {
	case FieldSkinType:
		return string(p.SkinType)
	case FieldSensitivityLevel:
		return string(p.SensitivityLevel)
	case FieldRoutineFrequency:
		return string(p.RoutineFrequency)
	case FieldExperienceLevel:
		return string(p.ExperienceLevel)
	case FieldPrimaryConcern:
		return string(p.PrimaryConcern)
	case FieldClimate:
		return string(p.Climate)
	case FieldDesiredRoutineTime:
		return string(p.DesiredRoutineTime)
	case FieldFragrancePreference:
		return string(p.FragrancePreference)
	}
	return ""
}

// Validate reports the first enum field holding a value outside its option set.
func (p *Profile) Validate() error {
	for _, f := range Fields() {
		if KindOf(f) != KindChoice {
			continue
		}
		if v := p.Choice(f); v != "" && !slices.Contains(options[f], v) {
			return fmt.Errorf("%s: %w: %q", f, ErrInvalidOption, v)
		}
	}
	seen := make(map[Goal]bool, len(p.SkinGoals))
	for _, g := range p.SkinGoals {
		if !slices.Contains(options[FieldSkinGoals], string(g)) {
			return fmt.Errorf("%s: %w: %q", FieldSkinGoals, ErrInvalidOption, g)
		}
		if seen[g] {
			return fmt.Errorf("%s: duplicate goal %q", FieldSkinGoals, g)
		}
		seen[g] = true
	}
	return nil
}

// NormalizeGoals deduplicates and sorts goals.
func NormalizeGoals(goals []Goal) []Goal {
	out := slices.Clone(goals)
	slices.Sort(out)
	return slices.Compact(out)
}

// StepBudget returns the inclusive step-count range per period for a
// desired routine time. Unanswered falls in the middle band.
func StepBudget(t RoutineTime) (lo, hi int) {
	switch t {
	case TimeUnder5Min:
		return 2, 3
	case Time10To15Min, TimeAsLongAsItTakes:
		return 6, 8
	default:
		return 4, 6
	}
}

func checkKind(f Field, want Kind) error {
	k := KindOf(f)
	if k == KindUnknown {
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	if k != want {
		return fmt.Errorf("%w: %s is %s, not %s", ErrWrongKind, f, k, want)
	}
	return nil
}
