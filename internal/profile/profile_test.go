package profile

import (
	"errors"
	"slices"
	"testing"
)

func TestSetChoice_StoresValidOption(t *testing.T) {
	var p Profile
	if err := p.SetChoice(FieldSkinType, "Oily"); err != nil {
		t.Fatalf("SetChoice: %v", err)
	}
	if p.SkinType != SkinOily {
		t.Errorf("SkinType = %q, want Oily", p.SkinType)
	}
}

func TestSetChoice_RejectsUnknownOption(t *testing.T) {
	var p Profile
	err := p.SetChoice(FieldPrimaryConcern, "Wrinkles")
	if !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	if p.PrimaryConcern != "" {
		t.Errorf("field modified on error: %q", p.PrimaryConcern)
	}
}

func TestSetChoice_WrongKind(t *testing.T) {
	var p Profile
	if err := p.SetChoice(FieldUsesSPF, "yes"); !errors.Is(err, ErrWrongKind) {
		t.Errorf("expected ErrWrongKind, got %v", err)
	}
}

func TestSetChoice_UnknownField(t *testing.T) {
	var p Profile
	if err := p.SetChoice("eyeColor", "Blue"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestSetChoices_DedupesAndSorts(t *testing.T) {
	var p Profile
	if err := p.SetChoices(FieldSkinGoals, []string{"Glow", "Acne", "Glow"}); err != nil {
		t.Fatalf("SetChoices: %v", err)
	}
	want := []Goal{GoalAcne, GoalGlow}
	if !slices.Equal(p.SkinGoals, want) {
		t.Errorf("SkinGoals = %v, want %v", p.SkinGoals, want)
	}
}

func TestSetChoices_RejectsUnknownGoal(t *testing.T) {
	var p Profile
	if err := p.SetChoices(FieldSkinGoals, []string{"Glow", "Tan"}); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}
}

func TestSetTextAndToggle(t *testing.T) {
	var p Profile
	if err := p.SetText(FieldAllergies, "  fragrance, lanolin "); err != nil {
		t.Fatal(err)
	}
	if p.Allergies != "fragrance, lanolin" {
		t.Errorf("Allergies = %q", p.Allergies)
	}
	if err := p.SetToggle(FieldDoubleCleanses, true); err != nil {
		t.Fatal(err)
	}
	if !p.DoubleCleanses {
		t.Error("DoubleCleanses not set")
	}
}

func TestValidate_EmptyProfileIsValid(t *testing.T) {
	var p Profile
	if err := p.Validate(); err != nil {
		t.Errorf("empty profile should validate: %v", err)
	}
}

func TestValidate_RejectsOutOfSetValue(t *testing.T) {
	p := Profile{SkinType: "Greasy"}
	if err := p.Validate(); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}
}

func TestValidate_RejectsDuplicateGoals(t *testing.T) {
	p := Profile{SkinGoals: []Goal{GoalGlow, GoalGlow}}
	if err := p.Validate(); err == nil {
		t.Error("expected error for duplicate goals")
	}
}

func TestClone_IsDeep(t *testing.T) {
	p := &Profile{SkinGoals: []Goal{GoalAcne}}
	c := p.Clone()
	c.SkinGoals[0] = GoalGlow
	if p.SkinGoals[0] != GoalAcne {
		t.Error("Clone shares the goals slice")
	}
}

func TestStepBudget(t *testing.T) {
	cases := []struct {
		in     RoutineTime
		lo, hi int
	}{
		{TimeUnder5Min, 2, 3},
		{Time5To10Min, 4, 6},
		{Time10To15Min, 6, 8},
		{TimeAsLongAsItTakes, 6, 8},
		{"", 4, 6},
	}
	for _, c := range cases {
		lo, hi := StepBudget(c.in)
		if lo != c.lo || hi != c.hi {
			t.Errorf("StepBudget(%q) = %d-%d, want %d-%d", c.in, lo, hi, c.lo, c.hi)
		}
	}
}

func TestEveryFieldHasKind(t *testing.T) {
	fields := Fields()
	if len(fields) != 15 {
		t.Fatalf("expected 15 fields, got %d", len(fields))
	}
	for _, f := range fields {
		k := KindOf(f)
		if k == KindUnknown {
			t.Errorf("field %s has no kind", f)
		}
		if (k == KindChoice || k == KindChoices) && len(Options(f)) == 0 {
			t.Errorf("choice field %s has no options", f)
		}
	}
}
