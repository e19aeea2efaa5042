package rules

import (
	"testing"

	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/routine"
)

type want struct{ name, product string }

func names(steps []routine.Step) []want {
	out := make([]want, len(steps))
	for i, s := range steps {
		out[i] = want{s.Name(), s.Product()}
	}
	return out
}

func assertSteps(t *testing.T, got []routine.Step, exp []want) {
	t.Helper()
	g := names(got)
	if len(g) != len(exp) {
		t.Fatalf("got %d steps %v, want %v", len(g), g, exp)
	}
	for i := range exp {
		if g[i] != exp[i] {
			t.Errorf("step[%d] = %v, want %v", i, g[i], exp[i])
		}
	}
}

func TestGenerate_DrySkinDrynessSPF(t *testing.T) {
	p := &profile.Profile{
		SkinType:       profile.SkinDry,
		PrimaryConcern: profile.ConcernDryness,
		UsesSPF:        true,
	}
	got := New(routine.NewCounterIDs("r")).Generate(p)
	assertSteps(t, got, []want{
		{StepCleanse, "Hydrating Cleanser"},
		{StepTreat, "Hyaluronic Acid Serum"},
		{StepMoisturize, "Rich Moisturizing Cream"},
		{StepProtect, "SPF 50 Sunscreen"},
	})
	for _, s := range got {
		if s.Period() != "" {
			t.Errorf("%s carries period %q", s.Name(), s.Period())
		}
	}
}

func TestGenerate_OilyDoubleCleanser(t *testing.T) {
	p := &profile.Profile{
		SkinType:       profile.SkinOily,
		PrimaryConcern: profile.ConcernAcne,
		DoubleCleanses: true,
	}
	assertSteps(t, New(nil).Generate(p), []want{
		{StepCleanse, "Gentle Foaming Cleanser"},
		{StepTone, "Balancing Toner"},
		{StepTreat, "Salicylic Acid Serum"},
		{StepMoisturize, "Oil-Free Gel Moisturizer"},
	})
}

func TestGenerate_EmptyProfileIsMinimal(t *testing.T) {
	assertSteps(t, New(nil).Generate(&profile.Profile{}), []want{
		{StepCleanse, "Hydrating Cleanser"},
		{StepMoisturize, "Daily Moisturizer"},
	})
	assertSteps(t, New(nil).Generate(nil), []want{
		{StepCleanse, "Hydrating Cleanser"},
		{StepMoisturize, "Daily Moisturizer"},
	})
}

func TestGenerate_OtherConcernSkipsTreat(t *testing.T) {
	p := &profile.Profile{SkinType: profile.SkinNormal, PrimaryConcern: profile.ConcernOther}
	for _, s := range New(nil).Generate(p) {
		if s.Name() == StepTreat {
			t.Errorf("unexpected Treat step for concern Other: %v", s)
		}
	}
}

func TestGenerate_TreatmentPerConcern(t *testing.T) {
	cases := map[profile.Concern]string{
		profile.ConcernAcne:       "Salicylic Acid Serum",
		profile.ConcernDryness:    "Hyaluronic Acid Serum",
		profile.ConcernDullness:   "Vitamin C Serum",
		profile.ConcernRedness:    "Centella Serum",
		profile.ConcernFineLines:  "Peptide Serum",
		profile.ConcernUnevenTone: "Niacinamide Serum",
	}
	for c, product := range cases {
		steps := New(nil).Generate(&profile.Profile{PrimaryConcern: c})
		if len(steps) != 3 || steps[1].Product() != product {
			t.Errorf("%s: got %v", c, names(steps))
		}
	}
}

func TestGenerate_MoisturizerPerSkinType(t *testing.T) {
	cases := map[profile.SkinType]string{
		profile.SkinDry:         "Rich Moisturizing Cream",
		profile.SkinOily:        "Oil-Free Gel Moisturizer",
		profile.SkinCombination: "Balanced Lotion",
		profile.SkinSensitive:   "Fragrance-Free Calming Cream",
		profile.SkinNormal:      "Daily Moisturizer",
		profile.SkinUnknown:     "Daily Moisturizer",
	}
	for st, product := range cases {
		steps := New(nil).Generate(&profile.Profile{SkinType: st})
		last := steps[len(steps)-1]
		if last.Name() != StepMoisturize || last.Product() != product {
			t.Errorf("%s: got %v", st, names(steps))
		}
	}
}

// Every generated routine starts with Cleanse, contains exactly one
// Moisturize, and ends with Protect iff the user wears SPF.
func TestGenerate_StructuralInvariants(t *testing.T) {
	for _, st := range profile.Options(profile.FieldSkinType) {
		for _, c := range append(profile.Options(profile.FieldPrimaryConcern), "") {
			for _, spf := range []bool{false, true} {
				for _, dc := range []bool{false, true} {
					p := &profile.Profile{
						SkinType:       profile.SkinType(st),
						PrimaryConcern: profile.Concern(c),
						UsesSPF:        spf,
						DoubleCleanses: dc,
					}
					steps := New(nil).Generate(p)
					if len(steps) < 2 {
						t.Fatalf("%+v: %d steps", p, len(steps))
					}
					if steps[0].Name() != StepCleanse {
						t.Errorf("%+v: first step %q", p, steps[0].Name())
					}
					moist := 0
					for _, s := range steps {
						if s.Name() == StepMoisturize {
							moist++
						}
						if s.Description() == "" {
							t.Errorf("%+v: %s has no description", p, s.Name())
						}
					}
					if moist != 1 {
						t.Errorf("%+v: %d Moisturize steps", p, moist)
					}
					endsProtect := steps[len(steps)-1].Name() == StepProtect
					if endsProtect != spf {
						t.Errorf("%+v: ends with Protect = %v", p, endsProtect)
					}
				}
			}
		}
	}
}

func TestGenerate_DistinctIDs(t *testing.T) {
	p := &profile.Profile{SkinType: profile.SkinCombination, PrimaryConcern: profile.ConcernRedness, UsesSPF: true}
	steps := New(routine.NewCounterIDs("x")).Generate(p)
	seen := map[string]bool{}
	for _, s := range steps {
		if seen[s.ID()] {
			t.Errorf("duplicate id %q", s.ID())
		}
		seen[s.ID()] = true
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	p := &profile.Profile{
		SkinType:       profile.SkinCombination,
		PrimaryConcern: profile.ConcernUnevenTone,
		UsesSPF:        true,
		DoubleCleanses: true,
	}
	a := New(routine.NewCounterIDs("s")).Generate(p)
	b := New(routine.NewCounterIDs("s")).Generate(p)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID() != b[i].ID() || a[i].Name() != b[i].Name() || a[i].Product() != b[i].Product() {
			t.Errorf("step %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestGenerate_ToneBeforeTreatBeforeProtect(t *testing.T) {
	p := &profile.Profile{SkinType: profile.SkinOily, PrimaryConcern: profile.ConcernDullness, UsesSPF: true}
	order := map[string]int{}
	for i, s := range New(nil).Generate(p) {
		order[s.Name()] = i
	}
	if !(order[StepTone] < order[StepTreat] && order[StepTreat] < order[StepProtect]) {
		t.Errorf("rule order violated: %v", order)
	}
}
