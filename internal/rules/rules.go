// Package rules builds the deterministic fallback routine from a profile.
package rules

import (
	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/routine"
)

// Step names emitted by the generator, in emission order.
const (
	StepCleanse    = "Cleanse"
	StepTone       = "Tone"
	StepTreat      = "Treat"
	StepMoisturize = "Moisturize"
	StepProtect    = "Protect"
)

type pick struct {
	product     string
	description string
}

var treatments = map[profile.Concern]pick{
	profile.ConcernAcne:       {"Salicylic Acid Serum", "Unclogs pores and calms breakouts."},
	profile.ConcernDryness:    {"Hyaluronic Acid Serum", "Draws moisture into the skin for lasting hydration."},
	profile.ConcernDullness:   {"Vitamin C Serum", "Brightens dull skin and evens out radiance."},
	profile.ConcernRedness:    {"Centella Serum", "Soothes redness and supports a calmer complexion."},
	profile.ConcernFineLines:  {"Peptide Serum", "Supports firmness and softens the look of fine lines."},
	profile.ConcernUnevenTone: {"Niacinamide Serum", "Fades dark spots and evens skin tone."},
}

var defaultTreatment = pick{"Antioxidant Serum", "Defends skin against everyday environmental stress."}

var moisturizers = map[profile.SkinType]pick{
	profile.SkinDry:         {"Rich Moisturizing Cream", "Replenishes lipids and seals in moisture for dry skin."},
	profile.SkinOily:        {"Oil-Free Gel Moisturizer", "Hydrates without adding shine or clogging pores."},
	profile.SkinCombination: {"Balanced Lotion", "Hydrates dry areas without weighing down oily zones."},
	profile.SkinSensitive:   {"Fragrance-Free Calming Cream", "Comforts sensitive skin and strengthens the barrier."},
}

var defaultMoisturizer = pick{"Daily Moisturizer", "Keeps skin hydrated and balanced through the day."}

// Generator produces the rule-based routine. It is a pure function of the
// profile apart from the ids it draws from IDs.
type Generator struct {
	IDs routine.IDSource
}

// New returns a Generator drawing ids from ids; nil selects UUIDs.
func New(ids routine.IDSource) *Generator {
	if ids == nil {
		ids = routine.UUIDs()
	}
	return &Generator{IDs: ids}
}

// Generate applies the rules in fixed order: Cleanse, Tone, Treat,
// Moisturize, Protect. Cleanse and Moisturize are unconditional, so the
// result always has at least two steps. The steps carry no period.
func (g *Generator) Generate(p *profile.Profile) []routine.Step {
	if p == nil {
		p = &profile.Profile{}
	}
	steps := make([]routine.Step, 0, 5)
	add := func(name string, c pick) {
		steps = append(steps, routine.NewStep(g.IDs, name, c.product, c.description, ""))
	}

	if p.DoubleCleanses {
		add(StepCleanse, pick{"Gentle Foaming Cleanser", "Follows your first cleanse to leave skin clean without stripping it."})
	} else {
		add(StepCleanse, pick{"Hydrating Cleanser", "Cleanses without stripping the skin's moisture."})
	}

	if p.SkinType == profile.SkinOily || p.SkinType == profile.SkinCombination {
		add(StepTone, pick{"Balancing Toner", "Controls excess oil and refines the look of pores."})
	}

	if p.PrimaryConcern != "" && p.PrimaryConcern != profile.ConcernOther {
		c, ok := treatments[p.PrimaryConcern]
		if !ok {
			c = defaultTreatment
		}
		add(StepTreat, c)
	}

	m, ok := moisturizers[p.SkinType]
	if !ok {
		m = defaultMoisturizer
	}
	add(StepMoisturize, m)

	if p.UsesSPF {
		add(StepProtect, pick{"SPF 50 Sunscreen", "Protects against UV damage and premature aging."})
	}
	return steps
}
