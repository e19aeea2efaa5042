package llm

import (
	"fmt"
	"strings"

	"github.com/dshills/skinroutine/internal/profile"
)

const systemPrompt = `You are a board-certified dermatologist and skincare formulator. You design safe, practical daily skincare routines tailored to a person's skin profile.

Rules you always follow:
- Recommend only widely available, non-prescription product types.
- Never recommend an ingredient the person says they are allergic to.
- If the person uses prescription skincare, keep actives gentle and avoid stacking exfoliants.
- Return JSON only: no prose, no markdown fences, no explanation.`

const responseShape = `{
  "morningRoutine": [{"stepName": "Cleanse", "productName": "Gentle Gel Cleanser"}],
  "eveningRoutine": [{"stepName": "Moisturize", "productName": "Ceramide Night Cream"}]
}`

// BuildSystemPrompt returns the dermatologist persona.
func BuildSystemPrompt() string { return systemPrompt }

// BuildUserPrompt embeds every profile field and the routine rules. Callers
// pass a redacted profile.
func BuildUserPrompt(p *profile.Profile) string {
	var sb strings.Builder

	sb.WriteString("Create a personalized morning and evening skincare routine for this person.\n\n")
	sb.WriteString("<profile>\n")
	field := func(label, value string) {
		if value == "" {
			value = "not specified"
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, value)
	}
	goals := make([]string, len(p.SkinGoals))
	for i, g := range p.SkinGoals {
		goals[i] = string(g)
	}
	field("Skin type", string(p.SkinType))
	field("Skin goals", strings.Join(goals, ", "))
	field("Sensitivity", string(p.SensitivityLevel))
	field("Primary concern", string(p.PrimaryConcern))
	field("Routine frequency", string(p.RoutineFrequency))
	field("Experience level", string(p.ExperienceLevel))
	field("Climate", string(p.Climate))
	field("Time available", string(p.DesiredRoutineTime))
	field("Fragrance preference", string(p.FragrancePreference))
	field("Allergies", p.Allergies)
	field("Preferred ingredients", p.PreferredIngredients)
	field("Uses prescription skincare", yesNo(p.UsingPrescription))
	field("Wears sunscreen daily", yesNo(p.UsesSPF))
	field("Double cleanses", yesNo(p.DoubleCleanses))
	field("Wants product recommendations", yesNo(p.WantsProductRecommendations))
	sb.WriteString("</profile>\n\n")

	lo, hi := profile.StepBudget(p.DesiredRoutineTime)
	sb.WriteString("Rules:\n")
	fmt.Fprintf(&sb, "- Each period must have between %d and %d steps.\n", lo, hi)
	if p.UsesSPF {
		sb.WriteString("- The morning routine must include an SPF step.\n")
	} else {
		sb.WriteString("- Do not include an SPF step.\n")
	}
	if p.DoubleCleanses {
		sb.WriteString("- The evening routine must start with a \"Double Cleanse\" step.\n")
	} else {
		sb.WriteString("- Do not include a \"Double Cleanse\" step.\n")
	}
	switch p.FragrancePreference {
	case profile.FragranceFree:
		sb.WriteString("- Every product must be fragrance-free.\n")
	case profile.FragranceScented:
		sb.WriteString("- Scented products are welcome.\n")
	}
	if strings.TrimSpace(p.Allergies) != "" {
		sb.WriteString("- Avoid every product containing the listed allergies.\n")
	}
	if p.WantsProductRecommendations {
		sb.WriteString("- Name a specific product type for every step.\n")
	} else {
		sb.WriteString("- Use generic product types rather than brands.\n")
	}
	sb.WriteString("- Use short step names such as Cleanse, Tone, Treat, Serum, Moisturize, Protect, Eye Cream, Mask or Exfoliate.\n")

	sb.WriteString("\nReturn exactly one JSON object with this structure and nothing else:\n")
	sb.WriteString(responseShape)
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
