package routine

import (
	"strings"
	"time"
)

// SchemaVersion is bumped whenever the persisted Routine shape changes.
const SchemaVersion = 1

// Source records which generator produced a routine.
type Source string

const (
	SourceLLM   Source = "llm"
	SourceRules Source = "rules"
)

// Routine is the versioned output of one generation request.
type Routine struct {
	Version     int       `json:"version"`
	Source      Source    `json:"source"`
	Model       string    `json:"model,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
	Morning     []Step    `json:"morning"`
	Evening     []Step    `json:"evening"`
}

// Steps returns the steps for p. Any other period yields nil.
func (r Routine) Steps(p Period) []Step {
	switch p {
	case Morning:
		return r.Morning
	case Evening:
		return r.Evening
	}
	return nil
}

// Split divides a single chronological step list into morning and evening
// halves by position: the first len/2 steps go to the morning and the rest to
// the evening.
//
// This is a fallback-only approximation. It ignores what each step does, so a
// Protect step can land in the evening.
func Split(steps []Step) (morning, evening []Step) {
	mid := len(steps) / 2
	morning = append([]Step(nil), steps[:mid]...)
	evening = append([]Step(nil), steps[mid:]...)
	return morning, evening
}

var descriptions = map[string]string{
	"cleanse":        "Removes dirt, oil and sunscreen so later steps can absorb.",
	"double cleanse": "An oil-based cleanse followed by a water-based one to lift makeup and SPF.",
	"tone":           "Rebalances the skin after cleansing and preps it for treatments.",
	"treat":          "Targets your main concern with concentrated active ingredients.",
	"serum":          "Targets your main concern with concentrated active ingredients.",
	"moisturize":     "Locks in hydration and supports the skin barrier.",
	"protect":        "Shields skin from UV damage, the biggest driver of premature aging.",
	"spf":            "Shields skin from UV damage, the biggest driver of premature aging.",
	"eye cream":      "Hydrates and cares for the thin skin around the eyes.",
	"mask":           "Gives the skin an intensive boost of hydration or clarifying care.",
	"exfoliate":      "Clears away dead skin cells for smoother texture and a brighter tone.",
}

// Describe returns the canned one-sentence rationale for a step name, or a
// generic instruction built from the product when the name is not known.
func Describe(stepName, productName string) string {
	if d, ok := descriptions[strings.ToLower(strings.TrimSpace(stepName))]; ok {
		return d
	}
	return "Apply " + productName + " as directed"
}
