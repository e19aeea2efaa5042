// Package render formats a generated routine for output.
package render

import (
	"fmt"

	"github.com/dshills/skinroutine/internal/orchestrator"
	"github.com/dshills/skinroutine/internal/review"
	"github.com/dshills/skinroutine/internal/routine"
)

// FallbackNote labels a rule-based routine whose periods come from the
// positional split.
const FallbackNote = "Generated by the rule-based fallback. The morning/evening split is by position in the list, not by what each step does."

// Document is the rendered view of one generation result, or of a saved
// routine when Status is empty.
type Document struct {
	Status        orchestrator.Status `json:"status,omitempty"`
	Routine       routine.Routine     `json:"routine"`
	Findings      []review.Finding    `json:"findings"`
	FallbackCause string              `json:"fallback_cause,omitempty"`
	FallbackError string              `json:"fallback_error,omitempty"`
	Note          string              `json:"note,omitempty"`
}

// FromResult builds a Document from an orchestrator result.
func FromResult(res *orchestrator.Result) *Document {
	doc := &Document{
		Status:   res.Status,
		Routine:  res.Routine,
		Findings: res.Findings,
	}
	if doc.Findings == nil {
		doc.Findings = []review.Finding{}
	}
	if res.Cause != nil {
		doc.FallbackCause = res.CauseKind()
		doc.FallbackError = res.Cause.Error()
	}
	if res.Routine.Source == routine.SourceRules {
		doc.Note = FallbackNote
	}
	return doc
}

// FromSaved builds a Document for a routine loaded from a store. The fallback
// note follows the stored source.
func FromSaved(r routine.Routine) *Document {
	doc := &Document{Routine: r, Findings: []review.Finding{}}
	if r.Source == routine.SourceRules {
		doc.Note = FallbackNote
	}
	return doc
}

// Renderer formats a Document into bytes for output.
type Renderer interface {
	Render(doc *Document) ([]byte, error)
}

// NewRenderer returns a Renderer for the given format string.
// Supported formats: "json" (default), "md".
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "json":
		return &jsonRenderer{}, nil
	case "md":
		return &markdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: supported formats are json, md", format)
	}
}
