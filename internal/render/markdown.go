package render

import (
	"bytes"
	"fmt"
	"text/template"
)

type markdownRenderer struct{}

var mdTemplate = template.Must(template.New("routine").Parse(`# Your Skincare Routine
{{ if .Status }}
**Status:** {{ .Status }}{{ if .FallbackCause }} ({{ .FallbackCause }}){{ end }}{{ end }}
**Source:** {{ .Routine.Source }}{{ if .Routine.Model }} · {{ .Routine.Model }}{{ end }}
{{ if .Note }}
> Note: {{ .Note }}
{{ end }}
## Morning
{{ range .Routine.Morning }}
1. **{{ .Name }}**{{ if .Product }} · {{ .Product }}{{ end }}
   {{ .Description }}{{ else }}
_No steps._{{ end }}

## Evening
{{ range .Routine.Evening }}
1. **{{ .Name }}**{{ if .Product }} · {{ .Product }}{{ end }}
   {{ .Description }}{{ else }}
_No steps._{{ end }}
{{ if .Findings }}
---

## Review
{{ range .Findings }}
- **{{ .Severity }}** {{ .Code }}{{ if .Period }} ({{ .Period }}){{ end }}: {{ .Message }}{{ end }}
{{ end }}{{ if not .Routine.GeneratedAt.IsZero }}
---
*Generated {{ .Routine.GeneratedAt.Format "2006-01-02 15:04 MST" }}*
{{ end }}`))

func (r *markdownRenderer) Render(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := mdTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}
