package pipeline

import (
	"strings"
	"text/template"

	"github.com/quietridge/analystd/internal/retrieval"
)

// skillTemplates maps an analysis kind to its reasoning prompt skeleton.
// Unrecognized kinds fall back to the generic template. No templating
// library is pulled in for this — three fixed, short skeletons don't
// justify anything beyond text/template.
var skillTemplates = map[string]string{
	"stock": `Analyze {{.Ticker}} as a standalone equity position. Produce a structured
JSON verdict with fields gate_passed, recommendation, confidence, expected_value_pct,
entry_price, stop_price, target_price, position_size_pct, rationale.
{{if .RetrievalContext}}

Prior context:
{{.RetrievalContext}}
{{end}}`,
	"option": `Analyze {{.Ticker}} for an options trade structure. Produce a structured
JSON verdict with fields gate_passed, recommendation, confidence, expected_value_pct,
trade_structure, expiry, strikes, position_size_pct, rationale.
{{if .RetrievalContext}}

Prior context:
{{.RetrievalContext}}
{{end}}`,
	"default": `Analyze {{.Ticker}} ({{.Kind}}). Produce a structured JSON verdict with
fields gate_passed, recommendation, confidence, expected_value_pct, rationale.
{{if .RetrievalContext}}

Prior context:
{{.RetrievalContext}}
{{end}}`,
}

type promptData struct {
	Ticker           string
	Kind             string
	RetrievalContext string
}

// DefaultPromptBuilder renders prompts from skillTemplates. When kbEnabled
// is true and hc is non-nil, hc's formatted markdown is injected into the
// prompt — the legacy variant's behavior; the four-phase variant always
// calls with kbEnabled=false.
type DefaultPromptBuilder struct{}

// NewDefaultPromptBuilder creates the default, template-driven PromptBuilder.
func NewDefaultPromptBuilder() *DefaultPromptBuilder {
	return &DefaultPromptBuilder{}
}

// Build implements PromptBuilder.
func (b *DefaultPromptBuilder) Build(ticker, kind string, kbEnabled bool, hc *retrieval.HybridContext) (string, error) {
	tmplSrc, ok := skillTemplates[kind]
	if !ok {
		tmplSrc = skillTemplates["default"]
	}

	tmpl, err := template.New(kind).Parse(tmplSrc)
	if err != nil {
		return "", err
	}

	data := promptData{Ticker: ticker, Kind: kind}
	if kbEnabled && hc != nil {
		data.RetrievalContext = hc.Formatted
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
