package wizard

import (
	"fmt"
	"strings"

	"permitflow/internal/domain"
)

// TemplateNoteFallback annotates a matched catalogue entry when the template
// control carries no description of its own.
const TemplateNoteFallback = "Requerido por template"

// ChangeSummary counts what a template application populated, for user
// feedback only.
type ChangeSummary struct {
	Risks     int `json:"risks"`
	Tools     int `json:"tools"`
	PPE       int `json:"ppe"`
	Controls  int `json:"controls"`
	Approvals int `json:"approvals"`
	Forms     int `json:"forms"`
}

// String renders the summary in the order risks, tools, PPE, controls,
// approvals, forms, mentioning only non-zero counts.
func (s ChangeSummary) String() string {
	var parts []string
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(s.Risks, "riesgos")
	add(s.Tools, "herramientas")
	add(s.PPE, "EPP")
	add(s.Controls, "controles de seguridad")
	add(s.Approvals, "aprobaciones")
	add(s.Forms, "formularios")
	if len(parts) == 0 {
		return "Sin cambios"
	}
	return strings.Join(parts, ", ")
}

// ApplyTemplate merges a template onto the draft. Fields present and
// non-empty on the template overwrite the draft; absent fields are left
// untouched. Safety controls are matched fuzzily against the fixed
// catalogue; the checklist never grows. Applying the same template twice is
// idempotent.
func ApplyTemplate(d *Draft, t domain.Template, m Matcher) ChangeSummary {
	if m == nil {
		m = SubstringMatcher{}
	}
	var sum ChangeSummary

	d.TemplateID = t.ID
	if t.Category != "" {
		d.Category = t.Category
	}
	if t.WorkDescription != "" {
		d.WorkDescription = t.WorkDescription
	}
	if t.DefaultLocation != "" {
		d.Location = t.DefaultLocation
	}
	if len(t.IdentifiedRisks) > 0 {
		d.IdentifiedRisks = append([]string(nil), t.IdentifiedRisks...)
		sum.Risks = len(t.IdentifiedRisks)
	}
	if len(t.ToolsToUse) > 0 {
		d.ToolsToUse = append([]string(nil), t.ToolsToUse...)
		sum.Tools = len(t.ToolsToUse)
	}
	if len(t.RequiredPPE) > 0 {
		d.RequiredPPE = append([]string(nil), t.RequiredPPE...)
		sum.PPE = len(t.RequiredPPE)
	}
	if len(t.RequiredApprovals) > 0 {
		d.RequiredApprovals = append([]string(nil), t.RequiredApprovals...)
		sum.Approvals = len(t.RequiredApprovals)
	}

	// Fuzzy, order-independent, first-match: for each catalogue entry find
	// the first template control whose label matches in either direction.
	// Unmatched entries keep their prior state.
	for _, entry := range d.SafetyControls.Items() {
		for _, tc := range t.SafetyControls {
			if !m.Match(entry.Item, tc.Item) {
				continue
			}
			d.SafetyControls.SetChecked(entry.Item, true)
			notes := tc.Description
			if notes == "" {
				notes = TemplateNoteFallback
			}
			d.SafetyControls.SetNotes(entry.Item, notes)
			sum.Controls++
			break
		}
	}

	if len(t.RequiredForms) > 0 {
		AttachFromTemplate(d, t.RequiredForms)
		sum.Forms = len(t.RequiredForms)
	}
	return sum
}

// ClearTemplate resets every field a template merge could have touched:
// description, location, the free-form sets, the whole checklist, approvals
// and attached forms. Category is preserved since the user may have set it
// manually before or after selecting the template.
func ClearTemplate(d *Draft) {
	d.TemplateID = ""
	d.WorkDescription = ""
	d.Location = ""
	d.IdentifiedRisks = nil
	d.ToolsToUse = nil
	d.RequiredPPE = nil
	d.SafetyControls.Reset()
	d.RequiredApprovals = nil
	d.AttachedForms = nil
}
