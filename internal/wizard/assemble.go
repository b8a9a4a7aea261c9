package wizard

import (
	"strings"
	"time"

	"permitflow/internal/domain"
)

// DefaultControlNotes annotates the forced first control when a draft
// reaches assembly with nothing checked.
const DefaultControlNotes = "Control por defecto"

// Assemble transforms the draft into the submission payload. It is a total,
// pure function: a draft that passed the step validators always assembles.
// actorCompanyID backs the companyId fallback for company-scoped roles
// creating their own permits.
func Assemble(d *Draft, actorCompanyID string) domain.SubmissionPayload {
	companyID := d.CompanyID
	if companyID == "" {
		companyID = actorCompanyID
	}

	controls := make([]domain.SubmittedControl, 0, d.SafetyControls.Len())
	anyChecked := false
	for _, entry := range d.SafetyControls.Items() {
		desc := entry.Notes
		if desc == "" {
			desc = entry.Item
		}
		controls = append(controls, domain.SubmittedControl{
			Item:        entry.Item,
			Description: desc,
			Checked:     entry.Checked,
			Notes:       entry.Notes,
		})
		if entry.Checked {
			anyChecked = true
		}
	}
	// A submitted permit always carries at least one checked control, even
	// if the draft reached assembly via a path that bypassed the step-2
	// rule.
	if !anyChecked && len(controls) > 0 {
		controls[0].Checked = true
		controls[0].Notes = DefaultControlNotes
	}

	approvals := make([]domain.ApprovalRef, 0, len(d.RequiredApprovals))
	for _, code := range d.RequiredApprovals {
		approvals = append(approvals, domain.ApprovalRef{Department: code})
	}

	payload := domain.SubmissionPayload{
		TemplateID:        d.TemplateID,
		Category:          d.Category,
		CompanyID:         companyID,
		ContractorID:      d.ContractorID,
		WorkDescription:   d.WorkDescription,
		Location:          d.Location,
		StartDate:         dateToInstant(d.StartDate),
		EndDate:           dateToInstant(d.EndDate),
		WorkHoursStart:    d.WorkHoursStart,
		WorkHoursEnd:      d.WorkHoursEnd,
		IdentifiedRisks:   append([]string(nil), d.IdentifiedRisks...),
		ToolsToUse:        append([]string(nil), d.ToolsToUse...),
		RequiredPPE:       append([]string(nil), d.RequiredPPE...),
		SafetyControls:    controls,
		RequiredApprovals: approvals,
	}
	if s := strings.TrimSpace(d.AdditionalControls); s != "" {
		payload.AdditionalControls = d.AdditionalControls
	}
	if len(d.AttachedForms) > 0 {
		forms := make([]domain.FormRequirement, 0, len(d.AttachedForms))
		for _, a := range SortedForms(d) {
			forms = append(forms, domain.FormRequirement{
				Form:      a.FormID,
				Mandatory: a.Mandatory,
				Order:     a.Order,
				Condition: a.Condition,
			})
		}
		payload.RequiredForms = forms
	}
	if len(d.FormResponses) > 0 {
		payload.FormResponses = d.FormResponses
	}
	return payload
}

// dateToInstant converts a date-only value to an ISO-8601 instant at UTC
// midnight. Unparseable input passes through unchanged; the validators own
// date correctness.
func dateToInstant(value string) string {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return value
	}
	return t.UTC().Format(time.RFC3339)
}
