package wizard_test

import (
	"encoding/json"
	"strings"
	"testing"

	"permitflow/internal/wizard"
)

func TestAssembleMapsDraft(t *testing.T) {
	d := validDraft()
	d.SafetyControls.SetNotes("Bloqueo y Etiquetado (LOTO)", "Candados en tablero")
	p := wizard.Assemble(d, "")

	if p.CompanyID != "comp-1" || p.ContractorID != "ctr-1" || p.Category != "electrico" {
		t.Fatalf("identity fields: %+v", p)
	}
	if p.StartDate != "2024-03-16T00:00:00Z" || p.EndDate != "2024-03-17T00:00:00Z" {
		t.Fatalf("dates not converted to instants: %s / %s", p.StartDate, p.EndDate)
	}
	if len(p.SafetyControls) != len(testCatalogue) {
		t.Fatalf("controls = %d", len(p.SafetyControls))
	}
	loto := p.SafetyControls[0]
	if loto.Item != "Bloqueo y Etiquetado (LOTO)" || !loto.Checked {
		t.Fatalf("first control: %+v", loto)
	}
	// Description prefers the notes; falls back to the item label.
	if loto.Description != "Candados en tablero" || loto.Notes != "Candados en tablero" {
		t.Fatalf("loto description/notes: %+v", loto)
	}
	unchecked := p.SafetyControls[1]
	if unchecked.Description != unchecked.Item {
		t.Fatalf("fallback description: %+v", unchecked)
	}
	if len(p.RequiredApprovals) != 1 || p.RequiredApprovals[0].Department != "SEG" {
		t.Fatalf("approvals: %+v", p.RequiredApprovals)
	}
}

func TestAssembleCompanyFallback(t *testing.T) {
	d := validDraft()
	d.CompanyID = ""
	p := wizard.Assemble(d, "actor-company")
	if p.CompanyID != "actor-company" {
		t.Fatalf("companyId = %q", p.CompanyID)
	}
	// An explicit company wins over the actor's.
	d.CompanyID = "comp-1"
	if p := wizard.Assemble(d, "actor-company"); p.CompanyID != "comp-1" {
		t.Fatalf("companyId = %q", p.CompanyID)
	}
}

func TestAssembleForcesDefaultControl(t *testing.T) {
	d := validDraft()
	d.SafetyControls.Reset()
	d.AdditionalControls = "Controles descritos a mano"
	p := wizard.Assemble(d, "")

	first := p.SafetyControls[0]
	if !first.Checked || first.Notes != wizard.DefaultControlNotes {
		t.Fatalf("first control not forced: %+v", first)
	}
	for _, c := range p.SafetyControls[1:] {
		if c.Checked {
			t.Fatalf("only the first entry should be forced: %+v", c)
		}
	}
}

func TestAssembleOmissionRules(t *testing.T) {
	d := validDraft()
	d.AdditionalControls = "  "
	d.AttachedForms = nil
	d.FormResponses = nil
	p := wizard.Assemble(d, "")

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, key := range []string{"additionalControls", "requiredForms", "formResponses", "templateId"} {
		if strings.Contains(s, key) {
			t.Errorf("payload should omit %s: %s", key, s)
		}
	}
	// requiredApprovals is always present, even when empty.
	d.RequiredApprovals = nil
	b, _ = json.Marshal(wizard.Assemble(d, ""))
	if !strings.Contains(string(b), `"requiredApprovals":[]`) {
		t.Fatalf("requiredApprovals missing or null: %s", b)
	}
}

func TestAssembleFormsSortedByOrder(t *testing.T) {
	d := validDraft()
	wizard.AddForms(d, []string{"form-a", "form-b"})
	d.AttachedForms[0].Order, d.AttachedForms[1].Order = 2, 1
	p := wizard.Assemble(d, "")
	if len(p.RequiredForms) != 2 || p.RequiredForms[0].Form != "form-b" {
		t.Fatalf("forms: %+v", p.RequiredForms)
	}
}

func TestAssemblePassesThroughUnparseableDates(t *testing.T) {
	d := validDraft()
	d.StartDate = "2024-03-16T08:00:00Z"
	p := wizard.Assemble(d, "")
	if p.StartDate != "2024-03-16T08:00:00Z" {
		t.Fatalf("instant rewritten: %s", p.StartDate)
	}
}
