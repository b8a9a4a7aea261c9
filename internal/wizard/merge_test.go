package wizard_test

import (
	"testing"

	"permitflow/internal/domain"
	"permitflow/internal/wizard"
)

func sampleTemplate() domain.Template {
	return domain.Template{
		ID:              "tpl-1",
		Name:            "Trabajo en caliente estándar",
		Category:        "caliente",
		WorkDescription: "Soldadura y corte en taller",
		DefaultLocation: "Taller central",
		IdentifiedRisks: []string{"Incendio", "Quemaduras"},
		ToolsToUse:      []string{"Soldadora"},
		RequiredPPE:     []string{"Careta de soldar"},
		SafetyControls: []domain.TemplateControl{
			{Item: "trabajo en caliente", Description: "Permiso de fuego vigente"},
			{Item: "LOTO"},
		},
		RequiredApprovals: []string{"SEG"},
		RequiredForms: []domain.FormAttachment{
			{FormID: "form-a", Mandatory: true, Order: 1},
		},
	}
}

func TestSubstringMatcher(t *testing.T) {
	m := wizard.SubstringMatcher{}
	cases := []struct {
		catalogue, template string
		want                bool
	}{
		{"Bloqueo y Etiquetado (LOTO)", "LOTO", true},
		{"LOTO", "Bloqueo y Etiquetado (LOTO)", true}, // either direction
		{"Trabajo en Caliente", "TRABAJO EN CALIENTE", true},
		{"  Ventilación Forzada ", "ventilación", true},
		{"Trabajo en Caliente", "Espacios Confinados", false},
		{"Trabajo en Caliente", "", false},
		{"", "LOTO", false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.catalogue, tc.template); got != tc.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tc.catalogue, tc.template, got, tc.want)
		}
	}
}

func TestApplyTemplateMergesFields(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	d.CompanyID = "comp-1" // company survives: templates never touch it
	sum := wizard.ApplyTemplate(d, sampleTemplate(), nil)

	if d.TemplateID != "tpl-1" {
		t.Fatalf("templateId = %q", d.TemplateID)
	}
	if d.Category != "caliente" || d.WorkDescription != "Soldadura y corte en taller" || d.Location != "Taller central" {
		t.Fatalf("scalar fields not merged: %+v", d)
	}
	if d.CompanyID != "comp-1" {
		t.Fatalf("companyId touched: %q", d.CompanyID)
	}
	if len(d.IdentifiedRisks) != 2 || len(d.ToolsToUse) != 1 || len(d.RequiredPPE) != 1 {
		t.Fatalf("sets not replaced: %+v", d)
	}
	if len(d.AttachedForms) != 1 || d.AttachedForms[0].FormID != "form-a" {
		t.Fatalf("forms not attached: %+v", d.AttachedForms)
	}
	if sum.Risks != 2 || sum.Tools != 1 || sum.PPE != 1 || sum.Controls != 2 || sum.Approvals != 1 || sum.Forms != 1 {
		t.Fatalf("summary counts: %+v", sum)
	}
}

func TestApplyTemplateChecksMatchedControls(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	wizard.ApplyTemplate(d, sampleTemplate(), nil)

	hot, _ := d.SafetyControls.Get("Trabajo en Caliente")
	if !hot.Checked || hot.Notes != "Permiso de fuego vigente" {
		t.Fatalf("hot work control: %+v", hot)
	}
	// The template control without a description gets the fallback note.
	loto, _ := d.SafetyControls.Get("Bloqueo y Etiquetado (LOTO)")
	if !loto.Checked || loto.Notes != wizard.TemplateNoteFallback {
		t.Fatalf("loto control: %+v", loto)
	}
	// Unmatched catalogue entries are untouched, and the checklist never grows.
	vent, _ := d.SafetyControls.Get("Ventilación Forzada")
	if vent.Checked || vent.Notes != "" {
		t.Fatalf("ventilation control touched: %+v", vent)
	}
	if d.SafetyControls.Len() != len(testCatalogue) {
		t.Fatalf("checklist grew to %d", d.SafetyControls.Len())
	}
}

func TestApplyTemplateIdempotent(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	tpl := sampleTemplate()
	first := wizard.ApplyTemplate(d, tpl, nil)
	second := wizard.ApplyTemplate(d, tpl, nil)
	if first != second {
		t.Fatalf("summaries differ: %+v vs %+v", first, second)
	}
	if len(d.IdentifiedRisks) != 2 || len(d.AttachedForms) != 1 {
		t.Fatalf("reapply accumulated state: %+v", d)
	}
}

func TestApplyTemplatePresenceGated(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	d.Category = "electrico"
	d.WorkDescription = "Descripción manual previa"
	d.IdentifiedRisks = []string{"Riesgo manual"}

	sparse := domain.Template{ID: "tpl-2", Name: "Vacío", Category: ""}
	sum := wizard.ApplyTemplate(d, sparse, nil)

	if d.Category != "electrico" || d.WorkDescription != "Descripción manual previa" {
		t.Fatalf("empty template fields overwrote draft: %+v", d)
	}
	if len(d.IdentifiedRisks) != 1 || d.IdentifiedRisks[0] != "Riesgo manual" {
		t.Fatalf("risks replaced by absent field: %v", d.IdentifiedRisks)
	}
	if sum.String() != "Sin cambios" {
		t.Fatalf("summary = %q", sum.String())
	}
}

func TestClearTemplateResetsButKeepsCategory(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	d.CompanyID = "comp-1"
	wizard.ApplyTemplate(d, sampleTemplate(), nil)
	wizard.ClearTemplate(d)

	if d.TemplateID != "" || d.WorkDescription != "" || d.Location != "" {
		t.Fatalf("scalars not cleared: %+v", d)
	}
	if d.IdentifiedRisks != nil || d.ToolsToUse != nil || d.RequiredPPE != nil {
		t.Fatalf("sets not cleared: %+v", d)
	}
	if d.SafetyControls.AnyChecked() {
		t.Fatal("checklist not reset")
	}
	if d.RequiredApprovals != nil || d.AttachedForms != nil {
		t.Fatalf("approvals/forms not cleared: %+v", d)
	}
	if d.Category != "caliente" {
		t.Fatalf("category should survive clear, got %q", d.Category)
	}
	if d.CompanyID != "comp-1" {
		t.Fatalf("company should survive clear, got %q", d.CompanyID)
	}
}

func TestChangeSummaryString(t *testing.T) {
	cases := []struct {
		sum  wizard.ChangeSummary
		want string
	}{
		{wizard.ChangeSummary{}, "Sin cambios"},
		{wizard.ChangeSummary{Risks: 3, Controls: 1}, "3 riesgos, 1 controles de seguridad"},
		{wizard.ChangeSummary{Tools: 2, PPE: 4, Forms: 1}, "2 herramientas, 4 EPP, 1 formularios"},
		{wizard.ChangeSummary{Approvals: 1}, "1 aprobaciones"},
	}
	for _, tc := range cases {
		if got := tc.sum.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
