package wizard_test

import (
	"testing"
	"time"

	"permitflow/internal/wizard"
)

var testCatalogue = []string{
	"Bloqueo y Etiquetado (LOTO)",
	"Trabajo en Caliente",
	"Ventilación Forzada",
}

func testEnv() wizard.Env {
	return wizard.Env{
		Now:             time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		DepartmentCount: 2,
		DescriptionMin:  10,
		DescriptionMax:  500,
	}
}

func validDraft() *wizard.Draft {
	d := wizard.NewDraft(testCatalogue)
	d.CompanyID = "comp-1"
	d.ContractorID = "ctr-1"
	d.Category = "electrico"
	d.WorkDescription = "Mantenimiento del tablero principal"
	d.Location = "Subestación A"
	d.StartDate = "2024-03-16"
	d.EndDate = "2024-03-17"
	d.WorkHoursStart = "08:00"
	d.WorkHoursEnd = "17:00"
	d.IdentifiedRisks = []string{"Contacto eléctrico"}
	d.ToolsToUse = []string{"Multímetro"}
	d.RequiredPPE = []string{"Guantes dieléctricos"}
	d.SafetyControls.SetChecked("Bloqueo y Etiquetado (LOTO)", true)
	d.RequiredApprovals = []string{"SEG"}
	return d
}

func TestGeneralStepValid(t *testing.T) {
	errs := wizard.Validate(wizard.StepGeneral, validDraft(), testEnv())
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestGeneralStepRequiredFields(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	errs := wizard.Validate(wizard.StepGeneral, d, testEnv())
	for _, field := range []string{"companyId", "contractorId", "category", "workDescription", "location", "startDate", "endDate", "workHoursStart", "workHoursEnd"} {
		if errs[field] == "" {
			t.Errorf("expected error for %s", field)
		}
	}
}

func TestStartDateMustBeStrictlyFuture(t *testing.T) {
	env := testEnv()
	cases := []struct {
		date string
		ok   bool
	}{
		{"2024-03-14", false}, // yesterday
		{"2024-03-15", false}, // today, even though Now has hours left
		{"2024-03-16", true},  // tomorrow
		{"not-a-date", false},
		{"", false},
	}
	for _, tc := range cases {
		d := validDraft()
		d.StartDate = tc.date
		if tc.ok {
			d.EndDate = tc.date
		}
		errs := wizard.Validate(wizard.StepGeneral, d, env)
		if tc.ok && errs["startDate"] != "" {
			t.Errorf("date %q: unexpected error %q", tc.date, errs["startDate"])
		}
		if !tc.ok && errs["startDate"] == "" {
			t.Errorf("date %q: expected error", tc.date)
		}
	}
}

func TestEndDateNotBeforeStart(t *testing.T) {
	d := validDraft()
	d.StartDate = "2024-03-20"
	d.EndDate = "2024-03-18"
	errs := wizard.Validate(wizard.StepGeneral, d, testEnv())
	if errs["endDate"] == "" {
		t.Fatalf("expected endDate error, got %v", errs)
	}
	d.EndDate = "2024-03-20" // same day is fine
	errs = wizard.Validate(wizard.StepGeneral, d, testEnv())
	if errs["endDate"] != "" {
		t.Fatalf("same-day end should pass, got %q", errs["endDate"])
	}
}

func TestDescriptionLengthCountsRunes(t *testing.T) {
	env := testEnv()
	d := validDraft()
	d.WorkDescription = "ñáéíóúñáéí" // 10 runes, more than 10 bytes
	if errs := wizard.Validate(wizard.StepGeneral, d, env); errs["workDescription"] != "" {
		t.Fatalf("10-rune description should pass: %q", errs["workDescription"])
	}
	d.WorkDescription = "corta"
	if errs := wizard.Validate(wizard.StepGeneral, d, env); errs["workDescription"] == "" {
		t.Fatal("expected error for short description")
	}
}

func TestRisksToolsStep(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	errs := wizard.Validate(wizard.StepRisksTools, d, testEnv())
	if errs["identifiedRisks"] == "" || errs["toolsToUse"] == "" {
		t.Fatalf("expected both errors, got %v", errs)
	}
	d.IdentifiedRisks = []string{"Caída"}
	d.ToolsToUse = []string{"Andamio"}
	if errs := wizard.Validate(wizard.StepRisksTools, d, testEnv()); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestControlsOrRule(t *testing.T) {
	env := testEnv()
	d := wizard.NewDraft(testCatalogue)
	d.RequiredPPE = []string{"Casco"}

	if errs := wizard.Validate(wizard.StepPPEControls, d, env); errs["safetyControls"] == "" {
		t.Fatal("expected safetyControls error with nothing checked")
	}

	// Checked control alone satisfies the rule.
	d.SafetyControls.SetChecked("Trabajo en Caliente", true)
	if errs := wizard.Validate(wizard.StepPPEControls, d, env); errs["safetyControls"] != "" {
		t.Fatalf("checked control should satisfy rule: %q", errs["safetyControls"])
	}

	// Additional controls text alone satisfies it too.
	d.SafetyControls.SetChecked("Trabajo en Caliente", false)
	d.AdditionalControls = "Vigía de incendios permanente"
	if errs := wizard.Validate(wizard.StepPPEControls, d, env); errs["safetyControls"] != "" {
		t.Fatalf("additional controls should satisfy rule: %q", errs["safetyControls"])
	}

	// Whitespace-only text does not.
	d.AdditionalControls = "   "
	if errs := wizard.Validate(wizard.StepPPEControls, d, env); errs["safetyControls"] == "" {
		t.Fatal("whitespace-only additional controls should not satisfy rule")
	}
}

func TestApprovalsFailOpen(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)

	env := testEnv()
	env.DepartmentCount = 0
	if errs := wizard.Validate(wizard.StepApprovals, d, env); len(errs) != 0 {
		t.Fatalf("no departments configured: expected pass, got %v", errs)
	}

	env.DepartmentCount = 3
	if errs := wizard.Validate(wizard.StepApprovals, d, env); errs["requiredApprovals"] == "" {
		t.Fatal("expected requiredApprovals error when departments exist")
	}
	d.RequiredApprovals = []string{"SEG"}
	if errs := wizard.Validate(wizard.StepApprovals, d, env); len(errs) != 0 {
		t.Fatalf("expected pass with approval selected, got %v", errs)
	}
}

func TestFormsStepAlwaysPasses(t *testing.T) {
	d := wizard.NewDraft(testCatalogue)
	if errs := wizard.Validate(wizard.StepForms, d, testEnv()); len(errs) != 0 {
		t.Fatalf("forms step should be pass-through, got %v", errs)
	}
}

func TestControllerGatesForwardOnly(t *testing.T) {
	env := testEnv()
	c := wizard.Controller{Draft: wizard.NewDraft(testCatalogue), Step: wizard.StepGeneral}

	if errs := c.Next(env); len(errs) == 0 {
		t.Fatal("empty draft should not advance")
	}
	if c.Step != wizard.StepGeneral {
		t.Fatalf("step moved on failed validation: %v", c.Step)
	}

	c.Draft = validDraft()
	for i := 0; i < wizard.StepCount-1; i++ {
		if errs := c.Next(env); len(errs) != 0 {
			t.Fatalf("step %v: unexpected errors %v", c.Step, errs)
		}
	}
	if c.Step != wizard.StepSummary {
		t.Fatalf("expected summary step, got %v", c.Step)
	}
	// Next at summary is a no-op.
	if errs := c.Next(env); len(errs) != 0 {
		t.Fatalf("next at summary: %v", errs)
	}
	if c.Step != wizard.StepSummary {
		t.Fatalf("summary next moved to %v", c.Step)
	}

	// Back never validates: wreck the draft and walk back to the start.
	c.Draft.WorkDescription = ""
	for i := 0; i < wizard.StepCount+2; i++ {
		c.Back()
	}
	if c.Step != wizard.StepGeneral {
		t.Fatalf("expected first step, got %v", c.Step)
	}
}

func TestValidateAllMergesSteps(t *testing.T) {
	c := wizard.Controller{Draft: wizard.NewDraft(testCatalogue), Step: wizard.StepSummary}
	errs := c.ValidateAll(testEnv())
	for _, field := range []string{"companyId", "identifiedRisks", "requiredPPE", "safetyControls", "requiredApprovals"} {
		if errs[field] == "" {
			t.Errorf("expected merged error for %s", field)
		}
	}
	if len(c.ValidateAll(wizard.Env{Now: testEnv().Now, DepartmentCount: 2})) == 0 {
		t.Fatal("expected errors for empty draft")
	}
	full := wizard.Controller{Draft: validDraft()}
	if errs := full.ValidateAll(testEnv()); len(errs) != 0 {
		t.Fatalf("valid draft: %v", errs)
	}
}

func TestChecklistFixedCardinality(t *testing.T) {
	cl := wizard.NewChecklist(testCatalogue)
	if cl.Len() != len(testCatalogue) {
		t.Fatalf("len = %d", cl.Len())
	}
	if cl.SetChecked("No existe", true) {
		t.Fatal("unknown item should be rejected")
	}
	if cl.Len() != len(testCatalogue) {
		t.Fatalf("checklist grew to %d", cl.Len())
	}
	if !cl.SetChecked("Trabajo en Caliente", true) {
		t.Fatal("known item rejected")
	}
	if !cl.AnyChecked() {
		t.Fatal("AnyChecked false after check")
	}
	cl.Reset()
	if cl.AnyChecked() {
		t.Fatal("AnyChecked true after reset")
	}
	got, _ := cl.Get("Trabajo en Caliente")
	if got.Notes != "" {
		t.Fatalf("notes survived reset: %q", got.Notes)
	}
}
