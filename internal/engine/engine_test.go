package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"permitflow/internal/config"
	"permitflow/internal/db"
	"permitflow/internal/domain"
	"permitflow/internal/engine"
	"permitflow/internal/migrate"
	"permitflow/internal/wizard"
)

type testEnv struct {
	Engine *engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("permitflow")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	env := testEnv{Engine: eng, Ctx: context.Background()}
	env.seedDirectory(t)
	return env
}

func (e testEnv) seedDirectory(t *testing.T) {
	t.Helper()
	now := "2024-03-01T00:00:00Z"
	r := e.Engine.Repo
	if err := r.InsertCompany(e.Ctx, domain.Company{ID: "comp-1", Name: "Constructora Andina", CreatedAt: now}); err != nil {
		t.Fatalf("seed company: %v", err)
	}
	if err := r.InsertCompany(e.Ctx, domain.Company{ID: "comp-2", Name: "Servicios del Sur", CreatedAt: now}); err != nil {
		t.Fatalf("seed company: %v", err)
	}
	if err := r.InsertContractor(e.Ctx, domain.Contractor{ID: "ctr-1", CompanyID: "comp-1", FullName: "María Pérez", Cedula: "8-123-456", Status: "active", CreatedAt: now}); err != nil {
		t.Fatalf("seed contractor: %v", err)
	}
	if err := r.InsertContractor(e.Ctx, domain.Contractor{ID: "ctr-2", CompanyID: "comp-1", FullName: "José Gómez", Cedula: "8-654-321", Status: "inactive", CreatedAt: now}); err != nil {
		t.Fatalf("seed contractor: %v", err)
	}
	if err := r.InsertDepartment(e.Ctx, domain.Department{ID: "dep-1", CompanyID: "comp-1", Name: "Seguridad", Code: "SEG", CreatedAt: now}); err != nil {
		t.Fatalf("seed department: %v", err)
	}
	if err := r.InsertDepartment(e.Ctx, domain.Department{ID: "dep-2", CompanyID: "comp-1", Name: "Operaciones", Code: "OPS", CreatedAt: now}); err != nil {
		t.Fatalf("seed department: %v", err)
	}
	if err := r.InsertForm(e.Ctx, domain.Form{ID: "form-1", Name: "Análisis de Trabajo Seguro", EstimatedMinutes: 15, IsActive: true, CreatedAt: now}); err != nil {
		t.Fatalf("seed form: %v", err)
	}
	if err := r.UpsertTemplate(e.Ctx, domain.Template{
		ID:              "tpl-1",
		Name:            "Trabajo en caliente estándar",
		Category:        "soldadura",
		WorkDescription: "Soldadura y corte en estructura metálica",
		DefaultLocation: "Taller central",
		IdentifiedRisks: []string{"Incendio o explosión"},
		ToolsToUse:      []string{"Equipo de soldadura"},
		RequiredPPE:     []string{"Casco", "Gafas de seguridad"},
		SafetyControls: []domain.TemplateControl{
			{Item: "trabajo en caliente", Description: "Permiso de fuego vigente"},
		},
		RequiredApprovals: []string{"SEG"},
		RequiredForms:     []domain.FormAttachment{{FormID: "form-1", Mandatory: true, Order: 1}},
		CreatedAt:         now,
		UpdatedAt:         now,
	}); err != nil {
		t.Fatalf("seed template: %v", err)
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func completePatch() engine.DraftPatch {
	return engine.DraftPatch{
		CompanyID:       strPtr("comp-1"),
		ContractorID:    strPtr("ctr-1"),
		Category:        strPtr("electrico"),
		WorkDescription: strPtr("Mantenimiento del tablero eléctrico principal"),
		Location:        strPtr("Subestación A"),
		StartDate:       strPtr("2024-03-16"),
		EndDate:         strPtr("2024-03-17"),
		WorkHoursStart:  strPtr("08:00"),
		WorkHoursEnd:    strPtr("17:00"),
		IdentifiedRisks: []string{"Riesgo eléctrico"},
		ToolsToUse:      []string{"Multímetro"},
		RequiredPPE:     []string{"Guantes dieléctricos"},
		Controls: []engine.ControlUpdate{
			{Item: "Bloqueo y Etiquetado (LOTO)", Checked: boolPtr(true)},
		},
		RequiredApprovals: []string{"SEG"},
	}
}

func TestSessionWalkAndSubmit(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, "tester", "", "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := env.Engine.UpdateDraft(env.Ctx, s.ID, completePatch()); err != nil {
		t.Fatalf("update draft: %v", err)
	}
	for i := 0; i < 5; i++ {
		_, errs, err := env.Engine.Next(env.Ctx, s.ID)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if len(errs) != 0 {
			t.Fatalf("step %d blocked: %v", i, errs)
		}
	}
	if s.Controller.Step != wizard.StepSummary {
		t.Fatalf("expected summary, got %v", s.Controller.Step)
	}

	permit, err := env.Engine.Submit(env.Ctx, s.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if permit.Status != "submitted" || permit.CreatedBy != "tester" {
		t.Fatalf("permit: %+v", permit)
	}
	if permit.Payload.StartDate != "2024-03-16T00:00:00Z" {
		t.Fatalf("startDate: %s", permit.Payload.StartDate)
	}

	stored, err := env.Engine.Repo.GetWorkPermit(env.Ctx, permit.ID)
	if err != nil {
		t.Fatalf("get permit: %v", err)
	}
	if stored.Payload.CompanyID != "comp-1" || len(stored.Payload.SafetyControls) != 8 {
		t.Fatalf("stored payload: %+v", stored.Payload)
	}

	// Success discards the session.
	if _, err := env.Engine.GetSession(s.ID); !errors.Is(err, engine.ErrSessionNotFound) {
		t.Fatalf("session survived submit: %v", err)
	}

	events, err := env.Engine.Repo.ListEvents(env.Ctx, "permit", permit.ID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != "permit.submitted" {
		t.Fatalf("events: %+v", events)
	}
}

func TestSubmitBlockedByAnyStep(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, "tester", "", "")
	if err != nil {
		t.Fatal(err)
	}
	patch := completePatch()
	patch.IdentifiedRisks = nil // leave the risk step incomplete
	if _, err := env.Engine.UpdateDraft(env.Ctx, s.ID, patch); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.Submit(env.Ctx, s.ID)
	var ve wizard.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Fields["identifiedRisks"] == "" {
		t.Fatalf("missing field error: %v", ve.Fields)
	}
	// Failure keeps the session for correction.
	if _, err := env.Engine.GetSession(s.ID); err != nil {
		t.Fatalf("session lost on failed submit: %v", err)
	}
}

func TestApprovalsFailOpenForCompanyWithoutDepartments(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, "tester", "", "")
	if err != nil {
		t.Fatal(err)
	}
	patch := completePatch()
	patch.CompanyID = strPtr("comp-2") // no departments seeded
	patch.ContractorID = strPtr("ctr-9")
	patch.RequiredApprovals = nil
	if _, err := env.Engine.UpdateDraft(env.Ctx, s.ID, patch); err != nil {
		t.Fatal(err)
	}
	permit, err := env.Engine.Submit(env.Ctx, s.ID)
	if err != nil {
		t.Fatalf("submit without approvals should fail open: %v", err)
	}
	if len(permit.Payload.RequiredApprovals) != 0 {
		t.Fatalf("approvals: %+v", permit.Payload.RequiredApprovals)
	}
}

func TestCompanyChangeResetsScopedSelections(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, "tester", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdateDraft(env.Ctx, s.ID, completePatch()); err != nil {
		t.Fatal(err)
	}
	if len(s.Departments) != 2 {
		t.Fatalf("departments not loaded: %+v", s.Departments)
	}
	if _, err := env.Engine.UpdateDraft(env.Ctx, s.ID, engine.DraftPatch{CompanyID: strPtr("comp-2")}); err != nil {
		t.Fatal(err)
	}
	d := s.Controller.Draft
	if d.ContractorID != "" || d.RequiredApprovals != nil {
		t.Fatalf("scoped fields survived company change: %+v", d)
	}
	if len(s.Departments) != 0 {
		t.Fatalf("departments not refreshed: %+v", s.Departments)
	}
}

func TestApplyAndClearTemplate(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, "tester", "", "")
	if err != nil {
		t.Fatal(err)
	}
	s, sum, err := env.Engine.ApplyTemplate(env.Ctx, s.ID, "tpl-1")
	if err != nil {
		t.Fatalf("apply template: %v", err)
	}
	if sum.Controls != 1 || sum.Forms != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	d := s.Controller.Draft
	if d.TemplateID != "tpl-1" || d.Category != "soldadura" {
		t.Fatalf("draft after apply: %+v", d)
	}
	hot, _ := d.SafetyControls.Get("Trabajo en Caliente")
	if !hot.Checked || hot.Notes != "Permiso de fuego vigente" {
		t.Fatalf("matched control: %+v", hot)
	}
	if meta, ok := s.FormMeta["form-1"]; !ok || meta.Name != "Análisis de Trabajo Seguro" {
		t.Fatalf("form meta: %+v", s.FormMeta)
	}

	s, err = env.Engine.ClearTemplate(env.Ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	d = s.Controller.Draft
	if d.TemplateID != "" || d.SafetyControls.AnyChecked() || d.AttachedForms != nil {
		t.Fatalf("draft after clear: %+v", d)
	}
	if d.Category != "soldadura" {
		t.Fatalf("category should survive clear: %q", d.Category)
	}
	if len(s.FormMeta) != 0 {
		t.Fatalf("form meta survived clear: %+v", s.FormMeta)
	}
}

func TestUnknownTemplateFails(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Engine.StartSession(env.Ctx, "tester", "", "")
	if _, _, err := env.Engine.ApplyTemplate(env.Ctx, s.ID, "missing"); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestEditModeHydratesAndPreservesProvenance(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Engine.StartSession(env.Ctx, "author", "", "")
	if _, err := env.Engine.UpdateDraft(env.Ctx, s.ID, completePatch()); err != nil {
		t.Fatal(err)
	}
	permit, err := env.Engine.Submit(env.Ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}

	edit, err := env.Engine.StartSession(env.Ctx, "editor", "", permit.ID)
	if err != nil {
		t.Fatalf("start edit session: %v", err)
	}
	d := edit.Controller.Draft
	if d.CompanyID != "comp-1" || d.StartDate != "2024-03-16" {
		t.Fatalf("draft not hydrated: %+v", d)
	}
	loto, _ := d.SafetyControls.Get("Bloqueo y Etiquetado (LOTO)")
	if !loto.Checked {
		t.Fatalf("checklist not hydrated: %+v", loto)
	}

	if _, err := env.Engine.UpdateDraft(env.Ctx, edit.ID, engine.DraftPatch{Location: strPtr("Subestación B")}); err != nil {
		t.Fatal(err)
	}
	updated, err := env.Engine.Submit(env.Ctx, edit.ID)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if updated.ID != permit.ID {
		t.Fatalf("update created a new permit: %s vs %s", updated.ID, permit.ID)
	}
	if updated.CreatedBy != "author" || updated.CreatedAt != permit.CreatedAt {
		t.Fatalf("provenance lost: %+v", updated)
	}
	if updated.Payload.Location != "Subestación B" {
		t.Fatalf("edit not persisted: %+v", updated.Payload)
	}
}

func TestContractorsGatedOnCompany(t *testing.T) {
	env := newTestEnv(t)
	list, err := env.Engine.Contractors(env.Ctx, "")
	if err != nil || list != nil {
		t.Fatalf("ungated load: %v %v", list, err)
	}
	list, err = env.Engine.Contractors(env.Ctx, "comp-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "ctr-1" {
		t.Fatalf("expected only the active contractor: %+v", list)
	}
}

func TestSaveTemplatePreservesCreatedAt(t *testing.T) {
	env := newTestEnv(t)
	spec := engine.TemplateSpec{Name: "Nuevo", Category: "general"}
	first, err := env.Engine.SaveTemplate(env.Ctx, "tpl-new", spec)
	if err != nil {
		t.Fatal(err)
	}
	spec.Name = "Renombrado"
	second, err := env.Engine.SaveTemplate(env.Ctx, "tpl-new", spec)
	if err != nil {
		t.Fatal(err)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Fatalf("created_at changed: %s vs %s", second.CreatedAt, first.CreatedAt)
	}
	stored, err := env.Engine.Repo.GetTemplate(env.Ctx, "tpl-new")
	if err != nil || stored.Name != "Renombrado" {
		t.Fatalf("stored: %+v %v", stored, err)
	}
}
