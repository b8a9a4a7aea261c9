package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"permitflow/internal/config"
	"permitflow/internal/domain"
	"permitflow/internal/events"
	"permitflow/internal/repo"
	"permitflow/internal/wizard"
)

// ErrSessionNotFound is returned for unknown or expired authoring sessions.
var ErrSessionNotFound = errors.New("authoring session not found")

// Engine orchestrates authoring sessions over the directory store. Sessions
// are in-memory for the life of the process; the draft has no persistence
// until submission.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Now     func() time.Time
	Matcher wizard.Matcher

	mu       sync.Mutex
	sessions map[string]*Session
}

// Session is one authoring session: the draft, the wizard position and the
// resolved snapshots the validators need. Owned exclusively by the engine.
type Session struct {
	ID             string
	ActorID        string
	ActorCompanyID string
	PermitID       string // non-empty in edit mode
	Controller     wizard.Controller

	// Departments is the approval-department snapshot for the company the
	// draft currently references. departmentsFor records which company the
	// snapshot was resolved against so a company change reloads it.
	Departments    []domain.Department
	departmentsFor string

	// FormMeta caches display metadata for attached forms.
	FormMeta map[string]domain.FormSummary

	AppliedTemplate string
	LastSummary     wizard.ChangeSummary

	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(db *sql.DB, cfg *config.Config) *Engine {
	return &Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Config:   cfg,
		Now:      time.Now,
		Matcher:  wizard.SubstringMatcher{},
		sessions: make(map[string]*Session),
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) env(s *Session) wizard.Env {
	return wizard.Env{
		Now:             e.now(),
		DepartmentCount: len(s.Departments),
		DescriptionMin:  e.Config.Validation.WorkDescription.Min,
		DescriptionMax:  e.Config.Validation.WorkDescription.Max,
	}
}

// StartSession opens a new authoring session. With permitID set the draft is
// hydrated from the stored permit (edit mode); otherwise it starts empty
// with the fixed checklist built from the configured catalogue.
func (e *Engine) StartSession(ctx context.Context, actorID, actorCompanyID, permitID string) (*Session, error) {
	if e.Config == nil {
		return nil, errors.New("config not loaded")
	}
	if actorID == "" {
		return nil, errors.New("actor required")
	}
	draft := wizard.NewDraft(e.Config.CatalogueItems())
	if permitID != "" {
		permit, err := e.Repo.GetWorkPermit(ctx, permitID)
		if err != nil {
			return nil, err
		}
		hydrateDraft(draft, permit.Payload)
	}
	now := e.now()
	s := &Session{
		ID:             uuid.New().String(),
		ActorID:        actorID,
		ActorCompanyID: actorCompanyID,
		PermitID:       permitID,
		Controller:     wizard.Controller{Draft: draft, Step: wizard.StepGeneral},
		FormMeta:       map[string]domain.FormSummary{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if draft.CompanyID != "" {
		e.loadDepartments(ctx, s, draft.CompanyID)
	}
	e.resolveFormMeta(ctx, s, attachmentIDs(draft.AttachedForms))

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "session.started", "session", s.ID, actorID, events.EventPayload{
		"permit_id": permitID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.sessions[s.ID] = s
	e.mu.Unlock()
	return s, nil
}

// GetSession returns a session by id.
func (e *Engine) GetSession(id string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// DraftPatch carries partial draft updates. Nil pointers and nil slices mean
// "no change"; empty values clear the field.
type DraftPatch struct {
	Category           *string
	CompanyID          *string
	ContractorID       *string
	WorkDescription    *string
	Location           *string
	StartDate          *string
	EndDate            *string
	WorkHoursStart     *string
	WorkHoursEnd       *string
	IdentifiedRisks    []string
	ToolsToUse         []string
	RequiredPPE        []string
	Controls           []ControlUpdate
	AdditionalControls *string
	RequiredApprovals  []string
	TemplateID         *string
}

// ControlUpdate toggles or annotates one catalogue entry.
type ControlUpdate struct {
	Item    string
	Checked *bool
	Notes   *string
}

// UpdateDraft applies a patch to the session's draft. A company change
// invalidates the contractor selection and the approvals (both are scoped to
// the company) and reloads the department snapshot. Setting TemplateID to
// the empty string clears the applied template.
func (e *Engine) UpdateDraft(ctx context.Context, sessionID string, patch DraftPatch) (*Session, error) {
	s, err := e.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	d := s.Controller.Draft

	if patch.TemplateID != nil && *patch.TemplateID == "" && d.TemplateID != "" {
		e.clearTemplateLocked(ctx, s)
	}
	if patch.CompanyID != nil && *patch.CompanyID != d.CompanyID {
		d.CompanyID = *patch.CompanyID
		d.ContractorID = ""
		d.RequiredApprovals = nil
		e.loadDepartments(ctx, s, d.CompanyID)
	}
	if patch.Category != nil {
		d.Category = *patch.Category
	}
	if patch.ContractorID != nil {
		d.ContractorID = *patch.ContractorID
	}
	if patch.WorkDescription != nil {
		d.WorkDescription = *patch.WorkDescription
	}
	if patch.Location != nil {
		d.Location = *patch.Location
	}
	if patch.StartDate != nil {
		d.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		d.EndDate = *patch.EndDate
	}
	if patch.WorkHoursStart != nil {
		d.WorkHoursStart = *patch.WorkHoursStart
	}
	if patch.WorkHoursEnd != nil {
		d.WorkHoursEnd = *patch.WorkHoursEnd
	}
	if patch.IdentifiedRisks != nil {
		d.IdentifiedRisks = append([]string(nil), patch.IdentifiedRisks...)
	}
	if patch.ToolsToUse != nil {
		d.ToolsToUse = append([]string(nil), patch.ToolsToUse...)
	}
	if patch.RequiredPPE != nil {
		d.RequiredPPE = append([]string(nil), patch.RequiredPPE...)
	}
	for _, cu := range patch.Controls {
		if cu.Checked != nil {
			d.SafetyControls.SetChecked(cu.Item, *cu.Checked)
		}
		if cu.Notes != nil {
			d.SafetyControls.SetNotes(cu.Item, *cu.Notes)
		}
	}
	if patch.AdditionalControls != nil {
		d.AdditionalControls = *patch.AdditionalControls
	}
	if patch.RequiredApprovals != nil {
		d.RequiredApprovals = append([]string(nil), patch.RequiredApprovals...)
	}
	s.UpdatedAt = e.now()
	return s, nil
}

// Next advances the wizard if the active step validates; otherwise the step
// is unchanged and the field errors are returned.
func (e *Engine) Next(ctx context.Context, sessionID string) (*Session, wizard.Errors, error) {
	s, err := e.GetSession(sessionID)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshDepartments(ctx, s)
	errs := s.Controller.Next(e.env(s))
	s.UpdatedAt = e.now()
	return s, errs, nil
}

// Back moves to the previous step unconditionally.
func (e *Engine) Back(sessionID string) (*Session, error) {
	s, err := e.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s.Controller.Back()
	s.UpdatedAt = e.now()
	return s, nil
}

// ApplyTemplate fetches a template and merges it onto the draft, resolving
// display metadata for any forms it attaches.
func (e *Engine) ApplyTemplate(ctx context.Context, sessionID, templateID string) (*Session, wizard.ChangeSummary, error) {
	s, err := e.GetSession(sessionID)
	if err != nil {
		return nil, wizard.ChangeSummary{}, err
	}
	t, err := e.Repo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, wizard.ChangeSummary{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sum := wizard.ApplyTemplate(s.Controller.Draft, t, e.Matcher)
	s.AppliedTemplate = t.ID
	s.LastSummary = sum
	s.FormMeta = map[string]domain.FormSummary{}
	e.resolveFormMeta(ctx, s, attachmentIDs(s.Controller.Draft.AttachedForms))
	s.UpdatedAt = e.now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, sum, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "template.applied", "session", s.ID, s.ActorID, events.EventPayload{
		"template_id": t.ID,
		"summary":     sum.String(),
		"counts":      sum,
	}); err != nil {
		return nil, sum, err
	}
	if err := tx.Commit(); err != nil {
		return nil, sum, err
	}
	return s, sum, nil
}

// ClearTemplate resets every template-controllable field; the category and
// everything the template could not have touched survive.
func (e *Engine) ClearTemplate(ctx context.Context, sessionID string) (*Session, error) {
	s, err := e.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearTemplateLocked(ctx, s)
	return s, nil
}

func (e *Engine) clearTemplateLocked(ctx context.Context, s *Session) {
	wizard.ClearTemplate(s.Controller.Draft)
	s.AppliedTemplate = ""
	s.LastSummary = wizard.ChangeSummary{}
	s.FormMeta = map[string]domain.FormSummary{}
	s.UpdatedAt = e.now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("clear template event: %v", err)
		return
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "template.cleared", "session", s.ID, s.ActorID, nil); err != nil {
		log.Printf("clear template event: %v", err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("clear template event: %v", err)
	}
}

// AttachForms adds manual attachments for the given form ids, skipping any
// already attached, and caches their display metadata.
func (e *Engine) AttachForms(ctx context.Context, sessionID string, formIDs []string) (*Session, error) {
	s, err := e.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	added := wizard.AddForms(s.Controller.Draft, formIDs)
	e.resolveFormMeta(ctx, s, added)
	s.UpdatedAt = e.now()
	return s, nil
}

// RemoveForm drops one attachment by form id.
func (e *Engine) RemoveForm(sessionID, formID string) (*Session, error) {
	s, err := e.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if wizard.RemoveForm(s.Controller.Draft, formID) {
		delete(s.FormMeta, formID)
	}
	s.UpdatedAt = e.now()
	return s, nil
}

// SetFormResponses stores opaque form responses on the draft.
func (e *Engine) SetFormResponses(sessionID string, responses map[string][]json.RawMessage) (*Session, error) {
	s, err := e.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s.Controller.Draft.FormResponses = responses
	s.UpdatedAt = e.now()
	return s, nil
}

// Submit re-validates every step, assembles the payload and writes the
// permit. The session survives a failure unchanged so the user can correct
// and retry; it is discarded on success.
func (e *Engine) Submit(ctx context.Context, sessionID string) (domain.WorkPermit, error) {
	s, err := e.GetSession(sessionID)
	if err != nil {
		return domain.WorkPermit{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshDepartments(ctx, s)
	if errs := s.Controller.ValidateAll(e.env(s)); len(errs) > 0 {
		return domain.WorkPermit{}, wizard.ValidationError{Fields: errs}
	}
	payload := wizard.Assemble(s.Controller.Draft, s.ActorCompanyID)
	now := e.now().UTC().Format(time.RFC3339)

	permit := domain.WorkPermit{
		ID:        s.PermitID,
		Status:    "submitted",
		Payload:   payload,
		CreatedBy: s.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	isUpdate := permit.ID != ""
	if !isUpdate {
		permit.ID = uuid.New().String()
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkPermit{}, err
	}
	defer tx.Rollback()
	if isUpdate {
		existing, err := e.Repo.GetWorkPermit(ctx, permit.ID)
		if err != nil {
			return domain.WorkPermit{}, err
		}
		permit.CreatedBy = existing.CreatedBy
		permit.CreatedAt = existing.CreatedAt
		permit.Status = existing.Status
		if err := e.Repo.UpdateWorkPermitTx(ctx, tx, permit); err != nil {
			return domain.WorkPermit{}, err
		}
	} else {
		if err := e.Repo.InsertWorkPermitTx(ctx, tx, permit); err != nil {
			return domain.WorkPermit{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "permit.submitted", "permit", permit.ID, s.ActorID, events.EventPayload{
		"session_id": s.ID,
		"update":     isUpdate,
		"category":   payload.Category,
	}); err != nil {
		return domain.WorkPermit{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkPermit{}, err
	}
	delete(e.sessions, s.ID)
	return permit, nil
}

// TemplateSpec carries the writable fields of a template.
type TemplateSpec struct {
	Name              string
	Category          string
	WorkDescription   string
	DefaultLocation   string
	IdentifiedRisks   []string
	ToolsToUse        []string
	RequiredPPE       []string
	SafetyControls    []domain.TemplateControl
	RequiredApprovals []string
	RequiredForms     []domain.FormAttachment
}

// SaveTemplate creates or replaces a template. The id is the caller's; an
// existing template keeps its creation timestamp.
func (e *Engine) SaveTemplate(ctx context.Context, id string, spec TemplateSpec) (domain.Template, error) {
	if id == "" {
		return domain.Template{}, errors.New("template id required")
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Template{
		ID:                id,
		Name:              spec.Name,
		Category:          spec.Category,
		WorkDescription:   spec.WorkDescription,
		DefaultLocation:   spec.DefaultLocation,
		IdentifiedRisks:   spec.IdentifiedRisks,
		ToolsToUse:        spec.ToolsToUse,
		RequiredPPE:       spec.RequiredPPE,
		SafetyControls:    spec.SafetyControls,
		RequiredApprovals: spec.RequiredApprovals,
		RequiredForms:     spec.RequiredForms,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if prev, err := e.Repo.GetTemplate(ctx, id); err == nil {
		t.CreatedAt = prev.CreatedAt
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Template{}, err
	}
	if err := e.Repo.UpsertTemplate(ctx, t); err != nil {
		return domain.Template{}, err
	}
	return t, nil
}

// --- directory reads (gated loads) ---

// Contractors lists active contractors for a company; empty companyID yields
// an empty list since the load is gated on company selection.
func (e *Engine) Contractors(ctx context.Context, companyID string) ([]domain.Contractor, error) {
	if companyID == "" {
		return nil, nil
	}
	return e.Repo.ListContractors(ctx, companyID, "active")
}

// refreshDepartments reloads the department snapshot when the draft's
// company no longer matches the one it was resolved against.
func (e *Engine) refreshDepartments(ctx context.Context, s *Session) {
	if s.departmentsFor != s.Controller.Draft.CompanyID {
		e.loadDepartments(ctx, s, s.Controller.Draft.CompanyID)
	}
}

// loadDepartments resolves the approval departments for a company. A lookup
// failure degrades to an empty list: department lookup is fail-open so the
// workflow stays usable for companies with no configured departments.
func (e *Engine) loadDepartments(ctx context.Context, s *Session, companyID string) {
	s.departmentsFor = companyID
	s.Departments = nil
	if companyID == "" {
		return
	}
	deps, err := e.Repo.ListDepartments(ctx, companyID)
	if err != nil {
		log.Printf("load departments for %s: %v", companyID, err)
		return
	}
	s.Departments = deps
}

func (e *Engine) resolveFormMeta(ctx context.Context, s *Session, formIDs []string) {
	for _, id := range formIDs {
		if _, ok := s.FormMeta[id]; ok {
			continue
		}
		f, err := e.Repo.GetForm(ctx, id)
		if err != nil {
			// Unknown forms stay unresolved; rendering falls back to the id.
			continue
		}
		s.FormMeta[id] = domain.FormSummary{
			ID:               f.ID,
			Name:             f.Name,
			Description:      f.Description,
			EstimatedMinutes: f.EstimatedMinutes,
		}
	}
}

func attachmentIDs(forms []domain.FormAttachment) []string {
	ids := make([]string, 0, len(forms))
	for _, a := range forms {
		ids = append(ids, a.FormID)
	}
	return ids
}

// hydrateDraft restores draft fields from a stored permit payload for edit
// mode.
func hydrateDraft(d *wizard.Draft, p domain.SubmissionPayload) {
	d.TemplateID = p.TemplateID
	d.Category = p.Category
	d.CompanyID = p.CompanyID
	d.ContractorID = p.ContractorID
	d.WorkDescription = p.WorkDescription
	d.Location = p.Location
	d.StartDate = instantToDate(p.StartDate)
	d.EndDate = instantToDate(p.EndDate)
	d.WorkHoursStart = p.WorkHoursStart
	d.WorkHoursEnd = p.WorkHoursEnd
	d.IdentifiedRisks = append([]string(nil), p.IdentifiedRisks...)
	d.ToolsToUse = append([]string(nil), p.ToolsToUse...)
	d.RequiredPPE = append([]string(nil), p.RequiredPPE...)
	for _, c := range p.SafetyControls {
		if c.Checked {
			d.SafetyControls.SetChecked(c.Item, true)
		}
		if c.Notes != "" {
			d.SafetyControls.SetNotes(c.Item, c.Notes)
		}
	}
	d.AdditionalControls = p.AdditionalControls
	for _, a := range p.RequiredApprovals {
		d.RequiredApprovals = append(d.RequiredApprovals, a.Department)
	}
	for _, f := range p.RequiredForms {
		d.AttachedForms = append(d.AttachedForms, domain.FormAttachment{
			FormID:    f.Form,
			Mandatory: f.Mandatory,
			Order:     f.Order,
			Condition: f.Condition,
		})
	}
	d.FormResponses = p.FormResponses
}

func instantToDate(v string) string {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return v
	}
	return t.UTC().Format("2006-01-02")
}
