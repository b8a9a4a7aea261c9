package server

import (
	"encoding/json"

	"permitflow/internal/domain"
	"permitflow/internal/engine"
	"permitflow/internal/wizard"
)

// Request payloads

type StartSessionRequest struct {
	PermitID string `json:"permit_id,omitempty"`
}

type ControlUpdateRequest struct {
	Item    string  `json:"item"`
	Checked *bool   `json:"checked,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

// UpdateDraftRequest carries a partial draft update; absent fields are left
// untouched.
type UpdateDraftRequest struct {
	TemplateID         *string                `json:"templateId,omitempty"`
	Category           *string                `json:"category,omitempty"`
	CompanyID          *string                `json:"companyId,omitempty"`
	ContractorID       *string                `json:"contractorId,omitempty"`
	WorkDescription    *string                `json:"workDescription,omitempty"`
	Location           *string                `json:"location,omitempty"`
	StartDate          *string                `json:"startDate,omitempty"`
	EndDate            *string                `json:"endDate,omitempty"`
	WorkHoursStart     *string                `json:"workHoursStart,omitempty"`
	WorkHoursEnd       *string                `json:"workHoursEnd,omitempty"`
	IdentifiedRisks    []string               `json:"identifiedRisks,omitempty"`
	ToolsToUse         []string               `json:"toolsToUse,omitempty"`
	RequiredPPE        []string               `json:"requiredPPE,omitempty"`
	Controls           []ControlUpdateRequest `json:"safetyControls,omitempty"`
	AdditionalControls *string                `json:"additionalControls,omitempty"`
	RequiredApprovals  []string               `json:"requiredApprovals,omitempty"`
}

type ApplyTemplateRequest struct {
	TemplateID string `json:"templateId"`
}

type AttachFormsRequest struct {
	FormIDs []string `json:"formIds"`
}

type FormResponsesRequest struct {
	Responses map[string][]json.RawMessage `json:"responses"`
}

type UpsertTemplateRequest struct {
	Name              string                   `json:"name"`
	Category          string                   `json:"category"`
	WorkDescription   string                   `json:"workDescription,omitempty"`
	DefaultLocation   string                   `json:"defaultLocation,omitempty"`
	IdentifiedRisks   []string                 `json:"identifiedRisks,omitempty"`
	ToolsToUse        []string                 `json:"toolsToUse,omitempty"`
	RequiredPPE       []string                 `json:"requiredPPE,omitempty"`
	SafetyControls    []domain.TemplateControl `json:"safetyControls,omitempty"`
	RequiredApprovals []string                 `json:"requiredApprovals,omitempty"`
	RequiredForms     []domain.FormAttachment  `json:"requiredForms,omitempty"`
}

// Response payloads

// SessionResponse is the authoring session view: the draft, the wizard
// position and the resolved snapshots the client renders from.
type SessionResponse struct {
	ID              string                        `json:"id"`
	PermitID        string                        `json:"permit_id,omitempty"`
	ActiveStep      int                           `json:"active_step"`
	StepName        string                        `json:"step_name"`
	Draft           wizard.Draft                  `json:"draft"`
	Departments     []domain.Department           `json:"departments"`
	FormMeta        map[string]domain.FormSummary `json:"form_meta,omitempty"`
	AppliedTemplate string                        `json:"applied_template,omitempty"`
}

// StepResultResponse reports a navigation attempt. Errors is empty when the
// step advanced.
type StepResultResponse struct {
	Moved      bool              `json:"moved"`
	ActiveStep int               `json:"active_step"`
	StepName   string            `json:"step_name"`
	Errors     map[string]string `json:"errors,omitempty"`
}

type ApplyTemplateResponse struct {
	Session SessionResponse      `json:"session"`
	Summary string               `json:"summary"`
	Counts  wizard.ChangeSummary `json:"counts"`
}

type CompanyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ContractorResponse struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Cedula   string `json:"cedula"`
}

type DepartmentResponse struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type FormResponse struct {
	ID               string            `json:"_id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Sections         []json.RawMessage `json:"sections,omitempty"`
	EstimatedMinutes int               `json:"estimated_minutes,omitempty"`
}

type TemplateHeaderResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// templateBody is the full template detail, returned as-is.
type templateBody domain.Template

type WorkPermitResponse struct {
	ID        string                   `json:"id"`
	Status    string                   `json:"status"`
	Payload   domain.SubmissionPayload `json:"payload"`
	CreatedBy string                   `json:"created_by"`
	CreatedAt string                   `json:"created_at" format:"date-time"`
	UpdatedAt string                   `json:"updated_at" format:"date-time"`
}

// mappers

func sessionResponse(s *engine.Session) SessionResponse {
	departments := s.Departments
	if departments == nil {
		departments = []domain.Department{}
	}
	return SessionResponse{
		ID:              s.ID,
		PermitID:        s.PermitID,
		ActiveStep:      int(s.Controller.Step),
		StepName:        s.Controller.Step.String(),
		Draft:           *s.Controller.Draft,
		Departments:     departments,
		FormMeta:        s.FormMeta,
		AppliedTemplate: s.AppliedTemplate,
	}
}

func stepResult(s *engine.Session, errs wizard.Errors, moved bool) StepResultResponse {
	return StepResultResponse{
		Moved:      moved,
		ActiveStep: int(s.Controller.Step),
		StepName:   s.Controller.Step.String(),
		Errors:     errs,
	}
}

func mapCompanies(in []domain.Company) []CompanyResponse {
	out := make([]CompanyResponse, 0, len(in))
	for _, c := range in {
		out = append(out, CompanyResponse{ID: c.ID, Name: c.Name})
	}
	return out
}

func mapContractors(in []domain.Contractor) []ContractorResponse {
	out := make([]ContractorResponse, 0, len(in))
	for _, c := range in {
		out = append(out, ContractorResponse{ID: c.ID, FullName: c.FullName, Cedula: c.Cedula})
	}
	return out
}

func mapDepartments(in []domain.Department) []DepartmentResponse {
	out := make([]DepartmentResponse, 0, len(in))
	for _, d := range in {
		out = append(out, DepartmentResponse{ID: d.ID, Name: d.Name, Code: d.Code})
	}
	return out
}

func mapForms(in []domain.Form) []FormResponse {
	out := make([]FormResponse, 0, len(in))
	for _, f := range in {
		out = append(out, FormResponse{
			ID:               f.ID,
			Name:             f.Name,
			Description:      f.Description,
			Sections:         f.Sections,
			EstimatedMinutes: f.EstimatedMinutes,
		})
	}
	return out
}

func mapTemplateHeaders(in []domain.Template) []TemplateHeaderResponse {
	out := make([]TemplateHeaderResponse, 0, len(in))
	for _, t := range in {
		out = append(out, TemplateHeaderResponse{ID: t.ID, Name: t.Name, Category: t.Category})
	}
	return out
}

func permitResponse(p domain.WorkPermit) WorkPermitResponse {
	return WorkPermitResponse{
		ID:        p.ID,
		Status:    p.Status,
		Payload:   p.Payload,
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func draftPatch(req UpdateDraftRequest) engine.DraftPatch {
	patch := engine.DraftPatch{
		TemplateID:         req.TemplateID,
		Category:           req.Category,
		CompanyID:          req.CompanyID,
		ContractorID:       req.ContractorID,
		WorkDescription:    req.WorkDescription,
		Location:           req.Location,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		WorkHoursStart:     req.WorkHoursStart,
		WorkHoursEnd:       req.WorkHoursEnd,
		IdentifiedRisks:    req.IdentifiedRisks,
		ToolsToUse:         req.ToolsToUse,
		RequiredPPE:        req.RequiredPPE,
		AdditionalControls: req.AdditionalControls,
		RequiredApprovals:  req.RequiredApprovals,
	}
	for _, cu := range req.Controls {
		patch.Controls = append(patch.Controls, engine.ControlUpdate{
			Item:    cu.Item,
			Checked: cu.Checked,
			Notes:   cu.Notes,
		})
	}
	return patch
}
