package domain

import "encoding/json"

type Company struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Contractor struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	FullName  string `json:"fullName"`
	Cedula    string `json:"cedula"`
	Status    string `json:"status" enum:"active,inactive"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Department is an approval department configured per contracting company.
// Permits reference departments by code.
type Department struct {
	ID        string `json:"_id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Form struct {
	ID               string            `json:"_id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Sections         []json.RawMessage `json:"sections,omitempty"`
	EstimatedMinutes int               `json:"estimated_minutes,omitempty"`
	IsActive         bool              `json:"is_active"`
	CreatedAt        string            `json:"created_at" format:"date-time"`
}

// FormSummary is the display metadata cached for an attached form.
type FormSummary struct {
	ID               string `json:"_id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	EstimatedMinutes int    `json:"estimated_minutes,omitempty"`
}

// FormAttachment links an auxiliary form to a permit draft. FormID is the
// identity key: at most one attachment per form within a draft. Order is
// 1-based; gaps are permitted after removals and consumers sort by it.
type FormAttachment struct {
	FormID    string `json:"form"`
	Mandatory bool   `json:"mandatory"`
	Order     int    `json:"order"`
	Condition string `json:"condition,omitempty"`
}

// TemplateControl is one safety-control entry declared by a template. Item is
// matched against the fixed catalogue; Description becomes the note on the
// matched catalogue entry.
type TemplateControl struct {
	Item        string `json:"item"`
	Description string `json:"description,omitempty"`
}

// Template is a reusable preset of default values and attached forms for a
// work category. Read-only from the authoring workflow's perspective.
type Template struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Category          string            `json:"category"`
	WorkDescription   string            `json:"workDescription,omitempty"`
	DefaultLocation   string            `json:"defaultLocation,omitempty"`
	IdentifiedRisks   []string          `json:"identifiedRisks,omitempty"`
	ToolsToUse        []string          `json:"toolsToUse,omitempty"`
	RequiredPPE       []string          `json:"requiredPPE,omitempty"`
	SafetyControls    []TemplateControl `json:"safetyControls,omitempty"`
	RequiredApprovals []string          `json:"requiredApprovals,omitempty"`
	RequiredForms     []FormAttachment  `json:"requiredForms,omitempty"`
	CreatedAt         string            `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt         string            `json:"updated_at,omitempty" format:"date-time"`
}

// SubmittedControl is the wire shape of one safety-control entry on a
// submitted permit.
type SubmittedControl struct {
	Item        string `json:"item"`
	Description string `json:"description"`
	Checked     bool   `json:"checked"`
	Notes       string `json:"notes"`
}

type ApprovalRef struct {
	Department string `json:"department"`
}

type FormRequirement struct {
	Form      string `json:"form"`
	Mandatory bool   `json:"mandatory"`
	Order     int    `json:"order"`
	Condition string `json:"condition,omitempty"`
}

// SubmissionPayload is the wire payload for permit create/update. Dates are
// ISO-8601 instants; optional fields are omitted entirely when empty.
type SubmissionPayload struct {
	TemplateID         string                       `json:"templateId,omitempty"`
	Category           string                       `json:"category"`
	CompanyID          string                       `json:"companyId"`
	ContractorID       string                       `json:"contractorId"`
	WorkDescription    string                       `json:"workDescription"`
	Location           string                       `json:"location"`
	StartDate          string                       `json:"startDate" format:"date-time"`
	EndDate            string                       `json:"endDate" format:"date-time"`
	WorkHoursStart     string                       `json:"workHoursStart"`
	WorkHoursEnd       string                       `json:"workHoursEnd"`
	IdentifiedRisks    []string                     `json:"identifiedRisks"`
	ToolsToUse         []string                     `json:"toolsToUse"`
	RequiredPPE        []string                     `json:"requiredPPE"`
	SafetyControls     []SubmittedControl           `json:"safetyControls"`
	AdditionalControls string                       `json:"additionalControls,omitempty"`
	RequiredApprovals  []ApprovalRef                `json:"requiredApprovals"`
	RequiredForms      []FormRequirement            `json:"requiredForms,omitempty"`
	FormResponses      map[string][]json.RawMessage `json:"formResponses,omitempty"`
}

type WorkPermit struct {
	ID        string            `json:"id"`
	Status    string            `json:"status" enum:"submitted,approved,rejected,closed"`
	Payload   SubmissionPayload `json:"payload"`
	CreatedBy string            `json:"created_by"`
	CreatedAt string            `json:"created_at" format:"date-time"`
	UpdatedAt string            `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
