package wizard

import (
	"encoding/json"

	"permitflow/internal/domain"
)

// CustomEntrySentinel marks a free-form set entry that means "custom entry
// follows"; it appears in the suggested risk/tool vocabularies.
const CustomEntrySentinel = "Otros (especificar)"

// Draft is the work-permit-in-progress. It is owned by a single authoring
// session; all mutation goes through the wizard operations.
type Draft struct {
	TemplateID   string `json:"templateId,omitempty"`
	Category     string `json:"category,omitempty"`
	CompanyID    string `json:"companyId,omitempty"`
	ContractorID string `json:"contractorId,omitempty"`

	WorkDescription string `json:"workDescription,omitempty"`
	Location        string `json:"location,omitempty"`
	StartDate       string `json:"startDate,omitempty"` // YYYY-MM-DD
	EndDate         string `json:"endDate,omitempty"`   // YYYY-MM-DD
	WorkHoursStart  string `json:"workHoursStart,omitempty"`
	WorkHoursEnd    string `json:"workHoursEnd,omitempty"`

	IdentifiedRisks []string `json:"identifiedRisks,omitempty"`
	ToolsToUse      []string `json:"toolsToUse,omitempty"`
	RequiredPPE     []string `json:"requiredPPE,omitempty"`

	SafetyControls     Checklist `json:"safetyControls"`
	AdditionalControls string    `json:"additionalControls,omitempty"`

	RequiredApprovals []string                `json:"requiredApprovals,omitempty"`
	AttachedForms     []domain.FormAttachment `json:"attachedForms,omitempty"`

	// FormResponses is carried opaquely; the workflow does not interpret it.
	FormResponses map[string][]json.RawMessage `json:"formResponses,omitempty"`
}

// NewDraft initializes an empty draft with the fixed checklist built from
// the catalogue.
func NewDraft(catalogue []string) *Draft {
	return &Draft{SafetyControls: NewChecklist(catalogue)}
}

// AddUnique appends entries not already present, preserving order. It is the
// shared helper behind the free-form risk/tool/PPE sets.
func AddUnique(set []string, entries ...string) []string {
	for _, e := range entries {
		if e == "" {
			continue
		}
		found := false
		for _, cur := range set {
			if cur == e {
				found = true
				break
			}
		}
		if !found {
			set = append(set, e)
		}
	}
	return set
}
