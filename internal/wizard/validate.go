package wizard

import (
	"fmt"
	"strings"
	"time"
)

// Errors maps field names to user-facing validation messages. A step is
// valid iff its error map is empty.
type Errors map[string]string

// ValidationError carries a field error map across the engine boundary so
// server-side validation failures render on the same fields the step
// validator uses.
type ValidationError struct {
	Fields Errors
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(keys, ", "))
}

// Env is the validation environment: the clock and the resolved approval
// departments for the draft's company.
type Env struct {
	Now             time.Time
	DepartmentCount int
	DescriptionMin  int
	DescriptionMax  int
}

const dateLayout = "2006-01-02"

// Validate runs the per-step rules against the draft. All rules within a
// step are AND-combined. Step validation never mutates the draft.
func Validate(step Step, d *Draft, env Env) Errors {
	errs := Errors{}
	switch step {
	case StepGeneral, StepSummary:
		// The summary step re-runs the general-info rules as the final
		// guard before submission.
		validateGeneral(d, env, errs)
	case StepRisksTools:
		if len(d.IdentifiedRisks) == 0 {
			errs["identifiedRisks"] = "Identifique al menos un riesgo"
		}
		if len(d.ToolsToUse) == 0 {
			errs["toolsToUse"] = "Indique al menos una herramienta o equipo"
		}
	case StepPPEControls:
		if len(d.RequiredPPE) == 0 {
			errs["requiredPPE"] = "Seleccione al menos un elemento de protección personal"
		}
		// One rule across two fields: a checked control OR non-blank
		// additional controls satisfies it.
		if !d.SafetyControls.AnyChecked() && strings.TrimSpace(d.AdditionalControls) == "" {
			errs["safetyControls"] = "Marque al menos un control de seguridad o describa controles adicionales"
		}
	case StepForms:
		// Pass-through: this step only curates attached forms.
	case StepApprovals:
		// Fail-open: companies with no configured approval departments
		// skip this rule entirely.
		if env.DepartmentCount > 0 && len(d.RequiredApprovals) == 0 {
			errs["requiredApprovals"] = "Seleccione al menos un departamento aprobador"
		}
	}
	return errs
}

func validateGeneral(d *Draft, env Env, errs Errors) {
	if d.CompanyID == "" {
		errs["companyId"] = "Seleccione una empresa"
	}
	if d.ContractorID == "" {
		errs["contractorId"] = "Seleccione un contratista"
	}
	if d.Category == "" {
		errs["category"] = "Seleccione una categoría de trabajo"
	}
	min, max := env.DescriptionMin, env.DescriptionMax
	if min == 0 {
		min = 10
	}
	if max == 0 {
		max = 500
	}
	if n := len([]rune(strings.TrimSpace(d.WorkDescription))); n < min || n > max {
		errs["workDescription"] = fmt.Sprintf("La descripción debe tener entre %d y %d caracteres", min, max)
	}
	if strings.TrimSpace(d.Location) == "" {
		errs["location"] = "Ingrese la ubicación del trabajo"
	}
	y, m, day := env.Now.UTC().Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	start, startErr := validateFutureDate(d.StartDate, today)
	if startErr != "" {
		errs["startDate"] = startErr
	}
	end, endErr := validateFutureDate(d.EndDate, today)
	if endErr != "" {
		errs["endDate"] = endErr
	} else if startErr == "" && end.Before(start) {
		errs["endDate"] = "La fecha de fin no puede ser anterior a la de inicio"
	}
	if d.WorkHoursStart == "" {
		errs["workHoursStart"] = "Ingrese la hora de inicio"
	}
	if d.WorkHoursEnd == "" {
		errs["workHoursEnd"] = "Ingrese la hora de fin"
	}
}

// validateFutureDate requires a parseable date strictly after today.
func validateFutureDate(value string, today time.Time) (time.Time, string) {
	if value == "" {
		return time.Time{}, "La fecha es obligatoria"
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, "Fecha inválida"
	}
	if !t.After(today) {
		return t, "La fecha debe ser posterior a hoy"
	}
	return t, ""
}
