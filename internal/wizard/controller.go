package wizard

// Controller is the wizard's finite-state machine: it holds the active step
// and gates forward navigation on the step validator. It never mutates the
// draft.
type Controller struct {
	Draft *Draft
	Step  Step
}

// Next validates the active step; on success it advances and returns an
// empty error map, otherwise the step is unchanged and the errors are
// returned. At the summary step Next is a no-op (submit replaces it).
func (c *Controller) Next(env Env) Errors {
	errs := Validate(c.Step, c.Draft, env)
	if len(errs) > 0 {
		return errs
	}
	if c.Step < StepSummary {
		c.Step++
	}
	return Errors{}
}

// Back moves to the previous step unconditionally; no-op at the first step.
// The step being left is not re-validated.
func (c *Controller) Back() {
	if c.Step > StepGeneral {
		c.Step--
	}
}

// ValidateAll runs every step's validator and returns the merged field error
// map. Used as the submission guard: a stale edit on an earlier step is
// caught even if the user jumped straight to the summary.
func (c *Controller) ValidateAll(env Env) Errors {
	merged := Errors{}
	for s := StepGeneral; s <= StepSummary; s++ {
		for field, msg := range Validate(s, c.Draft, env) {
			if _, ok := merged[field]; !ok {
				merged[field] = msg
			}
		}
	}
	return merged
}
