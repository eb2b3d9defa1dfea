package booking

import (
	"encoding/json"
	"time"

	"ffb.ae/internal/apperr"
	"ffb.ae/internal/session"
)

// Step is one page of the booking wizard.
type Step int

const (
	StepService Step = iota + 1
	StepSchedule
	StepLocation
	StepDetails
	StepContact
	StepReview
)

const sessionKeyWizard = "booking_wizard"

var stepFields = map[Step][]string{
	StepService:  {"service_id"},
	StepSchedule: {"booking_date", "booking_time", "estimated_duration", "urgency"},
	StepLocation: {"emirate", "area", "property_type", "address"},
	StepDetails:  {"issue_description"},
	StepContact:  {"client_name", "client_email", "client_phone", "contact_method"},
	StepReview:   {"terms_accepted"},
}

var stepNames = map[Step]string{
	StepService:  "service",
	StepSchedule: "schedule",
	StepLocation: "location",
	StepDetails:  "details",
	StepContact:  "contact",
	StepReview:   "review",
}

func (s Step) Valid() bool {
	return s >= StepService && s <= StepReview
}

func (s Step) Name() string {
	return stepNames[s]
}

// Fields lists the form fields collected on s.
func (s Step) Fields() []string {
	return stepFields[s]
}

// Wizard is the per-session progress through the steps.
type Wizard struct {
	Completed Step              `json:"completed"`
	Data      map[string]string `json:"data"`
}

// LoadWizard restores progress from s. Missing or corrupt state starts over.
func LoadWizard(s *session.Session) *Wizard {
	w := &Wizard{Data: make(map[string]string)}
	raw := s.Get(sessionKeyWizard)
	if raw == "" {
		return w
	}
	if err := json.Unmarshal([]byte(raw), w); err != nil || !(w.Completed == 0 || w.Completed.Valid()) {
		return &Wizard{Data: make(map[string]string)}
	}
	if w.Data == nil {
		w.Data = make(map[string]string)
	}
	return w
}

// Save stores the progress in s. The caller persists the session.
func (w *Wizard) Save(s *session.Session) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	s.Set(sessionKeyWizard, string(raw))
	return nil
}

// ResetWizard forgets any progress held in s.
func ResetWizard(s *session.Session) {
	s.Delete(sessionKeyWizard)
}

// Advance records the fields of step from values and validates them. Steps
// cannot be skipped; resubmitting an earlier step makes the later ones
// pending again. It returns the next step to show.
func (w *Wizard) Advance(step Step, values map[string]string, now time.Time) (Step, error) {
	const op = "booking.wizard"
	if !step.Valid() {
		return w.Current(), apperr.Validation(op, map[string]string{"step": "Unknown step."})
	}
	if step > w.Completed+1 {
		return w.Current(), apperr.Validation(op, map[string]string{"step": "Please complete the previous steps first."})
	}
	for _, field := range step.Fields() {
		w.Data[field] = values[field]
	}
	form := FormFromValues(func(key string) string { return w.Data[key] })
	if errs := ValidateStep(step, form, now); len(errs) > 0 {
		if w.Completed >= step {
			w.Completed = step - 1
		}
		return step, apperr.Validation(op, errs)
	}
	w.Completed = step
	return w.Current(), nil
}

// Current is the first step that is not yet complete, or StepReview once
// everything is.
func (w *Wizard) Current() Step {
	if w.Completed >= StepReview {
		return StepReview
	}
	return w.Completed + 1
}

// Ready reports whether every step has been validated.
func (w *Wizard) Ready() bool {
	return w.Completed == StepReview
}

// Form returns the collected values as a submission.
func (w *Wizard) Form() Form {
	return FormFromValues(func(key string) string { return w.Data[key] })
}
