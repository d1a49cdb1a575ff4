package wizard

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"treegift/internal/services"
)

// Step keys.
const (
	StepDetails    = "details"
	StepTrees      = "trees"
	StepMessages   = "messages"
	StepRecipients = "recipients"
	StepPayment    = "payment"
	StepSummary    = "summary"
)

var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// Step is one wizard page. Enabled nil means always enabled; Validate nil
// means the step has no required fields.
type Step struct {
	Key      string
	Title    string
	Enabled  func(requestType string) bool
	Validate func(State) error
}

func (s Step) enabled(requestType string) bool {
	return s.Enabled == nil || s.Enabled(requestType)
}

func (s Step) validate(state State) error {
	if s.Validate == nil {
		return nil
	}
	return s.Validate(state)
}

// StepError reports why a step cannot be left.
type StepError struct {
	Step    string
	Field   string
	Message string
}

func (e *StepError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s %s", e.Step, e.Field, e.Message)
}

// Is classifies step failures as validation errors.
func (e *StepError) Is(target error) bool {
	return target == services.ErrValidation
}

// DefaultSteps returns the standard gift request flow.
func DefaultSteps() []Step {
	return []Step{
		{Key: StepDetails, Title: "Donor details", Validate: validateDetails},
		{Key: StepTrees, Title: "Trees", Validate: validateTrees},
		{Key: StepMessages, Title: "Card messages"},
		{Key: StepRecipients, Title: "Recipients", Validate: validateRecipients},
		{
			Key:      StepPayment,
			Title:    "Payment",
			Enabled:  func(requestType string) bool { return !AssignmentOnly(requestType) },
			Validate: validatePayment,
		},
		{Key: StepSummary, Title: "Summary"},
	}
}

// ActiveSteps filters steps down to those enabled for requestType.
func ActiveSteps(steps []Step, requestType string) []Step {
	out := make([]Step, 0, len(steps))
	for _, step := range steps {
		if step.enabled(requestType) {
			out = append(out, step)
		}
	}
	return out
}

// ValidateAll runs every active step validator in order and returns the
// first failure.
func ValidateAll(steps []Step, state State) error {
	for _, step := range ActiveSteps(steps, state.RequestType) {
		if err := step.validate(state); err != nil {
			return err
		}
	}
	return nil
}

func indexOf(steps []Step, key string) int {
	return slices.IndexFunc(steps, func(s Step) bool { return s.Key == key })
}

func validateDetails(s State) error {
	if s.User == nil {
		return &StepError{Step: StepDetails, Field: "user", Message: "is required"}
	}
	if RequiresSponsor(s.RequestType) && s.Sponsor == nil {
		return &StepError{Step: StepDetails, Field: "sponsor", Message: fmt.Sprintf("is required for %s requests", s.RequestType)}
	}
	return nil
}

func validateTrees(s State) error {
	if s.TreeCount < 1 {
		return &StepError{Step: StepTrees, Field: "tree_count", Message: "must be at least 1"}
	}
	if !slices.Contains(Categories, s.Category) {
		return &StepError{Step: StepTrees, Field: "category", Message: fmt.Sprintf("%q is not a known category", s.Category)}
	}
	if !slices.Contains(RequestTypes, s.RequestType) {
		return &StepError{Step: StepTrees, Field: "request_type", Message: fmt.Sprintf("%q is not a known request type", s.RequestType)}
	}
	return nil
}

func validateRecipients(s State) error {
	blocking := s.Recipients.Blocking()
	if len(blocking) == 0 {
		return nil
	}
	names := make([]string, 0, len(blocking))
	for _, r := range blocking {
		name := r.RecipientName
		if name == "" {
			name = "(unnamed)"
		}
		names = append(names, name)
	}
	return &StepError{
		Step:    StepRecipients,
		Field:   "recipients",
		Message: fmt.Sprintf("have unresolved problems: %s", strings.Join(names, ", ")),
	}
}

func validatePayment(s State) error {
	if s.Payment == nil || s.Payment.DonorType == "" {
		return &StepError{Step: StepPayment, Field: "donor_type", Message: "is required"}
	}
	switch s.Payment.DonorType {
	case DonorIndianCitizen:
		if !panPattern.MatchString(strings.ToUpper(strings.TrimSpace(s.Payment.TaxID))) {
			return &StepError{Step: StepPayment, Field: "pan_number", Message: "must be a valid PAN for Indian citizens"}
		}
	case DonorForeign:
	default:
		return &StepError{Step: StepPayment, Field: "donor_type", Message: fmt.Sprintf("%q is not a known donor type", s.Payment.DonorType)}
	}
	if !s.Payment.Consent {
		return &StepError{Step: StepPayment, Field: "consent", Message: "is required"}
	}
	return nil
}
