package ingest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"treegift/internal/recipient"
	"treegift/internal/services"
)

// Form is a single manually entered recipient. Key is empty for new entries
// and set when editing an existing record.
type Form struct {
	Key string `json:"key"`

	RecipientName               string `json:"recipient_name" validate:"required"`
	RecipientEmail              string `json:"recipient_email" validate:"omitempty,rfcemail"`
	RecipientCommunicationEmail string `json:"recipient_communication_email" validate:"omitempty,rfcemail"`
	RecipientPhone              string `json:"recipient_phone" validate:"omitempty,phone10"`

	AssigneeName               string `json:"assignee_name"`
	AssigneeEmail              string `json:"assignee_email" validate:"omitempty,rfcemail"`
	AssigneeCommunicationEmail string `json:"assignee_communication_email" validate:"omitempty,rfcemail"`
	AssigneePhone              string `json:"assignee_phone" validate:"omitempty,phone10"`

	Relation        string     `json:"relation"`
	BirthDate       *time.Time `json:"birth_date" validate:"omitempty,minage"`
	GiftedTreeCount int        `json:"gifted_trees" validate:"gte=0"`

	ImageURL  string `json:"image_url" validate:"omitempty,url"`
	ImageName string `json:"image_name"`
}

// FieldError describes one invalid form field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors lists every invalid field of a form.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid recipient: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, services.ErrValidation) classify form failures.
func (e ValidationErrors) Is(target error) bool {
	return target == services.ErrValidation
}

// Manual validates and converts form entries.
type Manual struct {
	validate *validator.Validate
	domain   string
	minAge   int
	now      func() time.Time
}

// NewManual constructs a manual entry validator. Birth dates must be at least
// minAgeYears in the past.
func NewManual(domain string, minAgeYears int) *Manual {
	m := &Manual{domain: domain, minAge: minAgeYears, now: time.Now}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("rfcemail", func(fl validator.FieldLevel) bool {
		return recipient.ValidEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return recipient.ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("minage", func(fl validator.FieldLevel) bool {
		born, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return !born.After(m.now().AddDate(-m.minAge, 0, 0))
	})
	m.validate = v
	return m
}

// Build validates form and returns the normalized record.
func (m *Manual) Build(form Form) (recipient.Record, error) {
	trimForm(&form)
	if err := m.validate.Struct(form); err != nil {
		return recipient.Record{}, m.translate(err)
	}
	rec := recipient.Record{
		Key:                         form.Key,
		RecipientName:               form.RecipientName,
		RecipientEmail:              form.RecipientEmail,
		RecipientCommunicationEmail: form.RecipientCommunicationEmail,
		RecipientPhone:              form.RecipientPhone,
		AssigneeName:                form.AssigneeName,
		AssigneeEmail:               form.AssigneeEmail,
		AssigneeCommunicationEmail:  form.AssigneeCommunicationEmail,
		AssigneePhone:               form.AssigneePhone,
		Relation:                    form.Relation,
		BirthDate:                   form.BirthDate,
		GiftedTreeCount:             form.GiftedTreeCount,
		Editable:                    true,
	}
	rec.Normalize(m.domain)
	if form.ImageURL != "" {
		name := form.ImageName
		if name == "" {
			name = form.ImageURL[strings.LastIndex(form.ImageURL, "/")+1:]
		}
		rec.AssignImage(form.ImageURL, name)
	}
	return rec, nil
}

// Apply validates form and upserts it into list. Editing an existing key
// replaces that record in place; the returned list is a new slice.
func (m *Manual) Apply(list recipient.List, form Form) (recipient.List, recipient.Record, error) {
	rec, err := m.Build(form)
	if err != nil {
		return list, recipient.Record{}, err
	}
	if existing, ok := list.Find(rec.Key); ok {
		if !existing.Editable {
			return list, recipient.Record{}, ValidationErrors{{Field: "key", Message: "persisted recipient is read-only"}}
		}
		rec.ProfileID = existing.ProfileID
	}
	return list.Upsert(rec), rec, nil
}

// FormFromRecord pre-fills a form for editing.
func FormFromRecord(rec recipient.Record) Form {
	return Form{
		Key:                         rec.Key,
		RecipientName:               rec.RecipientName,
		RecipientEmail:              rec.RecipientEmail,
		RecipientCommunicationEmail: rec.RecipientCommunicationEmail,
		RecipientPhone:              rec.RecipientPhone,
		AssigneeName:                rec.AssigneeName,
		AssigneeEmail:               rec.AssigneeEmail,
		AssigneeCommunicationEmail:  rec.AssigneeCommunicationEmail,
		AssigneePhone:               rec.AssigneePhone,
		Relation:                    rec.Relation,
		BirthDate:                   rec.BirthDate,
		GiftedTreeCount:             rec.GiftedTreeCount,
		ImageURL:                    rec.ImageURL,
		ImageName:                   rec.ImageName,
	}
}

func (m *Manual) translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return services.Wrap(services.ErrValidation, "ingest", "manual entry", "", err)
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: m.message(fe)})
	}
	return out
}

func (m *Manual) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "rfcemail":
		return "must look like name@domain.tld"
	case "phone10":
		return "must be exactly 10 digits"
	case "minage":
		return fmt.Sprintf("recipient must be at least %d years old", m.minAge)
	case "gte":
		return "must not be negative"
	case "url":
		return "must be a URL"
	default:
		return "failed " + fe.Tag()
	}
}

func trimForm(f *Form) {
	for _, field := range []*string{
		&f.RecipientName, &f.RecipientEmail, &f.RecipientCommunicationEmail, &f.RecipientPhone,
		&f.AssigneeName, &f.AssigneeEmail, &f.AssigneeCommunicationEmail, &f.AssigneePhone,
		&f.Relation, &f.ImageURL, &f.ImageName,
	} {
		*field = strings.TrimSpace(*field)
	}
}
