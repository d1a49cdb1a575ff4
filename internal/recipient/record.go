package recipient

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// Record is one gift/donation beneficiary line item.
type Record struct {
	Key string `json:"key" toml:"key"`

	RecipientName               string `json:"recipient_name" toml:"recipient_name"`
	RecipientEmail              string `json:"recipient_email" toml:"recipient_email"`
	RecipientCommunicationEmail string `json:"recipient_communication_email,omitempty" toml:"recipient_communication_email,omitempty"`
	RecipientPhone              string `json:"recipient_phone,omitempty" toml:"recipient_phone,omitempty"`

	AssigneeName               string `json:"assignee_name" toml:"assignee_name"`
	AssigneeEmail              string `json:"assignee_email" toml:"assignee_email"`
	AssigneeCommunicationEmail string `json:"assignee_communication_email,omitempty" toml:"assignee_communication_email,omitempty"`
	AssigneePhone              string `json:"assignee_phone,omitempty" toml:"assignee_phone,omitempty"`

	Relation        string     `json:"relation,omitempty" toml:"relation,omitempty"`
	BirthDate       *time.Time `json:"birth_date,omitempty" toml:"birth_date,omitempty"`
	GiftedTreeCount int        `json:"gifted_trees" toml:"gifted_trees"`

	ImageAssigned bool   `json:"image_assigned" toml:"image_assigned"`
	ImageName     string `json:"image_name,omitempty" toml:"image_name,omitempty"`
	ImageURL      string `json:"image_url,omitempty" toml:"image_url,omitempty"`
	// ImageMissing marks a row that named an image the storage service does
	// not have. Cleared once an image is assigned.
	ImageMissing bool `json:"image_missing,omitempty" toml:"image_missing,omitempty"`
	// ImageDetached marks a record whose photo was removed by hand. The
	// matcher leaves it alone until an image is assigned again.
	ImageDetached bool `json:"image_detached,omitempty" toml:"image_detached,omitempty"`

	HasValidationError bool  `json:"has_validation_error" toml:"-"`
	Editable           bool  `json:"editable" toml:"editable"`
	ProfileID          int64 `json:"profile_id,omitempty" toml:"profile_id,omitempty"`
}

// NewKey returns a fresh opaque record key.
func NewKey() string {
	return uuid.NewString()
}

// ValidEmail reports whether value has the name@domain.tld shape.
func ValidEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

// ValidPhone reports whether value is exactly ten digits.
func ValidPhone(value string) bool {
	return phonePattern.MatchString(strings.TrimSpace(value))
}

// SynthesizeEmail derives a placeholder address from a display name:
// "Asha Rao" becomes "asha.rao@<domain>".
func SynthesizeEmail(name, domain string) string {
	local := strings.Join(strings.Fields(strings.ToLower(name)), ".")
	if local == "" {
		return ""
	}
	return local + "@" + strings.TrimPrefix(domain, "@")
}

// Revalidate recomputes HasValidationError from the contact fields.
func (r *Record) Revalidate() {
	r.HasValidationError = r.validationError()
}

func (r *Record) validationError() bool {
	if strings.TrimSpace(r.RecipientName) == "" {
		return true
	}
	if !ValidEmail(r.RecipientEmail) {
		return true
	}
	if phone := strings.TrimSpace(r.RecipientPhone); phone != "" && !ValidPhone(phone) {
		return true
	}
	return false
}

// Blocking reports whether the record prevents the wizard from advancing.
func (r Record) Blocking() bool {
	return r.HasValidationError || r.ImageMissing
}

// AssigneeDiffers reports whether operational updates go to someone other
// than the recipient.
func (r Record) AssigneeDiffers() bool {
	return strings.TrimSpace(r.AssigneeName) != "" &&
		!strings.EqualFold(strings.TrimSpace(r.AssigneeName), strings.TrimSpace(r.RecipientName))
}

// Normalize trims fields, fills defaults, and revalidates. Blank emails are
// synthesized from names using domain; a blank assignee copies the
// recipient's contact fields.
func (r *Record) Normalize(domain string) {
	if r.Key == "" {
		r.Key = NewKey()
	}
	r.RecipientName = strings.TrimSpace(r.RecipientName)
	r.RecipientEmail = strings.TrimSpace(r.RecipientEmail)
	r.RecipientCommunicationEmail = strings.TrimSpace(r.RecipientCommunicationEmail)
	r.RecipientPhone = strings.TrimSpace(r.RecipientPhone)
	r.AssigneeName = strings.TrimSpace(r.AssigneeName)
	r.AssigneeEmail = strings.TrimSpace(r.AssigneeEmail)
	r.AssigneeCommunicationEmail = strings.TrimSpace(r.AssigneeCommunicationEmail)
	r.AssigneePhone = strings.TrimSpace(r.AssigneePhone)
	r.Relation = strings.TrimSpace(r.Relation)
	r.ImageName = strings.TrimSpace(r.ImageName)

	if r.RecipientEmail == "" {
		r.RecipientEmail = SynthesizeEmail(r.RecipientName, domain)
	}
	if r.AssigneeName == "" {
		r.AssigneeName = r.RecipientName
		r.AssigneeEmail = r.RecipientEmail
		r.AssigneeCommunicationEmail = r.RecipientCommunicationEmail
		r.AssigneePhone = r.RecipientPhone
	}
	if r.AssigneeEmail == "" {
		r.AssigneeEmail = SynthesizeEmail(r.AssigneeName, domain)
	}
	if r.GiftedTreeCount < 1 {
		r.GiftedTreeCount = 1
	}
	r.Revalidate()
}

// AssignImage attaches an image URL and clears the missing-image flag.
func (r *Record) AssignImage(url, name string) {
	r.ImageAssigned = true
	r.ImageURL = url
	r.ImageName = name
	r.ImageMissing = false
	r.ImageDetached = false
	r.Revalidate()
}

// ClearImage detaches the current image and opts the record out of
// automatic matching.
func (r *Record) ClearImage() {
	r.ImageAssigned = false
	r.ImageURL = ""
	r.ImageName = ""
	r.ImageMissing = false
	r.ImageDetached = true
	r.Revalidate()
}
