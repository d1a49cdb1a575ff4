package remote

import "time"

// Filter operators understood by the data service.
const (
	OpEquals   = "equals"
	OpIsAnyOf  = "isAnyOf"
	OpContains = "contains"
)

// Filter narrows a list query.
type Filter struct {
	Field    string `json:"columnField"`
	Operator string `json:"operatorValue"`
	Value    any    `json:"value"`
}

// Contains builds a case-insensitive substring filter.
func Contains(field, value string) Filter {
	return Filter{Field: field, Operator: OpContains, Value: value}
}

// Equals builds an exact-match filter.
func Equals(field string, value any) Filter {
	return Filter{Field: field, Operator: OpEquals, Value: value}
}

// IsAnyOf builds a set-membership filter.
func IsAnyOf[T any](field string, values []T) Filter {
	return Filter{Field: field, Operator: OpIsAnyOf, Value: values}
}

// Page is one slice of a list query.
type Page[T any] struct {
	Offset  int `json:"offset"`
	Total   int `json:"total"`
	Results []T `json:"results"`
}

// User is a donor, sponsor, or recipient profile.
type User struct {
	ID                 int64      `json:"id,omitempty"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	CommunicationEmail string     `json:"communication_email,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	BirthDate          *time.Time `json:"birth_date,omitempty"`
}

// Group is a corporate or community sponsor organisation.
type Group struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	LogoURL string `json:"logo_url,omitempty"`
}

// GroupUpdate is a partial group update.
type GroupUpdate struct {
	LogoURL *string `json:"logo_url,omitempty"`
}

// Payment is the payment record attached to a gift request.
type Payment struct {
	ID        int64  `json:"id,omitempty"`
	Amount    int    `json:"amount"`
	DonorType string `json:"donor_type"`
	PanNumber string `json:"pan_number,omitempty"`
	Consent   bool   `json:"consent"`
}

// PaymentUpdate carries only the fields being changed.
type PaymentUpdate struct {
	Amount    *int    `json:"amount,omitempty"`
	DonorType *string `json:"donor_type,omitempty"`
	PanNumber *string `json:"pan_number,omitempty"`
	Consent   *bool   `json:"consent,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u PaymentUpdate) Empty() bool {
	return u.Amount == nil && u.DonorType == nil && u.PanNumber == nil && u.Consent == nil
}

// GiftRequest is a persisted gift/donation request.
type GiftRequest struct {
	ID             int64      `json:"id,omitempty"`
	RequestID      string     `json:"request_id"`
	UserID         int64      `json:"user_id"`
	SponsorID      *int64     `json:"sponsor_id,omitempty"`
	CreatedBy      int64      `json:"created_by,omitempty"`
	GroupID        *int64     `json:"group_id,omitempty"`
	NoOfCards      int        `json:"no_of_cards"`
	Category       string     `json:"category"`
	Grove          string     `json:"grove,omitempty"`
	RequestType    string     `json:"request_type"`
	GiftedOn       *time.Time `json:"gifted_on,omitempty"`
	PaymentID      *int64     `json:"payment_id,omitempty"`
	LogoURL        string     `json:"logo_url,omitempty"`
	PrimaryMessage string     `json:"primary_message,omitempty"`
	EventName      string     `json:"event_name,omitempty"`
	EventType      string     `json:"event_type,omitempty"`
	PlantedBy      string     `json:"planted_by,omitempty"`
	LogoMessage    string     `json:"logo_message,omitempty"`
	Status         string     `json:"status,omitempty"`
}

// GiftRequestUser is one recipient row of a gift request.
type GiftRequestUser struct {
	ID                          int64  `json:"id,omitempty"`
	RecipientName               string `json:"recipient_name"`
	RecipientEmail              string `json:"recipient_email"`
	RecipientCommunicationEmail string `json:"recipient_communication_email,omitempty"`
	RecipientPhone              string `json:"recipient_phone,omitempty"`
	AssigneeName                string `json:"assignee_name"`
	AssigneeEmail               string `json:"assignee_email"`
	AssigneeCommunicationEmail  string `json:"assignee_communication_email,omitempty"`
	AssigneePhone               string `json:"assignee_phone,omitempty"`
	Relation                    string `json:"relation,omitempty"`
	GiftedTrees                 int    `json:"gifted_trees"`
	ProfileImage                string `json:"profile_image_url,omitempty"`
}
