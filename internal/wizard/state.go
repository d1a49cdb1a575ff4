package wizard

import (
	"time"

	"treegift/internal/config"
	"treegift/internal/ingest"
	"treegift/internal/recipient"
	"treegift/internal/remote"
)

// Donor types accepted on the payment step.
const (
	DonorIndianCitizen = "Indian Citizen"
	DonorForeign       = "Foreign Donor"
)

// RequestTypes lists the known request types in display order.
var RequestTypes = []string{
	config.RequestTypeGiftCards,
	config.RequestTypeDonation,
	config.RequestTypeNormalAssignment,
	config.RequestTypeVisit,
}

// Categories lists the known categories.
var Categories = []string{config.CategoryPublic, config.CategoryFoundation}

// AssignmentOnly reports whether requestType skips payment entirely.
func AssignmentOnly(requestType string) bool {
	return requestType == config.RequestTypeNormalAssignment || requestType == config.RequestTypeVisit
}

// RequiresSponsor reports whether requestType needs a sponsor.
func RequiresSponsor(requestType string) bool {
	return requestType == config.RequestTypeGiftCards || requestType == config.RequestTypeDonation
}

// Messages are the card texts printed on gift cards.
type Messages struct {
	PrimaryMessage string `json:"primary_message" toml:"primary_message"`
	EventName      string `json:"event_name" toml:"event_name"`
	EventType      string `json:"event_type" toml:"event_type"`
	PlantedBy      string `json:"planted_by" toml:"planted_by"`
	LogoMessage    string `json:"logo_message" toml:"logo_message"`
}

// LogoFile is a sponsor logo selected for upload. ID changes whenever a new
// file is chosen, even if the name repeats.
type LogoFile struct {
	ID   string
	Name string
	Data []byte
}

// Payment holds the payment step inputs and the persisted payment id.
type Payment struct {
	ID        int64  `json:"id,omitempty"`
	Amount    int    `json:"amount"`
	DonorType string `json:"donor_type"`
	TaxID     string `json:"pan_number,omitempty"`
	Consent   bool   `json:"consent"`
}

// Notice levels.
const (
	NoticeInfo  = "info"
	NoticeWarn  = "warn"
	NoticeError = "error"
)

// Notice is a dismissable user-facing message.
type Notice struct {
	ID      string
	Level   string
	Message string
	Step    string
	At      time.Time
}

// State is the wizard aggregate.
type State struct {
	// RequestID names the request's storage namespace; GiftRequestID is the
	// persisted id, zero until the request has been saved.
	RequestID     string
	GiftRequestID int64
	CurrentStep   int

	User      *remote.User
	Sponsor   *remote.User
	CreatedBy *remote.User
	Group     *remote.Group

	TreeCount   int
	Category    string
	Grove       string
	RequestType string
	GiftedOn    *time.Time

	Messages          Messages
	PlantedByExplicit bool

	LogoFile    *LogoFile
	LogoURL     string
	LogoPending bool

	Payment *Payment
	Amount  int

	Recipients           recipient.List
	ShowExtendedColumns  bool
	SourceFile           *ingest.SourceFile
	SelectedRecipientKey string

	Notices []Notice
}

// DefaultState is the state of a freshly opened wizard.
func DefaultState() State {
	return State{
		TreeCount:   1,
		Category:    config.CategoryPublic,
		RequestType: config.RequestTypeGiftCards,
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.User = clonePtr(s.User)
	out.Sponsor = clonePtr(s.Sponsor)
	out.CreatedBy = clonePtr(s.CreatedBy)
	out.Group = clonePtr(s.Group)
	out.GiftedOn = clonePtr(s.GiftedOn)
	if s.LogoFile != nil {
		logo := *s.LogoFile
		logo.Data = append([]byte(nil), s.LogoFile.Data...)
		out.LogoFile = &logo
	}
	out.Payment = clonePtr(s.Payment)
	out.Recipients = s.Recipients.Clone()
	if s.SourceFile != nil {
		src := *s.SourceFile
		src.Data = append([]byte(nil), s.SourceFile.Data...)
		out.SourceFile = &src
	}
	out.Notices = append([]Notice(nil), s.Notices...)
	return out
}

// Summary aggregates the recipient list against the tree count.
func (s State) Summary() recipient.Summary {
	return s.Recipients.Summarize(s.TreeCount)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func logoID(s State) string {
	if s.LogoFile == nil {
		return ""
	}
	return s.LogoFile.ID
}
