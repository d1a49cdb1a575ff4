package wizard

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"treegift/internal/ingest"
	"treegift/internal/services"
)

// Draft is a gift request described in a TOML file, used for scripted
// submissions. Entities are referenced by email or id and resolved by the
// caller against the data service.
type Draft struct {
	RequestID      string `toml:"request_id"`
	GiftRequestID  int64  `toml:"gift_request_id"`
	UserEmail      string `toml:"user_email"`
	SponsorEmail   string `toml:"sponsor_email"`
	CreatedByEmail string `toml:"created_by_email"`
	GroupID        int64  `toml:"group_id"`

	TreeCount   int    `toml:"tree_count"`
	Category    string `toml:"category"`
	Grove       string `toml:"grove"`
	RequestType string `toml:"request_type"`
	GiftedOn    string `toml:"gifted_on"`

	Messages Messages `toml:"messages"`
	LogoPath string   `toml:"logo_path"`
	LogoURL  string   `toml:"logo_url"`

	Payment struct {
		DonorType string `toml:"donor_type"`
		PanNumber string `toml:"pan_number"`
		Consent   bool   `toml:"consent"`
	} `toml:"payment"`

	RecipientsCSV string           `toml:"recipients_csv"`
	Recipients    []DraftRecipient `toml:"recipients"`
}

// DraftRecipient is an inline recipient entry.
type DraftRecipient struct {
	Name               string `toml:"name"`
	Email              string `toml:"email"`
	CommunicationEmail string `toml:"communication_email"`
	Phone              string `toml:"phone"`
	AssigneeName       string `toml:"assignee_name"`
	AssigneeEmail      string `toml:"assignee_email"`
	Relation           string `toml:"relation"`
	Trees              int    `toml:"trees"`
	ImageURL           string `toml:"image_url"`
}

// Form converts the entry for manual validation.
func (r DraftRecipient) Form() ingest.Form {
	return ingest.Form{
		RecipientName:               r.Name,
		RecipientEmail:              r.Email,
		RecipientCommunicationEmail: r.CommunicationEmail,
		RecipientPhone:              r.Phone,
		AssigneeName:                r.AssigneeName,
		AssigneeEmail:               r.AssigneeEmail,
		Relation:                    r.Relation,
		GiftedTreeCount:             r.Trees,
		ImageURL:                    r.ImageURL,
	}
}

// LoadDraft reads a draft file. Relative file references are resolved
// against the draft's directory.
func LoadDraft(path string) (Draft, error) {
	var draft Draft
	data, err := os.ReadFile(path)
	if err != nil {
		return draft, fmt.Errorf("read draft: %w", err)
	}
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&draft); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return draft, services.Wrap(services.ErrValidation, "wizard", "load draft", strict.String(), nil)
		}
		return draft, services.Wrap(services.ErrValidation, "wizard", "load draft", "parse toml", err)
	}
	base := filepath.Dir(path)
	draft.LogoPath = resolveRelative(base, draft.LogoPath)
	draft.RecipientsCSV = resolveRelative(base, draft.RecipientsCSV)
	if strings.TrimSpace(draft.UserEmail) == "" {
		return draft, services.Wrap(services.ErrValidation, "wizard", "load draft", "user_email is required", nil)
	}
	if draft.RecipientsCSV != "" && len(draft.Recipients) > 0 {
		return draft, services.Wrap(services.ErrValidation, "wizard", "load draft", "use either recipients_csv or inline recipients, not both", nil)
	}
	return draft, nil
}

// Patches returns the patches for the draft's scalar fields. Entity
// references, the logo, and recipients are applied by the caller.
func (d Draft) Patches() ([]Patch, error) {
	patches := []Patch{
		SetGiftRequestID(d.GiftRequestID),
		SetGrove(d.Grove),
		SetMessages(d.Messages),
	}
	if d.Payment.DonorType != "" {
		patches = append(patches, SetPaymentDetails(d.Payment.DonorType, d.Payment.PanNumber, d.Payment.Consent))
	}
	if d.TreeCount > 0 {
		patches = append(patches, SetTreeCount(d.TreeCount))
	}
	if d.Category != "" {
		patches = append(patches, SetCategory(d.Category))
	}
	if d.RequestType != "" {
		patches = append(patches, SetRequestType(d.RequestType))
	}
	if d.GiftedOn != "" {
		on, err := time.Parse(time.DateOnly, strings.TrimSpace(d.GiftedOn))
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "wizard", "draft", fmt.Sprintf("gifted_on %q must be YYYY-MM-DD", d.GiftedOn), nil)
		}
		patches = append(patches, SetGiftedOn(&on))
	}
	if d.LogoURL != "" {
		patches = append(patches, SetLogoURL(d.LogoURL))
	}
	return patches, nil
}

func resolveRelative(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
