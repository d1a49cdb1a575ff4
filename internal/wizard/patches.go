package wizard

import (
	"strings"
	"time"

	"treegift/internal/ingest"
	"treegift/internal/recipient"
	"treegift/internal/remote"
)

// Patch mutates the state. Patches run under the controller lock; they must
// not block or call back into the controller.
type Patch func(*State)

// SetRequestID sets the storage namespace id.
func SetRequestID(id string) Patch {
	return func(s *State) { s.RequestID = strings.TrimSpace(id) }
}

// SetGiftRequestID records the persisted request id.
func SetGiftRequestID(id int64) Patch {
	return func(s *State) { s.GiftRequestID = id }
}

// SetUser selects the requesting user.
func SetUser(u *remote.User) Patch {
	return func(s *State) { s.User = clonePtr(u) }
}

// SetSponsor selects the sponsoring user.
func SetSponsor(u *remote.User) Patch {
	return func(s *State) { s.Sponsor = clonePtr(u) }
}

// SetCreatedBy records the operator creating the request.
func SetCreatedBy(u *remote.User) Patch {
	return func(s *State) { s.CreatedBy = clonePtr(u) }
}

// SetGroup selects the sponsoring group.
func SetGroup(g *remote.Group) Patch {
	return func(s *State) { s.Group = clonePtr(g) }
}

// SetTreeCount sets the number of trees.
func SetTreeCount(n int) Patch {
	return func(s *State) { s.TreeCount = n }
}

// SetCategory sets the grove category.
func SetCategory(category string) Patch {
	return func(s *State) { s.Category = strings.TrimSpace(category) }
}

// SetGrove sets the grove name.
func SetGrove(grove string) Patch {
	return func(s *State) { s.Grove = strings.TrimSpace(grove) }
}

// SetRequestType sets the request type. The active steps are recomputed by
// the controller afterwards.
func SetRequestType(requestType string) Patch {
	return func(s *State) { s.RequestType = strings.TrimSpace(requestType) }
}

// SetGiftedOn sets the gift date.
func SetGiftedOn(t *time.Time) Patch {
	return func(s *State) { s.GiftedOn = clonePtr(t) }
}

// SetMessages replaces the card messages. A non-blank PlantedBy is treated as
// an explicit choice.
func SetMessages(m Messages) Patch {
	return func(s *State) {
		s.Messages = m
		s.PlantedByExplicit = strings.TrimSpace(m.PlantedBy) != ""
	}
}

// SetPlantedBy overrides the derived planted-by text. Blank restores the
// default.
func SetPlantedBy(text string) Patch {
	return func(s *State) {
		s.Messages.PlantedBy = strings.TrimSpace(text)
		s.PlantedByExplicit = s.Messages.PlantedBy != ""
	}
}

// SetLogoFile selects a new logo. Each call gets a fresh identity so the
// upload effect runs even when the same file is chosen again.
func SetLogoFile(name string, data []byte) Patch {
	return func(s *State) {
		s.LogoFile = &LogoFile{ID: recipient.NewKey(), Name: name, Data: append([]byte(nil), data...)}
		s.LogoURL = ""
	}
}

// ClearLogo removes the logo and its URL.
func ClearLogo() Patch {
	return func(s *State) {
		s.LogoFile = nil
		s.LogoURL = ""
		s.LogoPending = false
	}
}

// SetLogoURL uses an already hosted logo.
func SetLogoURL(url string) Patch {
	return func(s *State) {
		s.LogoFile = nil
		s.LogoURL = strings.TrimSpace(url)
		s.LogoPending = false
	}
}

// SetPaymentDetails fills the payment step inputs, keeping any persisted id.
func SetPaymentDetails(donorType, taxID string, consent bool) Patch {
	return func(s *State) {
		p := ensurePayment(s)
		p.DonorType = strings.TrimSpace(donorType)
		p.TaxID = strings.ToUpper(strings.TrimSpace(taxID))
		p.Consent = consent
	}
}

// SetPaymentID records the persisted payment id.
func SetPaymentID(id int64) Patch {
	return func(s *State) { ensurePayment(s).ID = id }
}

// SetSourceFile retains the uploaded spreadsheet.
func SetSourceFile(src *ingest.SourceFile) Patch {
	return func(s *State) {
		if src == nil {
			s.SourceFile = nil
			return
		}
		cp := *src
		cp.Data = append([]byte(nil), src.Data...)
		s.SourceFile = &cp
	}
}

// SetRecipientList replaces the recipient list.
func SetRecipientList(records []recipient.Record) Patch {
	return func(s *State) { s.Recipients = recipient.List(records).Clone() }
}

// UpsertRecipient adds or replaces one recipient.
func UpsertRecipient(rec recipient.Record) Patch {
	return func(s *State) { s.Recipients = s.Recipients.Upsert(rec) }
}

// RemoveRecipient drops a recipient by key.
func RemoveRecipient(key string) Patch {
	return func(s *State) {
		s.Recipients = s.Recipients.Remove(key)
		if s.SelectedRecipientKey == key {
			s.SelectedRecipientKey = ""
		}
	}
}

// AssignRecipientImage sets a recipient's photo by hand.
func AssignRecipientImage(key, url string) Patch {
	return func(s *State) {
		if i := s.Recipients.Index(key); i >= 0 {
			s.Recipients[i].AssignImage(url, url[strings.LastIndex(url, "/")+1:])
		}
	}
}

// ClearRecipientImage detaches a recipient's photo.
func ClearRecipientImage(key string) Patch {
	return func(s *State) {
		if i := s.Recipients.Index(key); i >= 0 {
			s.Recipients[i].ClearImage()
		}
	}
}

// SelectRecipient marks the recipient shown in the detail pane.
func SelectRecipient(key string) Patch {
	return func(s *State) { s.SelectedRecipientKey = key }
}

func ensurePayment(s *State) *Payment {
	if s.Payment == nil {
		s.Payment = &Payment{}
	}
	return s.Payment
}
