package wizard

import (
	"strings"

	"treegift/internal/recipient"
	"treegift/internal/remote"
)

// Persisted bundles a saved gift request with the entities it references.
type Persisted struct {
	Request   remote.GiftRequest
	Payment   *remote.Payment
	Users     []remote.GiftRequestUser
	User      *remote.User
	Sponsor   *remote.User
	CreatedBy *remote.User
	Group     *remote.Group
}

// HydrateState builds wizard state for editing a saved request. Recipient
// rows already persisted are read-only.
func HydrateState(p Persisted, domain string) State {
	r := p.Request
	s := DefaultState()
	s.RequestID = r.RequestID
	s.GiftRequestID = r.ID
	s.User = clonePtr(p.User)
	s.Sponsor = clonePtr(p.Sponsor)
	s.CreatedBy = clonePtr(p.CreatedBy)
	s.Group = clonePtr(p.Group)
	if r.NoOfCards > 0 {
		s.TreeCount = r.NoOfCards
	}
	if r.Category != "" {
		s.Category = r.Category
	}
	if r.RequestType != "" {
		s.RequestType = r.RequestType
	}
	s.Grove = r.Grove
	s.GiftedOn = clonePtr(r.GiftedOn)
	s.Messages = Messages{
		PrimaryMessage: r.PrimaryMessage,
		EventName:      r.EventName,
		EventType:      r.EventType,
		PlantedBy:      r.PlantedBy,
		LogoMessage:    r.LogoMessage,
	}
	s.PlantedByExplicit = strings.TrimSpace(r.PlantedBy) != ""
	s.LogoURL = r.LogoURL
	if p.Payment != nil {
		s.Payment = &Payment{
			ID:        p.Payment.ID,
			Amount:    p.Payment.Amount,
			DonorType: p.Payment.DonorType,
			TaxID:     p.Payment.PanNumber,
			Consent:   p.Payment.Consent,
		}
	}
	for _, u := range p.Users {
		rec := recipient.Record{
			RecipientName:               u.RecipientName,
			RecipientEmail:              u.RecipientEmail,
			RecipientCommunicationEmail: u.RecipientCommunicationEmail,
			RecipientPhone:              u.RecipientPhone,
			AssigneeName:                u.AssigneeName,
			AssigneeEmail:               u.AssigneeEmail,
			AssigneeCommunicationEmail:  u.AssigneeCommunicationEmail,
			AssigneePhone:               u.AssigneePhone,
			Relation:                    u.Relation,
			GiftedTreeCount:             u.GiftedTrees,
			ProfileID:                   u.ID,
		}
		rec.Normalize(domain)
		if u.ProfileImage != "" {
			rec.AssignImage(u.ProfileImage, u.ProfileImage[strings.LastIndex(u.ProfileImage, "/")+1:])
		}
		rec.Editable = false
		s.Recipients = append(s.Recipients, rec)
	}
	return s
}

// Hydrate opens the wizard on a saved request.
func (c *Controller) Hydrate(p Persisted, domain string) {
	c.Open(HydrateState(p, domain))
}
