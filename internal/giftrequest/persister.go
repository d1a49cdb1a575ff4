package giftrequest

import (
	"context"
	"fmt"
	"log/slog"

	"treegift/internal/logging"
	"treegift/internal/recipient"
	"treegift/internal/remote"
	"treegift/internal/services"
	"treegift/internal/submit"
)

// Service is the subset of the remote data service used to persist requests.
type Service interface {
	CreateGiftRequest(ctx context.Context, request remote.GiftRequest) (remote.GiftRequest, error)
	UpdateGiftRequest(ctx context.Context, request remote.GiftRequest) (remote.GiftRequest, error)
	UpsertGiftRequestUsers(ctx context.Context, id int64, users []remote.GiftRequestUser) error
}

// Persister writes submissions to the remote data service.
type Persister struct {
	service Service
	logger  *slog.Logger
}

// New builds a Persister.
func New(service Service, logger *slog.Logger) *Persister {
	return &Persister{
		service: service,
		logger:  logging.NewComponentLogger(logger, "giftrequest"),
	}
}

// Persist creates the gift request, or updates it when the submission already
// carries a persisted id, then upserts the recipient rows. Read-only rows
// loaded from an existing request are not resent.
func (p *Persister) Persist(ctx context.Context, sub submit.Submission) (int64, error) {
	if sub.User == nil {
		return 0, services.Wrap(services.ErrValidation, "giftrequest", "persist", "a user is required", nil)
	}
	request := ToGiftRequest(sub)
	logger := logging.WithContext(services.WithRequestID(ctx, sub.RequestID), p.logger)

	var (
		saved remote.GiftRequest
		err   error
	)
	update := sub.GiftRequestID != 0
	if update {
		saved, err = p.service.UpdateGiftRequest(ctx, request)
	} else {
		saved, err = p.service.CreateGiftRequest(ctx, request)
	}
	if err != nil {
		op := "create"
		if update {
			op = "update"
		}
		return 0, services.Wrap(services.ErrRemote, "giftrequest", op, "save gift request", err)
	}
	id := saved.ID
	if id == 0 {
		id = sub.GiftRequestID
	}
	if id == 0 {
		return 0, services.Wrap(services.ErrRemote, "giftrequest", "create", "service returned no gift request id", nil)
	}

	users := ToUsers(sub.Recipients, update)
	if len(users) > 0 {
		if err := p.service.UpsertGiftRequestUsers(ctx, id, users); err != nil {
			return id, services.Wrap(services.ErrRemote, "giftrequest", "upsert users", fmt.Sprintf("gift request %d saved but recipients were not", id), err)
		}
	}

	logger.Info("gift request saved",
		logging.Int64("gift_request_id", id),
		logging.Bool("updated", update),
		logging.Int("recipients_sent", len(users)),
	)
	return id, nil
}

// ToGiftRequest maps a submission onto the remote gift request shape.
func ToGiftRequest(sub submit.Submission) remote.GiftRequest {
	request := remote.GiftRequest{
		ID:             sub.GiftRequestID,
		RequestID:      sub.RequestID,
		NoOfCards:      sub.TreeCount,
		Category:       sub.Category,
		Grove:          sub.Grove,
		RequestType:    sub.RequestType,
		GiftedOn:       sub.GiftedOn,
		LogoURL:        sub.LogoURL,
		PrimaryMessage: sub.Messages.PrimaryMessage,
		EventName:      sub.Messages.EventName,
		EventType:      sub.Messages.EventType,
		PlantedBy:      sub.Messages.PlantedBy,
		LogoMessage:    sub.Messages.LogoMessage,
	}
	if sub.User != nil {
		request.UserID = sub.User.ID
		request.CreatedBy = sub.User.ID
	}
	if sub.CreatedBy != nil {
		request.CreatedBy = sub.CreatedBy.ID
	}
	if sub.Sponsor != nil {
		id := sub.Sponsor.ID
		request.SponsorID = &id
	}
	if sub.Group != nil {
		id := sub.Group.ID
		request.GroupID = &id
	}
	if sub.PaymentID != 0 {
		id := sub.PaymentID
		request.PaymentID = &id
	}
	return request
}

// ToUsers maps recipient records to rows. With editableOnly set, rows that
// were loaded read-only from the service are skipped.
func ToUsers(records recipient.List, editableOnly bool) []remote.GiftRequestUser {
	users := make([]remote.GiftRequestUser, 0, len(records))
	for _, r := range records {
		if editableOnly && !r.Editable {
			continue
		}
		users = append(users, remote.GiftRequestUser{
			ID:                          r.ProfileID,
			RecipientName:               r.RecipientName,
			RecipientEmail:              r.RecipientEmail,
			RecipientCommunicationEmail: r.RecipientCommunicationEmail,
			RecipientPhone:              r.RecipientPhone,
			AssigneeName:                r.AssigneeName,
			AssigneeEmail:               r.AssigneeEmail,
			AssigneeCommunicationEmail:  r.AssigneeCommunicationEmail,
			AssigneePhone:               r.AssigneePhone,
			Relation:                    r.Relation,
			GiftedTrees:                 r.GiftedTreeCount,
			ProfileImage:                r.ImageURL,
		})
	}
	return users
}
