package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"treegift/internal/ingest"
	"treegift/internal/journal"
	"treegift/internal/logging"
	"treegift/internal/notifications"
	"treegift/internal/recipient"
	"treegift/internal/remote"
	"treegift/internal/services"
	"treegift/internal/wizard"
)

// Stage names recorded in the journal.
const (
	StageValidate = "validate"
	StageLogo     = "logo"
	StagePayment  = "payment"
	StageCallback = "callback"
)

// Session is the wizard surface the orchestrator drives.
type Session interface {
	Snapshot() wizard.State
	ActiveSteps() []wizard.Step
	AwaitLogo(ctx context.Context) error
	Redirect(key string)
	AddNotice(level, message, step string) string
	Update(patches ...wizard.Patch)
	Close()
}

// Remote is the subset of the remote data service used during submission.
type Remote interface {
	UpdateGroup(ctx context.Context, id int64, update remote.GroupUpdate) (remote.Group, error)
	CreatePayment(ctx context.Context, payment remote.Payment) (remote.Payment, error)
	GetPayment(ctx context.Context, id int64) (remote.Payment, error)
	UpdatePayment(ctx context.Context, id int64, update remote.PaymentUpdate) (remote.Payment, error)
}

// Recorder journals submission attempts. A nil Recorder disables journaling.
type Recorder interface {
	BeginAttempt(ctx context.Context, info journal.AttemptInfo) (int64, error)
	RecordStep(ctx context.Context, attemptID int64, step, status, detail string) error
	FinishAttempt(ctx context.Context, attemptID int64, status journal.Status, kind string, cause error) error
	SetGiftRequestID(ctx context.Context, attemptID, giftRequestID int64) error
}

// Submission is the payload handed to the completion callback.
type Submission struct {
	RequestID     string
	GiftRequestID int64
	User          *remote.User
	Sponsor       *remote.User
	CreatedBy     *remote.User
	Group         *remote.Group
	TreeCount     int
	Category      string
	Grove         string
	RequestType   string
	Recipients    recipient.List
	GiftedOn      *time.Time
	PaymentID     int64
	LogoURL       string
	Messages      wizard.Messages
	SourceFile    *ingest.SourceFile
}

// Callback persists a submission and returns the gift request id.
type Callback func(ctx context.Context, sub Submission) (int64, error)

// Options configures an Orchestrator.
type Options struct {
	Remote   Remote
	Callback Callback
	Recorder Recorder
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Orchestrator runs submissions.
type Orchestrator struct {
	remote   Remote
	callback Callback
	recorder Recorder
	notifier notifications.Service
	logger   *slog.Logger
}

// New builds an Orchestrator. Remote and Callback are required.
func New(opts Options) (*Orchestrator, error) {
	if opts.Remote == nil {
		return nil, services.Wrap(services.ErrConfiguration, "submit", "new", "remote service is required", nil)
	}
	if opts.Callback == nil {
		return nil, services.Wrap(services.ErrConfiguration, "submit", "new", "completion callback is required", nil)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Orchestrator{
		remote:   opts.Remote,
		callback: opts.Callback,
		recorder: opts.Recorder,
		notifier: notifier,
		logger:   logging.NewComponentLogger(opts.Logger, "submit"),
	}, nil
}

// Submit validates and persists the session's aggregate.
func (o *Orchestrator) Submit(ctx context.Context, session Session) error {
	if err := session.AwaitLogo(ctx); err != nil {
		session.AddNotice(wizard.NoticeWarn, "Submission cancelled while the logo was still uploading.", wizard.StepMessages)
		logging.WarnWithContext(o.logger, "submission cancelled before start", "submit_cancelled",
			logging.String(logging.FieldStep, wizard.StepMessages),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "submit again once the logo upload finishes"),
			logging.String(logging.FieldImpact, "nothing was saved"),
		)
		return &Error{Kind: KindCancelled, Step: wizard.StepMessages, Op: StageLogo, Err: err}
	}

	state := session.Snapshot()
	ctx = services.WithRequestID(ctx, state.RequestID)
	ctx = services.WithCorrelationID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, o.logger)

	run := &attempt{o: o, ctx: ctx, logger: logger, session: session}

	if err := o.validate(state, session.ActiveSteps()); err != nil {
		// Validation failures never reach the network or the journal.
		session.Redirect(err.Step)
		session.AddNotice(wizard.NoticeError, err.Err.Error(), err.Step)
		logger.Info("submission blocked by validation",
			logging.String(logging.FieldStep, err.Step),
			logging.Error(err.Err),
		)
		return err
	}

	run.begin(state)
	logger.Info("submission started",
		logging.String("request_type", state.RequestType),
		logging.Int("tree_count", state.TreeCount),
		logging.Int("recipients", len(state.Recipients)),
	)

	if err := o.updateLogo(run, state); err != nil {
		return run.fail(err)
	}
	// Reread so the callback sees the group and payment written back above.
	state = session.Snapshot()

	paymentID, err := o.reconcilePayment(run, state)
	if err != nil {
		return run.fail(err)
	}

	sub := newSubmission(session.Snapshot(), paymentID)
	giftRequestID, err := o.callback(ctx, sub)
	if err != nil {
		return run.fail(&Error{Kind: KindCallback, Step: wizard.StepSummary, Op: StageCallback, Err: err})
	}
	run.record(StageCallback, journal.StepOK, fmt.Sprintf("gift request %d", giftRequestID))
	run.setGiftRequestID(giftRequestID)
	run.finish(journal.StatusCompleted, "", nil)

	o.publish(ctx, notifications.EventSubmissionCompleted, notifications.Payload{
		"requestID":  sub.RequestID,
		"user":       userName(sub.User),
		"trees":      sub.TreeCount,
		"recipients": len(sub.Recipients),
	})
	logger.Info("submission completed", logging.Int64("gift_request_id", giftRequestID))
	session.Close()
	return nil
}

func (o *Orchestrator) validate(state wizard.State, steps []wizard.Step) *Error {
	if state.User == nil {
		return &Error{
			Kind: KindValidation,
			Step: wizard.StepDetails,
			Op:   StageValidate,
			Err:  services.Wrap(services.ErrValidation, "submit", "validate", "a user is required", nil),
		}
	}
	if wizard.RequiresSponsor(state.RequestType) && state.Sponsor == nil {
		return &Error{
			Kind: KindValidation,
			Step: wizard.StepDetails,
			Op:   StageValidate,
			Err:  services.Wrap(services.ErrValidation, "submit", "validate", "a sponsor is required for "+state.RequestType+" requests", nil),
		}
	}
	for _, step := range steps {
		if step.Validate == nil {
			continue
		}
		if err := step.Validate(state); err != nil {
			key := step.Key
			var stepErr *wizard.StepError
			if errors.As(err, &stepErr) && stepErr.Step != "" {
				key = stepErr.Step
			}
			return &Error{Kind: KindValidation, Step: key, Op: StageValidate, Err: err}
		}
	}
	return nil
}

func (o *Orchestrator) updateLogo(run *attempt, state wizard.State) error {
	if state.Group == nil || state.LogoURL == "" || state.LogoURL == state.Group.LogoURL {
		run.record(StageLogo, journal.StepSkipped, "logo unchanged")
		return nil
	}
	logo := state.LogoURL
	group, err := o.remote.UpdateGroup(run.ctx, state.Group.ID, remote.GroupUpdate{LogoURL: &logo})
	if err != nil {
		return &Error{Kind: KindRemote, Step: wizard.StepMessages, Op: StageLogo, Err: err}
	}
	if group.ID == 0 {
		group = *state.Group
		group.LogoURL = logo
	}
	run.session.Update(wizard.SetGroup(&group))
	run.record(StageLogo, journal.StepOK, fmt.Sprintf("group %d logo updated", group.ID))
	run.logger.Info("group logo updated", logging.Int64("group_id", group.ID))
	return nil
}

func (o *Orchestrator) reconcilePayment(run *attempt, state wizard.State) (int64, error) {
	if !paymentActive(run.session.ActiveSteps()) {
		run.record(StagePayment, journal.StepSkipped, "no payment for "+state.RequestType)
		if state.Payment != nil {
			return state.Payment.ID, nil
		}
		return 0, nil
	}

	desired := desiredPayment(state)
	if state.Payment == nil || state.Payment.ID == 0 {
		created, err := o.remote.CreatePayment(run.ctx, desired)
		if err != nil {
			return 0, &Error{Kind: KindRemote, Step: wizard.StepPayment, Op: StagePayment, Err: err}
		}
		run.session.Update(wizard.SetPaymentID(created.ID))
		run.record(StagePayment, journal.StepOK, fmt.Sprintf("payment %d created", created.ID))
		run.logger.Info("payment created", logging.Int64("payment_id", created.ID), logging.Int("amount", desired.Amount))
		return created.ID, nil
	}

	id := state.Payment.ID
	stored, err := o.remote.GetPayment(run.ctx, id)
	if err != nil {
		return 0, &Error{Kind: KindRemote, Step: wizard.StepPayment, Op: StagePayment, Err: err}
	}
	update := DiffPayment(stored, desired)
	if update.Empty() {
		run.record(StagePayment, journal.StepSkipped, fmt.Sprintf("payment %d unchanged", id))
		return id, nil
	}
	if _, err := o.remote.UpdatePayment(run.ctx, id, update); err != nil {
		return 0, &Error{Kind: KindRemote, Step: wizard.StepPayment, Op: StagePayment, Err: err}
	}
	run.record(StagePayment, journal.StepOK, fmt.Sprintf("payment %d updated", id))
	run.logger.Info("payment updated", logging.Int64("payment_id", id))
	return id, nil
}

// DiffPayment returns the partial update that turns stored into desired.
func DiffPayment(stored, desired remote.Payment) remote.PaymentUpdate {
	var update remote.PaymentUpdate
	if stored.Amount != desired.Amount {
		amount := desired.Amount
		update.Amount = &amount
	}
	if stored.DonorType != desired.DonorType {
		donor := desired.DonorType
		update.DonorType = &donor
	}
	if stored.PanNumber != desired.PanNumber {
		pan := desired.PanNumber
		update.PanNumber = &pan
	}
	if stored.Consent != desired.Consent {
		consent := desired.Consent
		update.Consent = &consent
	}
	return update
}

func desiredPayment(state wizard.State) remote.Payment {
	p := remote.Payment{Amount: state.Amount}
	if state.Payment != nil {
		p.DonorType = state.Payment.DonorType
		p.PanNumber = state.Payment.TaxID
		p.Consent = state.Payment.Consent
	}
	return p
}

func paymentActive(steps []wizard.Step) bool {
	for _, step := range steps {
		if step.Key == wizard.StepPayment {
			return true
		}
	}
	return false
}

func newSubmission(state wizard.State, paymentID int64) Submission {
	return Submission{
		RequestID:     state.RequestID,
		GiftRequestID: state.GiftRequestID,
		User:          state.User,
		Sponsor:       state.Sponsor,
		CreatedBy:     state.CreatedBy,
		Group:         state.Group,
		TreeCount:     state.TreeCount,
		Category:      state.Category,
		Grove:         state.Grove,
		RequestType:   state.RequestType,
		Recipients:    state.Recipients,
		GiftedOn:      state.GiftedOn,
		PaymentID:     paymentID,
		LogoURL:       state.LogoURL,
		Messages:      state.Messages,
		SourceFile:    state.SourceFile,
	}
}

func userName(u *remote.User) string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func (o *Orchestrator) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "notification failed", "notify_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "operators were not notified"),
		)
	}
}
