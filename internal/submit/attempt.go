package submit

import (
	"context"
	"errors"
	"log/slog"

	"treegift/internal/journal"
	"treegift/internal/logging"
	"treegift/internal/notifications"
	"treegift/internal/services"
	"treegift/internal/wizard"
)

// attempt tracks one journaled run. Journal failures are logged and never
// fail the submission.
type attempt struct {
	o       *Orchestrator
	ctx     context.Context
	logger  *slog.Logger
	session Session
	id      int64
}

func (a *attempt) begin(state wizard.State) {
	if a.o.recorder == nil {
		return
	}
	cid, _ := services.CorrelationIDFromContext(a.ctx)
	info := journal.AttemptInfo{
		RequestID:      state.RequestID,
		GiftRequestID:  state.GiftRequestID,
		CorrelationID:  cid,
		RequestType:    state.RequestType,
		TreeCount:      state.TreeCount,
		RecipientCount: len(state.Recipients),
	}
	if state.User != nil {
		info.UserEmail = state.User.Email
	}
	id, err := a.o.recorder.BeginAttempt(a.ctx, info)
	if err != nil {
		a.warn("journal begin failed", err)
		return
	}
	a.id = id
}

func (a *attempt) record(stage, status, detail string) {
	if a.o.recorder == nil || a.id == 0 {
		return
	}
	if err := a.o.recorder.RecordStep(a.ctx, a.id, stage, status, detail); err != nil {
		a.warn("journal step failed", err)
	}
}

func (a *attempt) setGiftRequestID(id int64) {
	if a.o.recorder == nil || a.id == 0 || id == 0 {
		return
	}
	if err := a.o.recorder.SetGiftRequestID(a.ctx, a.id, id); err != nil {
		a.warn("journal update failed", err)
	}
}

func (a *attempt) finish(status journal.Status, kind string, cause error) {
	if a.o.recorder == nil || a.id == 0 {
		return
	}
	if err := a.o.recorder.FinishAttempt(a.ctx, a.id, status, kind, cause); err != nil {
		a.warn("journal finish failed", err)
	}
}

// fail records err against its stage, surfaces it to the user, and notifies
// operators. The session is left as it was.
func (a *attempt) fail(err error) error {
	var serr *Error
	if !errors.As(err, &serr) {
		serr = &Error{Kind: KindRemote, Op: "submit", Err: err}
	}
	a.record(serr.Op, journal.StepFailed, serr.Err.Error())
	a.finish(journal.StatusFailed, serr.ErrorKind(), serr.Err)

	a.session.AddNotice(wizard.NoticeError, serr.Error(), serr.Step)
	logging.ErrorWithContext(a.logger, "submission failed", "submit_failed",
		logging.String("stage", serr.Op),
		logging.String("kind", serr.ErrorKind()),
		logging.String(logging.FieldStep, serr.Step),
		logging.Error(serr.Err),
		logging.String(logging.FieldErrorHint, "fix the cause and submit again; completed stages are not repeated"),
	)
	state := a.session.Snapshot()
	a.o.publish(a.ctx, notifications.EventSubmissionFailed, notifications.Payload{
		"requestID": state.RequestID,
		"step":      serr.Op,
		"kind":      serr.ErrorKind(),
		"error":     serr.Err,
	})
	return serr
}

func (a *attempt) warn(msg string, err error) {
	logging.WarnWithContext(a.logger, msg, "journal_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the journal database in the data directory"),
		logging.String(logging.FieldImpact, "submission history is incomplete"),
	)
}
