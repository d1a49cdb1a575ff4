package submit_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"treegift/internal/config"
	"treegift/internal/journal"
	"treegift/internal/logging"
	"treegift/internal/notifications"
	"treegift/internal/remote"
	"treegift/internal/services"
	"treegift/internal/submit"
	"treegift/internal/testsupport"
	"treegift/internal/wizard"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) Events() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

type harness struct {
	controller *wizard.Controller
	journal    *journal.Store
	notifier   *recordingNotifier
	submitted  []submit.Submission
	orch       *submit.Orchestrator
}

func newHarness(t *testing.T, handler http.Handler, callback submit.Callback) *harness {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithRemote(server.URL))
	h := &harness{
		controller: wizard.New(wizard.Options{Price: cfg.UnitPrice, Logger: logging.NewNop()}),
		journal:    testsupport.MustOpenJournal(t, cfg),
		notifier:   &recordingNotifier{},
	}
	t.Cleanup(h.controller.Close)

	if callback == nil {
		callback = func(_ context.Context, sub submit.Submission) (int64, error) {
			h.submitted = append(h.submitted, sub)
			return 99, nil
		}
	}
	orch, err := submit.New(submit.Options{
		Remote:   remote.NewClient(remote.Config{BaseURL: cfg.Remote.BaseURL, APIToken: cfg.Remote.APIToken}),
		Callback: callback,
		Recorder: h.journal,
		Notifier: h.notifier,
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("submit.New: %v", err)
	}
	h.orch = orch
	return h
}

func failOnRequest(t *testing.T, calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})
}

func TestSubmitSendsOnlyChangedPaymentFields(t *testing.T) {
	var patchBody atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("GET /payments/7", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(remote.Payment{
			ID: 7, Amount: 3000, DonorType: wizard.DonorIndianCitizen, PanNumber: "ABCDE1234F", Consent: true,
		})
	})
	mux.HandleFunc("PATCH /payments/7", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		patchBody.Store(string(body))
		_ = json.NewEncoder(w).Encode(remote.Payment{ID: 7, Amount: 4500})
	})
	h := newHarness(t, mux, nil)

	c := h.controller
	c.Open(wizard.State{
		RequestType: config.RequestTypeDonation,
		Category:    config.CategoryPublic,
		Payment:     &wizard.Payment{ID: 7, DonorType: wizard.DonorIndianCitizen, TaxID: "ABCDE1234F", Consent: true},
	})
	c.Update(
		wizard.SetUser(&remote.User{ID: 1, Name: "Asha Rao", Email: "asha@example.org"}),
		wizard.SetSponsor(&remote.User{ID: 2, Name: "Meera"}),
		wizard.SetTreeCount(3),
	)
	if got := c.Snapshot().Amount; got != 4500 {
		t.Fatalf("expected amount 4500, got %d", got)
	}

	if err := h.orch.Submit(context.Background(), c); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got, _ := patchBody.Load().(string)
	if strings.TrimSpace(got) != `{"amount":4500}` {
		t.Fatalf("expected amount-only patch, got %s", got)
	}
	if len(h.submitted) != 1 || h.submitted[0].PaymentID != 7 || h.submitted[0].TreeCount != 3 {
		t.Fatalf("unexpected submission: %#v", h.submitted)
	}
	if snap := c.Snapshot(); snap.User != nil || snap.Payment != nil {
		t.Fatalf("expected wizard reset after success, got %#v", snap)
	}

	attempts, err := h.journal.ListAttempts(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Status != journal.StatusCompleted || attempts[0].GiftRequestID != 99 {
		t.Fatalf("unexpected journal: %#v", attempts)
	}
	steps, err := h.journal.Steps(context.Background(), attempts[0].ID)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	var stages []string
	for _, s := range steps {
		stages = append(stages, s.Step+":"+s.Status)
	}
	want := []string{"logo:skipped", "payment:ok", "callback:ok"}
	if diff := cmp.Diff(want, stages); diff != "" {
		t.Fatalf("journal steps mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]notifications.Event{notifications.EventSubmissionCompleted}, h.notifier.Events()); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitWithoutUserRedirectsToDetails(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, failOnRequest(t, &calls), nil)

	c := h.controller
	c.Open(wizard.State{RequestType: config.RequestTypeNormalAssignment})
	if err := c.JumpToKey(wizard.StepSummary); err != nil {
		t.Fatalf("JumpToKey: %v", err)
	}

	err := h.orch.Submit(context.Background(), c)
	var serr *submit.Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *submit.Error, got %v", err)
	}
	if serr.Kind != submit.KindValidation || serr.Step != wizard.StepDetails || serr.ErrorKind() != "validation" {
		t.Fatalf("unexpected error: %#v", serr)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if got := c.Current().Key; got != wizard.StepDetails {
		t.Fatalf("expected redirect to details, got %s", got)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", calls.Load())
	}
	if len(h.submitted) != 0 {
		t.Fatal("callback must not run")
	}
	if attempts, _ := h.journal.ListAttempts(context.Background(), "", 0); len(attempts) != 0 {
		t.Fatalf("validation failures are not journaled, got %#v", attempts)
	}
	if len(c.Notices()) != 1 {
		t.Fatalf("expected one notice, got %#v", c.Notices())
	}
}

func TestSubmitRedirectsToFirstInvalidStep(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, failOnRequest(t, &calls), nil)

	c := h.controller
	c.Open(wizard.State{RequestType: config.RequestTypeDonation})
	c.Update(
		wizard.SetUser(&remote.User{ID: 1, Name: "Asha"}),
		wizard.SetSponsor(&remote.User{ID: 2, Name: "Meera"}),
		wizard.SetPaymentDetails(wizard.DonorIndianCitizen, "not-a-pan", true),
	)

	err := h.orch.Submit(context.Background(), c)
	var serr *submit.Error
	if !errors.As(err, &serr) || serr.Step != wizard.StepPayment {
		t.Fatalf("expected payment validation error, got %v", err)
	}
	if got := c.Current().Key; got != wizard.StepPayment {
		t.Fatalf("expected redirect to payment, got %s", got)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, got %d", calls.Load())
	}
}

type stalledUploader struct{}

func (stalledUploader) UploadFile(ctx context.Context, _, _ string, _ io.Reader, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSubmitCancelledWhileLogoPending(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, failOnRequest(t, &calls), nil)

	c := wizard.New(wizard.Options{LogoUploader: stalledUploader{}, LogoNamespace: "logos", Logger: logging.NewNop()})
	t.Cleanup(c.Close)
	c.Open(wizard.State{RequestID: "req-logo", RequestType: config.RequestTypeNormalAssignment})
	c.Update(
		wizard.SetUser(&remote.User{ID: 1, Name: "Ravi"}),
		wizard.SetLogoFile("logo.png", []byte("png")),
	)
	if !c.Snapshot().LogoPending {
		t.Fatal("expected logo upload to be pending")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.orch.Submit(ctx, c)
	var serr *submit.Error
	if !errors.As(err, &serr) || serr.Kind != submit.KindCancelled || serr.Step != wizard.StepMessages {
		t.Fatalf("expected cancelled error on messages step, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	notices := c.Notices()
	if len(notices) != 1 || notices[0].Level != wizard.NoticeWarn || notices[0].Step != wizard.StepMessages {
		t.Fatalf("expected one warning notice, got %#v", notices)
	}
	if calls.Load() != 0 || len(h.submitted) != 0 {
		t.Fatal("cancelled submission must not reach the network or callback")
	}
}

func TestSubmitCallbackFailureKeepsState(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, failOnRequest(t, &calls), func(context.Context, submit.Submission) (int64, error) {
		return 0, errors.New("gift request service unavailable")
	})

	c := h.controller
	c.Open(wizard.State{RequestType: config.RequestTypeNormalAssignment})
	c.Update(wizard.SetUser(&remote.User{ID: 1, Name: "Ravi"}), wizard.SetTreeCount(4))

	err := h.orch.Submit(context.Background(), c)
	var serr *submit.Error
	if !errors.As(err, &serr) || serr.Kind != submit.KindCallback {
		t.Fatalf("expected callback error, got %v", err)
	}
	snap := c.Snapshot()
	if snap.User == nil || snap.TreeCount != 4 {
		t.Fatalf("state must survive callback failure, got %#v", snap)
	}
	if len(snap.Notices) != 1 || snap.Notices[0].Level != wizard.NoticeError {
		t.Fatalf("expected error notice, got %#v", snap.Notices)
	}

	attempts, err := h.journal.ListAttempts(context.Background(), snap.RequestID, 0)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Status != journal.StatusFailed || attempts[0].ErrorKind != "callback" {
		t.Fatalf("unexpected journal: %#v", attempts)
	}
	if diff := cmp.Diff([]notifications.Event{notifications.EventSubmissionFailed}, h.notifier.Events()); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitCreatesPaymentAndUpdatesGroupLogo(t *testing.T) {
	var groupBody, paymentBody atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /groups/5", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		groupBody.Store(string(body))
		_ = json.NewEncoder(w).Encode(remote.Group{ID: 5, Name: "Acme", LogoURL: "https://cdn.example.com/logos/new.png"})
	})
	mux.HandleFunc("POST /payments", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		paymentBody.Store(string(body))
		_ = json.NewEncoder(w).Encode(remote.Payment{ID: 11})
	})
	h := newHarness(t, mux, nil)

	c := h.controller
	c.Open(wizard.State{RequestType: config.RequestTypeGiftCards, Category: config.CategoryFoundation})
	c.Update(
		wizard.SetUser(&remote.User{ID: 1, Name: "Asha"}),
		wizard.SetSponsor(&remote.User{ID: 2, Name: "Meera"}),
		wizard.SetGroup(&remote.Group{ID: 5, Name: "Acme", LogoURL: "https://cdn.example.com/logos/old.png"}),
		wizard.SetLogoURL("https://cdn.example.com/logos/new.png"),
		wizard.SetTreeCount(2),
		wizard.SetPaymentDetails(wizard.DonorForeign, "", true),
	)

	if err := h.orch.Submit(context.Background(), c); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if got, _ := groupBody.Load().(string); strings.TrimSpace(got) != `{"logo_url":"https://cdn.example.com/logos/new.png"}` {
		t.Fatalf("unexpected group update body: %s", got)
	}
	var created remote.Payment
	body, _ := paymentBody.Load().(string)
	if err := json.Unmarshal([]byte(body), &created); err != nil {
		t.Fatalf("decode payment body: %v", err)
	}
	if created.Amount != 6000 || created.DonorType != wizard.DonorForeign || !created.Consent {
		t.Fatalf("unexpected payment body: %#v", created)
	}
	if len(h.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(h.submitted))
	}
	sub := h.submitted[0]
	if sub.PaymentID != 11 || sub.Group == nil || sub.Group.LogoURL != "https://cdn.example.com/logos/new.png" {
		t.Fatalf("unexpected submission: %#v", sub)
	}
}

func TestSubmitRemoteFailureLeavesStateForRetry(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payments", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "payments offline", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(remote.Payment{ID: 21})
	})
	h := newHarness(t, mux, nil)

	c := h.controller
	c.Open(wizard.State{RequestType: config.RequestTypeDonation})
	c.Update(
		wizard.SetUser(&remote.User{ID: 1, Name: "Asha"}),
		wizard.SetSponsor(&remote.User{ID: 2, Name: "Meera"}),
		wizard.SetPaymentDetails(wizard.DonorForeign, "", true),
	)

	err := h.orch.Submit(context.Background(), c)
	var serr *submit.Error
	if !errors.As(err, &serr) || serr.Kind != submit.KindRemote || serr.Step != wizard.StepPayment {
		t.Fatalf("expected remote payment error, got %v", err)
	}
	if !errors.Is(err, services.ErrRemote) {
		t.Fatalf("expected remote marker, got %v", err)
	}
	if c.Snapshot().User == nil {
		t.Fatal("state must survive remote failure")
	}

	fail.Store(false)
	if err := h.orch.Submit(context.Background(), c); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if len(h.submitted) != 1 || h.submitted[0].PaymentID != 21 {
		t.Fatalf("unexpected submissions: %#v", h.submitted)
	}

	attempts, _ := h.journal.ListAttempts(context.Background(), "", 0)
	if len(attempts) != 2 || attempts[0].Status != journal.StatusCompleted || attempts[1].Status != journal.StatusFailed {
		t.Fatalf("unexpected journal: %#v", attempts)
	}
}

func TestDiffPayment(t *testing.T) {
	stored := remote.Payment{Amount: 3000, DonorType: wizard.DonorIndianCitizen, PanNumber: "ABCDE1234F", Consent: true}

	if update := submit.DiffPayment(stored, stored); !update.Empty() {
		t.Fatalf("expected empty update, got %#v", update)
	}

	desired := stored
	desired.DonorType = wizard.DonorForeign
	desired.PanNumber = ""
	desired.Consent = false
	update := submit.DiffPayment(stored, desired)
	if update.Amount != nil {
		t.Fatalf("amount unchanged, got %v", *update.Amount)
	}
	if update.DonorType == nil || *update.DonorType != wizard.DonorForeign {
		t.Fatalf("expected donor type change, got %#v", update.DonorType)
	}
	if update.PanNumber == nil || *update.PanNumber != "" {
		t.Fatalf("expected pan cleared, got %#v", update.PanNumber)
	}
	if update.Consent == nil || *update.Consent {
		t.Fatalf("expected consent false, got %#v", update.Consent)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := submit.New(submit.Options{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
