package wizard_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"treegift/internal/config"
	"treegift/internal/ingest"
	"treegift/internal/logging"
	"treegift/internal/matcher"
	"treegift/internal/recipient"
	"treegift/internal/remote"
	"treegift/internal/services"
	"treegift/internal/wizard"
)

func newController(t *testing.T, opts wizard.Options) *wizard.Controller {
	t.Helper()
	cfg := config.Default()
	if opts.Price == nil {
		opts.Price = cfg.UnitPrice
	}
	opts.Logger = logging.NewNop()
	c := wizard.New(opts)
	t.Cleanup(c.Close)
	return c
}

func stepKeys(steps []wizard.Step) []string {
	keys := make([]string, 0, len(steps))
	for _, s := range steps {
		keys = append(keys, s.Key)
	}
	return keys
}

func TestNormalAssignmentSkipsPayment(t *testing.T) {
	c := newController(t, wizard.Options{})
	c.Open(wizard.State{RequestType: config.RequestTypeNormalAssignment})
	c.Update(wizard.SetUser(&remote.User{ID: 1, Name: "Ravi"}), wizard.SetTreeCount(5))

	for _, key := range stepKeys(c.ActiveSteps()) {
		if key == wizard.StepPayment {
			t.Fatal("payment step must be absent for Normal Assignment")
		}
	}

	for !c.IsLast() {
		if err := c.Next(); err != nil {
			t.Fatalf("Next from %s: %v", c.Current().Key, err)
		}
	}
	if got := c.Current().Key; got != wizard.StepSummary {
		t.Fatalf("expected to end on summary, got %s", got)
	}
	if c.ActionLabel() != wizard.ActionSubmit {
		t.Fatalf("expected Submit label, got %s", c.ActionLabel())
	}
	if err := c.JumpToKey(wizard.StepPayment); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected jump to disabled step rejected, got %v", err)
	}
}

func TestNextValidatesCurrentStep(t *testing.T) {
	c := newController(t, wizard.Options{})
	c.Open(wizard.State{})

	err := c.Next()
	var stepErr *wizard.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != wizard.StepDetails || stepErr.Field != "user" {
		t.Fatalf("expected details/user error, got %v", err)
	}

	c.Update(wizard.SetUser(&remote.User{ID: 1, Name: "Ravi"}))
	err = c.Next()
	if !errors.As(err, &stepErr) || stepErr.Field != "sponsor" {
		t.Fatalf("expected sponsor required for gift cards, got %v", err)
	}

	c.Update(wizard.SetSponsor(&remote.User{ID: 2, Name: "Acme Trust"}))
	if err := c.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := c.Current().Key; got != wizard.StepTrees {
		t.Fatalf("expected trees step, got %s", got)
	}
	c.Previous()
	if got := c.Current().Key; got != wizard.StepDetails {
		t.Fatalf("expected back on details, got %s", got)
	}
}

func TestAmountRecomputedAfterEveryPatch(t *testing.T) {
	c := newController(t, wizard.Options{})
	c.Open(wizard.State{Grove: "North Ridge"})

	c.Update(wizard.SetTreeCount(3))
	s := c.Snapshot()
	if s.Amount != 3*2000 {
		t.Fatalf("expected 6000, got %d", s.Amount)
	}
	if s.Category != config.CategoryPublic || s.RequestType != config.RequestTypeGiftCards || s.Grove != "North Ridge" {
		t.Fatalf("tree count change touched other inputs: %+v", s)
	}

	c.Update(wizard.SetCategory(config.CategoryFoundation))
	if got := c.Snapshot().Amount; got != 3*3000 {
		t.Fatalf("expected 9000, got %d", got)
	}
	c.Update(wizard.SetRequestType(config.RequestTypeVisit))
	if got := c.Snapshot().Amount; got != 0 {
		t.Fatalf("expected visits to be free, got %d", got)
	}
}

func TestRequestTypeChangePreservesStep(t *testing.T) {
	c := newController(t, wizard.Options{})
	c.Open(wizard.State{})

	if err := c.JumpToKey(wizard.StepRecipients); err != nil {
		t.Fatalf("JumpToKey: %v", err)
	}
	c.Update(wizard.SetRequestType(config.RequestTypeVisit))
	if got := c.Current().Key; got != wizard.StepRecipients {
		t.Fatalf("expected to stay on recipients, got %s", got)
	}

	c.Update(wizard.SetRequestType(config.RequestTypeDonation))
	if err := c.JumpToKey(wizard.StepPayment); err != nil {
		t.Fatalf("JumpToKey payment: %v", err)
	}
	c.Update(wizard.SetRequestType(config.RequestTypeNormalAssignment))
	if got := c.Current().Key; got == wizard.StepPayment {
		t.Fatal("expected to leave the disabled payment step")
	}
}

func TestPlantedByDefaults(t *testing.T) {
	c := newController(t, wizard.Options{})
	c.Open(wizard.State{})

	c.Update(wizard.SetUser(&remote.User{Name: "Ravi"}))
	if got := c.Snapshot().Messages.PlantedBy; got != "Ravi" {
		t.Fatalf("expected user name, got %q", got)
	}
	c.Update(wizard.SetSponsor(&remote.User{Name: "Meera"}))
	if got := c.Snapshot().Messages.PlantedBy; got != "Meera" {
		t.Fatalf("expected sponsor name, got %q", got)
	}
	c.Update(wizard.SetGroup(&remote.Group{ID: 4, Name: "Acme Corp"}))
	if got := c.Snapshot().Messages.PlantedBy; got != "Acme Corp" {
		t.Fatalf("expected group name, got %q", got)
	}
	c.Update(wizard.SetPlantedBy("The Rao family"))
	c.Update(wizard.SetGroup(nil))
	if got := c.Snapshot().Messages.PlantedBy; got != "The Rao family" {
		t.Fatalf("expected explicit text kept, got %q", got)
	}
	c.Update(wizard.SetPlantedBy(""))
	if got := c.Snapshot().Messages.PlantedBy; got != "Meera" {
		t.Fatalf("expected default restored, got %q", got)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	c := newController(t, wizard.Options{})
	c.Open(wizard.State{})
	c.SetRecipients([]recipient.Record{{Key: "a", RecipientName: "Asha Rao", RecipientEmail: "a@x.org", GiftedTreeCount: 1}})

	snap := c.Snapshot()
	snap.Recipients[0].RecipientName = "mutated"
	snap.TreeCount = 99

	again := c.Snapshot()
	if again.Recipients[0].RecipientName != "Asha Rao" || again.TreeCount == 99 {
		t.Fatal("snapshot mutation leaked into controller state")
	}
}

func TestCloseResetsState(t *testing.T) {
	c := newController(t, wizard.Options{})
	c.Open(wizard.State{RequestID: "req-1", TreeCount: 7})
	first := c.Snapshot()
	if first.RequestID != "req-1" || first.TreeCount != 7 {
		t.Fatalf("unexpected opened state %+v", first)
	}
	c.Close()
	after := c.Snapshot()
	if after.RequestID != "" || after.TreeCount != 1 || len(after.Recipients) != 0 {
		t.Fatalf("expected defaults after close, got %+v", after)
	}

	c.Open(wizard.State{})
	if c.Snapshot().RequestID == "" {
		t.Fatal("expected a generated request id on open")
	}
}

func TestNoticesDismiss(t *testing.T) {
	c := newController(t, wizard.Options{})
	c.Open(wizard.State{})
	first := c.AddNotice(wizard.NoticeError, "upload failed", wizard.StepRecipients)
	c.AddNotice(wizard.NoticeInfo, "saved", "")
	c.Dismiss(first)
	notices := c.Notices()
	if len(notices) != 1 || notices[0].Message != "saved" {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

type poolSource struct {
	mu     sync.Mutex
	images []string
}

func (p *poolSource) GetImagesForRequestID(context.Context, string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.images...), nil
}

func TestMatcherRunsOnRecipientAndPoolChanges(t *testing.T) {
	pool := ingest.NewImagePool(&poolSource{}, logging.NewNop())
	if _, err := pool.Fetch(context.Background(), "req-1"); err != nil {
		t.Fatalf("prime pool: %v", err)
	}
	c := newController(t, wizard.Options{Pool: pool})
	c.Open(wizard.State{RequestID: "req-1"})

	pool.Merge("req-1", "https://cdn/req-1/asha-rao.jpg")
	c.SetRecipients([]recipient.Record{
		{Key: "a", RecipientName: "Asha Rao", RecipientEmail: "asha@x.org", GiftedTreeCount: 1},
		{Key: "b", RecipientName: "Meera Iyer", RecipientEmail: "meera@x.org", GiftedTreeCount: 1},
	})
	s := c.Snapshot()
	if !s.Recipients[0].ImageAssigned {
		t.Fatal("expected asha matched on recipient change")
	}
	if s.Recipients[1].ImageAssigned {
		t.Fatal("expected meera unmatched")
	}

	pool.Merge("req-1", "https://cdn/req-1/meera_iyer.png")
	s = c.Snapshot()
	if !s.Recipients[1].ImageAssigned || s.Recipients[1].ImageName != "meera_iyer.png" {
		t.Fatalf("expected meera matched on pool change, got %+v", s.Recipients[1])
	}

	pool.Merge("other-request", "https://cdn/other/asha-rao-2.jpg")
	if c.Snapshot().Recipients[0].ImageURL != "https://cdn/req-1/asha-rao.jpg" {
		t.Fatal("pool changes for other requests must not affect this wizard")
	}
}

type gatedUploader struct {
	mu    sync.Mutex
	gates []chan error
	names []string
}

func (g *gatedUploader) UploadFile(ctx context.Context, namespace, name string, body io.Reader, requestID string) (string, error) {
	gate := make(chan error)
	g.mu.Lock()
	g.gates = append(g.gates, gate)
	g.names = append(g.names, name)
	g.mu.Unlock()
	if err := <-gate; err != nil {
		return "", err
	}
	return "https://cdn/" + namespace + "/" + requestID + "/" + name, nil
}

func (g *gatedUploader) gate(t *testing.T, i int) chan error {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g.mu.Lock()
		if len(g.gates) > i {
			gate := g.gates[i]
			g.mu.Unlock()
			return gate
		}
		g.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("upload %d never started", i)
	return nil
}

func TestLogoUploadEffect(t *testing.T) {
	uploader := &gatedUploader{}
	c := newController(t, wizard.Options{LogoUploader: uploader, LogoNamespace: "logos"})
	c.Open(wizard.State{RequestID: "req-1"})

	c.Update(wizard.SetLogoFile("first.png", []byte("one")))
	if s := c.Snapshot(); !s.LogoPending || s.LogoURL != "" {
		t.Fatalf("expected pending upload with empty url, got pending=%v url=%q", s.LogoPending, s.LogoURL)
	}
	first := uploader.gate(t, 0)

	c.Update(wizard.SetLogoFile("second.png", []byte("two")))
	second := uploader.gate(t, 1)

	second <- nil
	if err := c.AwaitLogo(context.Background()); err != nil {
		t.Fatalf("AwaitLogo: %v", err)
	}
	first <- nil

	s := c.Snapshot()
	if s.LogoPending {
		t.Fatal("expected no pending upload")
	}
	if s.LogoURL != "https://cdn/logos/req-1/second.png" {
		t.Fatalf("expected latest logo url, got %q", s.LogoURL)
	}
}

func TestLogoUploadWaitsForRequestID(t *testing.T) {
	uploader := &gatedUploader{}
	c := newController(t, wizard.Options{LogoUploader: uploader, LogoNamespace: "logos"})
	c.Update(wizard.SetLogoFile("logo.png", []byte("x")))
	if s := c.Snapshot(); s.LogoPending {
		t.Fatal("upload must not start without a request id")
	}

	c.Update(wizard.SetRequestID("req-9"))
	gate := uploader.gate(t, 0)
	gate <- errors.New("storage down")
	if err := c.AwaitLogo(context.Background()); err != nil {
		t.Fatalf("AwaitLogo: %v", err)
	}
	s := c.Snapshot()
	if s.LogoURL != "" || s.LogoPending {
		t.Fatalf("expected failed upload to clear pending without url, got %+v", s)
	}
	if len(s.Notices) != 1 || s.Notices[0].Level != wizard.NoticeError {
		t.Fatalf("expected an error notice, got %+v", s.Notices)
	}
}

func TestJumpToIndex(t *testing.T) {
	c := newController(t, wizard.Options{})
	c.Open(wizard.State{})

	if err := c.JumpTo(3); err != nil {
		t.Fatalf("JumpTo: %v", err)
	}
	if got := c.Current().Key; got != wizard.StepRecipients {
		t.Fatalf("expected recipients step, got %s", got)
	}
	for _, i := range []int{-1, len(c.ActiveSteps())} {
		if err := c.JumpTo(i); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("JumpTo(%d): expected validation error, got %v", i, err)
		}
	}
	if got := c.Current().Key; got != wizard.StepRecipients {
		t.Fatalf("rejected jump moved the wizard to %s", got)
	}
}

func TestNoEnabledStepsDoesNotPanic(t *testing.T) {
	never := func(string) bool { return false }
	c := newController(t, wizard.Options{Steps: []wizard.Step{{Key: "hidden", Enabled: never}}})
	c.Open(wizard.State{})

	if got := c.Current(); got.Key != "" {
		t.Fatalf("expected zero step, got %+v", got)
	}
	if err := c.Next(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(c.ActiveSteps()) != 0 {
		t.Fatalf("expected no active steps, got %v", stepKeys(c.ActiveSteps()))
	}
}

func TestSelectAndRemoveRecipient(t *testing.T) {
	c := newController(t, wizard.Options{})
	c.Open(wizard.State{})
	c.SetRecipients([]recipient.Record{
		{Key: "a", RecipientName: "Asha Rao", RecipientEmail: "asha@x.org", GiftedTreeCount: 1},
		{Key: "b", RecipientName: "Meera Iyer", RecipientEmail: "meera@x.org", GiftedTreeCount: 1},
	})

	c.Update(wizard.SelectRecipient("a"))
	if got := c.Snapshot().SelectedRecipientKey; got != "a" {
		t.Fatalf("expected a selected, got %q", got)
	}
	c.Update(wizard.RemoveRecipient("b"))
	if got := c.Snapshot().SelectedRecipientKey; got != "a" {
		t.Fatalf("removing another record changed the selection to %q", got)
	}
	c.Update(wizard.RemoveRecipient("a"))
	s := c.Snapshot()
	if s.SelectedRecipientKey != "" {
		t.Fatalf("expected selection cleared with its record, got %q", s.SelectedRecipientKey)
	}
	if len(s.Recipients) != 0 {
		t.Fatalf("expected empty list, got %+v", s.Recipients)
	}
}

func TestClearedImageStaysCleared(t *testing.T) {
	pool := ingest.NewImagePool(&poolSource{}, logging.NewNop())
	if _, err := pool.Fetch(context.Background(), "req-1"); err != nil {
		t.Fatalf("prime pool: %v", err)
	}
	pool.Merge("req-1", "https://cdn/req-1/asha-rao.jpg")
	c := newController(t, wizard.Options{Pool: pool})
	c.Open(wizard.State{RequestID: "req-1"})
	c.SetRecipients([]recipient.Record{{Key: "a", RecipientName: "Asha Rao", RecipientEmail: "asha@x.org", GiftedTreeCount: 1}})
	if !c.Snapshot().Recipients[0].ImageAssigned {
		t.Fatal("expected automatic match")
	}

	c.Update(wizard.ClearRecipientImage("a"))
	if rec := c.Snapshot().Recipients[0]; rec.ImageAssigned || rec.ImageURL != "" {
		t.Fatalf("expected photo removed, got %+v", rec)
	}
	pool.Merge("req-1", "https://cdn/req-1/asha-rao-2.jpg")
	if rec := c.Snapshot().Recipients[0]; rec.ImageAssigned {
		t.Fatalf("pool change re-matched a cleared record: %+v", rec)
	}

	c.Update(wizard.AssignRecipientImage("a", "https://cdn/req-1/asha-portrait.jpg"))
	rec := c.Snapshot().Recipients[0]
	if !rec.ImageAssigned || rec.ImageName != "asha-portrait.jpg" || rec.ImageDetached {
		t.Fatalf("expected manual assignment, got %+v", rec)
	}
}

func TestConfiguredMatchingOptionsAreHonoured(t *testing.T) {
	pool := ingest.NewImagePool(&poolSource{}, logging.NewNop())
	if _, err := pool.Fetch(context.Background(), "req-1"); err != nil {
		t.Fatalf("prime pool: %v", err)
	}
	pool.Merge("req-1", "https://cdn/req-1/rao-family.jpg")
	c := newController(t, wizard.Options{Pool: pool, Matching: &matcher.Options{Threshold: 0, RequireUnique: false}})
	c.Open(wizard.State{RequestID: "req-1"})
	c.SetRecipients([]recipient.Record{{Key: "a", RecipientName: "Asha Rao Kumar", RecipientEmail: "asha@x.org", GiftedTreeCount: 1}})

	if !c.Snapshot().Recipients[0].ImageAssigned {
		t.Fatal("expected a zero threshold to accept a one-token overlap")
	}
}

func TestCloseStopsTrackedLookup(t *testing.T) {
	var (
		mu       sync.Mutex
		searches int
		results  int
	)
	search := func(context.Context, string) ([]string, error) {
		mu.Lock()
		searches++
		mu.Unlock()
		return []string{"asha"}, nil
	}
	lookup := wizard.NewLookup[string](search, 20*time.Millisecond, 3, func(string, []string, error) {
		mu.Lock()
		results++
		mu.Unlock()
	})

	c := newController(t, wizard.Options{})
	c.Open(wizard.State{})
	c.Track(lookup)
	lookup.Query("asha")
	c.Close()

	time.Sleep(80 * time.Millisecond)
	lookup.Query("meera")
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if searches != 0 || results != 0 {
		t.Fatalf("expected no searches after close, got searches=%d results=%d", searches, results)
	}
}

type stallingSource struct {
	started chan struct{}
	done    chan struct{}
}

func (s *stallingSource) GetImagesForRequestID(ctx context.Context, _ string) ([]string, error) {
	close(s.started)
	<-ctx.Done()
	close(s.done)
	return nil, ctx.Err()
}

func TestPhotoFetchFailureAfterCloseIsDiscarded(t *testing.T) {
	src := &stallingSource{started: make(chan struct{}), done: make(chan struct{})}
	c := newController(t, wizard.Options{Pool: ingest.NewImagePool(src, logging.NewNop())})
	c.Open(wizard.State{RequestID: "req-a"})

	select {
	case <-src.started:
	case <-time.After(2 * time.Second):
		t.Fatal("photo fetch never started")
	}
	c.Close()
	select {
	case <-src.done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not cancel the photo fetch")
	}
	time.Sleep(50 * time.Millisecond)

	s := c.Snapshot()
	if s.RequestID != "" || len(s.Notices) != 0 {
		t.Fatalf("stale fetch failure leaked into reset state: id=%q notices=%+v", s.RequestID, s.Notices)
	}
}

type failingSource struct{}

func (failingSource) GetImagesForRequestID(context.Context, string) ([]string, error) {
	return nil, errors.New("storage unavailable")
}

func TestPhotoFetchFailureAddsNotice(t *testing.T) {
	c := newController(t, wizard.Options{Pool: ingest.NewImagePool(failingSource{}, logging.NewNop())})
	c.Open(wizard.State{RequestID: "req-a"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if notices := c.Notices(); len(notices) > 0 {
			if notices[0].Level != wizard.NoticeWarn || notices[0].Step != wizard.StepRecipients {
				t.Fatalf("unexpected notice %+v", notices[0])
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected a warning notice for the failed photo fetch")
}
