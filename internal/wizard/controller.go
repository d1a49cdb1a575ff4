package wizard

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"treegift/internal/ingest"
	"treegift/internal/logging"
	"treegift/internal/matcher"
	"treegift/internal/recipient"
	"treegift/internal/services"
)

// PriceFunc returns the unit price per tree.
type PriceFunc func(category, requestType string) int

// LogoUploader stores a logo and returns its public URL.
type LogoUploader interface {
	UploadFile(ctx context.Context, namespace, name string, body io.Reader, requestID string) (string, error)
}

// Options configures a Controller. A nil Matching uses
// matcher.DefaultOptions.
type Options struct {
	Steps            []Step
	Price            PriceFunc
	Pool             *ingest.ImagePool
	Matching         *matcher.Options
	LogoUploader     LogoUploader
	LogoNamespace    string
	MaxLogoDimension int
	Logger           *slog.Logger
	Now              func() time.Time
}

// Listener receives a snapshot after every state change.
type Listener func(State)

// Controller serializes all wizard mutations.
type Controller struct {
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	active     []Step
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	logoKey    string
	logoDone   chan struct{}
	listeners  []Listener
	closers    []interface{ Stop() }
}

// New constructs a controller holding the default state.
func New(opts Options) *Controller {
	if len(opts.Steps) == 0 {
		opts.Steps = DefaultSteps()
	}
	if opts.Price == nil {
		opts.Price = func(string, string) int { return 0 }
	}
	if opts.Matching == nil {
		defaults := matcher.DefaultOptions()
		opts.Matching = &defaults
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "wizard"),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.state = DefaultState()
	c.deriveLocked(State{}, false)
	if opts.Pool != nil {
		opts.Pool.Subscribe(c.onPoolChange)
	}
	return c
}

// Subscribe registers fn for state change notifications.
func (c *Controller) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Track registers a component (typically a Lookup) stopped on Close.
func (c *Controller) Track(s interface{ Stop() }) {
	c.mu.Lock()
	c.closers = append(c.closers, s)
	c.mu.Unlock()
}

// Context is cancelled when the wizard closes or reopens.
func (c *Controller) Context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Open resets the wizard to seed. A blank RequestID gets a fresh one so
// uploads have a namespace before the request is persisted.
func (c *Controller) Open(seed State) {
	c.mu.Lock()
	c.resetLocked()
	if seed.RequestType == "" {
		seed.RequestType = DefaultState().RequestType
	}
	if seed.Category == "" {
		seed.Category = DefaultState().Category
	}
	if seed.TreeCount < 1 {
		seed.TreeCount = DefaultState().TreeCount
	}
	if seed.RequestID == "" {
		seed.RequestID = uuid.NewString()
	}
	resume := seed.CurrentStep
	c.state = seed.Clone()
	c.deriveLocked(State{}, true)
	c.state.CurrentStep = clamp(resume, len(c.active))
	requestID := c.state.RequestID
	generation := c.generation
	ctx := c.ctx
	c.mu.Unlock()

	c.logger.Info("wizard opened",
		logging.String(logging.FieldRequestID, requestID),
		logging.String(logging.FieldStep, c.Current().Key),
	)
	if c.opts.Pool != nil {
		go c.fetchPool(ctx, generation, requestID)
	}
	c.notify()
}

// fetchPool loads the photo pool for a freshly opened request. A failure is
// reported only while the same session is still open.
func (c *Controller) fetchPool(ctx context.Context, generation uint64, requestID string) {
	_, err := c.opts.Pool.Fetch(ctx, requestID)
	if err == nil {
		return
	}
	c.mu.Lock()
	if ctx.Err() != nil || generation != c.generation || requestID != c.state.RequestID {
		c.mu.Unlock()
		c.logger.Debug("stale photo fetch discarded", logging.String(logging.FieldRequestID, requestID))
		return
	}
	c.addNoticeLocked(NoticeWarn, "Could not load photos for this request; automatic matching is unavailable.", StepRecipients)
	c.mu.Unlock()
	c.notify()
}

// Close stops timers, invalidates in-flight effects, and resets the state.
func (c *Controller) Close() {
	c.mu.Lock()
	requestID := c.state.RequestID
	c.resetLocked()
	c.state = DefaultState()
	c.deriveLocked(State{}, false)
	c.mu.Unlock()

	c.logger.Info("wizard closed", logging.String(logging.FieldRequestID, requestID))
	c.notify()
}

func (c *Controller) resetLocked() {
	c.cancel()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.generation++
	c.logoKey = ""
	if c.logoDone != nil {
		close(c.logoDone)
		c.logoDone = nil
	}
	for _, s := range c.closers {
		s.Stop()
	}
	c.closers = nil
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Update applies patches and re-derives dependent state.
func (c *Controller) Update(patches ...Patch) {
	if len(patches) == 0 {
		return
	}
	c.mu.Lock()
	before := c.state.Clone()
	currentKey := c.currentKeyLocked()
	for _, patch := range patches {
		if patch != nil {
			patch(&c.state)
		}
	}
	c.deriveLocked(before, false)
	c.restoreStepLocked(currentKey, before.CurrentStep)
	c.mu.Unlock()
	c.notify()
}

// SetRecipients replaces the recipient list. It is the single sink for all
// ingestion producers.
func (c *Controller) SetRecipients(records []recipient.Record) {
	c.Update(SetRecipientList(records))
}

// deriveLocked recomputes amount, planted-by, steps, matching and the logo
// effect. force re-runs matching and the logo effect regardless of what
// changed.
func (c *Controller) deriveLocked(before State, force bool) {
	s := &c.state

	s.Amount = s.TreeCount * c.opts.Price(s.Category, s.RequestType)
	if s.Payment != nil {
		s.Payment.Amount = s.Amount
	}

	if !s.PlantedByExplicit || strings.TrimSpace(s.Messages.PlantedBy) == "" {
		s.PlantedByExplicit = false
		s.Messages.PlantedBy = defaultPlantedBy(*s)
	}

	c.active = ActiveSteps(c.opts.Steps, s.RequestType)

	if force || !reflect.DeepEqual(before.Recipients, s.Recipients) || before.RequestID != s.RequestID {
		c.matchLocked()
	}
	if force || logoID(before) != logoID(*s) || before.RequestID != s.RequestID {
		c.logoEffectLocked()
	}
}

func defaultPlantedBy(s State) string {
	switch {
	case s.Group != nil && strings.TrimSpace(s.Group.Name) != "":
		return strings.TrimSpace(s.Group.Name)
	case s.Sponsor != nil && strings.TrimSpace(s.Sponsor.Name) != "":
		return strings.TrimSpace(s.Sponsor.Name)
	case s.User != nil:
		return strings.TrimSpace(s.User.Name)
	}
	return ""
}

func (c *Controller) matchLocked() {
	var pool []string
	if c.opts.Pool != nil && c.state.RequestID != "" {
		pool = c.opts.Pool.Images(c.state.RequestID)
	}
	result := matcher.Match(pool, c.state.Recipients, *c.opts.Matching)
	c.state.Recipients = result.Records
	c.state.ShowExtendedColumns = result.ShowExtendedColumns
	if len(result.Assigned) > 0 {
		c.logger.Debug("photos matched",
			logging.String(logging.FieldRequestID, c.state.RequestID),
			logging.Int("assigned", len(result.Assigned)),
			logging.Int("ambiguous", len(result.Ambiguous)),
		)
	}
}

func (c *Controller) onPoolChange(requestID string, _ []string) {
	c.mu.Lock()
	if requestID != c.state.RequestID {
		c.mu.Unlock()
		return
	}
	c.matchLocked()
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) logoEffectLocked() {
	if c.logoDone != nil {
		close(c.logoDone)
		c.logoDone = nil
	}
	c.logoKey = ""
	s := &c.state
	if s.LogoFile == nil {
		s.LogoPending = false
		return
	}
	s.LogoURL = ""
	if s.RequestID == "" || c.opts.LogoUploader == nil {
		s.LogoPending = false
		return
	}

	key := s.LogoFile.ID + "|" + s.RequestID
	done := make(chan struct{})
	c.logoKey = key
	c.logoDone = done
	s.LogoPending = true

	logo := *s.LogoFile
	requestID := s.RequestID
	generation := c.generation
	ctx := c.ctx
	go func() {
		url, err := c.uploadLogo(ctx, logo, requestID)
		c.finishLogo(generation, key, done, url, err)
	}()
}

func (c *Controller) uploadLogo(ctx context.Context, logo LogoFile, requestID string) (string, error) {
	data, err := ingest.Downscale(logo.Name, logo.Data, c.opts.MaxLogoDimension)
	if err != nil {
		return "", services.Wrap(services.ErrIngestion, "wizard", "logo upload", "prepare logo", err)
	}
	return c.opts.LogoUploader.UploadFile(ctx, c.opts.LogoNamespace, logo.Name, bytes.NewReader(data), requestID)
}

func (c *Controller) finishLogo(generation uint64, key string, done chan struct{}, url string, err error) {
	c.mu.Lock()
	if generation != c.generation || key != c.logoKey {
		c.mu.Unlock()
		c.logger.Debug("stale logo upload discarded", logging.String("key", key))
		return
	}
	c.logoKey = ""
	c.logoDone = nil
	close(done)
	c.state.LogoPending = false
	if err != nil {
		c.addNoticeLocked(NoticeError, "Logo upload failed: "+err.Error(), StepMessages)
		logging.WarnWithContext(c.logger, "logo upload failed", "logo_upload",
			logging.String(logging.FieldRequestID, c.state.RequestID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "choose the logo again"),
			logging.String(logging.FieldImpact, "request will be saved without the new logo"),
		)
	} else {
		c.state.LogoURL = url
	}
	c.mu.Unlock()
	c.notify()
}

// AwaitLogo blocks until no logo upload is pending or ctx ends.
func (c *Controller) AwaitLogo(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.state.LogoPending || c.logoDone == nil {
			c.mu.Unlock()
			return nil
		}
		done := c.logoDone
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// AddNotice appends a dismissable notice and returns its id.
func (c *Controller) AddNotice(level, message, step string) string {
	c.mu.Lock()
	id := c.addNoticeLocked(level, message, step)
	c.mu.Unlock()
	c.notify()
	return id
}

func (c *Controller) addNoticeLocked(level, message, step string) string {
	id := uuid.NewString()
	c.state.Notices = append(c.state.Notices, Notice{
		ID:      id,
		Level:   level,
		Message: message,
		Step:    step,
		At:      c.opts.Now(),
	})
	return id
}

// Notices returns the pending notices.
func (c *Controller) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.state.Notices...)
}

// Dismiss removes the notice with id.
func (c *Controller) Dismiss(id string) {
	c.mu.Lock()
	kept := c.state.Notices[:0]
	for _, n := range c.state.Notices {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	c.state.Notices = kept
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	snapshot := c.state.Clone()
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
}
