package wizard

import (
	"fmt"

	"treegift/internal/logging"
	"treegift/internal/services"
)

// Action labels for the primary button.
const (
	ActionNext   = "Next"
	ActionSubmit = "Submit"
)

// ActiveSteps returns the steps enabled for the current request type.
func (c *Controller) ActiveSteps() []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Step(nil), c.active...)
}

// Current returns the step being shown, or the zero Step when no step is
// enabled for the request type.
func (c *Controller) Current() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.active) == 0 {
		return Step{}
	}
	return c.active[clamp(c.state.CurrentStep, len(c.active))]
}

// IsLast reports whether the current step is terminal.
func (c *Controller) IsLast() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentStep >= len(c.active)-1
}

// ActionLabel is "Submit" on the terminal step and "Next" elsewhere.
func (c *Controller) ActionLabel() string {
	if c.IsLast() {
		return ActionSubmit
	}
	return ActionNext
}

// Next validates the current step and advances. On the terminal step it is a
// no-op; submission is driven separately.
func (c *Controller) Next() error {
	c.mu.Lock()
	if len(c.active) == 0 {
		requestType := c.state.RequestType
		c.mu.Unlock()
		return services.Wrap(services.ErrValidation, "wizard", "next", fmt.Sprintf("no steps are enabled for %s requests", requestType), nil)
	}
	idx := clamp(c.state.CurrentStep, len(c.active))
	step := c.active[idx]
	if err := step.validate(c.state); err != nil {
		requestID := c.state.RequestID
		c.mu.Unlock()
		c.logger.Debug("step validation failed",
			logging.String(logging.FieldRequestID, requestID),
			logging.String(logging.FieldStep, step.Key),
			logging.Error(err),
		)
		return err
	}
	if idx < len(c.active)-1 {
		c.state.CurrentStep = idx + 1
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// Previous moves back one step. It never validates.
func (c *Controller) Previous() {
	c.mu.Lock()
	if c.state.CurrentStep > 0 {
		c.state.CurrentStep = clamp(c.state.CurrentStep-1, len(c.active))
	}
	c.mu.Unlock()
	c.notify()
}

// JumpTo moves to the active step at index i.
func (c *Controller) JumpTo(i int) error {
	c.mu.Lock()
	if i < 0 || i >= len(c.active) {
		n := len(c.active)
		c.mu.Unlock()
		return services.Wrap(services.ErrValidation, "wizard", "jump", fmt.Sprintf("step %d out of range (0-%d)", i, n-1), nil)
	}
	c.state.CurrentStep = i
	c.mu.Unlock()
	c.notify()
	return nil
}

// JumpToKey moves to the step with key. Steps disabled for the current
// request type are rejected.
func (c *Controller) JumpToKey(key string) error {
	c.mu.Lock()
	idx := indexOf(c.active, key)
	if idx < 0 {
		requestType := c.state.RequestType
		c.mu.Unlock()
		return services.Wrap(services.ErrValidation, "wizard", "jump", fmt.Sprintf("step %q is not available for %s requests", key, requestType), nil)
	}
	c.state.CurrentStep = idx
	c.mu.Unlock()
	c.notify()
	return nil
}

// Redirect moves to step key when it is active. Used after a failed submit.
func (c *Controller) Redirect(key string) {
	_ = c.JumpToKey(key)
}

func (c *Controller) currentKeyLocked() string {
	if len(c.active) == 0 {
		return ""
	}
	return c.active[clamp(c.state.CurrentStep, len(c.active))].Key
}

// restoreStepLocked keeps the user on the same step after the step list
// changes. A patch that moved CurrentStep explicitly wins; a step that
// disappeared leaves the index clamped.
func (c *Controller) restoreStepLocked(key string, previous int) {
	if c.state.CurrentStep != previous {
		c.state.CurrentStep = clamp(c.state.CurrentStep, len(c.active))
		return
	}
	if idx := indexOf(c.active, key); idx >= 0 {
		c.state.CurrentStep = idx
		return
	}
	c.state.CurrentStep = clamp(c.state.CurrentStep, len(c.active))
}

func clamp(i, n int) int {
	switch {
	case n <= 0 || i < 0:
		return 0
	case i >= n:
		return n - 1
	}
	return i
}
