package subscriptions

import "context"

// Controller is the cancellation handle owned by the Manager for a single
// live subscription. It is one-shot: once cancelled (by eviction or an
// explicit leave) it stays cancelled, and a later visit for the same session
// allocates a fresh Controller rather than reusing this one.
//
// Collaborators receive the Controller to bind their work to it (typically by
// deriving from Context()), but only the Manager decides when to cancel.
type Controller struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newController() *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{ctx: ctx, cancel: cancel}
}

// Context returns the context that is cancelled when the subscription is
// evicted or left. Pass it to the unit of work serving this session.
func (c *Controller) Context() context.Context {
	return c.ctx
}

// Done returns a channel that's closed when the controller is cancelled.
func (c *Controller) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Cancel signals the owning work to stop. Safe to call more than once.
func (c *Controller) Cancel() {
	c.cancel()
}

// Cancelled reports whether Cancel has been called.
func (c *Controller) Cancelled() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}
