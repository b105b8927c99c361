package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
)

// Controller enforces the single-active-run rule. Start claims the slot,
// Finalize releases it; Cancel is idempotent and never blocks on the
// running pipeline.
type Controller struct {
	mu     sync.Mutex
	active *models.RunContext
	seq    int64
}

// NewController creates a run controller.
func NewController() *Controller {
	return &Controller{}
}

// Start claims the run slot and returns a fresh run context. Returns
// ErrRunActive while another run is unfinalized.
func (c *Controller) Start() (*models.RunContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, models.ErrRunActive
	}

	c.seq++
	run := models.NewRunContext(fmt.Sprintf("run-%d-%d", time.Now().UnixMilli(), c.seq))
	c.active = run
	return run, nil
}

// Cancel flags the active run, if any. Returns the run ID and whether a run
// was flagged. Safe to call repeatedly.
func (c *Controller) Cancel() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return "", false
	}
	c.active.Cancel()
	return c.active.ID, true
}

// Active returns the current run context, or nil.
func (c *Controller) Active() *models.RunContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Finalize stamps the finish time and releases the slot. Runs on every exit
// path of a pipeline, success or not.
func (c *Controller) Finalize(run *models.RunContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run.FinishedAt = time.Now()
	if c.active == run {
		c.active = nil
	}
}
