package usecase

import (
	"errors"
	"testing"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
)

func TestControllerSingleSlot(t *testing.T) {
	c := NewController()

	run, err := c.Start()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Start(); !errors.Is(err, models.ErrRunActive) {
		t.Fatalf("second start err = %v, want ErrRunActive", err)
	}

	c.Finalize(run)
	if run.FinishedAt.IsZero() {
		t.Error("finalize should stamp the finish time")
	}
	if _, err := c.Start(); err != nil {
		t.Fatalf("slot not released: %v", err)
	}
}

func TestControllerCancelIdempotent(t *testing.T) {
	c := NewController()

	if _, ok := c.Cancel(); ok {
		t.Fatal("cancel with no active run must report false")
	}

	run, err := c.Start()
	if err != nil {
		t.Fatal(err)
	}

	id, ok := c.Cancel()
	if !ok || id != run.ID {
		t.Fatalf("cancel = (%s, %v), want (%s, true)", id, ok, run.ID)
	}
	if _, ok := c.Cancel(); !ok {
		t.Fatal("repeated cancel should still report the active run")
	}
	if !run.Cancelled() {
		t.Fatal("run not flagged")
	}
}

func TestProgressHubDropsSlowSubscribers(t *testing.T) {
	h := NewProgressHub()
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	// overflow the buffer; publishes must not block
	for i := 0; i < 100; i++ {
		h.Publish(models.Progress{RunID: "r", Stage: "evaluate", Completed: i, Total: 100})
	}

	p := <-sub
	if p.RunID != "r" {
		t.Fatalf("unexpected payload %+v", p)
	}
}
