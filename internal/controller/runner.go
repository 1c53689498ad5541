package controller

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Runner is the single cooperative scheduling loop: it owns a set of
// active controllers and calls Step on each in turn from one goroutine.
// Step never blocks, so a Runner never blocks either; an idle tick across
// every controller just means the loop spins (optionally backed off via
// idleSleep).
type Runner struct {
	mu     sync.Mutex
	active []*RequestController

	idleSleep time.Duration
	log       log.Logger

	stop chan struct{}
	done chan struct{}
}

// NewRunner returns a Runner that sleeps idleSleep between ticks where
// every active controller reported zero work, to avoid spinning a core
// while nothing is in flight.
func NewRunner(idleSleep time.Duration) *Runner {
	return &Runner{
		idleSleep: idleSleep,
		log:       log.New("module", "runner"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Track adds c to the set of controllers this Runner steps. Intended to
// be called once per logical request, right after the controller is
// armed.
func (r *Runner) Track(c *RequestController) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = append(r.active, c)
}

// Run loops Step across every tracked controller until Stop is called,
// pruning each controller once it reports closed. Run is meant to be
// called from its own goroutine; it blocks until Stop.
func (r *Runner) Run() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		if r.tick() == 0 {
			if r.idleSleep > 0 {
				time.Sleep(r.idleSleep)
			}
		}
	}
}

// tick steps every tracked controller once, prunes finished ones, and
// returns the total work performed.
func (r *Runner) tick() int {
	r.mu.Lock()
	controllers := make([]*RequestController, len(r.active))
	copy(controllers, r.active)
	r.mu.Unlock()

	total := 0
	live := make([]*RequestController, 0, len(controllers))
	for _, c := range controllers {
		total += c.Step()
		if !c.IsClosed() {
			live = append(live, c)
		}
	}

	r.mu.Lock()
	// r.active may have grown (via Track) while the steps above ran; keep
	// whatever was appended after the snapshot instead of discarding it.
	added := r.active[len(controllers):]
	r.active = append(live, added...)
	r.mu.Unlock()

	return total
}

// Stop ends the run loop and waits for it to exit.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.done
}
