// Package engagement runs the timed "watch to unlock" gate. A customer
// who lets the sponsored spot play to 100% earns a delivery-fee waiver;
// skipping closes the attempt with the fee still owed.
package engagement

import (
	"sync"
	"time"

	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	"github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

// Status is the externally visible gate state.
type Status struct {
	State       enums.EngagementState `json:"state"`
	Progress    float64               `json:"progress"`
	Interrupted bool                  `json:"interrupted,omitempty"`
}

// gate is one customer's attempt. Progress is a percentage in [0,100],
// monotonic while playing, preserved across pauses.
type gate struct {
	mu sync.Mutex

	cfg      config.EngagementConfig
	state    enums.EngagementState
	progress float64

	// interrupted marks a pause caused by the host losing visibility
	// rather than an explicit user action.
	interrupted bool

	// completionFired guards the waiver callback: the progress tick and
	// an external finished signal can race, first one wins.
	completionFired bool

	stopTicker chan struct{}

	onTerminal func(completed bool)
}

func newGate(cfg config.EngagementConfig, onTerminal func(completed bool)) *gate {
	return &gate{
		cfg:        cfg,
		state:      enums.EngagementStateIdle,
		onTerminal: onTerminal,
	}
}

func (g *gate) status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Status{State: g.state, Progress: g.progress, Interrupted: g.interrupted}
}

// play moves idle or paused to playing and starts the progress ticker.
// Playing again while already playing is a no-op.
func (g *gate) play() (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case enums.EngagementStatePlaying:
		return Status{State: g.state, Progress: g.progress}, nil
	case enums.EngagementStateCompleted, enums.EngagementStateSkipped:
		return Status{}, errors.New(errors.CodeStateConflict, "engagement attempt already closed")
	}

	g.state = enums.EngagementStatePlaying
	g.interrupted = false
	g.startTickerLocked()
	return Status{State: g.state, Progress: g.progress}, nil
}

// pause stops progress without discarding it. interrupted marks a
// visibility-loss pause.
func (g *gate) pause(interrupted bool) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != enums.EngagementStatePlaying {
		if g.state == enums.EngagementStatePaused {
			return Status{State: g.state, Progress: g.progress, Interrupted: g.interrupted}, nil
		}
		return Status{}, errors.New(errors.CodeStateConflict, "engagement is not playing")
	}

	g.stopTickerLocked()
	g.state = enums.EngagementStatePaused
	g.interrupted = interrupted
	return Status{State: g.state, Progress: g.progress, Interrupted: interrupted}, nil
}

// skip closes the attempt without a waiver from any non-terminal state.
func (g *gate) skip() (Status, error) {
	g.mu.Lock()

	if g.state.IsTerminal() {
		g.mu.Unlock()
		return Status{}, errors.New(errors.CodeStateConflict, "engagement attempt already closed")
	}

	g.stopTickerLocked()
	g.state = enums.EngagementStateSkipped
	status := Status{State: g.state, Progress: g.progress}
	g.mu.Unlock()

	if g.onTerminal != nil {
		g.onTerminal(false)
	}
	return status, nil
}

// finish handles an external "creative finished" signal. It races the
// progress tick; whichever declares completion first wins.
func (g *gate) finish() (Status, error) {
	g.mu.Lock()

	if g.state == enums.EngagementStateSkipped {
		g.mu.Unlock()
		return Status{}, errors.New(errors.CodeStateConflict, "engagement attempt already closed")
	}
	if g.state == enums.EngagementStateIdle {
		g.mu.Unlock()
		return Status{}, errors.New(errors.CodeStateConflict, "engagement never started")
	}

	fired := g.completeLocked()
	status := Status{State: g.state, Progress: g.progress}
	g.mu.Unlock()

	if fired && g.onTerminal != nil {
		g.onTerminal(true)
	}
	return status, nil
}

// advance adds elapsed playing time and reports whether this call
// crossed the completion line.
func (g *gate) advance(delta time.Duration) bool {
	g.mu.Lock()

	if g.state != enums.EngagementStatePlaying {
		g.mu.Unlock()
		return false
	}

	step := float64(delta) / float64(g.cfg.Duration) * 100
	next := g.progress + step
	if next > 100 {
		next = 100
	}
	// Monotonic: never move backwards.
	if next > g.progress {
		g.progress = next
	}

	fired := false
	if g.progress >= 100 {
		fired = g.completeLocked()
	}
	g.mu.Unlock()

	if fired && g.onTerminal != nil {
		g.onTerminal(true)
	}
	return fired
}

// completeLocked transitions to completed and reports whether this call
// was the first to do so. Callers hold g.mu.
func (g *gate) completeLocked() bool {
	if g.completionFired {
		return false
	}
	g.completionFired = true
	g.stopTickerLocked()
	g.state = enums.EngagementStateCompleted
	g.progress = 100
	return true
}

func (g *gate) startTickerLocked() {
	if g.stopTicker != nil {
		return
	}
	stop := make(chan struct{})
	g.stopTicker = stop

	go func() {
		ticker := time.NewTicker(g.cfg.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				g.advance(g.cfg.Tick)
			}
		}
	}()
}

func (g *gate) stopTickerLocked() {
	if g.stopTicker != nil {
		close(g.stopTicker)
		g.stopTicker = nil
	}
}

// teardown stops the ticker regardless of state.
func (g *gate) teardown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopTickerLocked()
}
