// Package hold coordinates timed ON holds for multiple actuators (relay
// driven water pumps). Each actuator can be held on for a duration; a new
// hold arriving before expiry extends it (the old timer is cancelled and
// replaced). When a hold expires the actuator is switched off.
//
// A per-slot token fences stale timers: only the timer scheduled by the
// latest hold is allowed to switch the actuator off. Cancelling a
// time.Timer is best-effort - a timer already firing still runs - so the
// token check, not Stop(), is what guarantees at most one off per cycle.
package hold

import (
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Actuator is anything the manager can switch on and off.
type Actuator interface {
	On() error
	Off() error
}

// Result of a Hold call.
type Result string

const (
	// Started - the actuator went from idle to on.
	Started Result = "started"
	// Extended - the actuator was already on and its deadline was replaced.
	Extended Result = "extended"
)

// ErrInvalidIndex - actuator index out of range.
var ErrInvalidIndex = errors.New("hold: invalid actuator index")

// slot is the per-actuator bookkeeping: the current hold's token, the
// pending off timer and its deadline. A zero token means idle.
type slot struct {
	token    uint64
	timer    *time.Timer
	deadline time.Time
}

// Manager schedules timed holds for a set of actuators.
//
// The mutex guards the slot bookkeeping only. Actuator Off calls and the
// end callback run outside the lock, so a slow or failing actuator cannot
// block other slots.
type Manager struct {
	actuators []Actuator
	onBegin   func()
	onEnd     func()

	mu        sync.Mutex
	slots     []slot
	lastToken uint64
}

// New creates a hold manager over actuators, which are owned by the
// caller. onBegin is invoked on each idle to on transition, onEnd on each
// on to idle transition; either may be nil. Callbacks should be quick and
// must not call back into the manager.
func New(actuators []Actuator, onBegin, onEnd func()) *Manager {
	if onBegin == nil {
		onBegin = func() {}
	}
	if onEnd == nil {
		onEnd = func() {}
	}
	return &Manager{
		actuators: actuators,
		onBegin:   onBegin,
		onEnd:     onEnd,
		slots:     make([]slot, len(actuators)),
	}
}

// Hold switches actuator idx on for duration, or extends the current hold
// if one is active. Returns Started if the actuator went from idle to on,
// Extended if an active hold had its deadline replaced. source is a free
// form tag for the logs.
//
// If the actuator fails to switch on, the begin notification is rolled
// back with onEnd and the error is returned; the slot stays idle.
func (m *Manager) Hold(idx int, duration time.Duration, source string) (Result, error) {
	if idx < 0 || idx >= len(m.actuators) {
		return "", ErrInvalidIndex
	}
	if duration < 0 {
		duration = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := &m.slots[idx]

	// Cancel any existing timer. Best-effort: it may already be firing,
	// in which case the token check below neutralises it.
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	isIdle := s.token == 0
	if isIdle {
		m.onBegin()
		if err := m.actuators[idx].On(); err != nil {
			m.onEnd() // roll back the begin notification
			return "", errors.Wrapf(err, "hold: actuator %d on", idx)
		}
		log.Printf("[%s] on actuator %d for %s", source, idx, duration)
	} else {
		log.Printf("[%s] extend actuator %d for %s", source, idx, duration)
	}

	m.lastToken++
	token := m.lastToken
	s.token = token
	s.deadline = time.Now().Add(duration)
	s.timer = time.AfterFunc(duration, func() {
		m.finalize(idx, token, source)
	})

	if isIdle {
		return Started, nil
	}
	return Extended, nil
}

// Off forces actuator idx off now, cancelling any pending timer. Returns
// false if the actuator was already idle (no callback fires). onEnd is
// invoked even when the actuator fails to switch off.
func (m *Manager) Off(idx int, source string) (bool, error) {
	if idx < 0 || idx >= len(m.actuators) {
		return false, ErrInvalidIndex
	}

	m.mu.Lock()
	s := &m.slots[idx]
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.token == 0 {
		m.mu.Unlock()
		return false, nil
	}
	s.token = 0
	s.deadline = time.Time{}
	m.mu.Unlock()

	err := m.actuators[idx].Off()
	m.onEnd()
	if err != nil {
		return true, errors.Wrapf(err, "hold: actuator %d off", idx)
	}
	log.Printf("[%s] off actuator %d", source, idx)
	return true, nil
}

// OffAll forces every actuator off. Callbacks fire per previously-active
// slot; failures are logged and the remaining slots still switched off.
func (m *Manager) OffAll(source string) {
	for i := range m.actuators {
		if _, err := m.Off(i, source); err != nil {
			log.Println("Switching off failed:", err)
		}
	}
}

// Remaining returns the time left on the hold for actuator idx, zero if
// idle or out of range.
func (m *Manager) Remaining(idx int) time.Duration {
	if idx < 0 || idx >= len(m.actuators) {
		return 0
	}
	m.mu.Lock()
	s := m.slots[idx]
	m.mu.Unlock()
	if s.token == 0 {
		return 0
	}
	if r := time.Until(s.deadline); r > 0 {
		return r
	}
	return 0
}

// IsOn reports whether actuator idx has an active hold.
func (m *Manager) IsOn(idx int) bool {
	if idx < 0 || idx >= len(m.actuators) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[idx].token != 0
}

// finalize is the timer callback ending a hold at its deadline. Only the
// timer holding the current token may proceed - a stale timer, superseded
// by a later Hold or already ended by Off, returns without doing anything.
func (m *Manager) finalize(idx int, token uint64, source string) {
	m.mu.Lock()
	s := &m.slots[idx]
	if s.token != token {
		m.mu.Unlock()
		return // stale timer
	}
	s.token = 0
	s.timer = nil
	s.deadline = time.Time{}
	m.mu.Unlock()

	err := m.actuators[idx].Off()
	m.onEnd()
	if err != nil {
		// no caller waiting on a timer firing - log it
		log.Printf("[%s] actuator %d off failed: %s", source, idx, err)
		return
	}
	log.Printf("[%s] off actuator %d (hold expired)", source, idx)
}
