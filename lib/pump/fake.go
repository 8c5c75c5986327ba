package pump

import "sync"

// FakePump is a test double recording on/off transitions.
type FakePump struct {
	mu sync.Mutex

	// Ons and Offs count state transitions.
	Ons  int
	Offs int

	// OnError/OffError, if set, are returned by On/Off.
	OnError  error
	OffError error

	on     bool
	closed bool
}

// NewFakePump creates a FakePump for testing.
func NewFakePump() *FakePump {
	return &FakePump{}
}

// On records an on transition.
func (f *FakePump) On() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OnError != nil {
		return f.OnError
	}
	if !f.on {
		f.on = true
		f.Ons++
	}
	return nil
}

// Off records an off transition.
func (f *FakePump) Off() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OffError != nil {
		return f.OffError
	}
	if f.on {
		f.on = false
		f.Offs++
	}
	return nil
}

// IsOn reports the last commanded state.
func (f *FakePump) IsOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

// Counts returns the on/off transition counts.
func (f *FakePump) Counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Ons, f.Offs
}

// Close marks the pump closed.
func (f *FakePump) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.on = false
	return nil
}

// Closed reports whether Close was called.
func (f *FakePump) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
