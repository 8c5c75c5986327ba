//go:build linux

package pump

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// relay levels (active-low)
const (
	levelOn  = 0
	levelOff = 1
)

// GPIOPump drives a relay-switched pump through one GPIO output line.
type GPIOPump struct {
	pin    int
	settle time.Duration
	line   *gpiocdev.Line

	mu sync.Mutex
	on bool
}

// NewGPIOPump requests the given line (BCM numbering) on gpiochip0 as an
// output, driven off.
func NewGPIOPump(pin int, settle time.Duration) (*GPIOPump, error) {
	line, err := gpiocdev.RequestLine("gpiochip0", pin, gpiocdev.AsOutput(levelOff))
	if err != nil {
		return nil, errors.Wrapf(err, "request gpio pin %d", pin)
	}
	return &GPIOPump{pin: pin, settle: settle, line: line}, nil
}

func (p *GPIOPump) set(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.on == on {
		return nil
	}
	level := levelOff
	if on {
		level = levelOn
	}
	if err := p.line.SetValue(level); err != nil {
		return errors.Wrapf(err, "set gpio pin %d", p.pin)
	}
	p.on = on
	// give the relay time to physically switch
	if p.settle > 0 {
		time.Sleep(p.settle)
	}
	return nil
}

// On turns the pump on.
func (p *GPIOPump) On() error {
	return p.set(true)
}

// Off turns the pump off.
func (p *GPIOPump) Off() error {
	return p.set(false)
}

// Close drives the pin off and releases the line.
func (p *GPIOPump) Close() error {
	// best effort: leave the relay off
	offErr := p.Off()
	if err := p.line.Close(); err != nil {
		return errors.Wrapf(err, "close gpio pin %d", p.pin)
	}
	return offErr
}
