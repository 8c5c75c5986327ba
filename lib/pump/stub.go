//go:build !linux

package pump

import (
	"time"

	"github.com/pkg/errors"
)

// GPIOPump is not available on non-Linux platforms.
type GPIOPump struct{}

// NewGPIOPump returns an error on non-Linux platforms.
func NewGPIOPump(pin int, settle time.Duration) (*GPIOPump, error) {
	return nil, errors.New("pump: gpio not supported on this platform (requires Linux)")
}

func (p *GPIOPump) On() error {
	return errors.New("pump: gpio not supported")
}

func (p *GPIOPump) Off() error {
	return errors.New("pump: gpio not supported")
}

func (p *GPIOPump) Close() error {
	return nil
}
