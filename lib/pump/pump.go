// Package pump drives relay-switched water pumps.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
//
// The relay boards are assumed active-low: line low -> pump on,
// line high -> pump off. Most cheap Raspberry Pi relay modules use
// this convention.
package pump

// Pump switches one water pump on or off.
type Pump interface {
	// On turns the pump on. No-ops if already on.
	On() error

	// Off turns the pump off. No-ops if already off.
	Off() error

	// Close drives the pump off and releases GPIO resources.
	Close() error
}
