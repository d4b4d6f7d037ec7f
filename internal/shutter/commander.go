package shutter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Firmata message framing for digital output.
const (
	firmataSetPinMode    = 0xF4
	firmataDigitalMsg    = 0x90 // OR'd with the digital port number
	firmataPinModeOutput = 0x01
)

// DefaultPin is the digital pin wired to the shutter driver (D8).
const DefaultPin = 8

// Commander drives a single shutter pin over a Firmata serial link. It
// tracks the state of the pin's digital port so each write carries the full
// port bitmask, as the protocol requires.
type Commander struct {
	mu     sync.Mutex
	port   SerialPorter
	pin    int
	invert bool // open drives the pin LOW (matches the rig's driver board)
	mask   byte // current bitmask of the pin's digital port
}

// NewCommander wraps an open serial port. invert selects which logic level
// opens the shutter; the reference rig opens on LOW.
func NewCommander(port SerialPorter, pin int, invert bool) *Commander {
	return &Commander{port: port, pin: pin, invert: invert}
}

// Open dials the serial device and prepares the shutter pin: mode set to
// output and the shutter forced closed.
func Open(device string, pin int, invert bool) (*Commander, error) {
	mode := &serial.Mode{
		BaudRate: 57600, // Firmata default
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial device %s: %w", device, err)
	}
	c := NewCommander(port, pin, invert)
	if err := c.Initialize(); err != nil {
		port.Close()
		return nil, err
	}
	return c, nil
}

// Initialize sets the pin to output mode and forces the shutter closed.
func (c *Commander) Initialize() error {
	c.mu.Lock()
	_, err := c.port.Write([]byte{firmataSetPinMode, byte(c.pin), firmataPinModeOutput})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to set pin mode: %w", err)
	}
	return c.CloseShutter()
}

// writeDigital sets the shutter pin to the given level, sending the full
// digital-port bitmask split into 7-bit payload bytes.
func (c *Commander) writeDigital(high bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	portNum := byte(c.pin >> 3)
	bit := byte(1 << (uint(c.pin) & 7))
	if high {
		c.mask |= bit
	} else {
		c.mask &^= bit
	}

	msg := []byte{firmataDigitalMsg | portNum, c.mask & 0x7F, c.mask >> 7}
	if _, err := c.port.Write(msg); err != nil {
		return fmt.Errorf("failed to write digital message: %w", err)
	}
	return nil
}

// OpenShutter drives the pin to its open level.
func (c *Commander) OpenShutter() error {
	return c.writeDigital(!c.invert)
}

// CloseShutter drives the pin to its closed level.
func (c *Commander) CloseShutter() error {
	return c.writeDigital(c.invert)
}

// Pulse opens the shutter for the given duration and closes it again. The
// close is attempted even when the wait is cancelled, so the shutter is
// never left open.
func (c *Commander) Pulse(ctx context.Context, d time.Duration) error {
	if err := c.OpenShutter(); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return c.CloseShutter()
	case <-ctx.Done():
		if err := c.CloseShutter(); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// Sweep emits one pulse per commanded duration (milliseconds), separated by
// the inter-pulse gap. This is the pulse train the analyzer's calibration
// step expects as ground truth.
func (c *Commander) Sweep(ctx context.Context, durationsMs []float64, gap time.Duration) error {
	for i, ms := range durationsMs {
		if err := c.Pulse(ctx, time.Duration(ms*float64(time.Millisecond))); err != nil {
			return fmt.Errorf("pulse %d (%.1fms): %w", i+1, ms, err)
		}
		if i == len(durationsMs)-1 {
			break
		}
		t := time.NewTimer(gap)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// Close forces the shutter closed and releases the serial port.
func (c *Commander) Close() error {
	closeErr := c.CloseShutter()
	if err := c.port.Close(); err != nil {
		return err
	}
	return closeErr
}
