// Package shutter drives the Arduino-hosted shutter over a serial link using
// Firmata digital messages. It implements the commander side of the
// calibration loop: emitting pulse trains of known commanded durations and
// pre-compensating requested exposures with a fitted calibration.
package shutter

import (
	"io"
)

// SerialPorter defines the minimal interface needed for a serial port.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
