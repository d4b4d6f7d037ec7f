package shutter

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestInitialize(t *testing.T) {
	mock := &MockSerialPort{}
	c := NewCommander(mock, DefaultPin, true)
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// Pin mode for D8, then the forced-close digital message; invert means
	// closed drives the pin HIGH. D8 lives on digital port 1, bit 0.
	want := []byte{
		firmataSetPinMode, 8, firmataPinModeOutput,
		firmataDigitalMsg | 0x01, 0x01, 0x00,
	}
	if !bytes.Equal(mock.WrittenData, want) {
		t.Errorf("wrote % X, want % X", mock.WrittenData, want)
	}
}

func TestOpenCloseShutter(t *testing.T) {
	testCases := []struct {
		name      string
		pin       int
		invert    bool
		wantOpen  []byte
		wantClose []byte
	}{
		{
			// Non-inverted D8: open drives HIGH.
			"pin8_active_high", 8, false,
			[]byte{firmataDigitalMsg | 0x01, 0x01, 0x00},
			[]byte{firmataDigitalMsg | 0x01, 0x00, 0x00},
		},
		{
			// Inverted logic swaps the two levels.
			"pin8_active_low", 8, true,
			[]byte{firmataDigitalMsg | 0x01, 0x00, 0x00},
			[]byte{firmataDigitalMsg | 0x01, 0x01, 0x00},
		},
		{
			// D13 is port 1 bit 5.
			"pin13_active_high", 13, false,
			[]byte{firmataDigitalMsg | 0x01, 0x20, 0x00},
			[]byte{firmataDigitalMsg | 0x01, 0x00, 0x00},
		},
		{
			// D7 is port 0 bit 7, which lands in the second payload byte.
			"pin7_high_bit", 7, false,
			[]byte{firmataDigitalMsg | 0x00, 0x00, 0x01},
			[]byte{firmataDigitalMsg | 0x00, 0x00, 0x00},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &MockSerialPort{}
			c := NewCommander(mock, tc.pin, tc.invert)

			if err := c.OpenShutter(); err != nil {
				t.Fatalf("OpenShutter: %v", err)
			}
			if !bytes.Equal(mock.WrittenData, tc.wantOpen) {
				t.Errorf("open wrote % X, want % X", mock.WrittenData, tc.wantOpen)
			}

			mock.WrittenData = nil
			if err := c.CloseShutter(); err != nil {
				t.Fatalf("CloseShutter: %v", err)
			}
			if !bytes.Equal(mock.WrittenData, tc.wantClose) {
				t.Errorf("close wrote % X, want % X", mock.WrittenData, tc.wantClose)
			}
		})
	}
}

func TestPulse(t *testing.T) {
	mock := &MockSerialPort{}
	c := NewCommander(mock, 8, false)

	start := time.Now()
	if err := c.Pulse(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Pulse: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 20*time.Millisecond {
		t.Errorf("pulse returned after %v, want >= 20ms", elapsed)
	}
	// Open message followed by close message.
	want := []byte{
		firmataDigitalMsg | 0x01, 0x01, 0x00,
		firmataDigitalMsg | 0x01, 0x00, 0x00,
	}
	if !bytes.Equal(mock.WrittenData, want) {
		t.Errorf("wrote % X, want open then close % X", mock.WrittenData, want)
	}
}

func TestPulseCancelledStillCloses(t *testing.T) {
	mock := &MockSerialPort{}
	c := NewCommander(mock, 8, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Pulse(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Pulse = %v, want context.Canceled", err)
	}
	// The close message must have gone out despite the cancellation.
	wantClose := []byte{firmataDigitalMsg | 0x01, 0x00, 0x00}
	if !bytes.HasSuffix(mock.WrittenData, wantClose) {
		t.Errorf("wrote % X, want trailing close message % X", mock.WrittenData, wantClose)
	}
}

func TestSweep(t *testing.T) {
	mock := &MockSerialPort{}
	c := NewCommander(mock, 8, false)

	if err := c.Sweep(context.Background(), []float64{5, 5, 5}, time.Millisecond); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	// Three pulses, each an open and a close message of 3 bytes.
	if got := len(mock.WrittenData); got != 18 {
		t.Errorf("wrote %d bytes, want 18 (3 pulses x 2 messages)", got)
	}
}

func TestSweepCancelledInGap(t *testing.T) {
	mock := &MockSerialPort{}
	c := NewCommander(mock, 8, false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := c.Sweep(ctx, []float64{1, 1}, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sweep = %v, want context.Canceled", err)
	}
}

func TestCommanderClose(t *testing.T) {
	mock := &MockSerialPort{}
	c := NewCommander(mock, 8, false)
	if err := c.OpenShutter(); err != nil {
		t.Fatal(err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !mock.Closed {
		t.Error("serial port not closed")
	}
	// The last digital message forces the shutter closed.
	wantClose := []byte{firmataDigitalMsg | 0x01, 0x00, 0x00}
	if !bytes.HasSuffix(mock.WrittenData, wantClose) {
		t.Errorf("wrote % X, want trailing close message % X", mock.WrittenData, wantClose)
	}
}

func TestWriteErrorPropagates(t *testing.T) {
	wantErr := errors.New("device unplugged")
	mock := &MockSerialPort{WriteError: wantErr}
	c := NewCommander(mock, 8, false)

	if err := c.OpenShutter(); !errors.Is(err, wantErr) {
		t.Errorf("OpenShutter = %v, want wrapped write error", err)
	}
	if err := c.Initialize(); !errors.Is(err, wantErr) {
		t.Errorf("Initialize = %v, want wrapped write error", err)
	}
}
