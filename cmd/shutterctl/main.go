// Command shutterctl drives the Arduino-hosted shutter over Firmata for
// calibration captures. It offers an interactive prompt (open, close, pulse)
// and a sweep mode that emits the commanded pulse train the analyzer fits
// against.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/shutter.report/internal/pulse"
	"github.com/banshee-data/shutter.report/internal/shutter"
)

var (
	device   = flag.String("device", "/dev/ttyACM0", "Serial device of the Arduino")
	pin      = flag.Int("pin", shutter.DefaultPin, "Digital pin wired to the shutter driver")
	invert   = flag.Bool("invert", true, "Open the shutter by driving the pin LOW")
	sweep    = flag.String("sweep", "", "Commanded durations in ms, comma separated; runs the sweep and exits")
	gap      = flag.Duration("gap", 2*time.Second, "Inter-pulse gap for sweep mode")
	slope    = flag.Float64("slope", 1.0, "Calibration slope for pre-compensation")
	loss     = flag.Float64("loss", 0.0, "Calibration loss in ms for pre-compensation")
	applyCal = flag.Bool("compensate", false, "Pre-compensate sweep durations with -slope/-loss")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("connecting to %s (pin D%d)...", *device, *pin)
	cmd, err := shutter.Open(*device, *pin, *invert)
	if err != nil {
		log.Fatalf("failed to open shutter: %v", err)
	}
	// Close also forces the shutter closed, on every exit path.
	defer cmd.Close()

	if *sweep != "" {
		if err := runSweep(ctx, cmd, *sweep); err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		return
	}

	repl(ctx, cmd)
}

func runSweep(ctx context.Context, cmd *shutter.Commander, list string) error {
	durations, err := pulse.ParseCSVFloat64s(list)
	if err != nil {
		return err
	}
	if len(durations) == 0 {
		return fmt.Errorf("empty sweep list")
	}

	if *applyCal {
		cal := pulse.Calibration{Slope: *slope, Intercept: -*loss}
		for i, ms := range durations {
			durations[i] = cal.Compensate(ms)
		}
		log.Printf("pre-compensated durations: %v", durations)
	}

	log.Printf("sweeping %d pulses, gap %s", len(durations), *gap)
	return cmd.Sweep(ctx, durations, *gap)
}

func repl(ctx context.Context, cmd *shutter.Commander) {
	fmt.Println("commands:")
	fmt.Println("  o           -> open shutter")
	fmt.Println("  c           -> close shutter")
	fmt.Println("  p <ms>      -> pulse open for <ms> milliseconds")
	fmt.Println("  s <ms,...>  -> sweep the listed durations")
	fmt.Println("  q           -> quit")

	scan := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scan.Scan() {
			return
		}
		parts := strings.Fields(scan.Text())
		if len(parts) == 0 {
			continue
		}

		var err error
		switch strings.ToLower(parts[0]) {
		case "o":
			if err = cmd.OpenShutter(); err == nil {
				fmt.Println("shutter: OPEN")
			}
		case "c":
			if err = cmd.CloseShutter(); err == nil {
				fmt.Println("shutter: CLOSED")
			}
		case "p":
			ms := 1000
			if len(parts) > 1 {
				if ms, err = strconv.Atoi(parts[1]); err != nil {
					fmt.Println("invalid ms; using default 1000")
					ms, err = 1000, nil
				}
			}
			fmt.Printf("pulsing open for %d ms...\n", ms)
			err = cmd.Pulse(ctx, time.Duration(ms)*time.Millisecond)
		case "s":
			if len(parts) < 2 {
				fmt.Println("usage: s 10,20,30")
				continue
			}
			err = runSweep(ctx, cmd, parts[1])
		case "q":
			fmt.Println("quitting")
			return
		default:
			fmt.Println("unknown command; use o, c, p <ms>, s <ms,...>, q")
		}
		if err != nil {
			log.Printf("command failed: %v", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
