// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package trigger turns console input into persist requests for the
// interactive calibration save.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	serial "github.com/jacobsa/go-serial/serial"
)

// Watch reads r until it fails and emits one event per burst of input.
// Input arriving while an event is still pending is discarded, so a run of
// keystrokes yields a single request. The channel is closed when r ends.
// When ctx is done and r is an io.Closer, r is closed to unblock the reader.
func Watch(ctx context.Context, r io.Reader) <-chan struct{} {
	out := make(chan struct{}, 1)

	if c, ok := r.(io.Closer); ok {
		go func() {
			<-ctx.Done()
			c.Close()
		}()
	}

	go func() {
		defer close(out)
		buf := make([]byte, 64)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case out <- struct{}{}:
				default:
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					log.Printf("trigger: read error: %v", err)
				}
				return
			}
		}
	}()
	return out
}

// OpenSerial opens the serial console used for save requests.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open trigger serial port %s: %w", port, err)
	}
	log.Printf("trigger: serial port opened on %s at %d baud", port, baud)
	return p, nil
}
