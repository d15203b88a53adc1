package remote

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"
)

// Kernel input event constants from linux/input-event-codes.h.
const (
	evKey = 0x01

	keyValueUp     = 0
	keyValueDown   = 1
	keyValueRepeat = 2
)

// inputEvent mirrors the kernel's struct input_event on 64-bit platforms.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// EvdevSource reads key transitions from a /dev/input/eventN device node.
//
// The device read blocks in the kernel, so the reader runs in its own
// goroutine and Next bridges it to context cancellation. Close unblocks
// the reader.
type EvdevSource struct {
	path   string
	file   *os.File
	logger Logger

	once      sync.Once
	closeOnce sync.Once
	ch        chan KeyEvent
	errCh     chan error
	done      chan struct{}
}

// NewEvdevSource opens an input device node.
//
// Parameters:
//   - path: device node (e.g. /dev/input/event0)
//   - logger: Logger (may be nil)
//
// Returns:
//   - *EvdevSource: Open source; callers own Close
//   - error: If the device cannot be opened
func NewEvdevSource(path string, logger Logger) (*EvdevSource, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("remote: opening input device: %w", err)
	}
	return &EvdevSource{
		path:   path,
		file:   f,
		logger: logger,
		ch:     make(chan KeyEvent),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}, nil
}

// Next implements Source. It returns the next key-down or key-up
// transition, skipping repeats and non-key events.
func (s *EvdevSource) Next(ctx context.Context) (KeyEvent, error) {
	s.once.Do(func() { go s.read() })

	select {
	case <-ctx.Done():
		return KeyEvent{}, ctx.Err()
	case ev := <-s.ch:
		return ev, nil
	case err := <-s.errCh:
		return KeyEvent{}, err
	}
}

// read pumps kernel events into the channel until the device read fails
// (including Close during shutdown).
func (s *EvdevSource) read() {
	s.logger.Debug("reading input events", "device", s.path)

	for {
		var raw inputEvent
		if err := binary.Read(s.file, binary.LittleEndian, &raw); err != nil {
			s.errCh <- fmt.Errorf("remote: reading %s: %w", s.path, err)
			return
		}

		if raw.Type != evKey {
			continue
		}

		var state KeyState
		switch raw.Value {
		case keyValueDown:
			state = KeyDown
		case keyValueUp:
			state = KeyUp
		case keyValueRepeat:
			continue
		default:
			continue
		}

		ev := KeyEvent{
			Names: namesForCode(raw.Code),
			State: state,
			Time:  time.Unix(raw.Sec, raw.Usec*int64(time.Microsecond)),
		}
		select {
		case s.ch <- ev:
		case <-s.done:
			return
		}
	}
}

// Close closes the device node and stops the reader goroutine.
func (s *EvdevSource) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.file.Close()
}
