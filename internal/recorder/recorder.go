// Package recorder implements the voice-activated recording engine: an
// amplitude gate on the capture path, a ring buffer decoupling the
// capture source from file writing, and a consumer loop that drains
// the buffer into rotating output files.
package recorder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arkq/svar/internal/pcm"
	"github.com/arkq/svar/internal/rbuf"
	"github.com/arkq/svar/internal/writer"
)

// State is the lifecycle state of a recording session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Config holds the recording session parameters.
type Config struct {
	Format   pcm.Format
	Channels int
	Rate     int

	// ThresholdDB is the activation threshold in dBFS.
	ThresholdDB float64
	// Fadeout is how long the gate stays open after the last batch
	// that exceeded the threshold.
	Fadeout time.Duration
	// Split is the maximum duration of one output file; 0 disables
	// file rotation.
	Split time.Duration
	// Template is the output file name template, a Go time layout.
	// The writer's format extension is appended after a dot.
	Template string

	// Monitor reports the live signal level instead of recording.
	Monitor bool

	Logger *slog.Logger
}

// Session owns the ring buffer and activation gate and mediates
// between a capture backend (producer) and an output writer
// (consumer).
type Session struct {
	format      pcm.Format
	channels    int
	rate        int
	batchFrames int

	mu   sync.Mutex
	cond *sync.Cond
	rb   *rbuf.Buffer

	started bool
	state   State
	err     error

	gate    gate
	monitor bool

	backend Backend
	w       writer.Writer
	// whether the consumer currently has an output file open
	opened bool

	template string
	split    time.Duration

	log *slog.Logger
	now func() time.Time

	done chan struct{}
}

// New creates a recording session. The ring buffer is sized to absorb
// several capture batches of scheduling jitter between the producer
// and the consumer.
func New(cfg Config) *Session {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// At least one frame per batch, so absurdly low sampling rates
	// cannot produce a zero-capacity buffer.
	batch := cfg.Rate / 10
	if batch < 1 {
		batch = 1
	}

	s := &Session{
		format:      cfg.Format,
		channels:    cfg.Channels,
		rate:        cfg.Rate,
		batchFrames: batch,
		rb:          rbuf.New(batch*8, cfg.Format.Size(cfg.Channels)),
		gate: gate{
			thresholdDB: cfg.ThresholdDB,
			hold:        cfg.Fadeout,
		},
		monitor:  cfg.Monitor,
		template: cfg.Template,
		split:    cfg.Split,
		log:      log,
		now:      time.Now,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Format returns the session's PCM sample format.
func (s *Session) Format() pcm.Format {
	return s.format
}

// Channels returns the session's channel count.
func (s *Session) Channels() int {
	return s.channels
}

// Rate returns the session's sampling rate in Hz.
func (s *Session) Rate() int {
	return s.rate
}

// BatchFrames returns the nominal per-wakeup capture batch size in
// frames: 100 ms of audio, but never less than one frame.
func (s *Session) BatchFrames() int {
	return s.batchFrames
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether the session has been started and not yet
// stopped.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Process handles one captured PCM batch on the producer path: it runs
// the activation gate and, when the gate is open, copies the batch
// into the ring buffer in chunks bounded by the linear write capacity,
// waking the consumer after every chunk. It never blocks: when the
// buffer is full, the newest frames are dropped. The return value
// reports whether capture should continue.
func (s *Session) Process(buf []byte) bool {
	level := pcm.RMSDB(s.format, buf)

	if s.monitor {
		// Dump the current RMS level to the stdout.
		fmt.Printf("\rSignal RMS: %5.1f dB\r", level)
		return s.Running()
	}

	if !s.gate.process(level, s.now()) {
		return s.Running()
	}

	frameSize := s.format.Size(s.channels)
	frames := len(buf) / frameSize

	for frames > 0 {
		s.mu.Lock()
		n := s.rb.WriteCapacity()
		window := s.rb.WriteWindow()
		s.mu.Unlock()

		if n == 0 {
			s.log.Warn("PCM buffer overrun, dropping frames", "frames", frames)
			break
		}
		if n > frames {
			n = frames
		}

		// Only the producer advances the write cursor, so the window
		// is stable and the copy itself needs no lock.
		copy(window, buf[:n*frameSize])

		s.mu.Lock()
		s.rb.CommitWrite(n)
		s.mu.Unlock()

		buf = buf[n*frameSize:]
		frames -= n

		// Wake up the consumer to drain the buffer or to close the
		// current output file if the split time was exceeded.
		s.cond.Signal()
	}

	return s.Running()
}

// Run starts the session: it spawns the consumer loop, runs the
// backend's capture until it is stopped, and then drains and joins the
// consumer. It returns the first fatal error, from either side.
func (s *Session) Run(b Backend, w writer.Writer) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("session already %s", s.state)
	}
	s.state = StateRunning
	s.started = true
	s.backend = b
	s.w = w
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.consume()

	// Blocks until the session is stopped or capture fails.
	err := b.Start()

	s.mu.Lock()
	s.started = false
	s.state = StateStopping
	if err != nil && s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.cond.Broadcast()

	<-s.done

	s.mu.Lock()
	s.state = StateStopped
	err = s.err
	s.mu.Unlock()

	if s.monitor {
		fmt.Println()
	}
	return err
}

// Stop requests a cooperative shutdown: it flips the started flag,
// stops the backend so the producer returns, and wakes the consumer.
// It is safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.state = StateStopping
	b := s.backend
	s.mu.Unlock()

	if b != nil {
		b.Stop()
	}
	s.cond.Broadcast()
}

// fail records the first fatal error and shuts the session down.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.Stop()
}

// consume is the session's consumer loop. It drains the ring buffer
// into the output writer, opening files lazily and rotating them when
// the split period elapses.
func (s *Session) consume() {
	defer close(s.done)

	// In the monitor mode there is nothing to consume.
	if s.monitor {
		return
	}

	var lastWrite time.Time

	for {
		s.mu.Lock()
		for s.started && s.rb.ReadCapacity() == 0 {
			// Wait for the producer to fill the buffer. On every
			// wakeup, including spurious ones, check whether the
			// current output file has outlived the split period, so
			// silence cannot extend a file past its boundary.
			s.cond.Wait()
			if s.split > 0 && s.opened && s.now().Sub(lastWrite) > s.split {
				s.closeOutput()
			}
		}
		frames := s.rb.ReadCapacity()
		window := s.rb.ReadWindow()
		stopped := !s.started
		s.mu.Unlock()

		if frames == 0 {
			if stopped {
				break
			}
			continue
		}

		// The split period may also lapse while data is pending, e.g.
		// when the gate reopens after a long silence. Rotate before
		// the write so a batch never lands in an outlived file.
		if s.split > 0 && s.opened && s.now().Sub(lastWrite) > s.split {
			s.closeOutput()
		}

		if !s.opened {
			name := s.now().Format(s.template) + "." + s.w.Format().Extension()
			s.log.Info("Creating new output file", "name", name)
			if err := s.w.Open(name); err != nil {
				s.fail(fmt.Errorf("failed to open writer: %w", err))
				break
			}
			s.opened = true
		}

		lastWrite = s.now()
		if _, err := s.w.Write(window, frames); err != nil {
			s.fail(fmt.Errorf("failed to write audio: %w", err))
			break
		}

		s.mu.Lock()
		s.rb.CommitRead(frames)
		s.mu.Unlock()
	}

	if s.opened {
		s.closeOutput()
	}
}

// closeOutput closes the current output file, logging but otherwise
// ignoring close errors.
func (s *Session) closeOutput() {
	s.log.Info("Closing current output file")
	if err := s.w.Close(); err != nil {
		s.log.Error("Failed to close output file", "error", err)
	}
	s.opened = false
}
