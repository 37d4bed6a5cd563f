package uart

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/edge-telemetry/internal/metrics"
	"github.com/nerrad567/edge-telemetry/internal/telemetry"
)

// State is the ingestion loop state.
type State int32

// Ingestion states. The numeric values are exported as a metric.
const (
	StateIdle State = iota
	StateConfiguring
	StateReading
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateReading:
		return "reading"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Default timings.
const (
	// DefaultWatchInterval is how often an open device checks for a
	// settings change while no data arrives.
	DefaultWatchInterval = time.Second

	// DefaultIdlePoll is how often a disabled reader re-checks the settings.
	DefaultIdlePoll = time.Second

	// MaxLineBytes bounds one record. Longer lines are split into
	// consecutive records of at most this size.
	MaxLineBytes = 4096
)

// SettingsSource is the part of config.Store the reader depends on.
type SettingsSource interface {
	Snapshot() (config.Settings, uint64)
	Token() uint64
}

// Sink receives every envelope the reader produces.
type Sink interface {
	Push(ctx context.Context, env telemetry.Envelope) error
}

// Opener opens and configures a serial device.
type Opener func(settings config.UARTSettings) (io.ReadCloser, error)

// WaitFunc sleeps for d, returning false if ctx ended first.
type WaitFunc func(ctx context.Context, d time.Duration) bool

// Options configures a Reader. Zero values select the defaults.
type Options struct {
	Open          Opener
	Wait          WaitFunc
	Now           func() time.Time
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	WatchInterval time.Duration
	IdlePoll      time.Duration
	Logger        *logging.Logger
	Metrics       *metrics.Metrics
}

// Reader owns the serial device and turns its lines into envelopes.
//
// Thread Safety:
//   - Run must be called from exactly one goroutine.
//   - State and LastError may be called from any goroutine.
type Reader struct {
	source  SettingsSource
	sink    Sink
	open    Opener
	wait    WaitFunc
	now     func() time.Time
	watch   time.Duration
	idle    time.Duration
	backoff *Backoff
	logger  *logging.Logger
	metrics *metrics.Metrics

	state   atomic.Int32
	errMu   sync.Mutex
	lastErr error

	// Session state, touched only by the Run goroutine.
	settings config.UARTSettings
	token    uint64
	dev      io.ReadCloser
}

// NewReader creates a Reader that reads according to source and pushes
// into sink.
func NewReader(source SettingsSource, sink Sink, opts Options) *Reader {
	if opts.Open == nil {
		opts.Open = OpenDevice
	}
	if opts.Wait == nil {
		opts.Wait = sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = DefaultWatchInterval
	}
	if opts.IdlePoll <= 0 {
		opts.IdlePoll = DefaultIdlePoll
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}

	return &Reader{
		source:  source,
		sink:    sink,
		open:    opts.Open,
		wait:    opts.Wait,
		now:     opts.Now,
		watch:   opts.WatchInterval,
		idle:    opts.IdlePoll,
		backoff: NewBackoff(opts.BaseDelay, opts.MaxDelay),
		logger:  opts.Logger.Component("uart"),
		metrics: opts.Metrics,
	}
}

// State returns the current loop state.
func (r *Reader) State() State {
	return State(r.state.Load())
}

// LastError returns the most recent open or read failure, or nil.
func (r *Reader) LastError() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.lastErr
}

func (r *Reader) setState(s State) {
	r.state.Store(int32(s))
	r.metrics.UARTState(int(s))
}

func (r *Reader) setErr(err error) {
	r.errMu.Lock()
	r.lastErr = err
	r.errMu.Unlock()
}

// Run drives the state machine until ctx is cancelled.
func (r *Reader) Run(ctx context.Context) {
	state := StateConfiguring
	for ctx.Err() == nil {
		r.setState(state)
		switch state {
		case StateIdle:
			state = r.runIdle(ctx)
		case StateConfiguring:
			state = r.runConfiguring()
		case StateReading:
			state = r.runReading(ctx)
		case StateBackoff:
			state = r.runBackoff(ctx)
		}
	}
	r.closeDevice()
	r.logger.Info("serial ingestion stopped")
}

func (r *Reader) runIdle(ctx context.Context) State {
	for r.source.Token() == r.token {
		if !r.wait(ctx, r.idle) {
			return StateIdle
		}
	}
	r.logger.Info("settings changed while idle")
	return StateConfiguring
}

func (r *Reader) runConfiguring() State {
	settings, token := r.source.Snapshot()
	r.settings = settings.UART
	r.token = token

	if !r.settings.Enabled {
		r.backoff.Reset()
		r.logger.Info("serial ingestion disabled", "token", token)
		return StateIdle
	}

	dev, err := r.open(r.settings)
	if err != nil {
		r.fail(err)
		return StateBackoff
	}

	r.dev = dev
	r.backoff.Reset()
	r.setErr(nil)
	r.logger.Info("serial device opened",
		"port", r.settings.Port,
		"baudrate", EffectiveBaudRate(r.settings.BaudRate),
		"token", token,
	)
	return StateReading
}

func (r *Reader) runReading(ctx context.Context) State {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.watchDevice(ctx, stop)
	}()
	defer func() {
		close(stop)
		wg.Wait()
		r.closeDevice()
	}()

	br := bufio.NewReaderSize(r.dev, MaxLineBytes)
	for {
		line, _, err := br.ReadLine()
		if len(line) > 0 {
			env := telemetry.NewUART(string(line), r.now())
			if pushErr := r.sink.Push(ctx, env); pushErr != nil {
				return StateReading
			}
			r.metrics.LineIngested()
		}

		if r.source.Token() != r.token {
			r.backoff.Reset()
			r.logger.Info("settings changed, reopening serial device")
			return StateConfiguring
		}

		if err != nil {
			if ctx.Err() != nil {
				return StateReading
			}
			if errors.Is(err, io.EOF) {
				err = ErrDeviceClosed
			}
			r.fail(fmt.Errorf("reading %s: %w", r.settings.Port, err))
			return StateBackoff
		}
	}
}

// watchDevice closes the device when ctx ends or the settings change, which
// unblocks a pending Read.
func (r *Reader) watchDevice(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(r.watch)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			r.dev.Close() //nolint:errcheck // unblocks the pending read
			return
		case <-ticker.C:
			if r.source.Token() != r.token {
				r.dev.Close() //nolint:errcheck // unblocks the pending read
				return
			}
		}
	}
}

func (r *Reader) runBackoff(ctx context.Context) State {
	d := r.backoff.Next()
	r.logger.Warn("serial device unavailable",
		"port", r.settings.Port,
		"error", r.LastError(),
		"retry_in", d.String(),
	)
	if !r.wait(ctx, d) {
		return StateBackoff
	}
	return StateConfiguring
}

func (r *Reader) fail(err error) {
	r.setErr(err)
	r.metrics.DeviceError()
}

func (r *Reader) closeDevice() {
	if r.dev != nil {
		r.dev.Close() //nolint:errcheck // may already be closed by the watcher
		r.dev = nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
