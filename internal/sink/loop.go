package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/edge-telemetry/internal/metrics"
	"github.com/nerrad567/edge-telemetry/internal/telemetry"
)

// State is the sink loop state.
type State int32

// Sink states. The numeric values are exported as a metric.
const (
	StateDisabled State = iota
	StateConnecting
	StateActive
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Default timings.
const (
	DefaultTick           = 100 * time.Millisecond
	DefaultBackoff        = 10 * time.Second
	DefaultConnectTimeout = 15 * time.Second
	DefaultSendTimeout    = 10 * time.Second
)

// Transport is one established session to a destination.
type Transport interface {
	Send(ctx context.Context, env telemetry.Envelope) error
	Close() error
}

// Kind builds transports for one destination type from the settings.
type Kind interface {
	Name() string
	Enabled(s config.Settings) bool
	Connect(ctx context.Context, s config.Settings) (Transport, error)
}

// SessionChecker is implemented by transports that can tell when their
// session dropped without a send failing.
type SessionChecker interface {
	IsConnected() bool
}

// SettingsSource is the part of config.Store the loop depends on.
type SettingsSource interface {
	Snapshot() (config.Settings, uint64)
	Token() uint64
}

// SnapshotFunc returns the wire form of a fresh host metrics snapshot.
type SnapshotFunc func() []byte

// Options configures a Loop. Zero values select the defaults.
type Options struct {
	Tick           time.Duration
	Backoff        time.Duration
	ConnectTimeout time.Duration
	SendTimeout    time.Duration

	// After replaces time.After for backoff waits.
	After func(d time.Duration) <-chan time.Time
	Now   func() time.Time

	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// Status is a point-in-time view of a loop for the dashboard.
type Status struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Token     uint64 `json:"token"`
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
	Sent      uint64 `json:"sent"`
	Failures  uint64 `json:"failures"`
	Discarded uint64 `json:"discarded"`
	LastError string `json:"last_error,omitempty"`
}

// Loop moves envelopes from one queue to one destination.
//
// Thread Safety:
//   - Run must be called from exactly one goroutine.
//   - State and Status may be called from any goroutine.
type Loop struct {
	kind     Kind
	queue    *telemetry.Queue
	source   SettingsSource
	snapshot SnapshotFunc

	tick           time.Duration
	backoffDelay   time.Duration
	connectTimeout time.Duration
	sendTimeout    time.Duration
	after          func(d time.Duration) <-chan time.Time
	now            func() time.Time
	logger         *logging.Logger
	metrics        *metrics.Metrics

	state     atomic.Int32
	token     atomic.Uint64
	sent      atomic.Uint64
	failures  atomic.Uint64
	discarded atomic.Uint64
	errMu     sync.Mutex
	lastErr   error

	// Session state, touched only by the Run goroutine.
	settings     config.Settings
	transport    Transport
	nextSnapshot time.Time
}

// NewLoop creates a loop for kind draining queue. snapshot may be nil, in
// which case no metrics snapshots are emitted.
func NewLoop(kind Kind, queue *telemetry.Queue, source SettingsSource, snapshot SnapshotFunc, opts Options) *Loop {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.After == nil {
		opts.After = time.After
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}

	return &Loop{
		kind:           kind,
		queue:          queue,
		source:         source,
		snapshot:       snapshot,
		tick:           opts.Tick,
		backoffDelay:   opts.Backoff,
		connectTimeout: opts.ConnectTimeout,
		sendTimeout:    opts.SendTimeout,
		after:          opts.After,
		now:            opts.Now,
		logger:         opts.Logger.Component("sink").With("sink", kind.Name()),
		metrics:        opts.Metrics,
	}
}

// Name returns the sink kind name.
func (l *Loop) Name() string {
	return l.kind.Name()
}

// State returns the current loop state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Status returns counters and state for reporting.
func (l *Loop) Status() Status {
	st := Status{
		Name:      l.kind.Name(),
		State:     l.State().String(),
		Token:     l.token.Load(),
		Queued:    l.queue.Len(),
		Capacity:  l.queue.Cap(),
		Sent:      l.sent.Load(),
		Failures:  l.failures.Load(),
		Discarded: l.discarded.Load(),
	}
	l.errMu.Lock()
	if l.lastErr != nil {
		st.LastError = l.lastErr.Error()
	}
	l.errMu.Unlock()
	return st
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	l.metrics.SinkState(l.kind.Name(), int(s))
}

// Run drives the state machine until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	state := StateConnecting
	for ctx.Err() == nil {
		l.setState(state)
		switch state {
		case StateDisabled:
			state = l.runDisabled(ctx)
		case StateConnecting:
			state = l.runConnecting(ctx)
		case StateActive:
			state = l.runActive(ctx)
		case StateBackoff:
			state = l.runBackoff(ctx)
		}
	}
	l.teardown()
	l.logger.Info("sink stopped")
}

// runDisabled discards everything that arrives and re-checks the settings
// every tick.
func (l *Loop) runDisabled(ctx context.Context) State {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return StateDisabled
		case <-l.queue.C():
			l.discard(1 + l.queue.Discard())
		case <-ticker.C:
			if l.stale() {
				return StateConnecting
			}
		}
	}
}

func (l *Loop) runConnecting(ctx context.Context) State {
	settings, token := l.source.Snapshot()
	l.settings = settings
	l.token.Store(token)

	if !l.kind.Enabled(settings) {
		l.logger.Info("sink disabled", "token", token)
		return StateDisabled
	}

	cctx, cancel := context.WithTimeout(ctx, l.connectTimeout)
	t, err := l.kind.Connect(cctx, settings)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return StateConnecting
		}
		if l.stale() {
			l.logger.Info("settings changed while connecting", "error", err)
			return StateConnecting
		}
		l.fail(err)
		return StateBackoff
	}

	l.transport = t
	if l.stale() {
		l.logger.Info("settings changed while connecting")
		l.teardown()
		return StateConnecting
	}

	l.nextSnapshot = l.now().Add(settings.Interval())
	l.logger.Info("sink connected", "token", token, "interval", settings.Interval().String())
	return StateActive
}

// runActive polls on a fixed tick: check the settings, drain the queue
// without blocking, then emit a metrics snapshot if one is due.
func (l *Loop) runActive(ctx context.Context) State {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return StateActive
		case <-ticker.C:
		}

		if l.stale() {
			l.reconfigure()
			return StateConnecting
		}

		if sc, ok := l.transport.(SessionChecker); ok && !sc.IsConnected() {
			l.fail(ErrSessionLost)
			l.teardown()
			return StateBackoff
		}

		for {
			env, ok := l.queue.TryPop()
			if !ok {
				break
			}
			if l.stale() {
				l.discard(1)
				l.reconfigure()
				return StateConnecting
			}
			if err := l.send(ctx, env); err != nil {
				l.fail(err)
				l.teardown()
				return StateBackoff
			}
		}
		l.metrics.QueueDepth(l.kind.Name(), l.queue.Len())

		if l.snapshot != nil && !l.now().Before(l.nextSnapshot) {
			env := telemetry.NewMonitor(l.snapshot(), l.now())
			if err := l.send(ctx, env); err != nil {
				l.fail(err)
				l.teardown()
				return StateBackoff
			}
			l.nextSnapshot = l.now().Add(l.settings.Interval())
		}
	}
}

// runBackoff waits the fixed delay while discarding arrivals.
func (l *Loop) runBackoff(ctx context.Context) State {
	l.logger.Warn("sink unavailable",
		"error", l.lastError(),
		"retry_in", l.backoffDelay.String(),
	)

	done := l.after(l.backoffDelay)
	for {
		select {
		case <-ctx.Done():
			return StateBackoff
		case <-l.queue.C():
			l.discard(1 + l.queue.Discard())
		case <-done:
			return StateConnecting
		}
	}
}

func (l *Loop) send(ctx context.Context, env telemetry.Envelope) error {
	sctx, cancel := context.WithTimeout(ctx, l.sendTimeout)
	defer cancel()

	if err := l.transport.Send(sctx, env); err != nil {
		return err
	}
	l.sent.Add(1)
	l.metrics.Sent(l.kind.Name())
	return nil
}

func (l *Loop) stale() bool {
	return l.source.Token() != l.token.Load()
}

// reconfigure drops the old session and whatever was queued for it.
func (l *Loop) reconfigure() {
	l.logger.Info("settings changed, reconnecting")
	l.teardown()
	l.discard(l.queue.Discard())
}

func (l *Loop) teardown() {
	if l.transport == nil {
		return
	}
	if err := l.transport.Close(); err != nil {
		l.logger.Debug("closing transport", "error", err)
	}
	l.transport = nil
}

func (l *Loop) fail(err error) {
	l.errMu.Lock()
	l.lastErr = err
	l.errMu.Unlock()
	l.failures.Add(1)
	l.metrics.SendFailure(l.kind.Name())
}

func (l *Loop) lastError() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.lastErr
}

func (l *Loop) discard(n int) {
	if n <= 0 {
		return
	}
	l.discarded.Add(uint64(n))
	l.metrics.Discarded(l.kind.Name(), n)
}
