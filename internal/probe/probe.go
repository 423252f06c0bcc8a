package probe

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/wspool-go/internal/cli/output"
	"github.com/yndnr/wspool-go/internal/config"
	"github.com/yndnr/wspool-go/internal/telemetry/logger"
	"github.com/yndnr/wspool-go/pkg/wspool"
)

// settlePoll is how often the handshake wait re-checks connection
// states.
const settlePoll = 50 * time.Millisecond

// RunIDPrefix is the prefix for probe run IDs.
// Format: run-{ulid_lowercase}, 30 characters total.
const RunIDPrefix = "run-"

// NewRunID generates the correlation ID for one probe run. The ID is
// carried through the run's context, stamped on every log line, and
// echoed in the final report.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return RunIDPrefix + "unknown"
	}
	return RunIDPrefix + strings.ToLower(id.String())
}

// Runner drives one probe run from endpoint configuration through the
// final report.
type Runner struct {
	cfg      *config.ProbeConfig
	messages []string
	manager  *wspool.Manager
	log      logger.Logger
	metrics  wspool.Metrics
	out      io.Writer
	runID    string

	opened atomic.Int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger. Defaults to logger.Default().
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithOutput sets the writer for progress widgets and reports.
// Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithMetrics wires a metrics sink into the underlying pool.
func WithMetrics(m wspool.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a runner for the given configuration. messages are
// sent by every connection from its OnOpen callback, and again in each
// barrage round.
func NewRunner(cfg *config.ProbeConfig, messages []string, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		messages: messages,
		log:      logger.Default(),
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.manager = NewPool(cfg, r.log, r.metrics)
	return r
}

// NewPool builds a connection manager wired per the probe
// configuration. metrics may be nil.
func NewPool(cfg *config.ProbeConfig, log logger.Logger, metrics wspool.Metrics) *wspool.Manager {
	opts := []wspool.Option{
		wspool.WithLogger(log.Slog()),
		wspool.WithCloseTimeout(cfg.Probe.CloseTimeout),
	}
	if metrics != nil {
		opts = append(opts, wspool.WithMetrics(metrics))
	}
	if cfg.TLS.Watch {
		opts = append(opts, wspool.WithCertRotation())
	}
	return wspool.NewManager(opts...)
}

// Manager exposes the underlying pool, for metric collectors.
func (r *Runner) Manager() *wspool.Manager {
	return r.manager
}

// Run executes the probe. Configuration and setup problems are
// returned as errors; per-connection transport failures land in the
// report instead.
//
// A run ID placed in ctx with logger.WithRunID is stamped on every log
// line of the run and echoed in the report.
//
// Cancelling ctx skips the remaining wait and send phases; the close
// and report phases still run, bounded by the close timeout.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	ctx = logger.WithLogger(ctx, r.log)
	r.runID = logger.RunIDFromContext(ctx)
	r.log = logger.L(ctx)
	defer func() {
		if err := r.manager.Shutdown(context.Background()); err != nil {
			r.log.Warn("pool shutdown finished with stragglers", "error", err)
		}
	}()

	if err := r.manager.ConfigureSecureEndpoint(r.cfg.TLS.CAFile, r.cfg.TLS.CertFile, r.cfg.TLS.KeyFile); err != nil {
		return nil, fmt.Errorf("configure endpoint: %w", err)
	}

	conns, err := r.createConnections(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range conns {
		if err := r.manager.Open(c); err != nil {
			return nil, fmt.Errorf("open connection %s: %w", c.ID(), err)
		}
	}

	r.waitHandshakes(ctx, conns)
	r.sendSyncRound(conns)
	r.sendBarrage(ctx, conns)
	r.linger(ctx)

	closeErr := r.manager.CloseAllConnections(context.Background())
	if closeErr != nil {
		r.log.Warn("close did not complete cleanly", "error", closeErr)
	}

	return r.buildReport(start, closeErr), nil
}

// createConnections registers the configured number of connections and
// wires their callbacks. Nothing touches the network yet.
func (r *Runner) createConnections(ctx context.Context) ([]*wspool.Connection, error) {
	conns := make([]*wspool.Connection, 0, r.cfg.Probe.Connections)
	for i := 0; i < r.cfg.Probe.Connections; i++ {
		c, err := r.manager.CreateConnection(r.cfg.Probe.Server)
		if err != nil {
			return nil, fmt.Errorf("create connection %d: %w", i+1, err)
		}
		if err := c.SetCallbacks(r.callbacks(ctx, c)); err != nil {
			return nil, fmt.Errorf("set callbacks on %s: %w", c.ID(), err)
		}
		conns = append(conns, c)
	}
	return conns, nil
}

// callbacks builds the lifecycle hooks for one connection, logging
// through a connection-scoped logger derived from ctx. OnOpen sends
// every positional message the moment the handshake completes. The
// hooks run on the pool's dispatch goroutine.
func (r *Runner) callbacks(ctx context.Context, c *wspool.Connection) wspool.Callbacks {
	clog := logger.L(logger.WithConnectionID(ctx, c.ID()))
	return wspool.Callbacks{
		OnOpen: func(id string) {
			r.opened.Add(1)
			clog.Debug("onOpen callback", "state", c.State().String())
			for _, msg := range r.messages {
				if err := r.manager.Send(c, msg); err != nil {
					clog.Error("send from onOpen callback", "error", err)
				}
			}
		},
		OnFail: func(id string, reason error) {
			clog.Debug("onFail callback", "error", reason, "state", c.State().String())
		},
		OnClose: func(id string) {
			clog.Debug("onClose callback", "state", c.State().String())
		},
		OnMessage: func(id, payload string) {
			clog.Debug("onMessage callback", "payload", payload)
		},
	}
}

// waitHandshakes blocks until every connection has left the connecting
// state, the configured wait elapses, or ctx is cancelled.
func (r *Runner) waitHandshakes(ctx context.Context, conns []*wspool.Connection) {
	r.log.Debug("waiting for handshakes", "timeout", r.cfg.Probe.HandshakeWait.String())

	var sp *output.Spinner
	if r.interactive() {
		sp = output.NewSpinner(r.out, "waiting for handshakes")
		sp.Start()
	}

	settled := r.pollSettled(ctx, conns, r.cfg.Probe.HandshakeWait)
	open := len(openConnections(conns))

	if sp != nil {
		switch {
		case open == 0 && len(conns) > 0:
			sp.Fail("no connections opened")
		case settled:
			sp.Success(fmt.Sprintf("%d/%d connections open", open, len(conns)))
		default:
			sp.Stop()
		}
	}
	if !settled {
		r.log.Warn("handshakes still pending after wait", "open", open, "total", len(conns))
	}
}

func (r *Runner) pollSettled(ctx context.Context, conns []*wspool.Connection, wait time.Duration) bool {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(settlePoll)
	defer tick.Stop()

	for {
		if allSettled(conns) {
			return true
		}
		select {
		case <-tick.C:
		case <-deadline.C:
			return allSettled(conns)
		case <-ctx.Done():
			return allSettled(conns)
		}
	}
}

// sendSyncRound sends one numbered message per connection from the
// calling goroutine, skipping connections that are not open.
func (r *Runner) sendSyncRound(conns []*wspool.Connection) {
	for i, c := range conns {
		if c.State() != wspool.StateOpen {
			r.log.Debug("connection not open, skipping sync send",
				"connection_id", c.ID(),
				"state", c.State().String(),
			)
			continue
		}
		msg := fmt.Sprintf("### Message (SYNC) for connection %d", i+1)
		if err := r.manager.Send(c, msg); err != nil {
			r.log.Error("sync send", "connection_id", c.ID(), "error", err)
			continue
		}
		r.log.Debug("sync message sent", "connection_id", c.ID())
	}
}

// sendBarrage repeats the positional messages on every open
// connection, paced by the configured send rate.
func (r *Runner) sendBarrage(ctx context.Context, conns []*wspool.Connection) {
	if r.cfg.Probe.Repeat <= 0 || len(r.messages) == 0 {
		return
	}
	open := openConnections(conns)
	if len(open) == 0 {
		r.log.Debug("no open connections, skipping barrage")
		return
	}

	var limiter *rate.Limiter
	if r.cfg.Probe.SendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.Probe.SendRate), 1)
	}

	var bar *output.ProgressBar
	if r.interactive() {
		bar = output.NewProgressBar(r.out, "sending")
		bar.SetTotal(int64(r.cfg.Probe.Repeat) * int64(len(r.messages)) * int64(len(open)))
	}

	r.log.Debug("starting barrage",
		"rounds", r.cfg.Probe.Repeat,
		"messages", len(r.messages),
		"connections", len(open),
	)

	for round := 0; round < r.cfg.Probe.Repeat; round++ {
		for _, c := range open {
			for _, msg := range r.messages {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						r.abortBar(bar)
						r.log.Debug("barrage interrupted", "error", err)
						return
					}
				} else if ctx.Err() != nil {
					r.abortBar(bar)
					r.log.Debug("barrage interrupted", "error", ctx.Err())
					return
				}
				if err := r.manager.Send(c, msg); err != nil {
					r.log.Debug("barrage send", "connection_id", c.ID(), "error", err)
					continue
				}
				if bar != nil {
					bar.Increment(1)
				}
			}
		}
	}
	if bar != nil {
		bar.Finish()
	}
}

// abortBar moves the cursor off a half-drawn progress line.
func (r *Runner) abortBar(bar *output.ProgressBar) {
	if bar != nil {
		fmt.Fprintln(r.out)
	}
}

// linger keeps the connections up so late server replies still arrive.
func (r *Runner) linger(ctx context.Context) {
	if r.cfg.Probe.Linger <= 0 {
		return
	}
	r.log.Debug("waiting for server replies", "linger", r.cfg.Probe.Linger.String())

	var sp *output.Spinner
	if r.interactive() {
		sp = output.NewSpinner(r.out, "waiting for replies")
		sp.Start()
	}

	timer := time.NewTimer(r.cfg.Probe.Linger)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	if sp != nil {
		sp.Stop()
	}
}

func (r *Runner) buildReport(start time.Time, closeErr error) *Report {
	conns := r.manager.Connections()
	rep := &Report{
		RunID:       r.runID,
		Server:      r.cfg.Probe.Server,
		Total:       len(conns),
		Opened:      int(r.opened.Load()),
		Elapsed:     time.Since(start),
		Connections: connectionRows(conns),
	}
	if closeErr != nil {
		rep.CloseError = closeErr.Error()
	}
	for _, c := range conns {
		if c.State() == wspool.StateFailed {
			rep.Failed++
		}
	}
	for _, row := range rep.Connections {
		rep.Sent += row.Sent
		rep.Received += row.Received
	}
	return rep
}

// interactive reports whether progress widgets should draw. JSON and
// YAML runs keep the stream clean for the report.
func (r *Runner) interactive() bool {
	return r.out != nil && output.Format(r.cfg.Output.Format) == output.FormatTable
}

func allSettled(conns []*wspool.Connection) bool {
	for _, c := range conns {
		if c.State() == wspool.StateConnecting {
			return false
		}
	}
	return true
}

func openConnections(conns []*wspool.Connection) []*wspool.Connection {
	var open []*wspool.Connection
	for _, c := range conns {
		if c.State() == wspool.StateOpen {
			open = append(open, c)
		}
	}
	return open
}
