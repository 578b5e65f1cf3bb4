package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/offlinefirst/behavioral-capture/pkg/behavior"
	"github.com/offlinefirst/behavioral-capture/pkg/contextcache"
	"github.com/offlinefirst/behavioral-capture/pkg/eventlog"
	"github.com/offlinefirst/behavioral-capture/pkg/events"
	"github.com/offlinefirst/behavioral-capture/pkg/hostinfo"
	"github.com/offlinefirst/behavioral-capture/pkg/logging"
	"github.com/offlinefirst/behavioral-capture/pkg/persist"
)

var (
	// ErrSubscriptionFailed wraps a raw event source refusal during Start.
	ErrSubscriptionFailed = errors.New("event source subscription failed")
	// ErrAlreadyStarted is returned by Start on a running recorder.
	ErrAlreadyStarted = errors.New("recorder already started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("recorder stopped")
)

const tracerName = "github.com/offlinefirst/behavioral-capture/pkg/capture"

// Options controls capture orchestration.
type Options struct {
	Source       events.Source
	ActiveApp    contextcache.AppQuery
	ProcessCount contextcache.CountQuery

	SampleRate      int
	LogCapacity     int
	EvictCount      int
	FlushThreshold  int
	RefreshInterval time.Duration
	Format          persist.Format

	Privacy  events.PrivacyPolicy
	Redactor events.Redactor

	Clock      func() time.Time
	Logger     *slog.Logger
	Controller *Controller
	// LifecycleLog receives one human-readable line per lifecycle transition.
	LifecycleLog io.Writer
	// OpenSink overrides persist.Open.
	OpenSink func(persist.Format, string) (persist.Sink, error)
}

// Counters tracks what happened to each delivered notification.
type Counters struct {
	Received    int
	SampledOut  int
	Stationary  int
	Filtered    int
	PausedDrops int
	Recorded    int
	// PersistErrors counts failed persister writes.
	PersistErrors int
}

// Statistics combines the record summary with pipeline counters.
type Statistics struct {
	behavior.Statistics
	Pipeline Counters
	Persist  persist.Stats
	Retained int
	Capacity int
	Evicted  int
	// ContextRefreshing reports whether the context refresh loop is running.
	ContextRefreshing bool
}

type recorderState int

const (
	stateIdle recorderState = iota
	stateRunning
	stateStopped
)

// Recorder wires an event source through sampling, enrichment, the bounded
// log and the persister.
type Recorder struct {
	source   events.Source
	cache    *contextcache.Cache
	ring     *eventlog.Ring
	privacy  events.PrivacyPolicy
	redactor events.Redactor
	format   persist.Format
	openSink func(persist.Format, string) (persist.Sink, error)
	flushAt  int
	clock    func() time.Time
	logger   *slog.Logger
	control  *Controller
	logOut   io.Writer
	tracer   trace.Tracer

	lifecycle sync.Mutex
	state     recorderState
	sub       events.Subscription
	path      string

	// mu serialises the delivery path with shutdown.
	mu        sync.Mutex
	closed    bool
	enricher  *behavior.Enricher
	persister *persist.Persister
	counters  Counters

	pausedDrops atomic.Int64
}

// NewRecorder validates options and builds an idle recorder.
func NewRecorder(opts Options) (*Recorder, error) {
	if opts.Source == nil {
		return nil, errors.New("event source must be provided")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	activeApp := opts.ActiveApp
	if activeApp == nil {
		activeApp = hostinfo.ActiveApp
	}
	processCount := opts.ProcessCount
	if processCount == nil {
		processCount = hostinfo.ProcessCount
	}
	control := opts.Controller
	if control == nil {
		control = NewController()
	}
	openSink := opts.OpenSink
	if openSink == nil {
		openSink = persist.Open
	}
	format := opts.Format
	if format == "" {
		format = persist.FormatCSV
	}

	cache, err := contextcache.New(contextcache.Options{
		ActiveApp:    activeApp,
		ProcessCount: processCount,
		Interval:     opts.RefreshInterval,
		Clock:        clock,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise context cache: %w", err)
	}

	return &Recorder{
		source:   opts.Source,
		cache:    cache,
		ring:     eventlog.NewRing(opts.LogCapacity, opts.EvictCount),
		privacy:  opts.Privacy,
		redactor: opts.Redactor,
		format:   format,
		openSink: openSink,
		flushAt:  opts.FlushThreshold,
		clock:    clock,
		logger:   logger,
		control:  control,
		logOut:   opts.LifecycleLog,
		tracer:   otel.Tracer(tracerName),
		closed:   true,
		enricher: behavior.NewEnricher(opts.SampleRate),
	}, nil
}

// Controller returns the controller gating delivery.
func (r *Recorder) Controller() *Controller {
	return r.control
}

// Start opens the sink at path, starts the context refresh loop and
// subscribes to the event source. On failure nothing is left running.
func (r *Recorder) Start(path string) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	switch r.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}

	_, span := r.tracer.Start(context.Background(), "capture.start",
		trace.WithAttributes(attribute.String("capture.path", path), attribute.String("capture.format", string(r.format))))
	defer span.End()

	sink, err := r.openSink(r.format, path)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("open %s sink: %w", r.format, err)
	}
	persister := persist.New(sink, persist.Options{Threshold: r.flushAt, Logger: r.logger})

	r.cache.Start()

	r.mu.Lock()
	r.persister = persister
	r.enricher.Reset(r.clock().UnixMilli())
	r.closed = false
	r.mu.Unlock()

	sub, err := r.source.Subscribe(r.handle)
	if err != nil {
		r.cache.Stop()
		r.mu.Lock()
		r.closed = true
		r.persister = nil
		r.mu.Unlock()
		closeErr := persister.Close()
		span.RecordError(err)
		return errors.Join(fmt.Errorf("%w: %w", ErrSubscriptionFailed, err), closeErr)
	}

	r.sub = sub
	r.path = path
	r.state = stateRunning
	writeCaptureLog(r.logOut, r.clock(), "capture", "started path=%s format=%s", path, r.format)
	r.logger.Info("capture started", "path", path, "format", string(r.format))
	return nil
}

// Stop unsubscribes, joins the refresh loop and flushes the persister. Only
// the first call has effects; later calls return nil.
func (r *Recorder) Stop() error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.state != stateRunning {
		if r.state == stateIdle {
			r.state = stateStopped
		}
		return nil
	}
	r.state = stateStopped

	_, span := r.tracer.Start(context.Background(), "capture.stop")
	defer span.End()

	var errs []error
	if err := r.sub.Unsubscribe(); err != nil {
		errs = append(errs, fmt.Errorf("unsubscribe: %w", err))
	}
	r.cache.Stop()

	r.mu.Lock()
	r.closed = true
	persister := r.persister
	r.mu.Unlock()

	if err := persister.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close persister: %w", err))
	}

	stats := r.Statistics()
	span.SetAttributes(attribute.Int("capture.recorded", stats.Pipeline.Recorded))
	writeCaptureLog(r.logOut, r.clock(), "capture", "stopped recorded=%d persisted=%d dropped=%d",
		stats.Pipeline.Recorded, stats.Persist.Written, stats.Persist.Dropped)
	r.logger.Info("capture stopped", "recorded", stats.Pipeline.Recorded, "persisted", stats.Persist.Written)

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Pause stops recording until Resume. Notifications are still delivered but dropped.
func (r *Recorder) Pause() {
	r.control.Pause()
	writeCaptureLog(r.logOut, r.clock(), "capture", "paused")
	r.logger.Info("capture paused")
}

// Resume restarts recording after Pause.
func (r *Recorder) Resume() {
	r.control.Resume()
	writeCaptureLog(r.logOut, r.clock(), "capture", "resumed")
	r.logger.Info("capture resumed")
}

// Statistics summarises the bounded log and pipeline counters.
func (r *Recorder) Statistics() Statistics {
	stats := Statistics{
		Statistics:        behavior.Summarize(r.ring.Snapshot()),
		Capacity:          r.ring.Capacity(),
		Evicted:           r.ring.Evicted(),
		ContextRefreshing: r.cache.Running(),
	}
	stats.Retained = stats.Total

	r.mu.Lock()
	stats.Pipeline = r.counters
	persister := r.persister
	r.mu.Unlock()

	stats.Pipeline.PausedDrops = int(r.pausedDrops.Load())
	if persister != nil {
		stats.Persist = persister.Stats()
	}
	return stats
}

// Context returns the cached environmental snapshot.
func (r *Recorder) Context() contextcache.Snapshot {
	return r.cache.Read()
}

func (r *Recorder) handle(n events.Notification) {
	if !r.control.Running() {
		r.pausedDrops.Add(1)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.counters.Received++

	if !r.enricher.Accept(n.Kind) {
		r.counters.SampledOut++
		return
	}

	snap := r.cache.Read()
	if !r.privacy.Allows(snap.ActiveApp) {
		r.counters.Filtered++
		return
	}
	if r.redactor.Enabled() {
		snap.ActiveApp = r.redactor.ApplyString(snap.ActiveApp)
	}

	ev, ok := r.enricher.Enrich(n, r.clock().UnixMilli(), snap)
	if !ok {
		r.counters.Stationary++
		return
	}

	r.ring.Append(ev)
	r.counters.Recorded++
	if err := r.persister.Write(ev.Row()); err != nil {
		r.counters.PersistErrors++
		r.control.Kill(fmt.Errorf("persist event: %w", err))
	}
}

func writeCaptureLog(w io.Writer, timestamp time.Time, subsystem, message string, args ...any) {
	if w == nil {
		return
	}
	formatted := message
	if len(args) > 0 {
		formatted = fmt.Sprintf(message, args...)
	}
	line := fmt.Sprintf("[%s] subsystem=%s %s\n", timestamp.UTC().Format(time.RFC3339), subsystem, formatted)
	_, _ = io.WriteString(w, line)
}
