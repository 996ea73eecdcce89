package marketfeeds

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aidin1998/pincex_mockfeed/pkg/metrics"
	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxVolumeIncrement is the exclusive upper bound of a tick's volume
const maxVolumeIncrement = 500

// Config holds the tunables of the mock feed
type Config struct {
	TickInterval  time.Duration
	FlushInterval time.Duration
	BarInterval   time.Duration

	MinPrice     decimal.Decimal
	MaxPrice     decimal.Decimal
	DefaultPrice decimal.Decimal
	// GeneratorSteps is the number of draws compounded per tick
	GeneratorSteps int

	DefaultVolatility float64
	Volatility        VolatilityDefaults

	GuardWindow time.Duration
	GuardBand   float64

	// CalendarLocation decides which calendar day is "today"
	CalendarLocation *time.Location
}

// DefaultConfig returns the stock feed configuration
func DefaultConfig() Config {
	return Config{
		TickInterval:      750 * time.Millisecond,
		FlushInterval:     100 * time.Millisecond,
		BarInterval:       time.Minute,
		MinPrice:          defaultMinPrice,
		MaxPrice:          defaultMaxPrice,
		DefaultPrice:      decimal.NewFromInt(100),
		GeneratorSteps:    1,
		DefaultVolatility: 0.01,
		GuardWindow:       DefaultGuardWindow,
		GuardBand:         DefaultGuardBand,
		CalendarLocation:  time.UTC,
	}
}

// Dependencies are the collaborators of the feed. Catalog, Calendar and
// Broadcaster are required.
type Dependencies struct {
	Catalog     InstrumentCatalog
	Calendar    TradingCalendar
	Overrides   VolatilityOverrideSource
	Broadcaster Broadcaster
	Listener    LifecycleListener
	Clock       Clock
	Random      RandomSource
}

type trackedInstrument struct {
	state     *InstrumentState
	generator *PriceGenerator
}

// session is everything created by one Start. It is replaced wholesale on
// the next Start and never mutated structurally after being published.
type session struct {
	instruments map[string]*trackedInstrument
	symbols     []string
	exchanges   []string
	counts      map[string]int
	metrics     map[string]*exchangeMetrics
	startedAt   time.Time

	closed atomic.Pointer[map[string]bool]
	queue  quoteQueue
	rnd    RandomSource // owned by the session worker

	cancel context.CancelFunc
	done   chan struct{}
}

func (s *session) closedSet() map[string]bool {
	if m := s.closed.Load(); m != nil {
		return *m
	}
	return nil
}

// Service runs the mock market data feed
type Service struct {
	cfg    Config
	logger *zap.Logger

	catalog     InstrumentCatalog
	calendar    TradingCalendar
	overrides   VolatilityOverrideSource
	broadcaster Broadcaster
	listener    LifecycleListener
	clock       Clock
	random      RandomSource // injected source shared by every session, may be nil

	guard *VolatilityGuard

	lifecycle sync.Mutex
	defaults  VolatilityDefaults // guarded by lifecycle

	state   atomic.Value // FeedState
	current atomic.Pointer[session]
}

// NewService validates cfg and wires the feed. Price bound inconsistencies
// are reported as ErrInvalidConfiguration.
func NewService(cfg Config, deps Dependencies, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Catalog == nil || deps.Calendar == nil || deps.Broadcaster == nil {
		return nil, fmt.Errorf("mock feed requires a catalog, a calendar and a broadcaster: %w", ErrInvalidArgument)
	}
	if err := ValidatePriceBounds(cfg.MinPrice, cfg.MaxPrice, cfg.DefaultPrice); err != nil {
		logger.Error("Invalid mock feed price configuration",
			zap.String("min_price", cfg.MinPrice.String()),
			zap.String("max_price", cfg.MaxPrice.String()),
			zap.String("default_price", cfg.DefaultPrice.String()),
			zap.Error(err))
		return nil, err
	}
	if cfg.TickInterval <= 0 || cfg.FlushInterval <= 0 || cfg.BarInterval <= 0 {
		return nil, fmt.Errorf("tick, flush and bar intervals must be positive: %w", ErrInvalidConfiguration)
	}
	if cfg.CalendarLocation == nil {
		cfg.CalendarLocation = time.UTC
	}

	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	listener := deps.Listener
	if listener == nil {
		listener = noopLifecycleListener{}
	}

	s := &Service{
		cfg:         cfg,
		logger:      logger.Named("mockfeed"),
		catalog:     deps.Catalog,
		calendar:    deps.Calendar,
		overrides:   deps.Overrides,
		broadcaster: deps.Broadcaster,
		listener:    listener,
		clock:       clock,
		random:      deps.Random,
		guard:       NewVolatilityGuard(GuardOptions{Window: cfg.GuardWindow, Band: cfg.GuardBand, Clock: clock}),
		defaults:    cfg.Volatility,
	}
	s.state.Store(FeedStateStopped)
	return s, nil
}

// State returns the global feed state
func (s *Service) State() FeedState {
	return s.state.Load().(FeedState)
}

// SetVolatilityDefaults replaces the static volatility defaults. They take
// effect on the next Start.
func (s *Service) SetVolatilityDefaults(defaults VolatilityDefaults) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.defaults = defaults
}

// Start loads the eligible instruments and begins generating ticks. It is a
// no-op when already running. Finding no active instrument, or every
// represented exchange closed, leaves the feed stopped without error.
func (s *Service) Start(ctx context.Context, trigger Trigger) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == FeedStateRunning {
		s.logger.Debug("Mock feed already running", zap.String("trigger", string(trigger)))
		return nil
	}
	// a worker left behind by a timed out Stop must exit before another starts
	if prev := s.current.Load(); prev != nil && prev.done != nil {
		select {
		case <-prev.done:
		default:
			select {
			case <-prev.done:
			case <-ctx.Done():
				return fmt.Errorf("previous mock feed worker still running: %w", ctx.Err())
			}
		}
	}

	instruments, err := s.catalog.FindAllInstruments(ctx)
	if err != nil {
		return fmt.Errorf("failed to load instruments: %w", err)
	}
	active := activeInstruments(instruments)
	if len(active) == 0 {
		s.logger.Warn("Mock feed not started: no active instruments", zap.String("trigger", string(trigger)))
		return nil
	}

	resolver, err := NewVolatilityConfigLoader(s.overrides, s.defaults).Load(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	sess := s.newSession(active, resolver, now)

	closed, err := s.closedExchanges(ctx, sess.exchanges, now)
	if err != nil {
		return err
	}
	if len(closed) == len(sess.exchanges) {
		s.logger.Warn("Mock feed not started: all exchanges closed today",
			zap.Strings("exchanges", sess.exchanges),
			zap.String("trigger", string(trigger)))
		return nil
	}
	sess.closed.Store(&closed)

	runCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	sess.done = make(chan struct{})

	s.current.Store(sess)
	s.state.Store(FeedStateRunning)
	metrics.FeedRunning.Set(1)
	go s.run(runCtx, sess)

	s.logger.Info("Mock feed started",
		zap.String("trigger", string(trigger)),
		zap.Strings("exchanges", sess.exchanges),
		zap.Int("instruments", len(sess.symbols)),
		zap.Int("closed_exchanges", len(closed)))

	s.listener.FeedStarted(ctx, FeedStartedEvent{
		Exchanges: append([]string(nil), sess.exchanges...),
		Trigger:   trigger,
		Timestamp: now,
	})
	return nil
}

// Stop cancels the periodic tasks and waits for an in-flight task to
// finish. It is a no-op when already stopped.
func (s *Service) Stop(ctx context.Context, trigger Trigger, cause string) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != FeedStateRunning {
		return
	}
	sess := s.current.Load()
	sess.cancel()
	select {
	case <-sess.done:
	case <-ctx.Done():
		// the worker broadcasts nothing further once cancelled, and the next
		// Start waits for it to exit
		s.logger.Warn("Timed out waiting for mock feed worker", zap.Error(ctx.Err()))
	}

	s.state.Store(FeedStateStopped)
	metrics.FeedRunning.Set(0)

	s.logger.Info("Mock feed stopped",
		zap.String("trigger", string(trigger)),
		zap.String("cause", cause))

	s.listener.FeedStopped(ctx, FeedStoppedEvent{
		Exchanges: append([]string(nil), sess.exchanges...),
		Trigger:   trigger,
		Cause:     cause,
		Timestamp: s.clock.Now(),
	})
}

// Status reports the global state and, per tracked exchange, its effective
// state and tick statistics
func (s *Service) Status() FeedStatus {
	state := s.State()
	status := FeedStatus{State: state, Exchanges: []ExchangeStatus{}}

	sess := s.current.Load()
	if sess == nil {
		return status
	}
	startedAt := sess.startedAt
	status.StartedAt = &startedAt

	closed := sess.closedSet()
	now := s.clock.Now()
	for _, code := range sess.exchanges {
		es := ExchangeStatus{
			ExchangeCode:      code,
			State:             state,
			ActiveInstruments: sess.counts[code],
		}
		if closed[code] {
			es.State = FeedStateHoliday
		}
		lastTick, tps := sess.metrics[code].snapshot(now)
		if !lastTick.IsZero() {
			es.LastTickAt = &lastTick
		}
		es.TicksPerSecond = tps
		status.Exchanges = append(status.Exchanges, es)
	}
	return status
}

// VolatilitySnapshots returns the guard view of every symbol registered so far
func (s *Service) VolatilitySnapshots() map[string]GuardSnapshot {
	return s.guard.Snapshots()
}

// VolatilitySnapshot returns the guard view of one symbol
func (s *Service) VolatilitySnapshot(symbol string) (GuardSnapshot, bool) {
	return s.guard.Snapshot(strings.ToUpper(strings.TrimSpace(symbol)))
}

// Quotes returns a snapshot of every tracked instrument of the current session
func (s *Service) Quotes() []models.Quote {
	sess := s.current.Load()
	if sess == nil {
		return nil
	}
	out := make([]models.Quote, 0, len(sess.symbols))
	for _, symbol := range sess.symbols {
		out = append(out, sess.instruments[symbol].state.Quote())
	}
	return out
}

func activeInstruments(all []models.Instrument) []models.Instrument {
	out := make([]models.Instrument, 0, len(all))
	seen := make(map[string]bool, len(all))
	for _, inst := range all {
		if !strings.EqualFold(strings.TrimSpace(inst.Status), models.InstrumentStatusActive) {
			continue
		}
		symbol := normaliseKey(inst.Symbol)
		if symbol == "" || normaliseKey(inst.ExchangeCode) == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, inst)
	}
	return out
}

func (s *Service) newSession(active []models.Instrument, resolver *VolatilityResolver, now time.Time) *session {
	sess := &session{
		instruments: make(map[string]*trackedInstrument, len(active)),
		counts:      make(map[string]int),
		metrics:     make(map[string]*exchangeMetrics),
		startedAt:   now,
		rnd:         s.random,
	}
	if sess.rnd == nil {
		sess.rnd = rand.New(rand.NewSource(now.UnixNano()))
	}
	open := s.cfg.DefaultPrice
	for _, inst := range active {
		symbol, exchange := normaliseKey(inst.Symbol), normaliseKey(inst.ExchangeCode)
		volatility := resolver.Resolve(exchange, inst.AssetClass, s.cfg.DefaultVolatility)
		sess.instruments[symbol] = &trackedInstrument{
			state:     NewInstrumentState(symbol, exchange, volatility, open, s.clock),
			generator: NewPriceGenerator(sess.rnd, BoundsAround(open, s.cfg.GeneratorSteps)),
		}
		sess.symbols = append(sess.symbols, symbol)
		if sess.counts[exchange] == 0 {
			sess.exchanges = append(sess.exchanges, exchange)
			sess.metrics[exchange] = &exchangeMetrics{}
		}
		sess.counts[exchange]++
	}
	sort.Strings(sess.symbols)
	sort.Strings(sess.exchanges)
	return sess
}

// closedExchanges asks the calendar about every exchange for the calendar
// day of now in the configured location
func (s *Service) closedExchanges(ctx context.Context, exchanges []string, now time.Time) (map[string]bool, error) {
	local := now.In(s.cfg.CalendarLocation)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	closed := make(map[string]bool)
	for _, code := range exchanges {
		isClosed, err := s.calendar.IsExchangeClosed(ctx, code, day)
		if err != nil {
			return nil, fmt.Errorf("failed to check calendar for %s: %w", code, err)
		}
		if isClosed {
			closed[code] = true
		}
	}
	return closed, nil
}

func (s *Service) run(ctx context.Context, sess *session) {
	defer close(sess.done)

	tick := time.NewTicker(s.cfg.TickInterval)
	defer tick.Stop()
	flush := time.NewTicker(s.cfg.FlushInterval)
	defer flush.Stop()
	bars := time.NewTicker(s.cfg.BarInterval)
	defer bars.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.runTask("tick", func() error { return s.generateTicks(ctx, sess) })
		case <-flush.C:
			s.runTask("flush", func() error { return s.flushQuotes(ctx, sess) })
		case <-bars.C:
			s.runTask("bars", func() error { return s.broadcastBars(ctx, sess) })
		}
	}
}

// runTask isolates one task invocation so a failure never ends the schedule
func (s *Service) runTask(name string, task func() error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TaskFailures.WithLabelValues(name).Inc()
			s.logger.Error("Mock feed task panicked", zap.String("task", name), zap.Any("panic", r))
		}
	}()
	if err := task(); err != nil {
		metrics.TaskFailures.WithLabelValues(name).Inc()
		s.logger.Error("Mock feed task failed", zap.String("task", name), zap.Error(err))
	}
}

func (s *Service) generateTicks(ctx context.Context, sess *session) error {
	now := s.clock.Now()

	var calendarErr error
	closed, err := s.closedExchanges(ctx, sess.exchanges, now)
	if err != nil {
		// keep ticking against the previous closed set
		calendarErr = err
		closed = sess.closedSet()
	} else {
		sess.closed.Store(&closed)
	}

	for _, symbol := range sess.symbols {
		inst := sess.instruments[symbol]
		exchange := inst.state.ExchangeCode()
		if closed[exchange] {
			continue
		}
		price, err := inst.generator.Next(inst.state.LastPrice(), inst.state.SessionOpen(), inst.state.Volatility())
		if err != nil {
			s.logger.Warn("Failed to generate price", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		volume := int64(sess.rnd.Intn(maxVolumeIncrement-1) + 1)
		inst.state.UpdateWithTick(price, volume)
		s.guard.Register(symbol, inst.state.SessionOpen(), price)
		sess.queue.enqueue(inst.state.Quote())
		sess.metrics[exchange].recordTick(now)
		metrics.TicksGenerated.WithLabelValues(exchange).Inc()
	}
	return calendarErr
}

func (s *Service) flushQuotes(ctx context.Context, sess *session) error {
	quotes, pending := sess.queue.drain()
	if pending == 0 {
		return nil
	}
	metrics.QuoteFlushBatchSize.Observe(float64(pending))
	sent := 0
	for _, quote := range quotes {
		if ctx.Err() != nil {
			break
		}
		s.broadcaster.BroadcastQuote(ctx, quote)
		sent++
	}
	metrics.QuotesBroadcast.Add(float64(sent))
	return nil
}

func (s *Service) broadcastBars(ctx context.Context, sess *session) error {
	if s.State() != FeedStateRunning {
		return nil
	}
	closed := sess.closedSet()
	sent := 0
	for _, symbol := range sess.symbols {
		inst := sess.instruments[symbol]
		if ctx.Err() != nil {
			break
		}
		if closed[inst.state.ExchangeCode()] {
			continue
		}
		bar, err := AggregateBar(inst.state)
		if err != nil {
			return err
		}
		s.broadcaster.BroadcastBar(ctx, bar)
		sent++
	}
	metrics.BarsBroadcast.Add(float64(sent))
	return nil
}
