package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	applog "fintrack/internal/log"
)

var (
	// ErrClosed is returned once the poller has been torn down.
	ErrClosed = errors.New("poller closed")
	// ErrInvalidInterval is returned by Start for a non-positive interval.
	ErrInvalidInterval = errors.New("poll interval must be positive")
)

// Fetcher retrieves the raw alert payload from the backend.
type Fetcher interface {
	FetchAlerts(ctx context.Context) (any, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context) (any, error)

func (f FetchFunc) FetchAlerts(ctx context.Context) (any, error) { return f(ctx) }

// Phase is the poller's position in its fetch cycle.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// HashFailurePolicy decides what a failed content hash means for Changed.
type HashFailurePolicy int

const (
	// HashFailureAssumeChanged substitutes a timestamp hash, so a failed
	// hash always reports a change after the first successful fetch.
	HashFailureAssumeChanged HashFailurePolicy = iota
	// HashFailureAssumeUnchanged keeps the previous hash.
	HashFailureAssumeUnchanged
)

// Snapshot is the result of one successful fetch.
type Snapshot struct {
	List        []Alert   `json:"list"`
	FetchedAt   time.Time `json:"fetchedAt"`
	ContentHash string    `json:"contentHash"`
	Seq         uint64    `json:"seq"`
	// HashErr is set when the content hash could not be computed and
	// ContentHash was derived from the failure policy instead.
	HashErr error `json:"-"`
}

// State is what a consumer of the poller observes.
type State struct {
	Phase         Phase
	Enabled       bool
	Alerts        []Alert
	Raw           any
	Err           error
	Changed       bool
	LastUpdatedAt time.Time
	Snapshot      Snapshot
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the poller's logger.
func WithLogger(l *applog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithHasher replaces Hash, for tests.
func WithHasher(h func([]Alert) (string, error)) Option {
	return func(p *Poller) { p.hash = h }
}

// WithHashFailurePolicy sets how hash failures are interpreted.
func WithHashFailurePolicy(policy HashFailurePolicy) Option {
	return func(p *Poller) { p.policy = policy }
}

// WithOnChange registers a callback run after every changed snapshot.
func WithOnChange(fn func(State)) Option {
	return func(p *Poller) { p.listeners = append(p.listeners, fn) }
}

// Poller periodically fetches alerts and reports whether their content
// changed since the previous successful fetch.
//
// Every fetch takes a sequence number when issued; a result is applied only
// if it is newer than the last applied one, so a slow Reload cannot
// overwrite a fresher tick. After Close no result is applied at all.
type Poller struct {
	fetcher   Fetcher
	logger    *applog.Logger
	now       func() time.Time
	hash      func([]Alert) (string, error)
	policy    HashFailurePolicy
	listeners []func(State)

	mu         sync.Mutex
	state      State
	prevHash   string
	hasPrev    bool
	nextSeq    uint64
	appliedSeq uint64
	closed     bool
	cancel     context.CancelFunc
}

// NewPoller creates an idle poller.
func NewPoller(fetcher Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher: fetcher,
		now:     time.Now,
		hash:    Hash,
		policy:  HashFailureAssumeChanged,
		state:   State{Phase: PhaseIdle, Alerts: []Alert{}},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = applog.Default(applog.ComponentAlerts)
	}
	return p
}

// Start fetches immediately and then every interval while enabled.
// A previous schedule is cancelled first; enabled=false only cancels.
func (p *Poller) Start(ctx context.Context, enabled bool, interval time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.stopLocked()
	p.state.Enabled = enabled
	if !enabled {
		p.mu.Unlock()
		return nil
	}
	if interval <= 0 {
		p.state.Enabled = false
		p.mu.Unlock()
		return ErrInvalidInterval
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "Alert polling started", applog.FieldInterval, interval.String())
	go p.loop(loopCtx, interval)
	return nil
}

// Stop cancels the schedule. Fetches already in flight may still apply.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.state.Enabled = false
}

// Close tears the poller down: no more fetches and no more state updates.
// Requests in flight are not aborted; their results are dropped.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stopLocked()
	p.state.Enabled = false
	p.state.Phase = PhaseIdle
	p.listeners = nil
}

// Reload fetches out of band. Concurrent calls are not coalesced.
func (p *Poller) Reload(ctx context.Context) error {
	return p.fetch(ctx)
}

// State returns a copy of the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.state
	st.Alerts = append([]Alert{}, p.state.Alerts...)
	return st
}

// Subscribe adds a change listener after construction.
func (p *Poller) Subscribe(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.listeners = append(p.listeners, fn)
	}
}

func (p *Poller) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// Cancelling the schedule must not abort a request already sent.
	if err := p.fetch(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, ErrClosed) {
		p.logger.WarnContext(ctx, "Alert poll failed", applog.FieldError, err.Error())
	}
}

func (p *Poller) fetch(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.nextSeq++
	seq := p.nextSeq
	p.state.Phase = PhaseLoading
	p.mu.Unlock()

	raw, fetchErr := p.fetcher.FetchAlerts(ctx)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fetchErr
	}
	if seq <= p.appliedSeq {
		applied := p.appliedSeq
		p.mu.Unlock()
		p.logger.DebugContext(ctx, "Discarding stale alert fetch", applog.FieldSeq, seq, "applied_seq", applied)
		return fetchErr
	}
	p.appliedSeq = seq
	now := p.now()

	if fetchErr != nil {
		// Keep the last good list; polling carries on.
		p.state.Phase = PhaseError
		p.state.Err = fetchErr
		p.state.Changed = false
		p.state.LastUpdatedAt = now
		p.mu.Unlock()
		return fmt.Errorf("fetch alerts: %w", fetchErr)
	}

	res := Normalize(raw)
	hash, hashErr := p.hash(res.List)
	if hashErr != nil {
		var he *HashError
		if !errors.As(hashErr, &he) {
			hashErr = &HashError{Err: hashErr}
		}
		switch p.policy {
		case HashFailureAssumeUnchanged:
			hash = p.prevHash
		default:
			hash = fmt.Sprintf("ts:%d", now.UnixNano())
		}
	}

	changed := p.hasPrev && hash != p.prevHash
	p.prevHash = hash
	p.hasPrev = true

	snap := Snapshot{
		List:        res.List,
		FetchedAt:   now,
		ContentHash: hash,
		Seq:         seq,
		HashErr:     hashErr,
	}
	p.state = State{
		Phase:         PhaseSuccess,
		Enabled:       p.state.Enabled,
		Alerts:        res.List,
		Raw:           res.Raw,
		Changed:       changed,
		LastUpdatedAt: now,
		Snapshot:      snap,
	}
	st := p.state
	var listeners []func(State)
	if changed {
		listeners = append(listeners, p.listeners...)
	}
	p.mu.Unlock()

	fields := applog.NewFields().WithSnapshot(seq, len(res.List), hash, changed)
	if hashErr != nil {
		p.logger.WarnContext(ctx, "Alert hash failed, applying failure policy", fields.WithError(hashErr).ToSlice()...)
	} else {
		p.logger.DebugContext(ctx, "Alerts fetched", fields.ToSlice()...)
	}

	for _, fn := range listeners {
		fn(st)
	}
	return nil
}
