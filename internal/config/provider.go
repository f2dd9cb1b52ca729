package config

import (
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andeslabs/cryptoqr/backend/internal/infrastructure/monitoring"
	"github.com/andeslabs/cryptoqr/backend/internal/logging"
	"github.com/andeslabs/cryptoqr/backend/internal/shared/paths"
	"github.com/andeslabs/cryptoqr/backend/internal/types"
)

// Observer receives configuration change events, including failed update
// attempts (Success false).
type Observer func(types.ChangeEvent)

type registeredObserver struct {
	id string
	cb Observer
}

// Provider owns the single authoritative output directory, its provenance,
// and the observer list. All mutations go through its update operations.
type Provider struct {
	mu          sync.RWMutex
	current     string
	source      types.ConfigurationSource
	allowed     []string
	lastUpdated time.Time
	observers   []registeredObserver

	// Per-layer values retained for ClearRoots fallback.
	envValue     string
	cliValue     string
	defaultValue string

	probeTimeout time.Duration
	metrics      *monitoring.Metrics
	log          *logging.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithEnvironmentSeed supplies the environment-derived seed path, read once
// at process start.
func WithEnvironmentSeed(path string) Option {
	return func(p *Provider) {
		if normalized, err := paths.Normalize(path); err == nil {
			p.envValue = normalized
		}
	}
}

// WithCommandLineSeed supplies the startup-argument seed path, read once at
// process start.
func WithCommandLineSeed(path string) Option {
	return func(p *Provider) {
		if normalized, err := paths.Normalize(path); err == nil {
			p.cliValue = normalized
		}
	}
}

// WithProbeTimeout bounds filesystem probes against stale or slow mounts.
func WithProbeTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.probeTimeout = d
		}
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// New constructs a Provider. Seed precedence at construction is
// ENVIRONMENT over COMMAND_LINE over the built-in default.
func New(opts ...Option) *Provider {
	p := &Provider{
		defaultValue: paths.Default(),
		probeTimeout: 2 * time.Second,
		log:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	switch {
	case p.envValue != "":
		p.current = p.envValue
		p.source = types.SourceEnvironment
	case p.cliValue != "":
		p.current = p.cliValue
		p.source = types.SourceCommandLine
	default:
		p.current = p.defaultValue
		p.source = types.SourceDefault
	}
	p.lastUpdated = time.Now()

	return p
}

// CurrentQRDirectory returns the active output directory. Pure read, no
// filesystem access.
func (p *Provider) CurrentQRDirectory() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Source returns the precedence layer that determined the active directory.
func (p *Provider) Source() types.ConfigurationSource {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.source
}

// LastUpdated returns when the configuration last changed.
func (p *Provider) LastUpdated() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastUpdated
}

// UpdateFromRoots applies a roots-sourced directory. On failure the previous
// state is retained unchanged, but observers are still notified with a
// failed event carrying the rejection reason.
func (p *Provider) UpdateFromRoots(path string) bool {
	if reason, ok := baselineCheck(path); !ok {
		p.log.Warn("roots update rejected", zap.String("reason", reason))
		p.recordUpdate(types.SourceRoots, false)
		p.notifyFailure(reason)
		return false
	}

	normalized, err := paths.Normalize(path)
	if err != nil {
		p.log.Warn("roots update rejected", zap.Error(err))
		p.recordUpdate(types.SourceRoots, false)
		p.notifyFailure("No se pudo normalizar la ruta")
		return false
	}

	p.commit(normalized, types.SourceRoots)
	return true
}

// UpdateFromCommandLine applies a trusted operator-supplied directory. It
// only normalizes; once normalized it always succeeds.
func (p *Provider) UpdateFromCommandLine(path string) bool {
	normalized, err := paths.Normalize(path)
	if err != nil {
		p.recordUpdate(types.SourceCommandLine, false)
		return false
	}

	p.mu.Lock()
	p.cliValue = normalized
	p.mu.Unlock()

	p.commit(normalized, types.SourceCommandLine)
	return true
}

// ClearRoots reverts the configuration to the next-highest available
// precedence layer and notifies observers.
func (p *Provider) ClearRoots() {
	p.mu.Lock()
	switch {
	case p.envValue != "":
		p.current = p.envValue
		p.source = types.SourceEnvironment
	case p.cliValue != "":
		p.current = p.cliValue
		p.source = types.SourceCommandLine
	default:
		p.current = p.defaultValue
		p.source = types.SourceDefault
	}
	p.lastUpdated = time.Now()
	event := types.ChangeEvent{
		Directory: p.current,
		Source:    p.source,
		Success:   true,
		Timestamp: p.lastUpdated,
	}
	observers := p.snapshotObserversLocked()
	p.mu.Unlock()

	p.log.Info("roots configuration cleared", zap.String("source", string(event.Source)))
	p.recordUpdate(event.Source, true)
	p.dispatch(observers, event)
}

// Subscribe registers an observer and returns its handle for removal.
func (p *Provider) Subscribe(cb Observer) string {
	id := uuid.NewString()
	p.mu.Lock()
	p.observers = append(p.observers, registeredObserver{id: id, cb: cb})
	p.mu.Unlock()
	return id
}

// Unsubscribe removes a previously registered observer.
func (p *Provider) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, obs := range p.observers {
		if obs.id == id {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			return
		}
	}
}

// AllowedDirectories returns a copy of the whitelist.
func (p *Provider) AllowedDirectories() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.allowed...)
}

// UpdateAllowedDirectories replaces the whitelist. Every entry is
// normalized to an absolute path on ingestion; entries that cannot be
// normalized are dropped.
func (p *Provider) UpdateAllowedDirectories(dirs []string) {
	normalized := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if n, err := paths.Normalize(d); err == nil {
			normalized = append(normalized, n)
		}
	}

	p.mu.Lock()
	p.allowed = normalized
	p.mu.Unlock()
}

// commit applies an accepted directory update and schedules notification.
func (p *Provider) commit(directory string, source types.ConfigurationSource) {
	p.mu.Lock()
	p.current = directory
	p.source = source
	p.lastUpdated = time.Now()
	event := types.ChangeEvent{
		Directory: directory,
		Source:    source,
		Success:   true,
		Timestamp: p.lastUpdated,
	}
	observers := p.snapshotObserversLocked()
	p.mu.Unlock()

	p.log.Info("output directory updated",
		zap.String("directory", directory),
		zap.String("source", string(source)),
	)
	p.recordUpdate(source, true)
	p.dispatch(observers, event)
}

// notifyFailure delivers a failed event carrying the last-known-good
// directory so consumers can surface the rejection without losing it.
func (p *Provider) notifyFailure(reason string) {
	p.mu.RLock()
	event := types.ChangeEvent{
		Directory: p.current,
		Source:    p.source,
		Success:   false,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	observers := p.snapshotObserversLocked()
	p.mu.RUnlock()

	p.dispatch(observers, event)
}

func (p *Provider) snapshotObserversLocked() []registeredObserver {
	return append([]registeredObserver(nil), p.observers...)
}

// dispatch invokes observers in registration order on a separate goroutine,
// so delivery never blocks the updater. One observer's panic is isolated
// from the rest. Deliveries still pending at process exit are lost;
// notification is best-effort fire-and-forget.
func (p *Provider) dispatch(observers []registeredObserver, event types.ChangeEvent) {
	if len(observers) == 0 {
		return
	}
	go func() {
		for _, obs := range observers {
			p.invoke(obs, event)
		}
	}()
}

func (p *Provider) invoke(obs registeredObserver, event types.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("configuration observer panicked",
				zap.String("observer", obs.id),
				zap.Any("cause", r),
			)
		}
	}()
	if p.metrics != nil {
		p.metrics.RecordObserverDelivery()
	}
	obs.cb(event)
}

func (p *Provider) recordUpdate(source types.ConfigurationSource, success bool) {
	if p.metrics != nil {
		p.metrics.RecordConfigUpdate(string(source), success)
	}
}

// baselineCheck rejects embedded control characters even when no security
// validator is attached upstream.
func baselineCheck(path string) (string, bool) {
	if path == "" {
		return "Ruta vacía", false
	}
	for _, r := range path {
		if r == 0 {
			return "Inyección de byte nulo detectada", false
		}
		if unicode.IsControl(r) {
			return "Caracteres de control en la ruta", false
		}
	}
	return "", true
}
