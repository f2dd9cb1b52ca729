package roots

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/andeslabs/cryptoqr/backend/internal/config"
	"github.com/andeslabs/cryptoqr/backend/internal/infrastructure/monitoring"
	"github.com/andeslabs/cryptoqr/backend/internal/logging"
	"github.com/andeslabs/cryptoqr/backend/internal/security"
	"github.com/andeslabs/cryptoqr/backend/internal/shared/paths"
	"github.com/andeslabs/cryptoqr/backend/internal/types"
)

// DefaultMinInterval is the minimum spacing between accepted roots
// notifications. This limiter is independent of the validator's.
const DefaultMinInterval = time.Second

// Manager orchestrates roots change notifications: structural validation,
// rate limiting, a single in-flight guard, first-success candidate
// iteration, and the final configuration update.
type Manager struct {
	cfg       *config.Provider
	mu        sync.RWMutex // guards validator
	validator *security.Validator
	limiter   *rate.Limiter
	inFlight  atomic.Bool
	metrics   *monitoring.Metrics
	log       *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithValidator attaches a security validator at construction.
func WithValidator(v *security.Validator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithMinInterval sets the minimum spacing between accepted notifications.
func WithMinInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(mt *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a roots manager bound to a configuration provider.
func NewManager(cfg *config.Provider, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
		log:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HandleRootsChanged processes an inbound roots notification. It is
// exception-free by contract: every outcome, including internal failures,
// is reported as a structured result with a processing time and a human
// message.
func (m *Manager) HandleRootsChanged(n types.RootsNotification) (res types.RootsValidationResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			m.log.Error("roots notification panic recovered", zap.Any("cause", r))
			res = types.RootsValidationResult{
				Message: "Error interno procesando la notificación",
				Errors:  []string{"Internal error"},
			}
			res.ProcessingTime = time.Since(start)
			m.recordOutcome("error")
		}
	}()

	// Structural validation happens before the rate limiter so malformed
	// payloads cannot burn rate budget.
	if reason := structuralError(n); reason != "" {
		res = types.RootsValidationResult{
			Message:        "Notificación inválida",
			Errors:         []string{reason},
			ProcessingTime: time.Since(start),
		}
		m.recordOutcome("invalid")
		return res
	}

	if !m.limiter.Allow() {
		res = types.RootsValidationResult{
			Message:        "Rate limit excedido",
			Errors:         []string{"Rate limit exceeded"},
			ProcessingTime: time.Since(start),
		}
		m.recordOutcome("rate_limited")
		return res
	}

	// A second notification arriving while one is being processed is
	// rejected immediately, never queued.
	if !m.inFlight.CompareAndSwap(false, true) {
		res = types.RootsValidationResult{
			Message:        "Ya hay una notificación en proceso",
			Errors:         []string{"Concurrent notification rejected"},
			ProcessingTime: time.Since(start),
		}
		m.recordOutcome("conflict")
		return res
	}
	defer m.inFlight.Store(false)

	winner, candidates := m.firstValidCandidate(n.Roots)
	if winner == "" {
		res = types.RootsValidationResult{
			Message:        "Ningún directorio en la lista es válido",
			Errors:         []string{"No valid directory in roots"},
			Candidates:     candidates,
			ProcessingTime: time.Since(start),
		}
		m.recordOutcome("no_valid_candidate")
		return res
	}

	if !m.cfg.UpdateFromRoots(winner) {
		res = types.RootsValidationResult{
			Message:        "La configuración rechazó el directorio",
			Errors:         []string{"Configuration update rejected"},
			Candidates:     candidates,
			ProcessingTime: time.Since(start),
		}
		m.recordOutcome("rejected")
		return res
	}

	res = types.RootsValidationResult{
		IsValid:        true,
		ValidDirectory: m.cfg.CurrentQRDirectory(),
		Message:        "Directorio de salida actualizado correctamente",
		Candidates:     candidates,
		ProcessingTime: time.Since(start),
	}
	m.recordOutcome("applied")
	m.log.Info("roots notification applied",
		zap.String("directory", res.ValidDirectory),
		zap.Int("candidates_checked", len(candidates)),
	)
	return res
}

// firstValidCandidate walks the candidate list in order and stops at the
// first path that validates. Later candidates are never evaluated once one
// passes, avoiding unnecessary filesystem probing.
func (m *Manager) firstValidCandidate(candidates []string) (string, []types.CandidateResult) {
	results := make([]types.CandidateResult, 0, len(candidates))
	for _, candidate := range candidates {
		vr := m.checkCandidate(candidate)
		results = append(results, types.CandidateResult{
			Path:   candidate,
			Valid:  vr.IsValid,
			Reason: vr.Message,
		})
		if vr.IsValid {
			return candidate, results
		}
	}
	return "", results
}

// CurrentRoots returns the introspection snapshot. IsValid reflects whether
// the current directory still passes the attached validator; introspection
// failures degrade to false, never raise.
func (m *Manager) CurrentRoots() (info types.RootsInfo) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("roots introspection panic recovered", zap.Any("cause", r))
			info.IsValid = false
		}
	}()

	info = types.RootsInfo{
		Source:             m.cfg.Source(),
		CurrentDirectory:   m.cfg.CurrentQRDirectory(),
		AllowedDirectories: m.cfg.AllowedDirectories(),
		LastUpdated:        m.cfg.LastUpdated(),
	}

	m.mu.RLock()
	v := m.validator
	m.mu.RUnlock()

	if v != nil {
		// Probe skips the rate gate: introspection must not starve
		// real validations of rate budget.
		info.IsValid = v.Probe(info.CurrentDirectory).IsValid
	} else {
		info.IsValid = minimalCheck(info.CurrentDirectory).IsValid
	}
	return info
}

// ValidateDirectory performs an ad-hoc dry-run check of a single path,
// using the same validation as HandleRootsChanged.
func (m *Manager) ValidateDirectory(path string) types.ValidationResult {
	if strings.TrimSpace(path) == "" {
		return types.ValidationResult{
			Errors:    []string{"Empty path"},
			Message:   "Ruta vacía",
			RiskLevel: types.RiskMedium,
		}
	}
	return m.check(path)
}

// SetSecurityValidator (re)configures the attached validator. Unlike the
// notification path this is an operator action, so invalid policy input is
// an error.
func (m *Manager) SetSecurityValidator(policy string, allowedRoots []string, opts ...security.Option) error {
	parsed, err := types.ParsePolicy(policy)
	if err != nil {
		return fmt.Errorf("cannot configure validator: %w", err)
	}

	v := security.NewValidator(parsed, allowedRoots, opts...)

	m.mu.Lock()
	m.validator = v
	m.mu.Unlock()

	m.cfg.UpdateAllowedDirectories(allowedRoots)
	m.log.Info("security validator configured",
		zap.String("policy", string(parsed)),
		zap.Int("allowed_roots", len(allowedRoots)),
	)
	return nil
}

// Validator returns the attached validator, if any.
func (m *Manager) Validator() *security.Validator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validator
}

// ClearRootsConfiguration reverts to the next-highest precedence layer.
func (m *Manager) ClearRootsConfiguration() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("clearing roots configuration: %v", r)
		}
	}()
	m.cfg.ClearRoots()
	return nil
}

// Provider exposes the underlying configuration provider.
func (m *Manager) Provider() *config.Provider {
	return m.cfg
}

func (m *Manager) check(path string) types.ValidationResult {
	m.mu.RLock()
	v := m.validator
	m.mu.RUnlock()

	if v != nil {
		return v.Validate(path)
	}
	return minimalCheck(path)
}

// checkCandidate is the per-candidate variant used while processing a roots
// notification. The notification itself is already rate-gated, so candidate
// checks skip the validator's gate; they are still audit-logged.
func (m *Manager) checkCandidate(path string) types.ValidationResult {
	m.mu.RLock()
	v := m.validator
	m.mu.RUnlock()

	if v != nil {
		return v.ValidateCandidate(path)
	}
	return minimalCheck(path)
}

// minimalCheck covers the no-validator case: the path must be non-blank,
// normalizable, and free of parent references.
func minimalCheck(path string) types.ValidationResult {
	if strings.TrimSpace(path) == "" {
		return types.ValidationResult{
			Errors:    []string{"Empty path"},
			Message:   "Ruta vacía",
			RiskLevel: types.RiskMedium,
		}
	}
	if strings.Contains(path, "..") {
		return types.ValidationResult{
			Errors:    []string{"Path traversal detected"},
			Message:   "Intento de path traversal detectado",
			RiskLevel: types.RiskCritical,
		}
	}
	if _, err := paths.Normalize(path); err != nil {
		return types.ValidationResult{
			Errors:    []string{"Normalization failed"},
			Message:   "No se pudo normalizar la ruta",
			RiskLevel: types.RiskHigh,
		}
	}
	return types.ValidationResult{
		IsValid:   true,
		Message:   "Directorio validado correctamente",
		RiskLevel: types.RiskLow,
	}
}

func structuralError(n types.RootsNotification) string {
	if len(n.Roots) == 0 {
		return "Empty roots list"
	}
	for _, r := range n.Roots {
		if strings.TrimSpace(r) == "" {
			return "Blank root entry"
		}
	}
	return ""
}

func (m *Manager) recordOutcome(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordRootsNotification(outcome)
	}
}
