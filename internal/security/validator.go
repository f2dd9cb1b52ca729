package security

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/andeslabs/cryptoqr/backend/internal/infrastructure/monitoring"
	"github.com/andeslabs/cryptoqr/backend/internal/logging"
	"github.com/andeslabs/cryptoqr/backend/internal/shared/paths"
	"github.com/andeslabs/cryptoqr/backend/internal/types"
	"go.uber.org/zap"
)

// DefaultMinInterval is the minimum spacing between accepted validation
// calls. The rate gate protects the filesystem-probing stages from being
// hammered with crafted inputs.
const DefaultMinInterval = time.Second

// Validator decides whether a candidate output directory is safe. All
// mutable state (rate gate, audit ring, whitelist) is owned by the instance
// so independent validators can coexist.
type Validator struct {
	mu              sync.RWMutex // guards policy, allowedRoots, blockedPatterns
	policy          types.SecurityPolicy
	allowedRoots    []string
	blockedPatterns []string
	limiter         *rate.Limiter
	audit           *AuditLog
	metrics         *monitoring.Metrics
	log             *logging.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithMinInterval sets the minimum spacing between accepted validations.
func WithMinInterval(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithAuditCapacity bounds the audit ring buffer.
func WithAuditCapacity(n int) Option {
	return func(v *Validator) { v.audit = NewAuditLog(n) }
}

// WithBlockedPatterns adds operator-configured glob patterns that are
// rejected alongside the built-in critical directories.
func WithBlockedPatterns(patterns []string) Option {
	return func(v *Validator) { v.blockedPatterns = append([]string(nil), patterns...) }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(v *Validator) { v.log = l }
}

// NewValidator creates a validator for the given policy and whitelist.
// Whitelist entries are normalized on ingestion; entries that cannot be
// normalized are dropped.
func NewValidator(policy types.SecurityPolicy, allowedRoots []string, opts ...Option) *Validator {
	v := &Validator{
		policy:  policy,
		limiter: rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
		audit:   NewAuditLog(256),
		log:     logging.NewNop(),
	}
	v.allowedRoots = normalizeRoots(allowedRoots)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Policy returns the active security policy.
func (v *Validator) Policy() types.SecurityPolicy {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.policy
}

// AllowedRoots returns a copy of the active whitelist.
func (v *Validator) AllowedRoots() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.allowedRoots...)
}

// SetAllowedRoots replaces the whitelist, normalizing every entry.
func (v *Validator) SetAllowedRoots(roots []string) {
	normalized := normalizeRoots(roots)
	v.mu.Lock()
	v.allowedRoots = normalized
	v.mu.Unlock()
}

// AuditLog returns up to limit recent audit entries, newest last.
func (v *Validator) AuditLog(limit int) []types.AuditLogEntry {
	return v.audit.Entries(limit)
}

// Validate runs the full security pipeline over an untrusted candidate
// path. It never panics outward: internal failures become a failed result
// with risk level high. Every call is rate-gated and audit-logged.
func (v *Validator) Validate(path string) types.ValidationResult {
	return v.run(path, true, true)
}

// ValidateCandidate runs the pipeline without the rate gate but still audit
// logs the attempt. Callers carry their own rate limiting; the roots manager
// gates per notification, and a single notification may need several
// candidate checks.
func (v *Validator) ValidateCandidate(path string) types.ValidationResult {
	return v.run(path, false, true)
}

// Probe runs the same checks as Validate but skips the rate gate and audit
// log. It exists for introspection of already-stored directories, which is
// operator-facing and must not starve real validations of rate budget.
func (v *Validator) Probe(path string) types.ValidationResult {
	return v.run(path, false, false)
}

func (v *Validator) run(path string, gated, audited bool) (res types.ValidationResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = types.ValidationResult{
				Errors:    []string{"Internal validation error"},
				Message:   "Error interno durante la validación",
				RiskLevel: types.RiskHigh,
			}
			res.ProcessingTime = time.Since(start)
			v.log.Error("validation panic recovered", zap.Any("cause", r))
			if audited {
				v.record(path, types.AuditError, res)
			}
		}
	}()

	res = v.pipeline(path, gated)
	res.ProcessingTime = time.Since(start)

	if audited {
		outcome := types.AuditBlocked
		if res.IsValid {
			outcome = types.AuditAllowed
		}
		v.record(path, outcome, res)
	}
	return res
}

func (v *Validator) pipeline(path string, gated bool) types.ValidationResult {
	// Stage 1: rate gate, independent of the candidate. Only accepted
	// calls consume the interval, so a rejection here does not reset it.
	if gated && !v.limiter.Allow() {
		return failure(types.RiskLow, "Rate limit excedido", "Rate limit exceeded")
	}

	if len(path) > maxPathLength {
		return failure(types.RiskHigh, "Ruta demasiado larga", "Path too long")
	}
	if strings.TrimSpace(path) == "" {
		return failure(types.RiskMedium, "Ruta vacía", "Empty path")
	}

	// Stage 2: dangerous characters on the raw string.
	if signal := scanDangerousCharacters(path); signal != "" {
		risk := types.RiskHigh
		msg := "Caracteres peligrosos detectados en la ruta"
		if signal == "Null byte injection detected" {
			risk = types.RiskCritical
			msg = "Inyección de byte nulo detectada"
		}
		return failure(risk, msg, signal)
	}

	// Stage 3: traversal scan, before normalization. Normalization is
	// never the first line of defense.
	if signal := scanTraversal(path); signal != "" {
		return failure(types.RiskCritical, "Intento de path traversal detectado", signal)
	}

	// Stage 4: normalization.
	normalized, err := paths.Normalize(path)
	if err != nil {
		v.log.Warn("path normalization failed", zap.String("path", truncateForLog(path)), zap.Error(err))
		return failure(types.RiskHigh, "No se pudo normalizar la ruta", "Normalization failed")
	}

	// Stage 5: critical system directories and blocked patterns.
	if isCriticalPath(path, normalized) {
		return failure(types.RiskHigh, "Directorio del sistema protegido", "Critical system directory")
	}
	v.mu.RLock()
	policy := v.policy
	allowedRoots := v.allowedRoots
	blockedPatterns := v.blockedPatterns
	v.mu.RUnlock()

	if matchesBlockedPattern(normalized, blockedPatterns) {
		return failure(types.RiskHigh, "Directorio bloqueado por configuración", "Blocked by configured pattern")
	}

	// Stage 6: whitelist enforcement, policy-dependent.
	switch policy {
	case types.PolicyStrict:
		if !inWhitelist(normalized, allowedRoots) {
			return failure(types.RiskMedium, "El directorio no está en la lista de directorios permitidos", "Directory not in whitelist")
		}
	case types.PolicyStandard:
		if len(allowedRoots) > 0 && !inWhitelist(normalized, allowedRoots) {
			return failure(types.RiskMedium, "El directorio no está en la lista de directorios permitidos", "Directory not in whitelist")
		}
	case types.PolicyPermissive:
		// No whitelist checking.
	}

	return types.ValidationResult{
		IsValid:   true,
		Message:   "Directorio validado correctamente",
		RiskLevel: types.RiskLow,
	}
}

func (v *Validator) record(path string, outcome types.AuditResult, res types.ValidationResult) {
	reason := res.Message
	if len(res.Errors) > 0 {
		reason = res.Errors[0]
	}
	v.audit.Append(path, outcome, res.RiskLevel, reason)

	if v.metrics != nil {
		v.metrics.RecordValidation(string(outcome), string(res.RiskLevel), res.ProcessingTime)
	}
	if !res.IsValid {
		v.log.Warn("directory rejected",
			zap.String("path", truncateForLog(path)),
			zap.String("risk", string(res.RiskLevel)),
			zap.String("reason", reason),
		)
	}
}

func failure(risk types.RiskLevel, message, signal string) types.ValidationResult {
	return types.ValidationResult{
		Errors:    []string{signal},
		Message:   message,
		RiskLevel: risk,
	}
}

func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if normalized, err := paths.Normalize(r); err == nil {
			out = append(out, normalized)
		}
	}
	return out
}

func truncateForLog(s string) string {
	if len(s) > 128 {
		return s[:128]
	}
	return s
}
