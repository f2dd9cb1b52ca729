package roots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andeslabs/cryptoqr/backend/internal/config"
	"github.com/andeslabs/cryptoqr/backend/internal/security"
	"github.com/andeslabs/cryptoqr/backend/internal/types"
)

// newTestManager builds a manager with effectively unlimited rate budget and
// a standard-policy validator whitelisting the given roots.
func newTestManager(t *testing.T, allowedRoots []string, opts ...Option) *Manager {
	t.Helper()

	opts = append([]Option{WithMinInterval(time.Nanosecond)}, opts...)
	m := NewManager(config.New(), opts...)
	require.NoError(t, m.SetSecurityValidator("standard", allowedRoots,
		security.WithMinInterval(time.Nanosecond),
	))
	return m
}

func notification(roots ...string) types.RootsNotification {
	return types.RootsNotification{Roots: roots, Timestamp: time.Now()}
}

func TestHandleRootsChangedApplies(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, []string{dir})

	res := m.HandleRootsChanged(notification(dir))
	assert.True(t, res.IsValid)
	assert.Equal(t, dir, res.ValidDirectory)
	assert.Equal(t, "Directorio de salida actualizado correctamente", res.Message)
	assert.GreaterOrEqual(t, res.ProcessingTime, time.Duration(0))

	assert.Equal(t, dir, m.Provider().CurrentQRDirectory())
	assert.Equal(t, types.SourceRoots, m.Provider().Source())
}

func TestHandleRootsChangedEmptyList(t *testing.T) {
	m := newTestManager(t, nil)

	res := m.HandleRootsChanged(notification())
	assert.False(t, res.IsValid)
	assert.Equal(t, "Notificación inválida", res.Message)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "Empty roots list", res.Errors[0])
	assert.GreaterOrEqual(t, res.ProcessingTime, time.Duration(0))
}

func TestHandleRootsChangedBlankEntry(t *testing.T) {
	m := newTestManager(t, nil)

	res := m.HandleRootsChanged(notification(t.TempDir(), "   "))
	assert.False(t, res.IsValid)
	assert.Equal(t, "Notificación inválida", res.Message)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "Blank root entry", res.Errors[0])
}

func TestStructuralFailureDoesNotConsumeRateBudget(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(config.New(), WithMinInterval(time.Hour))
	require.NoError(t, m.SetSecurityValidator("standard", []string{dir},
		security.WithMinInterval(time.Nanosecond),
	))

	// Malformed payloads are rejected before the limiter.
	require.Equal(t, "Notificación inválida", m.HandleRootsChanged(notification()).Message)

	res := m.HandleRootsChanged(notification(dir))
	assert.True(t, res.IsValid, "structural rejection must not burn the rate budget")
}

func TestHandleRootsChangedRateLimited(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(config.New(), WithMinInterval(time.Hour))
	require.NoError(t, m.SetSecurityValidator("standard", []string{dir},
		security.WithMinInterval(time.Nanosecond),
	))

	require.True(t, m.HandleRootsChanged(notification(dir)).IsValid)

	res := m.HandleRootsChanged(notification(dir))
	assert.False(t, res.IsValid)
	assert.Equal(t, "Rate limit excedido", res.Message)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "Rate limit exceeded", res.Errors[0])
}

func TestHandleRootsChangedConcurrencyGuard(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, []string{dir})

	m.inFlight.Store(true)
	res := m.HandleRootsChanged(notification(dir))
	assert.False(t, res.IsValid)
	assert.Equal(t, "Ya hay una notificación en proceso", res.Message)
	m.inFlight.Store(false)

	// Released guard processes normally again.
	assert.True(t, m.HandleRootsChanged(notification(dir)).IsValid)
}

func TestFirstValidCandidateWins(t *testing.T) {
	winner := t.TempDir()
	never := t.TempDir()
	m := newTestManager(t, []string{winner})

	res := m.HandleRootsChanged(notification("/etc", winner, never))
	require.True(t, res.IsValid)
	assert.Equal(t, winner, res.ValidDirectory)

	// Iteration stops at the first valid candidate; the third path is
	// never evaluated.
	require.Len(t, res.Candidates, 2)
	assert.False(t, res.Candidates[0].Valid)
	assert.Equal(t, "/etc", res.Candidates[0].Path)
	assert.Equal(t, "Directorio del sistema protegido", res.Candidates[0].Reason)
	assert.True(t, res.Candidates[1].Valid)
	assert.Equal(t, winner, res.Candidates[1].Path)
}

func TestHandleRootsChangedNoValidCandidate(t *testing.T) {
	m := newTestManager(t, []string{t.TempDir()})

	before := m.Provider().CurrentQRDirectory()
	res := m.HandleRootsChanged(notification("/etc", "../../secret", t.TempDir()))
	assert.False(t, res.IsValid)
	assert.Equal(t, "Ningún directorio en la lista es válido", res.Message)
	assert.Len(t, res.Candidates, 3)

	// Configuration is untouched.
	assert.Equal(t, before, m.Provider().CurrentQRDirectory())
}

func TestCandidateAttemptsAreAudited(t *testing.T) {
	winner := t.TempDir()
	m := newTestManager(t, []string{winner})

	require.True(t, m.HandleRootsChanged(notification("/etc", winner)).IsValid)

	entries := m.Validator().AuditLog(0)
	require.Len(t, entries, 2)
	assert.Equal(t, types.AuditBlocked, entries[0].Result)
	assert.Equal(t, types.AuditAllowed, entries[1].Result)
}

func TestClearRootsConfiguration(t *testing.T) {
	envDir := t.TempDir()
	rootsDir := t.TempDir()

	m := NewManager(config.New(config.WithEnvironmentSeed(envDir)), WithMinInterval(time.Nanosecond))
	require.NoError(t, m.SetSecurityValidator("standard", []string{rootsDir},
		security.WithMinInterval(time.Nanosecond),
	))

	require.True(t, m.HandleRootsChanged(notification(rootsDir)).IsValid)
	require.Equal(t, types.SourceRoots, m.Provider().Source())

	require.NoError(t, m.ClearRootsConfiguration())
	assert.Equal(t, types.SourceEnvironment, m.Provider().Source())
	assert.Equal(t, envDir, m.Provider().CurrentQRDirectory())
}

func TestCurrentRoots(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, []string{dir})
	require.True(t, m.HandleRootsChanged(notification(dir)).IsValid)

	info := m.CurrentRoots()
	assert.Equal(t, types.SourceRoots, info.Source)
	assert.Equal(t, dir, info.CurrentDirectory)
	assert.Equal(t, []string{dir}, info.AllowedDirectories)
	assert.True(t, info.IsValid)
	assert.False(t, info.LastUpdated.IsZero())
}

func TestCurrentRootsFlagsInvalidDirectory(t *testing.T) {
	m := NewManager(config.New(config.WithEnvironmentSeed("/etc")), WithMinInterval(time.Nanosecond))
	require.NoError(t, m.SetSecurityValidator("standard", nil,
		security.WithMinInterval(time.Nanosecond),
	))

	info := m.CurrentRoots()
	assert.Equal(t, "/etc", info.CurrentDirectory)
	assert.False(t, info.IsValid)
}

func TestValidateDirectory(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, []string{dir})

	assert.True(t, m.ValidateDirectory(dir).IsValid)

	res := m.ValidateDirectory("  ")
	assert.False(t, res.IsValid)
	assert.Equal(t, "Ruta vacía", res.Message)
	assert.Equal(t, types.RiskMedium, res.RiskLevel)

	res = m.ValidateDirectory("../../etc")
	assert.False(t, res.IsValid)
	assert.Equal(t, "Intento de path traversal detectado", res.Message)
}

func TestSetSecurityValidatorRejectsUnknownPolicy(t *testing.T) {
	m := NewManager(config.New())

	err := m.SetSecurityValidator("paranoid", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paranoid")
	assert.Nil(t, m.Validator())
}

func TestSetSecurityValidatorSyncsWhitelist(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(config.New())

	require.NoError(t, m.SetSecurityValidator("strict", []string{dir}))
	assert.Equal(t, []string{dir}, m.Provider().AllowedDirectories())
	require.NotNil(t, m.Validator())
	assert.Equal(t, types.PolicyStrict, m.Validator().Policy())
}

func TestManagerWithoutValidatorUsesMinimalChecks(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(config.New(), WithMinInterval(time.Nanosecond))

	res := m.HandleRootsChanged(notification("../outside", dir))
	require.True(t, res.IsValid)
	assert.Equal(t, dir, res.ValidDirectory)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "Intento de path traversal detectado", res.Candidates[0].Reason)
}
