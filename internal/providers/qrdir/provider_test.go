package qrdir

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andeslabs/cryptoqr/backend/internal/config"
	"github.com/andeslabs/cryptoqr/backend/internal/roots"
	"github.com/andeslabs/cryptoqr/backend/internal/security"
	"github.com/andeslabs/cryptoqr/backend/internal/types"
)

func newTestProvider(t *testing.T, allowedRoots []string) *Provider {
	t.Helper()

	m := roots.NewManager(config.New(), roots.WithMinInterval(time.Nanosecond))
	require.NoError(t, m.SetSecurityValidator("standard", allowedRoots,
		security.WithMinInterval(time.Nanosecond),
	))
	return NewProvider(m)
}

func TestDefinition(t *testing.T) {
	p := newTestProvider(t, nil)

	def := p.Definition()
	assert.Equal(t, "qrdir", def.ID)
	assert.Equal(t, types.CategorySecurity, def.Category)

	toolIDs := make(map[string]bool)
	for _, tool := range def.Tools {
		toolIDs[tool.ID] = true
		assert.NotEmpty(t, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}

	assert.True(t, toolIDs["qrdir.list_allowed"])
	assert.True(t, toolIDs["qrdir.info"])
	assert.True(t, toolIDs["qrdir.set"])
	assert.True(t, toolIDs["qrdir.validate"])
	assert.True(t, toolIDs["qrdir.roots"])
	assert.True(t, toolIDs["qrdir.clear"])
	assert.True(t, toolIDs["qrdir.audit"])
	assert.True(t, toolIDs["qrdir.set_policy"])
}

func TestListAllowed(t *testing.T) {
	dir := t.TempDir()
	p := newTestProvider(t, []string{dir})

	result, err := p.Execute(context.Background(), "qrdir.list_allowed", nil, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, []string{dir}, result.Data["directories"])
	assert.Equal(t, 1, result.Data["count"])
	assert.Equal(t, "1 directorios permitidos", result.Data["summary"])
}

func TestSetDirectory(t *testing.T) {
	dir := t.TempDir()
	p := newTestProvider(t, []string{dir})

	result, err := p.Execute(context.Background(), "qrdir.set", map[string]interface{}{
		"directory": dir,
	}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, dir, result.Data["directory"])

	assert.Equal(t, dir, p.manager.Provider().CurrentQRDirectory())
	assert.Equal(t, types.SourceCommandLine, p.manager.Provider().Source())
}

func TestSetDirectoryRejectsUnsafePath(t *testing.T) {
	p := newTestProvider(t, nil)
	before := p.manager.Provider().CurrentQRDirectory()

	result, err := p.Execute(context.Background(), "qrdir.set", map[string]interface{}{
		"directory": "../../etc",
	}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, "Intento de path traversal detectado", *result.Error)

	assert.Equal(t, before, p.manager.Provider().CurrentQRDirectory())
}

func TestSetDirectoryRequiresParameter(t *testing.T) {
	p := newTestProvider(t, nil)

	result, err := p.Execute(context.Background(), "qrdir.set", map[string]interface{}{}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestValidateTool(t *testing.T) {
	dir := t.TempDir()
	p := newTestProvider(t, []string{dir})

	result, err := p.Execute(context.Background(), "qrdir.validate", map[string]interface{}{
		"directory": dir,
	}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	vr, ok := result.Data["validation"].(types.ValidationResult)
	require.True(t, ok)
	assert.True(t, vr.IsValid)
	assert.Equal(t, "Directorio validado correctamente", result.Data["summary"])
}

func TestRootsAndClear(t *testing.T) {
	dir := t.TempDir()
	p := newTestProvider(t, []string{dir})

	require.True(t, p.manager.HandleRootsChanged(types.RootsNotification{
		Roots:     []string{dir},
		Timestamp: time.Now(),
	}).IsValid)

	result, err := p.Execute(context.Background(), "qrdir.roots", nil, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	info, ok := result.Data["roots"].(types.RootsInfo)
	require.True(t, ok)
	assert.Equal(t, types.SourceRoots, info.Source)
	assert.Equal(t, dir, info.CurrentDirectory)

	result, err = p.Execute(context.Background(), "qrdir.clear", nil, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	info, ok = result.Data["roots"].(types.RootsInfo)
	require.True(t, ok)
	assert.Equal(t, types.SourceDefault, info.Source)
}

func TestDirectoryInfoTool(t *testing.T) {
	p := newTestProvider(t, nil)

	result, err := p.Execute(context.Background(), "qrdir.info", nil, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	info, ok := result.Data["info"].(types.DirectoryInfo)
	require.True(t, ok)
	assert.NotEmpty(t, info.Path)
	assert.NotEmpty(t, result.Data["summary"])
}

func TestAuditTool(t *testing.T) {
	dir := t.TempDir()
	p := newTestProvider(t, []string{dir})

	// Generate one blocked and one allowed entry.
	p.manager.ValidateDirectory("../../etc")
	p.manager.ValidateDirectory(dir)

	result, err := p.Execute(context.Background(), "qrdir.audit", map[string]interface{}{
		"limit": 1,
	}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	entries, ok := result.Data["entries"].([]types.AuditLogEntry)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, types.AuditAllowed, entries[0].Result)
}

func TestSetPolicyTool(t *testing.T) {
	dir := t.TempDir()
	p := newTestProvider(t, nil)

	result, err := p.Execute(context.Background(), "qrdir.set_policy", map[string]interface{}{
		"policy":        "strict",
		"allowed_roots": []interface{}{dir},
	}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, types.PolicyStrict, p.manager.Validator().Policy())
	assert.Equal(t, []string{dir}, p.manager.Provider().AllowedDirectories())

	result, err = p.Execute(context.Background(), "qrdir.set_policy", map[string]interface{}{
		"policy": "paranoid",
	}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestUnknownTool(t *testing.T) {
	p := newTestProvider(t, nil)

	result, err := p.Execute(context.Background(), "qrdir.nope", nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "qrdir.nope")
}
