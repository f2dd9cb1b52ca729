package qrdir

import (
	"context"
	"fmt"

	"github.com/andeslabs/cryptoqr/backend/internal/roots"
	"github.com/andeslabs/cryptoqr/backend/internal/types"
)

// Provider exposes the QR output-directory operations as a tool surface for
// the outer command layer.
type Provider struct {
	manager *roots.Manager
}

// NewProvider creates a qrdir provider bound to a roots manager.
func NewProvider(manager *roots.Manager) *Provider {
	return &Provider{manager: manager}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "qrdir",
		Name:        "QR Directory Manager",
		Description: "Manage and inspect the directory QR codes are written to",
		Category:    types.CategorySecurity,
		Capabilities: []string{
			"list",
			"inspect",
			"update",
			"validate",
			"audit",
		},
		Tools: []types.Tool{
			{
				ID:          "qrdir.list_allowed",
				Name:        "List Allowed Directories",
				Description: "List the directories QR output may be written to",
				Parameters:  []types.Parameter{},
				Returns:     "array",
			},
			{
				ID:          "qrdir.info",
				Name:        "Get QR Directory Info",
				Description: "Inspect the active output directory (existence, writability, contents)",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "qrdir.set",
				Name:        "Set QR Directory",
				Description: "Validate and set the active output directory",
				Parameters: []types.Parameter{
					{Name: "directory", Type: "string", Description: "Directory path", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "qrdir.validate",
				Name:        "Validate Directory",
				Description: "Dry-run security validation of a directory path",
				Parameters: []types.Parameter{
					{Name: "directory", Type: "string", Description: "Directory path", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "qrdir.roots",
				Name:        "Get Roots Configuration",
				Description: "Introspect the current roots configuration and its provenance",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "qrdir.clear",
				Name:        "Clear Roots Configuration",
				Description: "Revert to the next-highest precedence configuration source",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "qrdir.audit",
				Name:        "Get Audit Log",
				Description: "Read recent validation attempts from the audit log",
				Parameters: []types.Parameter{
					{Name: "limit", Type: "number", Description: "Max entries to return", Required: false},
				},
				Returns: "array",
			},
			{
				ID:          "qrdir.set_policy",
				Name:        "Set Security Policy",
				Description: "Reconfigure the security validator policy and whitelist",
				Parameters: []types.Parameter{
					{Name: "policy", Type: "string", Description: "strict, standard or permissive", Required: true},
					{Name: "allowed_roots", Type: "array", Description: "Whitelisted directories", Required: false},
				},
				Returns: "boolean",
			},
		},
	}
}

// Execute runs a qrdir operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "qrdir.list_allowed":
		return p.listAllowed()
	case "qrdir.info":
		return p.directoryInfo(ctx)
	case "qrdir.set":
		return p.setDirectory(params)
	case "qrdir.validate":
		return p.validateDirectory(params)
	case "qrdir.roots":
		return p.currentRoots()
	case "qrdir.clear":
		return p.clearRoots()
	case "qrdir.audit":
		return p.auditLog(params)
	case "qrdir.set_policy":
		return p.setPolicy(params)
	default:
		return Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) listAllowed() (*types.Result, error) {
	dirs := p.manager.Provider().AllowedDirectories()
	return Success(map[string]interface{}{
		"directories": dirs,
		"count":       len(dirs),
		"summary":     fmt.Sprintf("%d directorios permitidos", len(dirs)),
	})
}

func (p *Provider) directoryInfo(ctx context.Context) (*types.Result, error) {
	info := p.manager.Provider().DirectoryInfo(ctx)

	summary := fmt.Sprintf("Directorio activo: %s", info.Path)
	if !info.Exists {
		summary = fmt.Sprintf("El directorio %s no existe todavía", info.Path)
	}

	return Success(map[string]interface{}{
		"info":    info,
		"summary": summary,
	})
}

func (p *Provider) setDirectory(params map[string]interface{}) (*types.Result, error) {
	dir, ok := getString(params, "directory")
	if !ok {
		return Failure("directory parameter required")
	}

	vr := p.manager.ValidateDirectory(dir)
	if !vr.IsValid {
		return Failure(vr.Message)
	}

	if !p.manager.Provider().UpdateFromCommandLine(dir) {
		return Failure("No se pudo aplicar el directorio")
	}

	current := p.manager.Provider().CurrentQRDirectory()
	return Success(map[string]interface{}{
		"directory": current,
		"summary":   fmt.Sprintf("Directorio de salida establecido en %s", current),
	})
}

func (p *Provider) validateDirectory(params map[string]interface{}) (*types.Result, error) {
	dir, ok := getString(params, "directory")
	if !ok {
		return Failure("directory parameter required")
	}

	vr := p.manager.ValidateDirectory(dir)
	return Success(map[string]interface{}{
		"validation": vr,
		"summary":    vr.Message,
	})
}

func (p *Provider) currentRoots() (*types.Result, error) {
	info := p.manager.CurrentRoots()
	return Success(map[string]interface{}{
		"roots":   info,
		"summary": fmt.Sprintf("Fuente actual: %s", info.Source),
	})
}

func (p *Provider) clearRoots() (*types.Result, error) {
	if err := p.manager.ClearRootsConfiguration(); err != nil {
		return Failure(err.Error())
	}

	info := p.manager.CurrentRoots()
	return Success(map[string]interface{}{
		"roots":   info,
		"summary": fmt.Sprintf("Configuración restablecida a la fuente %s", info.Source),
	})
}

func (p *Provider) auditLog(params map[string]interface{}) (*types.Result, error) {
	v := p.manager.Validator()
	if v == nil {
		return Failure("no security validator configured")
	}

	limit := 0
	if n, ok := getNumber(params, "limit"); ok {
		limit = int(n)
	}

	entries := v.AuditLog(limit)
	return Success(map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
		"summary": fmt.Sprintf("%d intentos de validación registrados", len(entries)),
	})
}

func (p *Provider) setPolicy(params map[string]interface{}) (*types.Result, error) {
	policy, ok := getString(params, "policy")
	if !ok {
		return Failure("policy parameter required")
	}

	var allowedRoots []string
	if raw, ok := params["allowed_roots"].([]interface{}); ok {
		for _, entry := range raw {
			if s, ok := entry.(string); ok {
				allowedRoots = append(allowedRoots, s)
			}
		}
	}

	if err := p.manager.SetSecurityValidator(policy, allowedRoots); err != nil {
		return Failure(err.Error())
	}

	return Success(map[string]interface{}{
		"policy":  policy,
		"summary": fmt.Sprintf("Política de seguridad establecida en %s", policy),
	})
}

// Success helper
func Success(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}

// Failure helper
func Failure(message string) (*types.Result, error) {
	msg := message
	return &types.Result{Success: false, Error: &msg}, nil
}

func getString(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok && v != ""
}

func getNumber(params map[string]interface{}, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
