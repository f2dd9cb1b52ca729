package types

import (
	"fmt"
	"time"
)

// ConfigurationSource identifies which precedence layer determines the
// active output directory.
type ConfigurationSource string

const (
	SourceDefault     ConfigurationSource = "default"
	SourceCommandLine ConfigurationSource = "command_line"
	SourceEnvironment ConfigurationSource = "environment"
	SourceRoots       ConfigurationSource = "roots"
)

// Precedence returns the numeric rank of a source. Higher wins.
func (s ConfigurationSource) Precedence() int {
	switch s {
	case SourceRoots:
		return 3
	case SourceEnvironment:
		return 2
	case SourceCommandLine:
		return 1
	case SourceDefault:
		return 0
	default:
		return -1
	}
}

// SecurityPolicy controls whitelist enforcement strength.
type SecurityPolicy string

const (
	PolicyStrict     SecurityPolicy = "strict"
	PolicyStandard   SecurityPolicy = "standard"
	PolicyPermissive SecurityPolicy = "permissive"
)

// ParsePolicy converts operator input into a SecurityPolicy.
func ParsePolicy(s string) (SecurityPolicy, error) {
	switch SecurityPolicy(s) {
	case PolicyStrict:
		return PolicyStrict, nil
	case PolicyStandard:
		return PolicyStandard, nil
	case PolicyPermissive:
		return PolicyPermissive, nil
	default:
		return "", fmt.Errorf("unknown security policy: %q", s)
	}
}

// RiskLevel classifies a validation outcome for audit and alerting.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// AuditResult is the outcome recorded for a validation attempt.
type AuditResult string

const (
	AuditAllowed AuditResult = "allowed"
	AuditBlocked AuditResult = "blocked"
	AuditError   AuditResult = "error"
)

// ValidationResult is the outcome of a single directory security check.
type ValidationResult struct {
	IsValid        bool          `json:"is_valid"`
	Errors         []string      `json:"errors,omitempty"`
	Message        string        `json:"message"`
	RiskLevel      RiskLevel     `json:"risk_level"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// AuditLogEntry records one validation attempt. AttemptedPath keeps the raw
// input (truncated to a storage cap) so obfuscated attacks stay visible.
type AuditLogEntry struct {
	ID            string      `json:"id"`
	Timestamp     time.Time   `json:"timestamp"`
	AttemptedPath string      `json:"attempted_path"`
	Result        AuditResult `json:"result"`
	RiskLevel     RiskLevel   `json:"risk_level"`
	Reason        string      `json:"reason"`
}

// RootsNotification is the inbound message informing the server of
// directories the caller considers valid for file output.
type RootsNotification struct {
	Roots     []string  `json:"roots"`
	Timestamp time.Time `json:"timestamp"`
}

// CandidateResult carries per-candidate diagnostics from a roots change.
type CandidateResult struct {
	Path   string `json:"path"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// RootsValidationResult is the outcome of processing a roots notification.
type RootsValidationResult struct {
	IsValid        bool              `json:"is_valid"`
	ValidDirectory string            `json:"valid_directory,omitempty"`
	Message        string            `json:"message"`
	Errors         []string          `json:"errors,omitempty"`
	Candidates     []CandidateResult `json:"candidates,omitempty"`
	ProcessingTime time.Duration     `json:"processing_time"`
}

// RootsInfo is the introspection snapshot of the roots configuration.
type RootsInfo struct {
	Source             ConfigurationSource `json:"source"`
	CurrentDirectory   string              `json:"current_directory"`
	AllowedDirectories []string            `json:"allowed_directories"`
	IsValid            bool                `json:"is_valid"`
	LastUpdated        time.Time           `json:"last_updated"`
}

// DirectoryInfo is a best-effort probe of the active output directory.
type DirectoryInfo struct {
	Path         string    `json:"path"`
	Exists       bool      `json:"exists"`
	Writable     bool      `json:"writable"`
	QRFileCount  int       `json:"qr_file_count"`
	TotalSize    int64     `json:"total_size"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// ChangeEvent is delivered to configuration observers. Failed updates are
// delivered too, with Success false and the rejection reason, so consumers
// can surface the rejection without losing the last-known-good directory.
type ChangeEvent struct {
	Directory string              `json:"directory"`
	Source    ConfigurationSource `json:"source"`
	Success   bool                `json:"success"`
	Reason    string              `json:"reason,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}
