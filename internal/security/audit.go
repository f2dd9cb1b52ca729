package security

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andeslabs/cryptoqr/backend/internal/types"
)

// maxAuditPathLen caps the raw path stored per entry so a hostile 50k-char
// input cannot balloon the audit log.
const maxAuditPathLen = 512

// AuditLog is a bounded in-memory ring of validation attempts. When full,
// the oldest entry is evicted.
type AuditLog struct {
	mu       sync.Mutex
	entries  []types.AuditLogEntry
	head     int
	size     int
	capacity int
}

// NewAuditLog creates an audit log holding at most capacity entries.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = 256
	}
	return &AuditLog{
		entries:  make([]types.AuditLogEntry, capacity),
		capacity: capacity,
	}
}

// Append records a validation attempt.
func (a *AuditLog) Append(attemptedPath string, result types.AuditResult, risk types.RiskLevel, reason string) {
	if len(attemptedPath) > maxAuditPathLen {
		attemptedPath = attemptedPath[:maxAuditPathLen]
	}

	entry := types.AuditLogEntry{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		AttemptedPath: attemptedPath,
		Result:        result,
		RiskLevel:     risk,
		Reason:        reason,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries[(a.head+a.size)%a.capacity] = entry
	if a.size < a.capacity {
		a.size++
	} else {
		a.head = (a.head + 1) % a.capacity
	}
}

// Entries returns up to limit entries, newest last. A non-positive limit
// returns everything retained.
func (a *AuditLog) Entries(limit int) []types.AuditLogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.size
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]types.AuditLogEntry, 0, n)
	start := a.size - n
	for i := start; i < a.size; i++ {
		out = append(out, a.entries[(a.head+i)%a.capacity])
	}
	return out
}

// Len returns the number of retained entries.
func (a *AuditLog) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}
