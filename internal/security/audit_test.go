package security

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andeslabs/cryptoqr/backend/internal/types"
)

func TestAuditLogAppendAndOrder(t *testing.T) {
	log := NewAuditLog(8)

	log.Append("/tmp/a", types.AuditAllowed, types.RiskLow, "ok")
	log.Append("/tmp/b", types.AuditBlocked, types.RiskHigh, "critical dir")

	entries := log.Entries(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "/tmp/a", entries[0].AttemptedPath)
	assert.Equal(t, "/tmp/b", entries[1].AttemptedPath)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestAuditLogEviction(t *testing.T) {
	log := NewAuditLog(3)

	for i := 0; i < 5; i++ {
		log.Append(fmt.Sprintf("/tmp/%d", i), types.AuditAllowed, types.RiskLow, "ok")
	}

	assert.Equal(t, 3, log.Len())

	entries := log.Entries(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "/tmp/2", entries[0].AttemptedPath)
	assert.Equal(t, "/tmp/4", entries[2].AttemptedPath)
}

func TestAuditLogLimit(t *testing.T) {
	log := NewAuditLog(8)
	for i := 0; i < 6; i++ {
		log.Append(fmt.Sprintf("/tmp/%d", i), types.AuditBlocked, types.RiskMedium, "reason")
	}

	entries := log.Entries(2)
	require.Len(t, entries, 2)
	// Newest last, limit keeps the most recent entries.
	assert.Equal(t, "/tmp/4", entries[0].AttemptedPath)
	assert.Equal(t, "/tmp/5", entries[1].AttemptedPath)
}

func TestAuditLogTruncatesHostilePath(t *testing.T) {
	log := NewAuditLog(4)
	log.Append(strings.Repeat("x", 50_000), types.AuditBlocked, types.RiskHigh, "too long")

	entries := log.Entries(0)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].AttemptedPath, maxAuditPathLen)
}

func TestAuditLogDefaultCapacity(t *testing.T) {
	log := NewAuditLog(0)
	log.Append("/tmp/a", types.AuditAllowed, types.RiskLow, "ok")
	assert.Equal(t, 1, log.Len())
}
