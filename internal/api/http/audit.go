package http

import (
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// AuditLog returns recent validation attempts. With Accept-Encoding: gzip
// (or ?gzip=true) the export is compressed, since forensic pulls of a full
// ring are bulky.
func (h *Handlers) AuditLog(c *gin.Context) {
	v := h.manager.Validator()
	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no security validator configured"})
		return
	}

	entries := v.AuditLog(parseLimit(c))
	payload, err := sonic.Marshal(gin.H{
		"entries": entries,
		"count":   len(entries),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit serialization failed"})
		return
	}

	wantsGzip := c.Query("gzip") == "true" ||
		strings.Contains(c.GetHeader("Accept-Encoding"), "gzip")
	if !wantsGzip {
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	c.Header("Content-Encoding", "gzip")
	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)

	zw := gzip.NewWriter(c.Writer)
	defer zw.Close()
	zw.Write(payload)
}
