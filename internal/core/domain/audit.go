package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AuditEntry is an immutable record of one governance action. The checksum is
// derived from the content so tampering is detectable.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Component string    `json:"component"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
	Checksum  string    `json:"checksum"`
}

// AuditChecksum computes the tamper-evident checksum for an entry's content.
func AuditChecksum(action, component, details string, ts time.Time) string {
	payload := fmt.Sprintf("%s|%s|%s|%d", action, component, details, ts.UnixNano())
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the checksum and reports whether the entry is intact.
func (e *AuditEntry) Verify() bool {
	return e.Checksum == AuditChecksum(e.Action, e.Component, e.Details, e.Timestamp)
}
