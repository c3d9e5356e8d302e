package models

import "time"

// AuditAction constants represent engine actions worth a trail record.
const (
	AuditActionImportAccept  = "IMPORT_ACCEPT"
	AuditActionImportSkipDup = "IMPORT_SKIP_DUPLICATE"
	AuditActionImportReject  = "IMPORT_REJECT"
	AuditActionDeadLetter    = "WRITE_DEAD_LETTER"
)

// AuditRecord is one audit trail entry.
type AuditRecord struct {
	ID         string    `db:"id" json:"id"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID string    `db:"resource_id" json:"resourceId"`
	Detail     string    `db:"detail" json:"detail,omitempty"`
	Payload    []byte    `db:"payload" json:"payload,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
