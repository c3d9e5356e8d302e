package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/scc-edu/registry-sync/internal/models"
)

// AuditRepository persists the import/queue audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit record.
func (r *AuditRepository) Create(ctx context.Context, rec *models.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_records (id, action, resource, resource_id, detail, payload, created_at)
        VALUES (:id, :action, :resource, :resource_id, :detail, :payload, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("create audit record: %w", err)
	}
	return nil
}

// ListByResource returns audit records for a resource id, newest first.
func (r *AuditRepository) ListByResource(ctx context.Context, resourceID string, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, action, resource, resource_id, detail, payload, created_at
        FROM audit_records WHERE resource_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var records []models.AuditRecord
	if err := r.db.SelectContext(ctx, &records, query, resourceID); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}
