package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/scc-edu/registry-sync/internal/models"
)

type auditSink interface {
	Create(ctx context.Context, rec *models.AuditRecord) error
}

// AuditService writes the engine's audit trail. Persistence is optional:
// without a sink every record still lands in the structured log. Audit
// failures never fail the operation being audited.
type AuditService struct {
	sink   auditSink
	logger *zap.Logger
}

// NewAuditService constructs an audit service; sink may be nil.
func NewAuditService(sink auditSink, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{sink: sink, logger: logger}
}

// Record logs and, when a sink is configured, persists one audit entry.
func (s *AuditService) Record(ctx context.Context, action, resource, resourceID, detail string, payload []byte) {
	if s == nil {
		return
	}
	s.logger.Info("audit",
		zap.String("action", action),
		zap.String("resource", resource),
		zap.String("resource_id", resourceID),
		zap.String("detail", detail))

	if s.sink == nil {
		return
	}
	rec := &models.AuditRecord{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Detail:     detail,
		Payload:    payload,
	}
	if err := s.sink.Create(ctx, rec); err != nil {
		s.logger.Warn("audit record not persisted", zap.String("action", action), zap.Error(err))
	}
}
