package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scc-edu/registry-sync/internal/models"
	"github.com/scc-edu/registry-sync/internal/remote"
	"github.com/scc-edu/registry-sync/pkg/config"
	appErrors "github.com/scc-edu/registry-sync/pkg/errors"
)

type duplicateChecker interface {
	IsDuplicate(ctx context.Context, studentID, email string) (bool, error)
}

type queuedWriter interface {
	Write(ctx context.Context, collection, key string, payload any) error
}

// ImportService ingests a tabular file of candidate roster entries,
// validates and deduplicates each row against the canonical identity set,
// commits accepted rows through the offline queue and reports per-row
// outcomes. No single bad row aborts the batch; the only batch-fatal error
// is malformed input structure.
type ImportService struct {
	checker   duplicateChecker
	queue     queuedWriter
	audit     *AuditService
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	maxRows   int
}

// NewImportService constructs the import pipeline.
func NewImportService(checker duplicateChecker, queue queuedWriter, audit *AuditService, cfg config.ImportConfig, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ImportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	return &ImportService{
		checker:   checker,
		queue:     queue,
		audit:     audit,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		maxRows:   cfg.MaxRows,
	}
}

// ParseTable maps raw rows to import rows, enforcing the run's row budget.
func (s *ImportService) ParseTable(raw [][]string) ([]models.ImportRow, error) {
	rows, err := ParseTable(raw)
	if err != nil {
		return nil, err
	}
	if len(rows) > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("import exceeds the row limit of %d", s.maxRows))
	}
	return rows, nil
}

// Run processes rows in input order. Each row is validated, checked against
// the canonical identity set, and committed through the offline queue; a
// queued write counts as accepted since the data is safe, just pending.
func (s *ImportService) Run(ctx context.Context, rows []models.ImportRow) models.ImportReport {
	report := models.ImportReport{Rows: make([]models.ImportRowResult, 0, len(rows))}

	// Keys accepted earlier in this batch: the reconciler cannot see them
	// yet when the writes are still queued, so the batch tracks its own.
	acceptedKeys := make(map[string]struct{})

	for _, row := range rows {
		result := s.processRow(ctx, row, acceptedKeys)
		report.Rows = append(report.Rows, result)
		switch result.Outcome {
		case models.ImportAccepted:
			report.Accepted++
		case models.ImportSkippedDuplicate:
			report.SkippedDuplicate++
		case models.ImportFailed:
			report.Failed++
		}
		s.metrics.RecordImportRow(string(result.Outcome))
	}

	s.logger.Info("import finished",
		zap.Int("accepted", report.Accepted),
		zap.Int("skipped_duplicate", report.SkippedDuplicate),
		zap.Int("failed", report.Failed))
	return report
}

func (s *ImportService) processRow(ctx context.Context, row models.ImportRow, acceptedKeys map[string]struct{}) models.ImportRowResult {
	result := models.ImportRowResult{Line: row.Line, StudentID: row.StudentID}

	if reason := s.validateRow(row); reason != "" {
		result.Outcome = models.ImportFailed
		result.Reason = reason
		return result
	}

	key := strings.ToUpper(strings.TrimSpace(row.StudentID))
	if _, seen := acceptedKeys[key]; seen {
		result.Outcome = models.ImportSkippedDuplicate
		result.Reason = "duplicate of an earlier row in this batch"
		return result
	}

	dup, err := s.checker.IsDuplicate(ctx, row.StudentID, row.Email)
	if err != nil {
		result.Outcome = models.ImportFailed
		result.Reason = "duplicate check unavailable"
		s.logger.Warn("import duplicate check failed", zap.Int("line", row.Line), zap.Error(err))
		return result
	}
	if dup {
		result.Outcome = models.ImportSkippedDuplicate
		result.Reason = "student already exists in the registry"
		s.audit.Record(ctx, models.AuditActionImportSkipDup, "roster", row.StudentID, result.Reason, nil)
		return result
	}

	entry := rosterEntryFromRow(row)
	err = s.queue.Write(ctx, remote.CollectionRoster, entry.StudentID, entry)
	if err != nil && !appErrors.IsQueued(err) {
		result.Outcome = models.ImportFailed
		result.Reason = appErrors.FromError(err).Message
		s.audit.Record(ctx, models.AuditActionImportReject, "roster", row.StudentID, result.Reason, nil)
		return result
	}

	acceptedKeys[key] = struct{}{}
	result.Outcome = models.ImportAccepted
	if appErrors.IsQueued(err) {
		result.Reason = "queued for delivery"
	}

	payload, _ := json.Marshal(entry)
	s.audit.Record(ctx, models.AuditActionImportAccept, "roster", entry.StudentID, "bulk import", payload)
	return result
}

// validateRow enforces required fields and the business-key format. The
// returned reason is empty for a valid row.
func (s *ImportService) validateRow(row models.ImportRow) string {
	if err := s.validator.Struct(row); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			if fe.Tag() == "required" {
				return fmt.Sprintf("missing required field: %s", lowerFirst(fe.Field()))
			}
			return fmt.Sprintf("invalid value for field: %s", lowerFirst(fe.Field()))
		}
		return "invalid row"
	}
	if !models.ValidStudentID(row.StudentID) {
		return "student id does not match the expected format"
	}
	return ""
}

func rosterEntryFromRow(row models.ImportRow) models.RosterEntry {
	now := time.Now().UTC()
	return models.RosterEntry{
		InternalID: uuid.NewString(),
		StudentID:  strings.ToUpper(strings.TrimSpace(row.StudentID)),
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		Email:      row.Email,
		Sex:        row.Sex,
		Course:     row.Course,
		Year:       row.Year,
		Section:    row.Section,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
