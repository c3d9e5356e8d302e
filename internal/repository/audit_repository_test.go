package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-edu/registry-sync/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_records").WillReturnResult(sqlmock.NewResult(1, 1))

	rec := &models.AuditRecord{Action: models.AuditActionImportAccept, Resource: "roster", ResourceID: "SCC-22-00000001"}
	err := repo.Create(context.Background(), rec)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByResource(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "action", "resource", "resource_id", "detail", "payload", "created_at"}).
		AddRow("1", models.AuditActionImportAccept, "roster", "SCC-22-00000001", "", []byte(`{}`), now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, action, resource, resource_id, detail, payload, created_at")).
		WithArgs("SCC-22-00000001").
		WillReturnRows(rows)

	records, err := repo.ListByResource(context.Background(), "SCC-22-00000001", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AuditActionImportAccept, records[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
