package assignment

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"brokerage_backoffice/internal/leads/domain"
	"brokerage_backoffice/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readReport(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(reportSheet)
	require.NoError(t, err)
	return rows
}

func TestReportRendersBatchRows(t *testing.T) {
	f := newFixture(t)
	ids := f.leads.add(2, f.actor, domain.StatusNew)
	batchID := uuid.NewString()
	f.ledger.seedBatch(batchID, f.actor, f.assignee, ids, f.now.Add(-30*time.Minute))

	archive := &fakeArchive{}
	f.svc.WithArchive(archive, "batch-reports")

	report, err := f.svc.Report(context.Background(), f.actor, batchID)
	require.NoError(t, err)
	assert.Equal(t, "batch-"+batchID+".xlsx", report.Filename)

	rows := readReport(t, report.Data)
	require.Len(t, rows, 3)
	assert.Equal(t, reportColumns, rows[0])

	lead := f.leads.get(ids[0])
	assert.Equal(t, lead.Name, rows[1][0])
	assert.Equal(t, lead.Phone, rows[1][1])
	assert.Equal(t, "NEW", rows[1][6])
	assert.Equal(t, "Rahul Mehta", rows[1][7])
	assert.Equal(t, "2026-03-10 08:30", rows[1][9])

	assert.Equal(t, "batch-reports", archive.bucket)
	assert.Equal(t, f.actor.String()+"/"+batchID+".xlsx", archive.key)
	assert.Equal(t, report.Data, archive.data)
}

func TestReportArchiveFailureStillServes(t *testing.T) {
	f := newFixture(t)
	batchID := uuid.NewString()
	f.ledger.seedBatch(batchID, f.actor, f.assignee, f.leads.add(1, f.actor, domain.StatusNew), f.now)
	f.svc.WithArchive(&fakeArchive{err: errors.New("bucket missing")}, "batch-reports")

	report, err := f.svc.Report(context.Background(), f.actor, batchID)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Data)
}

func TestReportScopedToCreator(t *testing.T) {
	f := newFixture(t)
	batchID := uuid.NewString()
	f.ledger.seedBatch(batchID, f.actor, f.assignee, f.leads.add(1, f.actor, domain.StatusNew), f.now)

	_, err := f.svc.Report(context.Background(), uuid.New(), batchID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Report(context.Background(), f.actor, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
