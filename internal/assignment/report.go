package assignment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"brokerage_backoffice/internal/employees"
	"brokerage_backoffice/internal/leads/domain"
	"brokerage_backoffice/platform/apperr"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

const (
	ReportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	reportSheet      = "Batch Report"
	reportDateLayout = "2006-01-02 15:04"
)

var reportColumns = []string{
	"Lead Name",
	"Phone",
	"Email",
	"Location",
	"Property Type",
	"Budget",
	"Status",
	"Assigned To",
	"Previous Owner",
	"Assigned Date",
}

// Report is a rendered batch spreadsheet.
type Report struct {
	Filename string
	Data     []byte
}

type reportRow struct {
	lead          domain.Lead
	assignedTo    string
	previousOwner string
	assignedAt    time.Time
}

func (r reportRow) values() []interface{} {
	return []interface{}{
		r.lead.Name,
		r.lead.Phone,
		r.lead.Email,
		r.lead.Location,
		r.lead.PropertyType,
		r.lead.Budget,
		string(r.lead.Status),
		r.assignedTo,
		r.previousOwner,
		r.assignedAt.UTC().Format(reportDateLayout),
	}
}

// Report renders one row per lead of a batch the actor created.
func (s *Service) Report(ctx context.Context, actor uuid.UUID, rawBatchID string) (Report, error) {
	batchID := strings.TrimSpace(rawBatchID)
	if batchID == "" {
		return Report{}, apperr.Validation("batchId is required")
	}

	_, found, err := s.ledger.FindBatch(ctx, batchID, actor)
	if err != nil {
		return Report{}, err
	}
	if !found {
		return Report{}, apperr.NotFound("batch not found")
	}

	entries, err := s.ledger.Entries(ctx, batchID, ActionAssign)
	if err != nil {
		return Report{}, err
	}

	leadIDs := make([]primitive.ObjectID, 0, len(entries))
	people := make([]uuid.UUID, 0, len(entries)+1)
	for _, e := range entries {
		leadIDs = append(leadIDs, e.LeadID)
		if e.NewAssignedTo != nil {
			people = append(people, *e.NewAssignedTo)
		}
		if e.PreviousAssignedTo != nil {
			people = append(people, *e.PreviousAssignedTo)
		}
	}

	var (
		leads map[primitive.ObjectID]domain.Lead
		names map[uuid.UUID]employees.Employee
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		leads, err = s.leads.GetByIDs(gctx, leadIDs)
		return err
	})
	g.Go(func() error {
		var err error
		names, err = s.directory.Lookup(gctx, people)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rows := make([]reportRow, 0, len(entries))
	for _, e := range entries {
		lead, ok := leads[e.LeadID]
		if !ok {
			continue
		}
		rows = append(rows, reportRow{
			lead:          lead,
			assignedTo:    employeeName(e.NewAssignedTo, names),
			previousOwner: employeeName(e.PreviousAssignedTo, names),
			assignedAt:    e.CreatedAt,
		})
	}

	data, err := renderReport(rows)
	if err != nil {
		return Report{}, fmt.Errorf("render batch report: %w", err)
	}

	if s.archive != nil {
		key := fmt.Sprintf("%s/%s.xlsx", actor, batchID)
		if err := s.archive.Put(ctx, s.bucket, key, ReportContentType, data); err != nil {
			s.log.WithContext(ctx).Warn("failed to archive batch report", "batchId", batchID, "error", err)
		}
	}

	return Report{Filename: fmt.Sprintf("batch-%s.xlsx", batchID), Data: data}, nil
}

func employeeName(id *uuid.UUID, names map[uuid.UUID]employees.Employee) string {
	if id == nil {
		return ""
	}
	if e, ok := names[*id]; ok && e.Name != "" {
		return e.Name
	}
	return id.String()
}

func renderReport(rows []reportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, err
	}

	header := make([]interface{}, len(reportColumns))
	for i, col := range reportColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(reportSheet, "A1", &header); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastCol, err := excelize.ColumnNumberToName(len(reportColumns))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(reportSheet, "A1", lastCol+"1", bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(reportSheet, "A", lastCol, 20); err != nil {
		return nil, err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := row.values()
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
