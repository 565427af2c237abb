package assignment

import (
	"context"
	"fmt"
	"time"

	"brokerage_backoffice/internal/leads/domain"
	"brokerage_backoffice/internal/queue"
	"brokerage_backoffice/platform/logger"
	"brokerage_backoffice/platform/metrics"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Processor executes queued bulk assign and revert jobs. Both jobs can be
// re-run with the same payload without changing the outcome.
type Processor struct {
	leads  LeadStore
	ledger Ledger
	log    *logger.Logger
	now    func() time.Time
}

func NewProcessor(leads LeadStore, ledger Ledger, log *logger.Logger) *Processor {
	return &Processor{leads: leads, ledger: ledger, log: log, now: time.Now}
}

// HandleBulkAssign is the asynq handler for queue.TaskBulkAssignLeads.
func (p *Processor) HandleBulkAssign(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseBulkAssignPayload(task)
	if err != nil {
		return err
	}
	return p.ProcessBulkAssign(ctx, payload)
}

// HandleRevert is the asynq handler for queue.TaskRevertBulkAssign.
func (p *Processor) HandleRevert(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseRevertBulkAssignPayload(task)
	if err != nil {
		return err
	}
	return p.ProcessRevert(ctx, payload)
}

type bulkAssignJob struct {
	batchID  string
	scope    domain.BulkAssignScope
	assignee uuid.UUID
	actor    uuid.UUID
	limit    int
}

func parseBulkAssignJob(payload queue.BulkAssignPayload) (bulkAssignJob, error) {
	if _, err := uuid.Parse(payload.BatchID); err != nil {
		return bulkAssignJob{}, queue.Invalid("invalid batch id %q", payload.BatchID)
	}
	assignee, err := uuid.Parse(payload.AssignTo)
	if err != nil {
		return bulkAssignJob{}, queue.Invalid("invalid assignee %q", payload.AssignTo)
	}
	actor, err := uuid.Parse(payload.UpdatedBy)
	if err != nil {
		return bulkAssignJob{}, queue.Invalid("invalid actor %q", payload.UpdatedBy)
	}
	status, ok := domain.ParseStatus(payload.Status)
	if !ok {
		return bulkAssignJob{}, queue.Invalid("invalid status %q", payload.Status)
	}
	if payload.Limit <= 0 {
		return bulkAssignJob{}, queue.Invalid("invalid limit %d", payload.Limit)
	}

	return bulkAssignJob{
		batchID:  payload.BatchID,
		scope:    domain.NewBulkAssignScope(actor, status),
		assignee: assignee,
		actor:    actor,
		limit:    payload.Limit,
	}, nil
}

// ProcessBulkAssign claims up to payload.Limit eligible leads for the
// assignee and logs one ASSIGN entry per claimed lead. Leads already logged
// for the batch count against the limit, so a retry only tops the batch up.
func (p *Processor) ProcessBulkAssign(ctx context.Context, payload queue.BulkAssignPayload) error {
	job, err := parseBulkAssignJob(payload)
	if err != nil {
		return err
	}
	log := p.log.WithContext(ctx).With("batchId", job.batchID)

	logged, err := p.ledger.Count(ctx, job.batchID, ActionAssign)
	if err != nil {
		return fmt.Errorf("count batch entries: %w", err)
	}

	remaining := job.limit - int(logged)
	claimed, lost := 0, 0
	seen := make(map[primitive.ObjectID]struct{})

	for remaining > 0 {
		ids, err := p.leads.FindEligibleIDs(ctx, job.scope, remaining+len(seen))
		if err != nil {
			return fmt.Errorf("find eligible leads: %w", err)
		}

		progressed := false
		for _, id := range ids {
			if remaining == 0 {
				break
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			progressed = true

			ok, err := p.claim(ctx, job, id)
			if err != nil {
				metrics.RecordLeadClaim("failed")
				return err
			}
			if !ok {
				lost++
				metrics.RecordLeadClaim("lost_race")
				continue
			}
			metrics.RecordLeadClaim("claimed")
			claimed++
			remaining--
		}
		if !progressed {
			break
		}
	}

	log.Info("bulk assign processed",
		"limit", job.limit,
		"alreadyLogged", logged,
		"claimed", claimed,
		"lostRace", lost,
		"shortfall", remaining,
	)
	return nil
}

// claim assigns one lead and logs it. A lead whose claim cannot be logged is
// released again so the ledger never misses an ownership change.
func (p *Processor) claim(ctx context.Context, job bulkAssignJob, id primitive.ObjectID) (bool, error) {
	ok, err := p.leads.Claim(ctx, id, job.scope, job.assignee)
	if err != nil {
		return false, fmt.Errorf("claim lead %s: %w", id.Hex(), err)
	}
	if !ok {
		return false, nil
	}

	assignee := job.assignee
	inserted, err := p.ledger.Append(ctx, Entry{
		BatchID:       job.batchID,
		LeadID:        id,
		ActionType:    ActionAssign,
		NewAssignedTo: &assignee,
		UpdatedBy:     job.actor,
		CreatedAt:     p.now(),
	})
	if err == nil && inserted {
		return true, nil
	}

	if releaseErr := p.leads.Release(ctx, id, job.assignee); releaseErr != nil {
		p.log.WithContext(ctx).Error("failed to release unlogged claim",
			"batchId", job.batchID,
			"leadId", id.Hex(),
			"error", releaseErr,
		)
	}
	if err != nil {
		return false, fmt.Errorf("log assignment of lead %s: %w", id.Hex(), err)
	}
	// Already logged for this batch by an earlier run.
	return false, nil
}

// ProcessRevert hands every lead of the batch back to its previous owner and
// logs a REVERT entry for it. A lead that changed owner since the batch is
// left alone.
func (p *Processor) ProcessRevert(ctx context.Context, payload queue.RevertBulkAssignPayload) error {
	if _, err := uuid.Parse(payload.BatchID); err != nil {
		return queue.Invalid("invalid batch id %q", payload.BatchID)
	}
	revertedBy, err := uuid.Parse(payload.RevertedBy)
	if err != nil {
		return queue.Invalid("invalid actor %q", payload.RevertedBy)
	}
	log := p.log.WithContext(ctx).With("batchId", payload.BatchID)

	assigns, err := p.ledger.Entries(ctx, payload.BatchID, ActionAssign)
	if err != nil {
		return fmt.Errorf("load batch entries: %w", err)
	}
	if len(assigns) == 0 {
		log.Warn("revert requested for empty batch")
		return nil
	}

	reverts, err := p.ledger.Entries(ctx, payload.BatchID, ActionRevert)
	if err != nil {
		return fmt.Errorf("load revert entries: %w", err)
	}
	done := make(map[primitive.ObjectID]struct{}, len(reverts))
	for _, e := range reverts {
		done[e.LeadID] = struct{}{}
	}

	pending := make([]Entry, 0, len(assigns))
	ids := make([]primitive.ObjectID, 0, len(assigns))
	for _, e := range assigns {
		if _, ok := done[e.LeadID]; ok {
			continue
		}
		pending = append(pending, e)
		ids = append(ids, e.LeadID)
	}
	if len(pending) == 0 {
		return nil
	}

	leads, err := p.leads.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load batch leads: %w", err)
	}

	restored, skipped := 0, 0
	for _, entry := range pending {
		ok, err := p.revertOne(ctx, entry, leads, revertedBy)
		if err != nil {
			metrics.RecordLeadRevert("failed")
			return err
		}
		if !ok {
			skipped++
			metrics.RecordLeadRevert("skipped")
			continue
		}
		restored++
		metrics.RecordLeadRevert("restored")
	}

	log.Info("bulk revert processed", "restored", restored, "skipped", skipped, "alreadyReverted", len(done))
	return nil
}

func (p *Processor) revertOne(ctx context.Context, entry Entry, leads map[primitive.ObjectID]domain.Lead, revertedBy uuid.UUID) (bool, error) {
	log := p.log.WithContext(ctx).With("batchId", entry.BatchID, "leadId", entry.LeadID.Hex())

	lead, ok := leads[entry.LeadID]
	if !ok || entry.NewAssignedTo == nil {
		log.Warn("skipping revert: lead no longer exists")
		return false, nil
	}

	switch {
	case lead.IsOwnedBy(*entry.NewAssignedTo):
		moved, err := p.leads.RestoreOwner(ctx, entry.LeadID, *entry.NewAssignedTo, entry.PreviousAssignedTo)
		if err != nil {
			return false, fmt.Errorf("restore lead %s: %w", entry.LeadID.Hex(), err)
		}
		if !moved {
			log.Warn("skipping revert: lead reassigned while reverting")
			return false, nil
		}
	case sameOwner(lead.AssignedTo, entry.PreviousAssignedTo):
		// Restored by an earlier attempt that failed before logging.
	default:
		log.Warn("skipping revert: lead reassigned since batch", "currentOwner", ownerLabel(lead.AssignedTo))
		return false, nil
	}

	if _, err := p.ledger.Append(ctx, Entry{
		BatchID:            entry.BatchID,
		LeadID:             entry.LeadID,
		ActionType:         ActionRevert,
		PreviousAssignedTo: entry.NewAssignedTo,
		NewAssignedTo:      entry.PreviousAssignedTo,
		UpdatedBy:          revertedBy,
		CreatedAt:          p.now(),
	}); err != nil {
		return false, fmt.Errorf("log revert of lead %s: %w", entry.LeadID.Hex(), err)
	}
	return true, nil
}

func sameOwner(a, b *uuid.UUID) bool {
	if a == nil || *a == uuid.Nil {
		return b == nil || *b == uuid.Nil
	}
	return b != nil && *a == *b
}

func ownerLabel(id *uuid.UUID) string {
	if id == nil {
		return "none"
	}
	return id.String()
}
