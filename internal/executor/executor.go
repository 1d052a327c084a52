// Package executor turns a confirmed conversation into workbook writes.
// It is the only code path that mutates the workbook, and every attempt
// leaves exactly one audit record regardless of outcome.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ergcontrols/sahabot/internal/audit"
	saherrors "github.com/ergcontrols/sahabot/internal/errors"
	"github.com/ergcontrols/sahabot/internal/logger"
	"github.com/ergcontrols/sahabot/internal/registry"
	"github.com/ergcontrols/sahabot/internal/workbook"
)

// CommitRequest is one confirmed operation ready to write.
type CommitRequest struct {
	Operation registry.Operation
	Fields    map[string]string
	// Entries carries bulk hardware rows; shared fields (site_id) stay in
	// Fields and are merged into each entry.
	Entries  []map[string]string
	Actor    string
	RawInput string
	// TicketID targets a specific support entry on update_support. Empty
	// means the latest unresolved entry for the site.
	TicketID string
	// Today refreshes last_verified on hardware and implementation writes.
	Today string
}

// CommitResult reports what was written.
type CommitResult struct {
	TicketID string
	SiteID   string
	Rows     int
}

// Executor writes confirmed operations to the workbook.
type Executor struct {
	store workbook.Store
	trail audit.Sink
}

func New(store workbook.Store, trail audit.Sink) *Executor {
	return &Executor{store: store, trail: trail}
}

// Commit writes the request. A transient store failure gets one retry; a
// validation or not-found failure never does. Each attempt is audited.
func (e *Executor) Commit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	res, err := e.attempt(ctx, req)
	e.record(ctx, req, res, err)

	if err != nil && saherrors.IsRetryable(err) {
		slog.Warn("Commit failed, retrying once",
			"operation", string(req.Operation),
			"site_id", req.Fields["site_id"],
			"error", err,
		)
		res, err = e.attempt(ctx, req)
		e.record(ctx, req, res, err)
	}

	return res, err
}

func (e *Executor) attempt(ctx context.Context, req CommitRequest) (CommitResult, error) {
	siteID := req.Fields["site_id"]
	res := CommitResult{SiteID: siteID, Rows: 1}

	switch req.Operation {
	case registry.OpCreateSite:
		return res, e.store.CreateSite(ctx, workbook.Row(req.Fields))

	case registry.OpLogSupport:
		ticketID, err := e.store.AppendSupport(ctx, workbook.Row(req.Fields))
		if err != nil {
			return res, err
		}
		res.TicketID = ticketID

		// A support visit proves contact with the site; the sites tab
		// tracks that as last_verified.
		if received := req.Fields["received_date"]; received != "" && siteID != "" {
			if err := e.store.UpdateSite(ctx, siteID, workbook.Row{"last_verified": received}); err != nil {
				slog.Warn("Failed to refresh last_verified", "site_id", siteID, "error", err)
			}
		}
		return res, nil

	case registry.OpUpdateSupport:
		idx, err := e.store.FindSupportRow(ctx, siteID, req.TicketID)
		if err != nil {
			return res, err
		}
		updates := workbook.Row{}
		for k, v := range req.Fields {
			if k == "site_id" {
				continue
			}
			updates[k] = v
		}
		res.TicketID = req.TicketID
		return res, e.store.UpdateSupportRow(ctx, idx, updates)

	case registry.OpUpdateSite:
		updates := workbook.Row{}
		for k, v := range req.Fields {
			if k == "site_id" {
				continue
			}
			updates[k] = v
		}
		return res, e.store.UpdateSite(ctx, siteID, updates)

	case registry.OpUpdateHardware:
		entries := req.Entries
		if len(entries) == 0 {
			entries = []map[string]string{req.Fields}
		}
		for _, entry := range entries {
			row := workbook.Row{}
			for k, v := range req.Fields {
				row[k] = v
			}
			for k, v := range entry {
				row[k] = v
			}
			if err := e.store.AppendHardware(ctx, row); err != nil {
				return res, err
			}
		}
		res.Rows = len(entries)
		e.touchSite(ctx, siteID, req.Today)
		return res, nil

	case registry.OpUpdateImpl:
		updates := workbook.Row{}
		for k, v := range req.Fields {
			if k == "site_id" {
				continue
			}
			updates[k] = v
		}
		if err := e.store.UpdateImplementation(ctx, siteID, updates); err != nil {
			return res, err
		}
		e.touchSite(ctx, siteID, req.Today)
		return res, nil

	case registry.OpUpdateStock:
		return res, e.store.AppendStock(ctx, workbook.Row(req.Fields))

	default:
		return res, saherrors.Internal(fmt.Sprintf("operation %s is not committable", req.Operation))
	}
}

// touchSite refreshes last_verified best-effort; a miss never fails the
// commit that triggered it.
func (e *Executor) touchSite(ctx context.Context, siteID, today string) {
	if siteID == "" || today == "" {
		return
	}
	if err := e.store.UpdateSite(ctx, siteID, workbook.Row{"last_verified": today}); err != nil {
		slog.Warn("Failed to refresh last_verified", "site_id", siteID, "error", err)
	}
}

func (e *Executor) record(ctx context.Context, req CommitRequest, res CommitResult, err error) {
	outcome := audit.OutcomeCommitted
	if err != nil {
		outcome = audit.OutcomeFailed
	}

	rec := audit.NewRecord(req.Actor, string(req.Operation), outcome)
	rec.SiteID = res.SiteID
	rec.TicketID = res.TicketID
	rec.RawInput = req.RawInput
	rec.Summary = req.Fields["issue_summary"]
	if err != nil {
		rec.Error = err.Error()
	}

	if werr := e.trail.Write(ctx, rec); werr != nil {
		slog.Error("Failed to write audit record",
			"id", rec.ID,
			"conversation_id", logger.GetConversationID(ctx),
			"trace_id", logger.GetTraceID(ctx),
			"error", werr,
		)
	}
}

// RecordCancelled audits a user cancellation. Nothing is written to the
// workbook but the trail still shows the attempt.
func (e *Executor) RecordCancelled(ctx context.Context, op registry.Operation, actor, rawInput string) {
	rec := audit.NewRecord(actor, string(op), audit.OutcomeCancelled)
	rec.RawInput = rawInput
	if err := e.trail.Write(ctx, rec); err != nil {
		slog.Error("Failed to write audit record", "id", rec.ID, "error", err)
	}
}

// RecordSkipped audits a chain step the user skipped.
func (e *Executor) RecordSkipped(ctx context.Context, op registry.Operation, actor, siteID string) {
	rec := audit.NewRecord(actor, string(op), audit.OutcomeSkipped)
	rec.SiteID = siteID
	if err := e.trail.Write(ctx, rec); err != nil {
		slog.Error("Failed to write audit record", "id", rec.ID, "error", err)
	}
}
