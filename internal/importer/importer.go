package importer

import (
	"context"
	"log/slog"
	"time"

	"outreach/internal/crm"
	"outreach/internal/domain"
	"outreach/internal/gateway"
	"outreach/internal/observability"
	"outreach/internal/store"
	"outreach/internal/util"
)

type Store interface {
	FindEnabledTarget(ctx context.Context, campaignID, document, phoneCanonical, strategy string) (store.TargetMatch, error)
	InsertTarget(ctx context.Context, in store.TargetInsert) error
	UpdateTargetContact(ctx context.Context, in store.TargetContactUpdate) error
	StartSyncRun(ctx context.Context, in store.SyncRunStart) error
	FinishSyncRun(ctx context.Context, in store.SyncRunFinish) error
}

type CRM interface {
	PullDebtors(ctx context.Context, from, to time.Time) ([]crm.DebtorRecord, error)
}

type Service struct {
	Store Store
	CRM   CRM
	IDGen func() string
}

// Run executes one import: pull, filter, dedup, insert/update/skip.
// Batch-level failures land in the sync history row instead of
// propagating; only the history write itself can return an error.
func (s *Service) Run(ctx context.Context, campaignID string, req domain.SyncRequest) (domain.SyncSummary, error) {
	now := util.NowUTC()
	strategy := string(req.DeduplicateBy)

	if err := s.Store.StartSyncRun(ctx, store.SyncRunStart{
		CampaignID: campaignID, Strategy: strategy, Now: now,
	}); err != nil {
		return domain.SyncSummary{}, err
	}

	from, to := req.Window(now)
	records, err := s.CRM.PullDebtors(ctx, from, to)
	if err != nil {
		slog.Error("crm pull failed", "err", err, "campaign_id", campaignID)
		observability.ImportRuns.WithLabelValues("failed").Inc()
		summary := domain.SyncSummary{
			CampaignID: campaignID, Strategy: strategy,
			Status: domain.SyncFailed, LastError: err.Error(),
		}
		return summary, s.finish(ctx, summary)
	}

	imported, skipped := 0, 0
	for _, rec := range records {
		// records outside the filters are excluded before matching:
		// neither imported nor skipped
		if !s.withinFilters(rec, req, from, to) {
			continue
		}
		switch s.importRecord(ctx, campaignID, rec, strategy, req.UpdateExisting) {
		case recordImported:
			imported++
		case recordSkipped:
			skipped++
		}
	}

	summary := domain.SyncSummary{
		CampaignID: campaignID, Strategy: strategy,
		Status: domain.SyncSuccess, Imported: imported, Skipped: skipped,
	}
	observability.ImportRuns.WithLabelValues("success").Inc()
	slog.Info("import run finished",
		"campaign_id", campaignID,
		"strategy", strategy,
		"imported", imported,
		"skipped", skipped,
	)
	return summary, s.finish(ctx, summary)
}

type recordOutcome int

const (
	recordImported recordOutcome = iota
	recordSkipped
)

func (s *Service) importRecord(ctx context.Context, campaignID string, rec crm.DebtorRecord, strategy string, updateExisting bool) recordOutcome {
	if rec.Name == "" || (rec.Phone == "" && rec.Document == "") {
		observability.ImportRecords.WithLabelValues("malformed").Inc()
		slog.Warn("malformed crm record skipped", "campaign_id", campaignID, "external_id", rec.ExternalID)
		return recordSkipped
	}

	// a record without a phone keeps an empty canonical so it can never
	// phone-match another phoneless debtor
	canonical := ""
	if rec.Phone != "" {
		canonical = gateway.CanonicalizePhone(rec.Phone)
	}

	match, err := s.Store.FindEnabledTarget(ctx, campaignID, rec.Document, canonical, strategy)
	if err != nil {
		observability.ImportRecords.WithLabelValues("error").Inc()
		slog.Error("target lookup failed", "err", err, "campaign_id", campaignID, "external_id", rec.ExternalID)
		return recordSkipped
	}

	now := util.NowUTC()
	if !match.Found {
		err := s.Store.InsertTarget(ctx, store.TargetInsert{
			ID:             s.IDGen(),
			CampaignID:     campaignID,
			Name:           rec.Name,
			Phone:          rec.Phone,
			PhoneCanonical: canonical,
			Document:       rec.Document,
			DebtAmount:     rec.DebtAmount,
			Now:            now,
		})
		if err != nil {
			observability.ImportRecords.WithLabelValues("error").Inc()
			slog.Error("target insert failed", "err", err, "campaign_id", campaignID, "external_id", rec.ExternalID)
			return recordSkipped
		}
		observability.ImportRecords.WithLabelValues("inserted").Inc()
		return recordImported
	}

	if !updateExisting {
		observability.ImportRecords.WithLabelValues("skipped").Inc()
		return recordSkipped
	}

	// an update counts as a successful import
	err = s.Store.UpdateTargetContact(ctx, store.TargetContactUpdate{
		ID:             match.ID,
		Name:           rec.Name,
		Phone:          rec.Phone,
		PhoneCanonical: canonical,
		DebtAmount:     rec.DebtAmount,
		Now:            now,
	})
	if err != nil {
		observability.ImportRecords.WithLabelValues("error").Inc()
		slog.Error("target update failed", "err", err, "campaign_id", campaignID, "target_id", match.ID)
		return recordSkipped
	}
	observability.ImportRecords.WithLabelValues("updated").Inc()
	return recordImported
}

func (s *Service) withinFilters(rec crm.DebtorRecord, req domain.SyncRequest, from, to time.Time) bool {
	if !rec.DebtDate.IsZero() {
		if !from.IsZero() && rec.DebtDate.Before(from) {
			return false
		}
		if rec.DebtDate.After(to) {
			return false
		}
	}
	if req.MinDebtAmount != nil && rec.DebtAmount < *req.MinDebtAmount {
		return false
	}
	if req.MaxDebtAmount != nil && rec.DebtAmount > *req.MaxDebtAmount {
		return false
	}
	return true
}

func (s *Service) finish(ctx context.Context, sum domain.SyncSummary) error {
	return s.Store.FinishSyncRun(ctx, store.SyncRunFinish{
		CampaignID: sum.CampaignID,
		Strategy:   sum.Strategy,
		Status:     string(sum.Status),
		Imported:   sum.Imported,
		Skipped:    sum.Skipped,
		LastError:  sum.LastError,
		Now:        util.NowUTC(),
	})
}
