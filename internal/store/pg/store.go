package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// FindEnabledTarget looks up the enabled target an imported record should
// merge into. Strategy "both" matches on either document or canonical
// phone; a debtor keeps the same document across phone changes and vice
// versa.
func (s *Store) FindEnabledTarget(ctx context.Context, campaignID, document, phoneCanonical, strategy string) (store.TargetMatch, error) {
	var q string
	args := []any{campaignID}
	switch strategy {
	case "document":
		q = `SELECT id FROM campaign_targets
		     WHERE campaign_id=$1 AND enabled AND document<>'' AND document=$2
		     LIMIT 1`
		args = append(args, document)
	case "phone":
		q = `SELECT id FROM campaign_targets
		     WHERE campaign_id=$1 AND enabled AND phone_canonical<>'' AND phone_canonical=$2
		     LIMIT 1`
		args = append(args, phoneCanonical)
	default: // both
		q = `SELECT id FROM campaign_targets
		     WHERE campaign_id=$1 AND enabled
		       AND ((document<>'' AND document=$2) OR (phone_canonical<>'' AND phone_canonical=$3))
		     LIMIT 1`
		args = append(args, document, phoneCanonical)
	}

	var id string
	err := s.DB.QueryRow(ctx, q, args...).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.TargetMatch{}, nil
		}
		return store.TargetMatch{}, err
	}
	return store.TargetMatch{ID: id, Found: true}, nil
}

func (s *Store) InsertTarget(ctx context.Context, in store.TargetInsert) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO campaign_targets
			(id, campaign_id, name, phone, phone_canonical, document, debt_amount, enabled, state, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE,'pending',$8,$8)
	`, in.ID, in.CampaignID, in.Name, in.Phone, in.PhoneCanonical, in.Document, in.DebtAmount, in.Now)
	return err
}

// UpdateTargetContact overwrites the mutable fields of a matched target.
// The processing state is deliberately left untouched.
func (s *Store) UpdateTargetContact(ctx context.Context, in store.TargetContactUpdate) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE campaign_targets
		SET name=$2, phone=$3, phone_canonical=$4, debt_amount=$5, updated_at=$6
		WHERE id=$1
	`, in.ID, in.Name, in.Phone, in.PhoneCanonical, in.DebtAmount, in.Now)
	return err
}

func (s *Store) GetTargetForWorker(ctx context.Context, targetID string) (store.TargetForWorker, error) {
	var out store.TargetForWorker
	err := s.DB.QueryRow(ctx, `
		SELECT id, campaign_id, name, phone, debt_amount, enabled, state
		FROM campaign_targets WHERE id=$1
	`, targetID).Scan(&out.ID, &out.CampaignID, &out.Name, &out.Phone, &out.DebtAmount, &out.Enabled, &out.State)
	if err != nil {
		return store.TargetForWorker{}, err
	}
	return out, nil
}

func (s *Store) MarkTargetState(ctx context.Context, in store.TargetStateUpdate) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE campaign_targets
		SET state=$2, last_attempt_at=$3, updated_at=$3
		WHERE id=$1
	`, in.ID, in.State, in.Now)
	return err
}

func (s *Store) ListPendingTargetIDs(ctx context.Context, campaignID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id FROM campaign_targets
		WHERE campaign_id=$1 AND enabled AND state='pending'
		ORDER BY created_at
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) GetCampaign(ctx context.Context, campaignID string) (store.CampaignRow, bool, error) {
	var c store.CampaignRow
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, status, COALESCE(template_name,''), COALESCE(instance,'Principal')
		FROM campaigns WHERE id=$1
	`, campaignID).Scan(&c.ID, &c.Name, &c.Status, &c.TemplateName, &c.Instance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.CampaignRow{}, false, nil
		}
		return store.CampaignRow{}, false, err
	}
	return c, true, nil
}

// CampaignStats derives the aggregate counters; they are never stored as
// source of truth. Promises join on canonical phone since promises are
// tracked independently of campaigns.
func (s *Store) CampaignStats(ctx context.Context, campaignID string) (store.CampaignStatsRow, error) {
	var out store.CampaignStatsRow
	err := s.DB.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE state <> 'pending'),
		       count(*) FILTER (WHERE state = 'succeeded')
		FROM campaign_targets
		WHERE campaign_id=$1 AND enabled
	`, campaignID).Scan(&out.Total, &out.Contacted, &out.Succeeded)
	if err != nil {
		return store.CampaignStatsRow{}, err
	}

	err = s.DB.QueryRow(ctx, `
		SELECT count(DISTINCT p.id)
		FROM promises p
		JOIN campaign_targets t ON t.phone_canonical = p.phone_canonical
		WHERE t.campaign_id=$1 AND t.enabled
	`, campaignID).Scan(&out.Promises)
	if err != nil {
		return store.CampaignStatsRow{}, err
	}
	return out, nil
}

// ListDuePromises returns pending, unreminded promises whose due date
// falls inside the inclusive [from, to] window.
func (s *Store) ListDuePromises(ctx context.Context, from, to time.Time) ([]store.DuePromise, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, contact_name, phone, promised_amount, due_date
		FROM promises
		WHERE status='pending' AND reminder_sent=FALSE
		  AND due_date >= $1::date AND due_date <= $2::date
		ORDER BY due_date, id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.DuePromise
	for rows.Next() {
		var p store.DuePromise
		if err := rows.Scan(&p.ID, &p.ContactName, &p.Phone, &p.Amount, &p.DueDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkReminderSent flips the idempotency flag. The update is conditioned
// on the flag still being false so an overlapping tick cannot double-count
// a send; the caller must treat zero rows affected as a lost race.
func (s *Store) MarkReminderSent(ctx context.Context, promiseID string, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE promises
		SET reminder_sent=TRUE, reminder_sent_at=$2, updated_at=$2
		WHERE id=$1 AND reminder_sent=FALSE
	`, promiseID, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// StartSyncRun upserts the history row for (campaign, strategy) into the
// running state. Concurrent triggers are last-write-wins, not a queue.
func (s *Store) StartSyncRun(ctx context.Context, in store.SyncRunStart) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO sync_history (campaign_id, strategy, last_run_at, status, imported, skipped, last_error)
		VALUES ($1,$2,$3,'running',0,0,NULL)
		ON CONFLICT (campaign_id, strategy)
		DO UPDATE SET last_run_at=$3, status='running', imported=0, skipped=0, last_error=NULL
	`, in.CampaignID, in.Strategy, in.Now)
	return err
}

func (s *Store) FinishSyncRun(ctx context.Context, in store.SyncRunFinish) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE sync_history
		SET last_run_at=$3, status=$4, imported=$5, skipped=$6, last_error=$7
		WHERE campaign_id=$1 AND strategy=$2
	`, in.CampaignID, in.Strategy, in.Now, in.Status, in.Imported, in.Skipped, nullIfEmpty(in.LastError))
	return err
}

func (s *Store) LatestSyncHistory(ctx context.Context, campaignID string) (store.SyncHistoryRow, bool, error) {
	var row store.SyncHistoryRow
	var lastErr *string
	err := s.DB.QueryRow(ctx, `
		SELECT campaign_id, strategy, last_run_at, status, imported, skipped, last_error
		FROM sync_history WHERE campaign_id=$1
		ORDER BY last_run_at DESC LIMIT 1
	`, campaignID).Scan(&row.CampaignID, &row.Strategy, &row.LastRunAt, &row.Status, &row.Imported, &row.Skipped, &lastErr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.SyncHistoryRow{}, false, nil
		}
		return store.SyncHistoryRow{}, false, err
	}
	if lastErr != nil {
		row.LastError = *lastErr
	}
	return row, true, nil
}

func (s *Store) ListSyncHistory(ctx context.Context, campaignID string) ([]store.SyncHistoryRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT campaign_id, strategy, last_run_at, status, imported, skipped, last_error
		FROM sync_history WHERE campaign_id=$1
		ORDER BY last_run_at DESC
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SyncHistoryRow
	for rows.Next() {
		var row store.SyncHistoryRow
		var lastErr *string
		if err := rows.Scan(&row.CampaignID, &row.Strategy, &row.LastRunAt, &row.Status, &row.Imported, &row.Skipped, &lastErr); err != nil {
			return nil, err
		}
		if lastErr != nil {
			row.LastError = *lastErr
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
