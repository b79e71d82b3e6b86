package domain

import (
	"errors"
	"time"
)

type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

type TargetState string

const (
	TargetPending   TargetState = "pending"
	TargetContacted TargetState = "contacted"
	TargetSucceeded TargetState = "succeeded"
	TargetFailed    TargetState = "failed"
)

type PromiseStatus string

const (
	PromisePending   PromiseStatus = "pending"
	PromiseFulfilled PromiseStatus = "fulfilled"
	PromiseBroken    PromiseStatus = "broken"
)

type SyncStatus string

const (
	SyncRunning SyncStatus = "running"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// DedupStrategy decides whether an imported record refers to an
// already-known debtor. "both" matches on either document or phone.
type DedupStrategy string

const (
	DedupByDocument DedupStrategy = "document"
	DedupByPhone    DedupStrategy = "phone"
	DedupByBoth     DedupStrategy = "both"
)

func (s DedupStrategy) Valid() bool {
	switch s {
	case DedupByDocument, DedupByPhone, DedupByBoth:
		return true
	}
	return false
}

type Campaign struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Status       CampaignStatus `json:"status"`
	StartDate    *time.Time     `json:"startDate,omitempty"`
	EndDate      *time.Time     `json:"endDate,omitempty"`
	Instructions string         `json:"instructions,omitempty"`
	TemplateName string         `json:"templateName"`
	Instance     string         `json:"instance"`
}

type CampaignTarget struct {
	ID            string      `json:"id"`
	CampaignID    string      `json:"campaignId"`
	Name          string      `json:"name"`
	Phone         string      `json:"phone"`
	Document      string      `json:"document,omitempty"`
	DebtAmount    int64       `json:"debtAmount"` // centavos
	Enabled       bool        `json:"enabled"`
	State         TargetState `json:"state"`
	LastAttemptAt *time.Time  `json:"lastAttemptAt,omitempty"`
}

type Promise struct {
	ID             string        `json:"id"`
	ContactName    string        `json:"contactName"`
	Phone          string        `json:"phoneNumber"`
	Amount         *int64        `json:"promisedAmount,omitempty"` // centavos
	DueDate        time.Time     `json:"dueDate"`
	Status         PromiseStatus `json:"status"`
	ReminderSent   bool          `json:"reminderSent"`
	ReminderSentAt *time.Time    `json:"reminderSentAt,omitempty"`
}

// SyncRequest triggers one CRM import run for a campaign.
type SyncRequest struct {
	DeduplicateBy  DedupStrategy `json:"deduplicateBy"`
	UpdateExisting bool          `json:"updateExisting"`
	RelativeDays   *int          `json:"relativeDays,omitempty"`
	StartDate      *time.Time    `json:"startDate,omitempty"`
	EndDate        *time.Time    `json:"endDate,omitempty"`
	MinDebtAmount  *int64        `json:"minDebtAmount,omitempty"`
	MaxDebtAmount  *int64        `json:"maxDebtAmount,omitempty"`
}

func (r SyncRequest) Validate() error {
	if !r.DeduplicateBy.Valid() {
		return ErrUnknownStrategy
	}
	if r.RelativeDays != nil && *r.RelativeDays < 0 {
		return ErrBadDateRange
	}
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		return ErrBadDateRange
	}
	return nil
}

// Window resolves the date filter to an inclusive [from, to] range.
// A relative range wins over explicit bounds; no bounds means all time
// up to now.
func (r SyncRequest) Window(now time.Time) (time.Time, time.Time) {
	if r.RelativeDays != nil {
		return now.AddDate(0, 0, -*r.RelativeDays), now
	}
	from := time.Time{}
	to := now
	if r.StartDate != nil {
		from = *r.StartDate
	}
	if r.EndDate != nil {
		to = *r.EndDate
	}
	return from, to
}

type SyncSummary struct {
	CampaignID string     `json:"campaignId"`
	Strategy   string     `json:"deduplicateBy"`
	Status     SyncStatus `json:"status"`
	Imported   int        `json:"imported"`
	Skipped    int        `json:"skipped"`
	LastError  string     `json:"lastSyncError,omitempty"`
}

// SendTemplateRequest is the operational-tooling surface over the
// template dispatcher.
type SendTemplateRequest struct {
	To           string            `json:"to"`
	Instance     string            `json:"instance"`
	TemplateName string            `json:"templateName"`
	Language     string            `json:"language,omitempty"`
	BodyParams   []string          `json:"bodyParams,omitempty"`
	HeaderParams map[string]string `json:"headerParams,omitempty"`
}

func (r SendTemplateRequest) Validate() error {
	if r.To == "" || r.TemplateName == "" {
		return ErrMissingFields
	}
	if len(r.HeaderParams) > 1 {
		return ErrTooManyHeaderParams
	}
	return nil
}

type CampaignStats struct {
	CampaignID string `json:"campaignId"`
	Total      int    `json:"totalTargets"`
	Contacted  int    `json:"contactedTargets"`
	Succeeded  int    `json:"successfulTargets"`
	Promises   int    `json:"promisesMade"`
}

var (
	ErrMissingFields       = errors.New("missing required fields")
	ErrUnknownStrategy     = errors.New("unknown dedup strategy")
	ErrBadDateRange        = errors.New("invalid date range")
	ErrTooManyHeaderParams = errors.New("at most one header parameter is supported")
)
