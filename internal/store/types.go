package store

import "time"

type TargetInsert struct {
	ID             string
	CampaignID     string
	Name           string
	Phone          string
	PhoneCanonical string
	Document       string
	DebtAmount     int64
	Now            time.Time
}

type TargetContactUpdate struct {
	ID             string
	Name           string
	Phone          string
	PhoneCanonical string
	DebtAmount     int64
	Now            time.Time
}

type TargetMatch struct {
	ID    string
	Found bool
}

type TargetForWorker struct {
	ID         string
	CampaignID string
	Name       string
	Phone      string
	DebtAmount int64
	Enabled    bool
	State      string
}

type TargetStateUpdate struct {
	ID    string
	State string
	Now   time.Time
}

type DuePromise struct {
	ID          string
	ContactName string
	Phone       string
	Amount      *int64
	DueDate     time.Time
}

type SyncRunStart struct {
	CampaignID string
	Strategy   string
	Now        time.Time
}

type SyncRunFinish struct {
	CampaignID string
	Strategy   string
	Status     string
	Imported   int
	Skipped    int
	LastError  string
	Now        time.Time
}

type SyncHistoryRow struct {
	CampaignID string    `json:"campaignId"`
	Strategy   string    `json:"deduplicateBy"`
	LastRunAt  time.Time `json:"lastSyncAt"`
	Status     string    `json:"status"`
	Imported   int       `json:"imported"`
	Skipped    int       `json:"skipped"`
	LastError  string    `json:"lastSyncError,omitempty"`
}

type CampaignRow struct {
	ID           string
	Name         string
	Status       string
	TemplateName string
	Instance     string
}

type CampaignStatsRow struct {
	Total     int
	Contacted int
	Succeeded int
	Promises  int
}
