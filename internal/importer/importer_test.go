package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"outreach/internal/crm"
	"outreach/internal/domain"
	"outreach/internal/store"
)

type fakeTarget struct {
	id       string
	name     string
	phone    string
	document string
	amount   int64
}

type fakeStore struct {
	targets    []*fakeTarget
	finished   []store.SyncRunFinish
	started    int
	lookupErr  error
	insertErr  error
}

func (f *fakeStore) FindEnabledTarget(_ context.Context, _, document, phoneCanonical, strategy string) (store.TargetMatch, error) {
	if f.lookupErr != nil {
		return store.TargetMatch{}, f.lookupErr
	}
	for _, t := range f.targets {
		docMatch := document != "" && t.document == document
		phoneMatch := phoneCanonical != "" && t.phone == phoneCanonical
		switch strategy {
		case "document":
			if docMatch {
				return store.TargetMatch{ID: t.id, Found: true}, nil
			}
		case "phone":
			if phoneMatch {
				return store.TargetMatch{ID: t.id, Found: true}, nil
			}
		default:
			if docMatch || phoneMatch {
				return store.TargetMatch{ID: t.id, Found: true}, nil
			}
		}
	}
	return store.TargetMatch{}, nil
}

func (f *fakeStore) InsertTarget(_ context.Context, in store.TargetInsert) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.targets = append(f.targets, &fakeTarget{
		id: in.ID, name: in.Name, phone: in.PhoneCanonical, document: in.Document, amount: in.DebtAmount,
	})
	return nil
}

func (f *fakeStore) UpdateTargetContact(_ context.Context, in store.TargetContactUpdate) error {
	for _, t := range f.targets {
		if t.id == in.ID {
			t.name = in.Name
			t.phone = in.PhoneCanonical
			t.amount = in.DebtAmount
			return nil
		}
	}
	return errors.New("target not found")
}

func (f *fakeStore) StartSyncRun(_ context.Context, _ store.SyncRunStart) error {
	f.started++
	return nil
}

func (f *fakeStore) FinishSyncRun(_ context.Context, in store.SyncRunFinish) error {
	f.finished = append(f.finished, in)
	return nil
}

type fakeCRM struct {
	records []crm.DebtorRecord
	err     error
}

func (f *fakeCRM) PullDebtors(_ context.Context, _, _ time.Time) ([]crm.DebtorRecord, error) {
	return f.records, f.err
}

func newService(st *fakeStore, c *fakeCRM) *Service {
	n := 0
	return &Service{
		Store: st,
		CRM:   c,
		IDGen: func() string { n++; return fmt.Sprintf("tgt-%d", n) },
	}
}

func TestRunImportsNewRecords(t *testing.T) {
	st := &fakeStore{}
	c := &fakeCRM{records: []crm.DebtorRecord{
		{Name: "Maria Silva", Phone: "22997074180", Document: "12345678900", DebtAmount: 15000},
		{Name: "Joao Souza", Phone: "11988887777", Document: "98765432100", DebtAmount: 40000},
	}}

	sum, err := newService(st, c).Run(context.Background(), "camp-1", domain.SyncRequest{
		DeduplicateBy: domain.DedupByBoth,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Imported != 2 || sum.Skipped != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	if len(st.targets) != 2 {
		t.Fatalf("targets: %d", len(st.targets))
	}
	if st.targets[0].phone != "5522997074180" {
		t.Errorf("stored dedup phone not canonical: %q", st.targets[0].phone)
	}
	if st.started != 1 || len(st.finished) != 1 {
		t.Fatalf("history updates: started=%d finished=%d", st.started, len(st.finished))
	}
	if st.finished[0].Status != "success" {
		t.Errorf("history status: %q", st.finished[0].Status)
	}
}

func TestRunDedupBothMatchesOnEitherKey(t *testing.T) {
	st := &fakeStore{targets: []*fakeTarget{
		{id: "t1", name: "Maria Silva", phone: "5522997074180", document: "12345678900", amount: 15000},
	}}
	// same document, different phone: must match, not duplicate
	c := &fakeCRM{records: []crm.DebtorRecord{
		{Name: "Maria S.", Phone: "21911112222", Document: "12345678900", DebtAmount: 20000},
	}}

	sum, err := newService(st, c).Run(context.Background(), "camp-1", domain.SyncRequest{
		DeduplicateBy:  domain.DedupByBoth,
		UpdateExisting: true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Imported != 1 || sum.Skipped != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	if len(st.targets) != 1 {
		t.Fatalf("duplicate target created: %d", len(st.targets))
	}
	if st.targets[0].phone != "5521911112222" {
		t.Errorf("phone not overwritten: %q", st.targets[0].phone)
	}
	if st.targets[0].amount != 20000 {
		t.Errorf("amount not overwritten: %d", st.targets[0].amount)
	}
}

func TestRunSkipsMatchWhenUpdateDisabled(t *testing.T) {
	st := &fakeStore{targets: []*fakeTarget{
		{id: "t1", name: "Maria Silva", phone: "5522997074180", document: "12345678900", amount: 15000},
	}}
	c := &fakeCRM{records: []crm.DebtorRecord{
		{Name: "Maria S.", Phone: "22997074180", Document: "12345678900", DebtAmount: 99999},
	}}

	sum, err := newService(st, c).Run(context.Background(), "camp-1", domain.SyncRequest{
		DeduplicateBy: domain.DedupByPhone,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Imported != 0 || sum.Skipped != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	if st.targets[0].amount != 15000 {
		t.Errorf("target mutated despite updateExisting=false: %d", st.targets[0].amount)
	}
}

func TestRunMalformedRecordDoesNotAbortBatch(t *testing.T) {
	var records []crm.DebtorRecord
	for i := 0; i < 10; i++ {
		rec := crm.DebtorRecord{
			Name:       fmt.Sprintf("Debtor %d", i),
			Phone:      fmt.Sprintf("2299707%04d", i),
			DebtAmount: 1000,
		}
		if i == 4 {
			// record #5 is malformed
			rec.Name = ""
		}
		records = append(records, rec)
	}
	st := &fakeStore{}
	sum, err := newService(st, &fakeCRM{records: records}).Run(context.Background(), "camp-1", domain.SyncRequest{
		DeduplicateBy: domain.DedupByBoth,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Imported != 9 || sum.Skipped != 1 {
		t.Fatalf("expected imported=9 skipped=1, got %+v", sum)
	}
	if sum.Status != domain.SyncSuccess {
		t.Errorf("status: %q", sum.Status)
	}
}

func TestRunPhonelessRecordsNeverPhoneMatch(t *testing.T) {
	st := &fakeStore{}
	c := &fakeCRM{records: []crm.DebtorRecord{
		{Name: "Maria Silva", Document: "12345678900", DebtAmount: 15000},
		{Name: "Joao Souza", Document: "98765432100", DebtAmount: 40000},
	}}

	sum, err := newService(st, c).Run(context.Background(), "camp-1", domain.SyncRequest{
		DeduplicateBy: domain.DedupByBoth,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// two distinct document-only debtors: both imported, neither merged
	if sum.Imported != 2 || sum.Skipped != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	if len(st.targets) != 2 {
		t.Fatalf("targets: %d", len(st.targets))
	}
}

func TestRunAmountFilterExcludesBeforeMatching(t *testing.T) {
	min := int64(10000)
	st := &fakeStore{}
	c := &fakeCRM{records: []crm.DebtorRecord{
		{Name: "Low", Phone: "22911110000", DebtAmount: 500},
		{Name: "High", Phone: "22911110001", DebtAmount: 50000},
	}}

	sum, err := newService(st, c).Run(context.Background(), "camp-1", domain.SyncRequest{
		DeduplicateBy: domain.DedupByBoth,
		MinDebtAmount: &min,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// excluded records are not counted as skipped
	if sum.Imported != 1 || sum.Skipped != 0 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestRunDateFilterExcludesOldRecords(t *testing.T) {
	days := 7
	st := &fakeStore{}
	c := &fakeCRM{records: []crm.DebtorRecord{
		{Name: "Old", Phone: "22911110000", DebtAmount: 1000, DebtDate: time.Now().AddDate(0, 0, -30)},
		{Name: "Recent", Phone: "22911110001", DebtAmount: 1000, DebtDate: time.Now().AddDate(0, 0, -1)},
	}}

	sum, err := newService(st, c).Run(context.Background(), "camp-1", domain.SyncRequest{
		DeduplicateBy: domain.DedupByBoth,
		RelativeDays:  &days,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Imported != 1 || sum.Skipped != 0 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestRunCRMFailureRecordsFailedHistory(t *testing.T) {
	st := &fakeStore{}
	c := &fakeCRM{err: errors.New("connection refused")}

	sum, err := newService(st, c).Run(context.Background(), "camp-1", domain.SyncRequest{
		DeduplicateBy: domain.DedupByBoth,
	})
	if err != nil {
		t.Fatalf("run must not propagate the pull error: %v", err)
	}
	if sum.Status != domain.SyncFailed {
		t.Fatalf("status: %q", sum.Status)
	}
	if sum.LastError == "" {
		t.Error("expected lastSyncError to carry the failure")
	}
	if len(st.finished) != 1 || st.finished[0].Status != "failed" {
		t.Fatalf("history not marked failed: %+v", st.finished)
	}
}
