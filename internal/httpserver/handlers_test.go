package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"outreach/internal/domain"
	"outreach/internal/gateway"
	sqsqueue "outreach/internal/queue/sqs"
	"outreach/internal/store"
)

type fakeStore struct {
	campaign   store.CampaignRow
	found      bool
	pendingIDs []string
	stats      store.CampaignStatsRow
	history    []store.SyncHistoryRow
}

func (f *fakeStore) GetCampaign(_ context.Context, _ string) (store.CampaignRow, bool, error) {
	return f.campaign, f.found, nil
}

func (f *fakeStore) ListPendingTargetIDs(_ context.Context, _ string) ([]string, error) {
	return f.pendingIDs, nil
}

func (f *fakeStore) CampaignStats(_ context.Context, _ string) (store.CampaignStatsRow, error) {
	return f.stats, nil
}

func (f *fakeStore) LatestSyncHistory(_ context.Context, _ string) (store.SyncHistoryRow, bool, error) {
	if len(f.history) == 0 {
		return store.SyncHistoryRow{}, false, nil
	}
	return f.history[0], true, nil
}

func (f *fakeStore) ListSyncHistory(_ context.Context, _ string) ([]store.SyncHistoryRow, error) {
	return f.history, nil
}

type fakeImporter struct {
	summary domain.SyncSummary
	got     *domain.SyncRequest
}

func (f *fakeImporter) Run(_ context.Context, campaignID string, req domain.SyncRequest) (domain.SyncSummary, error) {
	f.got = &req
	f.summary.CampaignID = campaignID
	return f.summary, nil
}

type fakeDispatcher struct {
	result gateway.DeliveryResult
	tpl    gateway.Template
	phone  string
}

func (f *fakeDispatcher) SendTemplate(_ context.Context, phone string, tpl gateway.Template, _ gateway.Instance) gateway.DeliveryResult {
	f.phone = phone
	f.tpl = tpl
	return f.result
}

type fakeQueue struct {
	jobs []sqsqueue.DispatchJob
}

func (f *fakeQueue) EnqueueDispatch(_ context.Context, job sqsqueue.DispatchJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func newRouter(api *API) *mux.Router {
	r := mux.NewRouter()
	api.Register(r)
	return r
}

func TestTriggerSyncValidatesStrategy(t *testing.T) {
	api := &API{Store: &fakeStore{found: true}, Importer: &fakeImporter{}}
	r := newRouter(api)

	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/camp-1/sync",
		strings.NewReader(`{"deduplicateBy":"email"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestTriggerSyncRunsImport(t *testing.T) {
	imp := &fakeImporter{summary: domain.SyncSummary{Status: domain.SyncSuccess, Imported: 3}}
	api := &API{Store: &fakeStore{found: true}, Importer: imp}
	r := newRouter(api)

	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/camp-1/sync",
		strings.NewReader(`{"deduplicateBy":"both","updateExisting":true}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", w.Code, w.Body.String())
	}
	if imp.got == nil || imp.got.DeduplicateBy != domain.DedupByBoth || !imp.got.UpdateExisting {
		t.Fatalf("request not forwarded: %+v", imp.got)
	}
	var sum domain.SyncSummary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.CampaignID != "camp-1" || sum.Imported != 3 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestTriggerSyncUnknownCampaign(t *testing.T) {
	api := &API{Store: &fakeStore{}, Importer: &fakeImporter{}}
	r := newRouter(api)

	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/camp-x/sync",
		strings.NewReader(`{"deduplicateBy":"phone"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestDispatchFansOutPendingTargets(t *testing.T) {
	st := &fakeStore{
		campaign: store.CampaignRow{
			ID: "camp-1", Status: "active",
			TemplateName: "cobranca_inicial", Instance: "Cobranca",
		},
		found:      true,
		pendingIDs: []string{"t1", "t2", "t3"},
	}
	q := &fakeQueue{}
	api := &API{Store: st, Queue: q}
	r := newRouter(api)

	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/camp-1/dispatch", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status: %d, body: %s", w.Code, w.Body.String())
	}
	if len(q.jobs) != 3 {
		t.Fatalf("jobs: %d", len(q.jobs))
	}
	if q.jobs[0].TemplateName != "cobranca_inicial" || q.jobs[0].Instance != "Cobranca" {
		t.Fatalf("job: %+v", q.jobs[0])
	}
}

func TestDispatchRejectsInactiveCampaign(t *testing.T) {
	st := &fakeStore{
		campaign: store.CampaignRow{ID: "camp-1", Status: "paused"},
		found:    true,
	}
	api := &API{Store: st, Queue: &fakeQueue{}}
	r := newRouter(api)

	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/camp-1/dispatch", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestStatsDerivedFromStore(t *testing.T) {
	st := &fakeStore{
		campaign: store.CampaignRow{ID: "camp-1", Status: "active"},
		found:    true,
		stats:    store.CampaignStatsRow{Total: 10, Contacted: 6, Succeeded: 4, Promises: 2},
	}
	api := &API{Store: st}
	r := newRouter(api)

	req := httptest.NewRequest(http.MethodGet, "/v1/campaigns/camp-1/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var stats domain.CampaignStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 10 || stats.Contacted != 6 || stats.Succeeded != 4 || stats.Promises != 2 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestGetSyncNotFoundBeforeFirstRun(t *testing.T) {
	api := &API{Store: &fakeStore{}}
	r := newRouter(api)

	req := httptest.NewRequest(http.MethodGet, "/v1/campaigns/camp-1/sync", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestSendTemplateStatusByOutcome(t *testing.T) {
	for _, tc := range []struct {
		name   string
		result gateway.DeliveryResult
		want   int
	}{
		{"success", gateway.DeliveryResult{Success: true, MessageID: "m1"}, http.StatusOK},
		{"permanent", gateway.DeliveryResult{StatusCode: 403, PermanentFailure: true}, http.StatusUnprocessableEntity},
		{"transient", gateway.DeliveryResult{StatusCode: 502}, http.StatusBadGateway},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := &fakeDispatcher{result: tc.result}
			api := &API{Dispatcher: d}
			r := newRouter(api)

			body := `{"to":"22997074180","instance":"Cobrança","templateName":"cobranca_inicial","bodyParams":["Maria","150.00"]}`
			req := httptest.NewRequest(http.MethodPost, "/v1/messages/template", strings.NewReader(body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("status: %d, body: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestSendTemplateRejectsTwoHeaderParams(t *testing.T) {
	api := &API{Dispatcher: &fakeDispatcher{}}
	r := newRouter(api)

	body := `{"to":"22997074180","templateName":"t","headerParams":{"a":"1","b":"2"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/template", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
}
