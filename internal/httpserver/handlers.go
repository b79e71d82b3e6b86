package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"outreach/internal/cache"
	"outreach/internal/domain"
	"outreach/internal/gateway"
	"outreach/internal/observability"
	sqsqueue "outreach/internal/queue/sqs"
	"outreach/internal/store"
)

type Store interface {
	GetCampaign(ctx context.Context, campaignID string) (store.CampaignRow, bool, error)
	ListPendingTargetIDs(ctx context.Context, campaignID string) ([]string, error)
	CampaignStats(ctx context.Context, campaignID string) (store.CampaignStatsRow, error)
	LatestSyncHistory(ctx context.Context, campaignID string) (store.SyncHistoryRow, bool, error)
	ListSyncHistory(ctx context.Context, campaignID string) ([]store.SyncHistoryRow, error)
}

type Importer interface {
	Run(ctx context.Context, campaignID string, req domain.SyncRequest) (domain.SyncSummary, error)
}

type Dispatcher interface {
	SendTemplate(ctx context.Context, phone string, tpl gateway.Template, instance gateway.Instance) gateway.DeliveryResult
}

type Queue interface {
	EnqueueDispatch(ctx context.Context, job sqsqueue.DispatchJob) error
}

type API struct {
	Store      Store
	Importer   Importer
	Dispatcher Dispatcher
	Queue      Queue
	Stats      *cache.StatsCache
}

func (a *API) Register(mux *mux.Router) {
	mux.HandleFunc("/v1/campaigns/{id}/sync", a.handleTriggerSync).Methods(http.MethodPost)
	mux.HandleFunc("/v1/campaigns/{id}/sync", a.handleGetSync).Methods(http.MethodGet)
	mux.HandleFunc("/v1/campaigns/{id}/sync/runs", a.handleListSyncRuns).Methods(http.MethodGet)
	mux.HandleFunc("/v1/campaigns/{id}/stats", a.handleStats).Methods(http.MethodGet)
	mux.HandleFunc("/v1/campaigns/{id}/dispatch", a.handleDispatch).Methods(http.MethodPost)
	mux.HandleFunc("/v1/messages/template", a.handleSendTemplate).Methods(http.MethodPost)
}

func (a *API) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}

	var req domain.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, found, err := a.Store.GetCampaign(r.Context(), id); err != nil {
		slog.Error("campaign lookup failed", "err", err, "campaign_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	} else if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}

	summary, err := a.Importer.Run(r.Context(), id, req)
	if err != nil {
		slog.Error("sync run failed", "err", err, "campaign_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleGetSync(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	row, found, err := a.Store.LatestSyncHistory(r.Context(), id)
	if err != nil {
		slog.Error("sync history lookup failed", "err", err, "campaign_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (a *API) handleListSyncRuns(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rows, err := a.Store.ListSyncHistory(r.Context(), id)
	if err != nil {
		slog.Error("sync history list failed", "err", err, "campaign_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if rows == nil {
		rows = []store.SyncHistoryRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if stats, ok := a.Stats.Get(r.Context(), id); ok {
		writeJSON(w, http.StatusOK, stats)
		return
	}

	_, found, err := a.Store.GetCampaign(r.Context(), id)
	if err != nil {
		slog.Error("campaign lookup failed", "err", err, "campaign_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}

	row, err := a.Store.CampaignStats(r.Context(), id)
	if err != nil {
		slog.Error("campaign stats failed", "err", err, "campaign_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	stats := domain.CampaignStats{
		CampaignID: id,
		Total:      row.Total,
		Contacted:  row.Contacted,
		Succeeded:  row.Succeeded,
		Promises:   row.Promises,
	}
	a.Stats.Set(r.Context(), stats)
	writeJSON(w, http.StatusOK, stats)
}

// handleDispatch enqueues one dispatch job per pending target of an
// active campaign. Enqueue failures stop the fan-out; already-enqueued
// jobs stand, the idempotent worker makes a retried dispatch safe.
func (a *API) handleDispatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	campaign, found, err := a.Store.GetCampaign(r.Context(), id)
	if err != nil {
		slog.Error("campaign lookup failed", "err", err, "campaign_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	if campaign.Status != string(domain.CampaignActive) {
		http.Error(w, ErrCampaignInactive, http.StatusConflict)
		return
	}

	targetIDs, err := a.Store.ListPendingTargetIDs(r.Context(), id)
	if err != nil {
		slog.Error("pending target list failed", "err", err, "campaign_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}

	enqueued := 0
	for _, targetID := range targetIDs {
		err := a.Queue.EnqueueDispatch(r.Context(), sqsqueue.DispatchJob{
			TargetID:     targetID,
			CampaignID:   id,
			TemplateName: campaign.TemplateName,
			Instance:     campaign.Instance,
		})
		if err != nil {
			observability.Enqueues.WithLabelValues("dispatch", "error").Inc()
			slog.Error("dispatch enqueue failed", "err", err, "campaign_id", id, "target_id", targetID)
			http.Error(w, ErrDependency, http.StatusBadGateway)
			return
		}
		observability.Enqueues.WithLabelValues("dispatch", "ok").Inc()
		enqueued++
	}

	slog.Info("campaign dispatch enqueued", "campaign_id", id, "targets", enqueued)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"campaignId": id,
		"enqueued":   enqueued,
	})
}

// handleSendTemplate is the operational surface over the template
// dispatcher: one synchronous send, no queue.
func (a *API) handleSendTemplate(w http.ResponseWriter, r *http.Request) {
	var req domain.SendTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tpl := gateway.Template{
		Name:       req.TemplateName,
		Language:   req.Language,
		BodyParams: req.BodyParams,
	}
	for name, value := range req.HeaderParams {
		tpl.HeaderParamName = name
		tpl.HeaderParamValue = value
	}

	res := a.Dispatcher.SendTemplate(r.Context(), req.To, tpl, gateway.ParseInstance(req.Instance))
	switch {
	case res.Success:
		writeJSON(w, http.StatusOK, res)
	case res.PermanentFailure:
		writeJSON(w, http.StatusUnprocessableEntity, res)
	default:
		writeJSON(w, http.StatusBadGateway, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
