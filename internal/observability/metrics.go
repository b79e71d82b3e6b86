package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outreach_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outreach_enqueue_total", Help: "SQS enqueue results"},
		[]string{"queue", "result"},
	)
	GatewaySend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gateway_send_total", Help: "Messaging gateway send outcomes"},
		[]string{"method", "result", "http_status"},
	)
	GatewayLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "gateway_send_latency_seconds", Help: "Messaging gateway send latency"},
	)
	ImportRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outreach_import_records_total", Help: "CRM import record outcomes"},
		[]string{"result"},
	)
	ImportRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outreach_import_runs_total", Help: "CRM import run outcomes"},
		[]string{"status"},
	)
	Reminders = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "outreach_reminders_total", Help: "Promise reminder outcomes"},
		[]string{"result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Enqueues, GatewaySend, GatewayLatency, ImportRecords, ImportRuns, Reminders)
}
