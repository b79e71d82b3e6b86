package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"
)

// A local stand-in for the messaging gateway, for end-to-end testing
// without a real WhatsApp channel. Outcomes are scripted via env vars.
type config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	APIKey      string `envconfig:"MOCK_API_KEY" default:"mock_key"`
	OutcomeMode string `envconfig:"MOCK_OUTCOME_MODE" default:"fixed"`
	OutcomesRaw string `envconfig:"MOCK_OUTCOMES" default:"ok"`
	DelayMs     int    `envconfig:"MOCK_DELAY_MS" default:"0"`

	Outcomes []string
}

type sendTemplateBody struct {
	Number   string `json:"number"`
	Template struct {
		Name       string `json:"name"`
		Language   string `json:"language"`
		Components []any  `json:"components"`
	} `json:"template"`
}

type sendTextBody struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	Delay  int    `json:"delay"`
}

type sendResponse struct {
	Key struct {
		ID        string `json:"id"`
		RemoteJid string `json:"remoteJid"`
	} `json:"key"`
}

type server struct {
	cfg config
	idx uint64
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	cfg.Outcomes = parseCSV(cfg.OutcomesRaw)

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))

	s := &server{cfg: cfg}

	router := mux.NewRouter()
	router.HandleFunc("/message/sendTemplate/{instance}", s.handleSendTemplate).Methods(http.MethodPost)
	router.HandleFunc("/message/sendText/{instance}", s.handleSendText).Methods(http.MethodPost)

	slog.Info("mock gateway listening", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		slog.Error("mock gateway server failed", "err", err)
		os.Exit(1)
	}
}

func (s *server) handleSendTemplate(w http.ResponseWriter, r *http.Request) {
	var body sendTemplateBody
	if !s.accept(w, r, &body) {
		return
	}
	if body.Number == "" || body.Template.Name == "" {
		writeError(w, http.StatusBadRequest, "number and template name are required")
		return
	}
	s.respond(w, r, body.Number)
}

func (s *server) handleSendText(w http.ResponseWriter, r *http.Request) {
	var body sendTextBody
	if !s.accept(w, r, &body) {
		return
	}
	if body.Number == "" || body.Text == "" {
		writeError(w, http.StatusBadRequest, "number and text are required")
		return
	}
	s.respond(w, r, body.Number)
}

func (s *server) accept(w http.ResponseWriter, r *http.Request, body any) bool {
	if r.Header.Get("apikey") != s.cfg.APIKey {
		writeError(w, http.StatusUnauthorized, "invalid apikey")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *server) respond(w http.ResponseWriter, r *http.Request, number string) {
	if s.cfg.DelayMs > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(time.Duration(s.cfg.DelayMs) * time.Millisecond):
		}
	}

	outcome := s.nextOutcome()
	instance := mux.Vars(r)["instance"]

	switch outcome {
	case "ok", "success":
		n := atomic.AddUint64(&s.idx, 1)
		var resp sendResponse
		resp.Key.ID = fmt.Sprintf("3EB0%012d", n)
		resp.Key.RemoteJid = number + "@s.whatsapp.net"
		slog.Info("mock gateway send", "instance", instance, "number", number, "outcome", outcome)
		writeJSON(w, http.StatusCreated, resp)
	case "timeout":
		time.Sleep(30 * time.Second)
		writeError(w, http.StatusGatewayTimeout, "timed out")
	default:
		status, err := strconv.Atoi(outcome)
		if err != nil {
			status = http.StatusInternalServerError
		}
		slog.Info("mock gateway send", "instance", instance, "number", number, "outcome", outcome)
		writeError(w, status, "scripted failure")
	}
}

func (s *server) nextOutcome() string {
	if s.cfg.OutcomeMode == "round_robin" {
		idx := atomic.AddUint64(&s.idx, 1) - 1
		return s.cfg.Outcomes[int(idx)%len(s.cfg.Outcomes)]
	}
	return s.cfg.Outcomes[0]
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"status": status, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"ok"}
	}
	return out
}
