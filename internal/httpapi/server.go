// Package httpapi is the operational HTTP surface: health, metrics, a JSON
// view of open tasks and a websocket feed of task activity.
package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/deltasquad/taskbot/internal/config"
	"github.com/deltasquad/taskbot/internal/events"
	"github.com/deltasquad/taskbot/internal/observability"
	"github.com/deltasquad/taskbot/internal/tasks"
)

type Server struct {
	cfg      config.Config
	tasks    tasks.Store
	bus      *events.Bus
	metrics  *observability.Metrics
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

func New(cfg config.Config, taskStore tasks.Store, bus *events.Bus, metrics *observability.Metrics, log *logrus.Logger) *Server {
	return &Server{
		cfg:     cfg,
		tasks:   taskStore,
		bus:     bus,
		metrics: metrics,
		log:     log.WithField("component", "httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections unless explicitly
				// opened up; non-browser clients omit Origin and pass.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/tasks", s.handleListTasks)
	r.Get("/v1/events/ws", s.handleEventsWS)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("chat_id")), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_chat_id", "query parameter chat_id is required")
		return
	}
	freeOnly := r.URL.Query().Get("free") == "true"

	list, err := s.tasks.List(r.Context(), chatID, freeOnly)
	if err != nil {
		s.log.WithError(err).Warn("task listing failed")
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "task store unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe()
	defer cancel()

	// Reads are only consumed to notice the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for evt := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": code, "message": message})
}
