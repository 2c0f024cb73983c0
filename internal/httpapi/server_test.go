package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/deltasquad/taskbot/internal/config"
	"github.com/deltasquad/taskbot/internal/events"
	"github.com/deltasquad/taskbot/internal/tasks"
)

func newTestServer(t *testing.T) (*Server, *tasks.MemoryStore) {
	t.Helper()
	store := tasks.NewMemoryStore()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return New(config.Config{}, store, events.NewBus(), nil, log), store
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestListTasksFiltersFree(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	free, _ := store.Add(ctx, 10, 1, "free task", tasks.AddOptions{})
	claimed, _ := store.Add(ctx, 10, 1, "claimed task", tasks.AddOptions{})
	if ok, _ := store.Assign(ctx, claimed, 10, 2, []int64{2}, false); !ok {
		t.Fatalf("claim failed")
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks?chat_id=10&free=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Tasks []tasks.Task `json:"tasks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Tasks) != 1 || body.Tasks[0].ID != free {
		t.Fatalf("free listing = %+v, want only task %d", body.Tasks, free)
	}
}

func TestListTasksRequiresChatID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "invalid_chat_id" {
		t.Fatalf("error code = %q, want %q", body["error"], "invalid_chat_id")
	}
}

func TestListTasksScopedToChat(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	_, _ = store.Add(ctx, 10, 1, "chat ten", tasks.AddOptions{})
	_, _ = store.Add(ctx, 11, 1, "chat eleven", tasks.AddOptions{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks?chat_id=11", nil))

	var body struct {
		Tasks []tasks.Task `json:"tasks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Tasks) != 1 || body.Tasks[0].Text != "chat eleven" {
		t.Fatalf("listing = %+v, want only chat 11 tasks", body.Tasks)
	}
}

func TestWebsocketOriginCheck(t *testing.T) {
	tests := []struct {
		name     string
		allowAny bool
		origin   string
		host     string
		want     bool
	}{
		{"no origin passes", false, "", "example.com", true},
		{"same origin passes", false, "https://example.com", "example.com", true},
		{"cross origin rejected", false, "https://evil.test", "example.com", false},
		{"bad scheme rejected", false, "ftp://example.com", "example.com", false},
		{"allow any overrides", true, "https://evil.test", "example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tasks.NewMemoryStore()
			log := logrus.New()
			log.SetLevel(logrus.PanicLevel)
			srv := New(config.Config{AllowAnyOrigin: tt.allowAny}, store, events.NewBus(), nil, log)

			req := httptest.NewRequest(http.MethodGet, "/v1/events/ws", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := srv.upgrader.CheckOrigin(req); got != tt.want {
				t.Fatalf("CheckOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
