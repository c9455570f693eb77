package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/julianstephens/microhabits/internal/clock"
	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/engine"
	apperrors "github.com/julianstephens/microhabits/internal/errors"
	"github.com/julianstephens/microhabits/internal/session"
	"github.com/julianstephens/microhabits/internal/storage"
)

type testServer struct {
	server   *Server
	engine   *engine.Engine
	sessions *session.Manager
	clock    *clock.Manual
	store    storage.Provider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "habits.json"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	clk := clock.NewManual(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	e := engine.New(store, clk, engine.WithLocation(time.UTC))
	sessions := session.NewManager(e)
	t.Cleanup(func() { _ = sessions.StopAll(context.Background()) })

	return &testServer{
		server:   NewServer(e, sessions),
		engine:   e,
		sessions: sessions,
		clock:    clk,
		store:    store,
	}
}

func (ts *testServer) do(t *testing.T, method, path, owner, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set(constants.UserIDHeader, owner)
	}

	resp, err := ts.server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v", err)
	}
	return resp.StatusCode, string(data)
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", body, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, http.MethodGet, "/health", "", "")
	if status != http.StatusOK || !strings.Contains(body, `"healthy"`) {
		t.Errorf("GET /health = %d %s", status, body)
	}
}

func TestOwnerHeaderRequired(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "list", method: http.MethodGet, path: "/api/v1/habits"},
		{name: "create", method: http.MethodPost, path: "/api/v1/habits"},
		{name: "toggle", method: http.MethodPost, path: "/api/v1/habits/abc/toggle"},
		{name: "profile", method: http.MethodGet, path: "/api/v1/profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, tt.method, tt.path, "", "")
			if status != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401 (%s)", status, body)
			}
		})
	}
	if len(ts.sessions.Active()) != 0 {
		t.Error("unauthenticated requests must not start sessions")
	}
}

func TestHabitLifecycle(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/v1/habits", "alice", `{"name":"  Drink water ","emoji":"💧"}`)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", status, body)
	}
	created := decode[HabitResponse](t, body)
	if created.Name != "Drink water" || created.Streak != 0 || created.Completed {
		t.Errorf("unexpected created habit: %+v", created)
	}
	if got := ts.sessions.Active(); len(got) != 1 || got[0] != "alice" {
		t.Errorf("active sessions = %v, want [alice]", got)
	}

	status, body = ts.do(t, http.MethodPost, "/api/v1/habits/"+created.ID+"/toggle", "alice", "")
	if status != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", status, body)
	}
	toggled := decode[HabitResponse](t, body)
	if !toggled.Completed || toggled.Streak != 1 || toggled.LastCompletedAt == nil {
		t.Errorf("unexpected toggled habit: %+v", toggled)
	}

	status, body = ts.do(t, http.MethodGet, "/api/v1/habits", "alice", "")
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	list := decode[HabitListResponse](t, body)
	if list.Count != 1 || !list.CanCreate || list.Habits[0].ID != created.ID {
		t.Errorf("unexpected list: %+v", list)
	}

	status, _ = ts.do(t, http.MethodPost, "/api/v1/habits/"+created.ID+"/toggle", "bob", "")
	if status != http.StatusNotFound {
		t.Errorf("foreign toggle status = %d, want 404", status)
	}
	status, _ = ts.do(t, http.MethodDelete, "/api/v1/habits/"+created.ID, "bob", "")
	if status != http.StatusNotFound {
		t.Errorf("foreign delete status = %d, want 404", status)
	}

	status, _ = ts.do(t, http.MethodDelete, "/api/v1/habits/"+created.ID, "alice", "")
	if status != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", status)
	}
	status, _ = ts.do(t, http.MethodDelete, "/api/v1/habits/"+created.ID, "alice", "")
	if status != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", status)
	}
}

func TestCreateValidation(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/v1/habits", "alice", `{"name":"   "}`)
	if status != http.StatusBadRequest || !strings.Contains(body, "invalid_habit") {
		t.Errorf("blank name = %d %s, want 400 invalid_habit", status, body)
	}

	status, body = ts.do(t, http.MethodPost, "/api/v1/habits", "alice", `{not json`)
	if status != http.StatusBadRequest {
		t.Errorf("malformed body = %d %s, want 400", status, body)
	}
}

func TestFreeTierCap(t *testing.T) {
	ts := newTestServer(t)

	for _, name := range []string{"One", "Two", "Three"} {
		if status, body := ts.do(t, http.MethodPost, "/api/v1/habits", "alice", `{"name":"`+name+`"}`); status != http.StatusCreated {
			t.Fatalf("create %s = %d %s", name, status, body)
		}
	}

	status, body := ts.do(t, http.MethodPost, "/api/v1/habits", "alice", `{"name":"Four"}`)
	if status != http.StatusPaymentRequired {
		t.Fatalf("fourth create = %d %s, want 402", status, body)
	}

	_, body = ts.do(t, http.MethodGet, "/api/v1/habits", "alice", "")
	if list := decode[HabitListResponse](t, body); list.Count != 3 || list.CanCreate {
		t.Errorf("list after refusal = %+v", list)
	}

	status, body = ts.do(t, http.MethodPut, "/api/v1/profile/subscription", "alice", `{"is_pro":true}`)
	if status != http.StatusOK || !decode[ProfileResponse](t, body).IsPro {
		t.Fatalf("subscribe = %d %s", status, body)
	}

	if status, body := ts.do(t, http.MethodPost, "/api/v1/habits", "alice", `{"name":"Four"}`); status != http.StatusCreated {
		t.Errorf("create after subscribe = %d %s", status, body)
	}
}

func TestSubscriptionRequiresFlag(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodPut, "/api/v1/profile/subscription", "alice", `{}`)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}

	status, body := ts.do(t, http.MethodGet, "/api/v1/profile", "alice", "")
	if status != http.StatusOK {
		t.Fatalf("profile status = %d", status)
	}
	if p := decode[ProfileResponse](t, body); p.ID != "alice" || p.IsPro {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestEndSession(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodGet, "/api/v1/habits", "alice", "")
	if len(ts.sessions.Active()) != 1 {
		t.Fatalf("expected one active session")
	}

	status, _ := ts.do(t, http.MethodDelete, "/api/v1/session", "alice", "")
	if status != http.StatusNoContent {
		t.Errorf("status = %d, want 204", status)
	}
	if len(ts.sessions.Active()) != 0 {
		t.Errorf("sessions after sign-out = %v", ts.sessions.Active())
	}
	if ts.clock.Tickers() != 0 {
		t.Errorf("tickers after sign-out = %d", ts.clock.Tickers())
	}
}

func TestRequestsAfterShutdownAreRefused(t *testing.T) {
	ts := newTestServer(t)
	if err := ts.sessions.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	status, _ := ts.do(t, http.MethodGet, "/api/v1/habits", "alice", "")
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
}

func TestHandleErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "conflict", err: apperrors.ErrConflict, want: http.StatusConflict},
		{name: "persistence", err: apperrors.Persistence("list habits", errors.New("io")), want: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.server.App().Get("/fail", func(c *fiber.Ctx) error {
				return ts.server.handlers.handleError(c, tt.err)
			})
			status, _ := ts.do(t, http.MethodGet, "/fail", "", "")
			if status != tt.want {
				t.Errorf("status = %d, want %d", status, tt.want)
			}
		})
	}
}


func TestRenameHabit(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/v1/habits", "alice", `{"name":"Flos","emoji":"🦷"}`)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", status, body)
	}
	created := decode[HabitResponse](t, body)
	if status, body = ts.do(t, http.MethodPost, "/api/v1/habits/"+created.ID+"/toggle", "alice", ""); status != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", status, body)
	}

	path := "/api/v1/habits/" + created.ID
	status, body = ts.do(t, http.MethodPatch, path, "alice", `{"name":"Floss"}`)
	if status != http.StatusOK {
		t.Fatalf("rename status = %d, body %s", status, body)
	}
	renamed := decode[HabitResponse](t, body)
	if renamed.Name != "Floss" || renamed.Emoji != "🦷" {
		t.Errorf("rename without emoji = %+v, want name Floss keeping 🦷", renamed)
	}
	if !renamed.Completed || renamed.Streak != 1 {
		t.Errorf("rename changed completion state: %+v", renamed)
	}

	status, body = ts.do(t, http.MethodPatch, path, "alice", `{"name":"Floss","emoji":""}`)
	if status != http.StatusOK {
		t.Fatalf("rename status = %d, body %s", status, body)
	}
	if got := decode[HabitResponse](t, body); got.Emoji != "" {
		t.Errorf("emoji = %q, want cleared", got.Emoji)
	}

	tests := []struct {
		name  string
		owner string
		body  string
		want  int
	}{
		{name: "blank name", owner: "alice", body: `{"name":"  "}`, want: http.StatusBadRequest},
		{name: "malformed body", owner: "alice", body: `{`, want: http.StatusBadRequest},
		{name: "other owner", owner: "mallory", body: `{"name":"Mine"}`, want: http.StatusNotFound},
		{name: "other owner with emoji", owner: "mallory", body: `{"name":"Mine","emoji":"x"}`, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, http.MethodPatch, path, tt.owner, tt.body)
			if status != tt.want {
				t.Errorf("status = %d, want %d (%s)", status, tt.want, body)
			}
		})
	}

	got, err := ts.engine.GetHabit(context.Background(), "alice", created.ID)
	if err != nil {
		t.Fatalf("GetHabit failed: %v", err)
	}
	if got.Name != "Floss" {
		t.Errorf("stored name = %q after refused renames, want Floss", got.Name)
	}
}

func TestEndSessionDoesNotStartLoop(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodDelete, "/api/v1/session", "alice", "")
	if status != http.StatusNoContent {
		t.Errorf("status = %d, want 204", status)
	}
	if got := ts.sessions.Active(); len(got) != 0 {
		t.Errorf("active sessions = %v, want none", got)
	}
	if ts.clock.Tickers() != 0 {
		t.Errorf("tickers = %d, want 0", ts.clock.Tickers())
	}

	status, _ = ts.do(t, http.MethodDelete, "/api/v1/session", "", "")
	if status != http.StatusUnauthorized {
		t.Errorf("status without owner = %d, want 401", status)
	}
}
