package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/progression"
)

func TestRegisterAndReadProgress(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.server.URL+"/api/users", `{"username":"Alice"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created progressResponse
	decode(t, resp, &created)
	if created.UserID != "alice" || created.Level != 1 || created.XPForNextLevel != 100 {
		t.Fatalf("unexpected registration %+v", created)
	}

	if dup := postJSON(t, env.server.URL+"/api/users", `{"username":"ALICE"}`); dup.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", dup.StatusCode)
	}

	got := getURL(t, env.server.URL+"/api/users/Alice/progress")
	if got.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", got.StatusCode)
	}
	var progress progressResponse
	decode(t, got, &progress)
	if progress.Username != "Alice" || progress.LevelProgress != 0 {
		t.Fatalf("unexpected progress %+v", progress)
	}

	if missing := getURL(t, env.server.URL+"/api/users/bob/progress"); missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.StatusCode)
	}
}

func TestRegisterRejectsBlankUsername(t *testing.T) {
	env := newTestEnv(t)
	if resp := postJSON(t, env.server.URL+"/api/users", `{"username":"  "}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t)

	var cats []domain.Category
	decode(t, getURL(t, env.server.URL+"/api/categories"), &cats)
	if len(cats) != 2 || cats[0].ID != domain.AnyCategory {
		t.Fatalf("unexpected categories %+v", cats)
	}

	var diffs []domain.Difficulty
	decode(t, getURL(t, env.server.URL+"/api/difficulties"), &diffs)
	if len(diffs) != 4 {
		t.Fatalf("expected 4 difficulties, got %d", len(diffs))
	}

	var count countResponse
	decode(t, getURL(t, env.server.URL+"/api/count?category=9&difficulty=hard"), &count)
	if count.Count != 12 || count.MaxAmount != 12 {
		t.Fatalf("unexpected count %+v", count)
	}

	if bad := getURL(t, env.server.URL+"/api/count?category=9&difficulty=brutal"); bad.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", bad.StatusCode)
	}
}

func TestOfflineCatalogServedFromQuestionBank(t *testing.T) {
	bank := memory.NewQuestionBank(memory.SampleQuestions())
	engine := progression.NewEngine(memory.NewProgressRepository(), nil)
	mux := http.NewServeMux()
	NewAPIHandler(bank, engine, nil, nil).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	var cats []domain.Category
	decode(t, getURL(t, server.URL+"/api/categories"), &cats)
	if len(cats) != 8 || cats[1].Name != "Science & Nature" {
		t.Fatalf("unexpected categories %+v", cats)
	}

	var count countResponse
	decode(t, getURL(t, server.URL+"/api/count?category="+cats[1].ID+"&difficulty=easy"), &count)
	if count.Count != 2 || count.MaxAmount != 2 {
		t.Fatalf("unexpected count %+v", count)
	}
	if bad := getURL(t, server.URL+"/api/count?category=77"); bad.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown category, got %d", bad.StatusCode)
	}
}

func TestActiveAttemptEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var idle activeResponse
	decode(t, getURL(t, env.server.URL+"/api/users/g9/active?guest=true"), &idle)
	if idle.Active || idle.Connected {
		t.Fatalf("expected no active attempt")
	}

	conn := env.dial(t, "/ws?userId=g9&guest=true")
	readUntil(t, conn, "resumed", nil)
	send(t, conn, "start", map[string]any{"amount": 4})
	waitForPhase(t, conn, domain.PhaseInProgress)

	var active activeResponse
	decode(t, getURL(t, env.server.URL+"/api/users/g9/active?guest=true"), &active)
	if !active.Active || !active.Connected || active.Attempt == nil || active.Attempt.TotalQuestions != 4 || active.Penalty != 0 {
		t.Fatalf("unexpected active attempt %+v", active)
	}
}

type fakeCatalog struct{}

func (fakeCatalog) Categories(context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: domain.AnyCategory, Name: "Any Category"}, {ID: "9", Name: "General Knowledge"}}, nil
}

func (fakeCatalog) Count(_ context.Context, _ string, difficulty string) (int, error) {
	if !domain.ValidDifficulty(difficulty) {
		return 0, domain.ErrInvalidSelection
	}
	return 12, nil
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrProgressNotFound, http.StatusNotFound},
		{domain.ErrUserExists, http.StatusConflict},
		{domain.ErrInsufficientInventory, http.StatusUnprocessableEntity},
		{&domain.UnavailableError{Attempts: 3}, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
