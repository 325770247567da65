package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
)

// --- Mock Implementations for Testing ---

const (
	testAPIKey = "test-api-key"
	testOrg    = "org-alpha"
)

// mockStore implements store.Store with in-memory maps.
type mockStore struct {
	sprints  map[string]*types.Sprint
	tasks    map[string]*types.Task
	stats    *types.StoreStats
	statsErr error
	nextID   int
}

func newMockStore() *mockStore {
	return &mockStore{
		sprints: make(map[string]*types.Sprint),
		tasks:   make(map[string]*types.Task),
		stats:   &types.StoreStats{},
	}
}

func (m *mockStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockStore) CreateSprint(_ context.Context, in types.NewSprint) (*types.Sprint, error) {
	now := time.Now().UTC()
	s := &types.Sprint{
		ID:              m.id("sprint"),
		Name:            in.Name,
		Goal:            in.Goal,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		OrganizationID:  in.OrganizationID,
		PlannedVelocity: in.PlannedVelocity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.sprints[s.ID] = s
	return s, nil
}

func (m *mockStore) GetSprint(_ context.Context, orgID, id string) (*types.Sprint, error) {
	s, ok := m.sprints[id]
	if !ok || s.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockStore) ListSprints(_ context.Context, orgID string) ([]types.Sprint, error) {
	var out []types.Sprint
	for _, s := range m.sprints {
		if s.OrganizationID == orgID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (m *mockStore) ListCompletedSprints(_ context.Context, orgID string) ([]types.Sprint, error) {
	var out []types.Sprint
	for _, s := range m.sprints {
		if s.OrganizationID == orgID && s.IsCompleted {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.After(out[j].EndDate) })
	return out, nil
}

func (m *mockStore) UpdateSprint(_ context.Context, sprint *types.Sprint) error {
	s, ok := m.sprints[sprint.ID]
	if !ok || s.OrganizationID != sprint.OrganizationID {
		return store.ErrNotFound
	}
	cp := *sprint
	m.sprints[sprint.ID] = &cp
	return nil
}

func (m *mockStore) DeleteSprint(_ context.Context, orgID, id string) error {
	s, ok := m.sprints[id]
	if !ok || s.OrganizationID != orgID {
		return store.ErrNotFound
	}
	for _, t := range m.tasks {
		if t.SprintID != nil && *t.SprintID == id {
			return store.ErrSprintHasTasks
		}
	}
	delete(m.sprints, id)
	return nil
}

func (m *mockStore) CompleteSprint(_ context.Context, orgID, id string, velocity float64) error {
	s, ok := m.sprints[id]
	if !ok || s.OrganizationID != orgID {
		return store.ErrNotFound
	}
	if s.IsCompleted {
		return store.ErrSprintCompleted
	}
	s.IsCompleted = true
	s.Velocity = &velocity
	return nil
}

func (m *mockStore) UpdatePlannedVelocity(_ context.Context, orgID, id string, velocity float64) error {
	s, ok := m.sprints[id]
	if !ok || s.OrganizationID != orgID {
		return store.ErrNotFound
	}
	if s.IsCompleted {
		return store.ErrSprintCompleted
	}
	s.PlannedVelocity = &velocity
	return nil
}

func (m *mockStore) CreateTask(_ context.Context, in types.NewTask) (*types.Task, error) {
	now := time.Now().UTC()
	t := &types.Task{
		ID:             m.id("task"),
		Title:          in.Title,
		Status:         types.StatusTodo,
		StoryPoints:    in.StoryPoints,
		EstimatedHours: in.EstimatedHours,
		SprintID:       in.SprintID,
		OrganizationID: in.OrganizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.tasks[t.ID] = t
	return t, nil
}

func (m *mockStore) GetTask(_ context.Context, orgID, id string) (*types.Task, error) {
	t, ok := m.tasks[id]
	if !ok || t.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockStore) ListTasksBySprint(_ context.Context, orgID, sprintID string) ([]types.Task, error) {
	var out []types.Task
	for _, t := range m.tasks {
		if t.OrganizationID == orgID && t.SprintID != nil && *t.SprintID == sprintID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) UpdateTaskStatus(_ context.Context, orgID, id string, status types.Status) (*types.Task, error) {
	t, ok := m.tasks[id]
	if !ok || t.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	t.Status = status
	cp := *t
	return &cp, nil
}

func (m *mockStore) AssignTasksToSprint(_ context.Context, orgID, sprintID string, taskIDs []string) (int, error) {
	if s, ok := m.sprints[sprintID]; !ok || s.OrganizationID != orgID {
		return 0, store.ErrNotFound
	}
	var assigned int
	for _, id := range taskIDs {
		t, ok := m.tasks[id]
		if !ok || t.OrganizationID != orgID {
			continue
		}
		sid := sprintID
		t.SprintID = &sid
		assigned++
	}
	return assigned, nil
}

func (m *mockStore) RemoveTaskFromSprint(_ context.Context, orgID, sprintID, taskID string) error {
	t, ok := m.tasks[taskID]
	if !ok || t.OrganizationID != orgID {
		return store.ErrNotFound
	}
	if t.SprintID == nil || *t.SprintID != sprintID {
		return store.ErrTaskNotInSprint
	}
	t.SprintID = nil
	return nil
}

func (m *mockStore) GetStats(_ context.Context) (*types.StoreStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return &types.StoreStats{
		SprintCount: int64(len(m.sprints)),
		TaskCount:   int64(len(m.tasks)),
	}, nil
}

func (m *mockStore) Close() error { return nil }

// --- Test Helpers ---

func newTestRouter(s store.Store) http.Handler {
	return NewRouter(NewHandler(s, nil, testAPIKey, "test"))
}

// doRequest issues an authenticated, org-scoped request against the router.
func doRequest(t *testing.T, router http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set(OrgHeader, testOrg)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", w.Body.String(), err)
	}
	return v
}

func seedSprint(t *testing.T, m *mockStore, orgID string, start, end time.Time) *types.Sprint {
	t.Helper()
	s, err := m.CreateSprint(context.Background(), types.NewSprint{
		Name:           "Sprint",
		StartDate:      start,
		EndDate:        end,
		OrganizationID: orgID,
	})
	if err != nil {
		t.Fatalf("seeding sprint: %v", err)
	}
	return s
}

// --- Health Endpoint Tests ---

func TestHealth_ReturnsHealthyStatus(t *testing.T) {
	m := newMockStore()
	router := newTestRouter(m)

	// No auth headers: health is public.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	resp := decodeJSON[types.HealthResponse](t, w)
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Version != "test" {
		t.Errorf("version = %q, want test", resp.Version)
	}
}

// --- Sprint CRUD Tests ---

func TestCreateSprint_Valid(t *testing.T) {
	m := newMockStore()
	router := newTestRouter(m)

	body := `{"name":"Sprint 1","goal":"Ship burndown","start_date":"2024-01-01","end_date":"2024-01-14","planned_velocity":20}`
	w := doRequest(t, router, http.MethodPost, "/api/v1/sprints", strings.NewReader(body))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	resp := decodeJSON[types.Sprint](t, w)
	if resp.Name != "Sprint 1" {
		t.Errorf("name = %q", resp.Name)
	}
	if resp.OrganizationID != testOrg {
		t.Errorf("organization_id = %q, want %q", resp.OrganizationID, testOrg)
	}
	if resp.PlannedVelocity == nil || *resp.PlannedVelocity != 20 {
		t.Errorf("planned_velocity = %v, want 20", resp.PlannedVelocity)
	}
	if resp.Velocity != nil {
		t.Errorf("velocity should be null before completion, got %v", *resp.Velocity)
	}
}

func TestCreateSprint_InvalidJSON(t *testing.T) {
	router := newTestRouter(newMockStore())

	w := doRequest(t, router, http.MethodPost, "/api/v1/sprints", strings.NewReader("{not json"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestCreateSprint_MissingFields(t *testing.T) {
	router := newTestRouter(newMockStore())

	w := doRequest(t, router, http.MethodPost, "/api/v1/sprints", strings.NewReader(`{"goal":"no name"}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", w.Code, w.Body.String())
	}

	resp := decodeJSON[ProblemWithErrors](t, w)
	if len(resp.Errors) < 3 {
		t.Errorf("errors = %v, want name/start_date/end_date", resp.Errors)
	}
}

func TestCreateSprint_EndNotAfterStart(t *testing.T) {
	router := newTestRouter(newMockStore())

	body := `{"name":"Sprint","start_date":"2024-01-14","end_date":"2024-01-14"}`
	w := doRequest(t, router, http.MethodPost, "/api/v1/sprints", strings.NewReader(body))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestListSprints_EmptyIsArray(t *testing.T) {
	router := newTestRouter(newMockStore())

	w := doRequest(t, router, http.MethodGet, "/api/v1/sprints", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestGetSprint_NotFound(t *testing.T) {
	router := newTestRouter(newMockStore())

	w := doRequest(t, router, http.MethodGet, "/api/v1/sprints/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetSprint_CrossOrganizationIsNotFound(t *testing.T) {
	m := newMockStore()
	s := seedSprint(t, m, "org-other",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC))
	router := newTestRouter(m)

	w := doRequest(t, router, http.MethodGet, "/api/v1/sprints/"+s.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for cross-org access", w.Code)
	}
}

func TestUpdateSprint_AppliesPartialFields(t *testing.T) {
	m := newMockStore()
	s := seedSprint(t, m, testOrg,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC))
	router := newTestRouter(m)

	body := `{"name":"Renamed","goal":"New goal"}`
	w := doRequest(t, router, http.MethodPut, "/api/v1/sprints/"+s.ID, strings.NewReader(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	resp := decodeJSON[types.Sprint](t, w)
	if resp.Name != "Renamed" {
		t.Errorf("name = %q", resp.Name)
	}
	if resp.Goal == nil || *resp.Goal != "New goal" {
		t.Errorf("goal = %v", resp.Goal)
	}
	// Dates unchanged.
	if !resp.StartDate.Equal(s.StartDate) {
		t.Errorf("start date changed: %v", resp.StartDate)
	}
}

func TestUpdateSprint_CompletedIsConflict(t *testing.T) {
	m := newMockStore()
	s := seedSprint(t, m, testOrg,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC))
	m.sprints[s.ID].IsCompleted = true
	router := newTestRouter(m)

	w := doRequest(t, router, http.MethodPut, "/api/v1/sprints/"+s.ID, strings.NewReader(`{"name":"X"}`))
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestUpdateSprint_InvertedDatesRejected(t *testing.T) {
	m := newMockStore()
	s := seedSprint(t, m, testOrg,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC))
	router := newTestRouter(m)

	w := doRequest(t, router, http.MethodPut, "/api/v1/sprints/"+s.ID,
		strings.NewReader(`{"end_date":"2023-12-31"}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestDeleteSprint_GuardedByAssignedTasks(t *testing.T) {
	m := newMockStore()
	s := seedSprint(t, m, testOrg,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC))
	if _, err := m.CreateTask(context.Background(), types.NewTask{
		Title:          "Task",
		SprintID:       &s.ID,
		OrganizationID: testOrg,
	}); err != nil {
		t.Fatal(err)
	}
	router := newTestRouter(m)

	w := doRequest(t, router, http.MethodDelete, "/api/v1/sprints/"+s.ID, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 while tasks assigned", w.Code)
	}

	for _, task := range m.tasks {
		task.SprintID = nil
	}
	w = doRequest(t, router, http.MethodDelete, "/api/v1/sprints/"+s.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 after unassign", w.Code)
	}
}

// --- Current Sprint Tests ---

func TestCurrentSprint_NoMatchIsNull(t *testing.T) {
	m := newMockStore()
	seedSprint(t, m, testOrg,
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 14, 0, 0, 0, 0, time.UTC))
	router := newTestRouter(m)

	w := doRequest(t, router, http.MethodGet, "/api/v1/sprints/current", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	resp := decodeJSON[types.CurrentSprintResponse](t, w)
	if resp.Sprint != nil {
		t.Errorf("sprint = %+v, want null", resp.Sprint)
	}
}

func TestCurrentSprint_ContainingRangeMatches(t *testing.T) {
	m := newMockStore()
	now := time.Now().UTC()
	s := seedSprint(t, m, testOrg, now.AddDate(0, 0, -3), now.AddDate(0, 0, 3))
	router := newTestRouter(m)

	w := doRequest(t, router, http.MethodGet, "/api/v1/sprints/current", nil)
	resp := decodeJSON[types.CurrentSprintResponse](t, w)
	if resp.Sprint == nil || resp.Sprint.ID != s.ID {
		t.Errorf("sprint = %+v, want %s", resp.Sprint, s.ID)
	}
}

// --- Middleware Tests ---

func TestProtectedRoutes_RequireBearerToken(t *testing.T) {
	router := newTestRouter(newMockStore())

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + testAPIKey},
		{"wrong key", "Bearer wrong-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sprints", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req.Header.Set(OrgHeader, testOrg)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestProtectedRoutes_RequireOrganizationHeader(t *testing.T) {
	router := newTestRouter(newMockStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sprints", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without %s", w.Code, OrgHeader)
	}
}
