package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/ledger"
	"github.com/taskbarter/backend/internal/middleware"
	"github.com/taskbarter/backend/internal/models"
	"github.com/taskbarter/backend/internal/tasks"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

// --- TaskStore mock ---

type mockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (m *mockTaskStore) CreateTx(_ context.Context, _ pgx.Tx, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *mockTaskStore) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, apperr.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *mockTaskStore) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return m.GetByID(ctx, id)
}

func (m *mockTaskStore) UpdateTx(_ context.Context, _ pgx.Tx, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *mockTaskStore) List(context.Context) ([]*models.Task, error) { return nil, nil }
func (m *mockTaskStore) ListByCreator(context.Context, uuid.UUID) ([]*models.Task, error) {
	return nil, nil
}
func (m *mockTaskStore) ListByAssignee(context.Context, uuid.UUID) ([]*models.Task, error) {
	return nil, nil
}
func (m *mockTaskStore) ListByStatus(context.Context, string) ([]*models.Task, error) {
	return nil, nil
}

// --- Escrow fake: configurable failure, tracks open holds ---

type fakeEscrow struct {
	openErr  error
	holdings map[uuid.UUID]int
}

func newFakeEscrow() *fakeEscrow { return &fakeEscrow{holdings: make(map[uuid.UUID]int)} }

func (f *fakeEscrow) Open(_ context.Context, _ pgx.Tx, taskID, _, _ uuid.UUID, amount int) (*models.Escrow, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.holdings[taskID] = amount
	return &models.Escrow{TaskID: taskID, HeldAmount: amount, Status: models.EscrowStatusHolding}, nil
}

func (f *fakeEscrow) Release(_ context.Context, _ pgx.Tx, taskID uuid.UUID) (*models.Escrow, error) {
	if _, ok := f.holdings[taskID]; !ok {
		return nil, apperr.Conflict("no holding escrow for task", "")
	}
	delete(f.holdings, taskID)
	return &models.Escrow{TaskID: taskID, Status: models.EscrowStatusReleased}, nil
}

func (f *fakeEscrow) Refund(_ context.Context, _ pgx.Tx, taskID uuid.UUID) (*models.Escrow, error) {
	if _, ok := f.holdings[taskID]; !ok {
		return nil, apperr.Conflict("no holding escrow for task", "")
	}
	delete(f.holdings, taskID)
	return &models.Escrow{TaskID: taskID, Status: models.EscrowStatusRefunded}, nil
}

func (f *fakeEscrow) GetByTaskID(_ context.Context, taskID uuid.UUID) (*models.Escrow, error) {
	amount, ok := f.holdings[taskID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &models.Escrow{TaskID: taskID, HeldAmount: amount, Status: models.EscrowStatusHolding}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestHandler() (*TaskHandler, *mockTaskStore, *fakeEscrow) {
	store := newMockTaskStore()
	esc := newFakeEscrow()
	svc := tasks.NewService(mockPool{}, store, esc, nil, nil)
	return NewTaskHandler(svc, esc, nil), store, esc
}

// injectUser sets the authenticated user into the request context,
// simulating what middleware.Auth would do upstream.
func injectUser(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), u))
}

func seedAssigned(store *mockTaskStore, creator, assignee uuid.UUID) *models.Task {
	task := &models.Task{
		ID:         uuid.New(),
		Title:      "Walk my dog",
		Reward:     50,
		CreatedBy:  creator,
		AssignedTo: &assignee,
		Status:     models.TaskStatusAssigned,
		Deadline:   time.Now().Add(48 * time.Hour),
		Version:    1,
	}
	store.tasks[task.ID] = task
	return task
}

// ---------------------------------------------------------------------------
// POST /api/v1/tasks
// ---------------------------------------------------------------------------

func TestCreateTask_Valid(t *testing.T) {
	h, _, _ := newTestHandler()
	creator := &models.User{ID: uuid.New(), Credits: 100}

	body := fmt.Sprintf(`{
		"title": "Walk my dog",
		"description": "One hour around the park.",
		"reward": 50,
		"deadline": %q
	}`, time.Now().Add(48*time.Hour).Format(time.RFC3339))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(body))
	req = injectUser(req, creator)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var task models.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if task.Status != models.TaskStatusOpen {
		t.Errorf("status: got %q, want open", task.Status)
	}
	if task.CreatedBy != creator.ID {
		t.Error("task should belong to the authenticated user")
	}
}

func TestCreateTask_Unauthorized(t *testing.T) {
	h, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateTask_BadReward(t *testing.T) {
	h, _, _ := newTestHandler()

	body := fmt.Sprintf(`{
		"title": "Walk my dog",
		"description": "One hour around the park.",
		"reward": 0,
		"deadline": %q
	}`, time.Now().Add(48*time.Hour).Format(time.RFC3339))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(body))
	req = injectUser(req, &models.User{ID: uuid.New()})
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Lifecycle endpoints: error mapping
// ---------------------------------------------------------------------------

func TestRequestTask_SelfRequestConflict(t *testing.T) {
	h, store, _ := newTestHandler()
	creator := &models.User{ID: uuid.New()}
	task := seedAssigned(store, creator.ID, uuid.New())
	task.Status = models.TaskStatusOpen
	task.AssignedTo = nil

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/request", nil)
	req.SetPathValue("id", task.ID.String())
	req = injectUser(req, creator)
	rec := httptest.NewRecorder()

	h.Request(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != models.TaskStatusOpen {
		t.Errorf("conflict body should carry current status, got %q", body["status"])
	}
}

func TestStartTask_InsufficientFunds(t *testing.T) {
	h, store, esc := newTestHandler()
	esc.openErr = ledger.ErrInsufficientFunds

	creator := &models.User{ID: uuid.New(), Credits: 10}
	task := seedAssigned(store, creator.ID, uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/start", nil)
	req.SetPathValue("id", task.ID.String())
	req = injectUser(req, creator)
	rec := httptest.NewRecorder()

	h.Start(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAcceptTask(t *testing.T) {
	h, store, _ := newTestHandler()
	creator := &models.User{ID: uuid.New()}
	helper := uuid.New()

	task := seedAssigned(store, creator.ID, helper)
	task.Status = models.TaskStatusRequested
	task.AssignedTo = nil
	task.Requests = []uuid.UUID{helper}

	url := fmt.Sprintf("/api/v1/tasks/%s/accept/%s", task.ID, helper)
	req := httptest.NewRequest(http.MethodPost, url, nil)
	req.SetPathValue("id", task.ID.String())
	req.SetPathValue("userId", helper.String())
	req = injectUser(req, creator)
	rec := httptest.NewRecorder()

	h.Accept(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got models.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != models.TaskStatusAssigned {
		t.Errorf("status: got %q, want assigned", got.Status)
	}
	if got.AssignedTo == nil || *got.AssignedTo != helper {
		t.Error("assignee not set in response")
	}
}

func TestGetTask_WithEscrow(t *testing.T) {
	h, store, esc := newTestHandler()
	creator := uuid.New()
	task := seedAssigned(store, creator, uuid.New())
	esc.holdings[task.ID] = 50

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+task.ID.String(), nil)
	req.SetPathValue("id", task.ID.String())
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Task   *models.Task   `json:"task"`
		Escrow *models.Escrow `json:"escrow"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Task == nil || resp.Task.ID != task.ID {
		t.Fatal("response should carry the task")
	}
	if resp.Escrow == nil || resp.Escrow.HeldAmount != 50 {
		t.Errorf("escrow view: got %+v, want held amount 50", resp.Escrow)
	}
}

func TestGetTask_NoEscrow(t *testing.T) {
	h, store, _ := newTestHandler()
	task := seedAssigned(store, uuid.New(), uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+task.ID.String(), nil)
	req.SetPathValue("id", task.ID.String())
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"escrow"`) {
		t.Errorf("escrow should be omitted when none exists: %s", rec.Body.String())
	}
}

func TestGetTask_NotFound(t *testing.T) {
	h, _, _ := newTestHandler()

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+id.String(), nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetTask_InvalidID(t *testing.T) {
	h, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}
