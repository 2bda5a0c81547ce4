package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/unclebandit/notification-campaigns/internal/controller"
	appErrors "github.com/unclebandit/notification-campaigns/internal/errors"
	"github.com/unclebandit/notification-campaigns/internal/handler"
	"github.com/unclebandit/notification-campaigns/internal/model"
	"github.com/unclebandit/notification-campaigns/internal/router"
	"github.com/unclebandit/notification-campaigns/internal/service"
)

// --- Mock Repositories ---

type MockRecipientRepo struct {
	recipients map[int]*model.Recipient
}

func (m *MockRecipientRepo) Create(_ context.Context, r *model.Recipient) error {
	r.ID = len(m.recipients) + 1
	r.CreatedAt = time.Now()
	cp := *r
	m.recipients[r.ID] = &cp
	return nil
}

func (m *MockRecipientRepo) GetByID(_ context.Context, id int) (*model.Recipient, error) {
	r, ok := m.recipients[id]
	if !ok {
		return nil, appErrors.NewRecipientNotFound(id)
	}
	cp := *r
	return &cp, nil
}

func (m *MockRecipientRepo) GetByEmail(_ context.Context, email string) (*model.Recipient, error) {
	for _, r := range m.recipients {
		if r.Email == email {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockRecipientRepo) ListAll(_ context.Context) ([]model.Recipient, error) {
	out := []model.Recipient{}
	for i := 1; i <= len(m.recipients); i++ {
		out = append(out, *m.recipients[i])
	}
	return out, nil
}

func (m *MockRecipientRepo) ExistingIDs(_ context.Context, ids []int) (map[int]bool, error) {
	found := map[int]bool{}
	for _, id := range ids {
		_, found[id] = m.recipients[id]
	}
	return found, nil
}

func (m *MockRecipientRepo) Update(_ context.Context, r *model.Recipient) error {
	cp := *r
	m.recipients[r.ID] = &cp
	return nil
}

type MockCampaignRepo struct {
	campaigns []*model.Campaign
	ledger    map[int][]int
}

func (m *MockCampaignRepo) Create(_ context.Context, c *model.Campaign, recipientIDs []int) error {
	c.ID = len(m.campaigns) + 1
	c.CreatedAt = time.Now()
	cp := *c
	m.campaigns = append(m.campaigns, &cp)
	m.ledger[c.ID] = recipientIDs
	return nil
}

func (m *MockCampaignRepo) GetByID(_ context.Context, id int) (*model.Campaign, error) {
	if id < 1 || id > len(m.campaigns) {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return m.campaigns[id-1], nil
}

func (m *MockCampaignRepo) ListCampaigns(_ context.Context, offset, limit int) ([]*model.Campaign, int, error) {
	return m.campaigns, len(m.campaigns), nil
}

type MockDeliveryRepo struct {
	campaigns  *MockCampaignRepo
	recipients *MockRecipientRepo
}

func (m *MockDeliveryRepo) ListTargets(_ context.Context, campaignID int) ([]model.DeliveryTarget, error) {
	out := []model.DeliveryTarget{}
	for _, id := range m.campaigns.ledger[campaignID] {
		out = append(out, model.DeliveryTarget{
			Recipient: *m.recipients.recipients[id],
			Record:    model.DeliveryRecord{CampaignID: campaignID, RecipientID: id, Status: model.DeliveryPending},
		})
	}
	return out, nil
}

func (m *MockDeliveryRepo) MarkSent(context.Context, int, int, time.Time) error { return nil }
func (m *MockDeliveryRepo) MarkFailed(context.Context, int, int, string) error  { return nil }

func (m *MockDeliveryRepo) CountByStatus(_ context.Context, campaignID int) (map[model.DeliveryStatus]int, error) {
	return map[model.DeliveryStatus]int{model.DeliveryPending: len(m.campaigns.ledger[campaignID])}, nil
}

type MockDispatcher struct{ ids []int }

func (d *MockDispatcher) Enqueue(_ context.Context, id int) error {
	d.ids = append(d.ids, id)
	return nil
}

// --- Helpers ---

type env struct {
	server     http.Handler
	recipients *MockRecipientRepo
	dispatcher *MockDispatcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zaptest.NewLogger(t)
	recipients := &MockRecipientRepo{recipients: map[int]*model.Recipient{}}
	campaigns := &MockCampaignRepo{ledger: map[int][]int{}}
	deliveries := &MockDeliveryRepo{campaigns: campaigns, recipients: recipients}
	dispatcher := &MockDispatcher{}

	campaignService := &service.CampaignService{
		CampaignRepo:  campaigns,
		RecipientRepo: recipients,
		DeliveryRepo:  deliveries,
		Dispatcher:    dispatcher,
		Logger:        log,
	}

	r := router.New(router.Handlers{
		Campaigns:  &controller.CampaignController{CampaignService: campaignService, Logger: log},
		Recipients: &controller.RecipientController{RecipientService: &service.RecipientService{RecipientRepo: recipients}, Logger: log},
		Status:     &handler.StatusHandler{Service: &service.StatusService{CampaignRepo: campaigns, DeliveryRepo: deliveries}, Logger: log},
	})
	return &env{server: r, recipients: recipients, dispatcher: dispatcher}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *env) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)

	var out envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

// --- Tests ---

func TestCreateCampaignHandler(t *testing.T) {
	e := newEnv(t)
	code, _ := e.do(t, http.MethodPost, "/recipients", map[string]any{"email": "a@example.com"})
	require.Equal(t, http.StatusCreated, code)

	code, resp := e.do(t, http.MethodPost, "/campaigns", map[string]any{"text": "Hi", "recipient_ids": []int{1}})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "success", resp.Status)

	var c model.CampaignDetails
	require.NoError(t, json.Unmarshal(resp.Data, &c))
	assert.Equal(t, 1, c.ID)
	assert.Equal(t, "Hi", c.Text)
	assert.Equal(t, []int{1}, e.dispatcher.ids)
	require.Len(t, c.Recipients, 1)
	assert.Equal(t, "a@example.com", c.Recipients[0].Recipient.Email)
	assert.Equal(t, model.DeliveryPending, c.Recipients[0].Record.Status)
}

func TestCreateCampaignErrors(t *testing.T) {
	e := newEnv(t)
	_, _ = e.do(t, http.MethodPost, "/recipients", map[string]any{"email": "a@example.com"})

	code, resp := e.do(t, http.MethodPost, "/campaigns", map[string]any{"text": "   ", "recipient_ids": []int{1}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", resp.Status)

	code, _ = e.do(t, http.MethodPost, "/campaigns", map[string]any{"text": strings.Repeat("x", 1001), "recipient_ids": []int{1}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodPost, "/campaigns", map[string]any{"text": "Hi", "recipient_ids": []int{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = e.do(t, http.MethodPost, "/campaigns", map[string]any{"text": "Hi", "recipient_ids": []int{1, 42}})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "recipient with ID 42 not found", resp.Message)

	req := httptest.NewRequest(http.MethodPost, "/campaigns", strings.NewReader("{"))
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, e.dispatcher.ids)
}

func TestGetCampaignAndStatus(t *testing.T) {
	e := newEnv(t)
	_, _ = e.do(t, http.MethodPost, "/recipients", map[string]any{"email": "a@example.com", "telegram_id": "111"})
	_, _ = e.do(t, http.MethodPost, "/recipients", map[string]any{"email": "b@example.com"})
	_, _ = e.do(t, http.MethodPost, "/campaigns", map[string]any{"text": "Hi", "recipient_ids": []int{2, 1}})

	code, resp := e.do(t, http.MethodGet, "/campaigns/1", nil)
	require.Equal(t, http.StatusOK, code)
	var details model.CampaignDetails
	require.NoError(t, json.Unmarshal(resp.Data, &details))
	require.Len(t, details.Recipients, 2)
	assert.Equal(t, "b@example.com", details.Recipients[0].Recipient.Email)

	code, resp = e.do(t, http.MethodGet, "/campaigns/1/status", nil)
	require.Equal(t, http.StatusOK, code)
	var summary model.StatusSummary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, model.CampaignPending, summary.Status)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Pending)

	code, _ = e.do(t, http.MethodGet, "/campaigns/9/status", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = e.do(t, http.MethodGet, "/campaigns/0/status", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid campaign id", resp.Message)

	code, _ = e.do(t, http.MethodGet, "/campaigns/-3/status", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodGet, "/campaigns/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListCampaignsHandler(t *testing.T) {
	e := newEnv(t)
	_, _ = e.do(t, http.MethodPost, "/recipients", map[string]any{"email": "a@example.com"})
	_, _ = e.do(t, http.MethodPost, "/campaigns", map[string]any{"text": "one", "recipient_ids": []int{1}})

	code, resp := e.do(t, http.MethodGet, "/campaigns?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, code)

	var page struct {
		Campaigns  []model.Campaign `json:"campaigns"`
		Pagination map[string]int   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Len(t, page.Campaigns, 1)
	assert.Equal(t, 1, page.Pagination["total_count"])
	assert.Equal(t, 10, page.Pagination["page_size"])
}

func TestDispatchCampaignHandler(t *testing.T) {
	e := newEnv(t)
	_, _ = e.do(t, http.MethodPost, "/recipients", map[string]any{"email": "a@example.com"})
	_, _ = e.do(t, http.MethodPost, "/campaigns", map[string]any{"text": "Hi", "recipient_ids": []int{1}})

	code, _ := e.do(t, http.MethodPost, "/campaigns/1/dispatch", nil)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, []int{1, 1}, e.dispatcher.ids)

	code, _ = e.do(t, http.MethodPost, "/campaigns/5/dispatch", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	code, resp := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", resp.Status)
}
