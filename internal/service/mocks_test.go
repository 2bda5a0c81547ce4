package service_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	appErrors "github.com/unclebandit/notification-campaigns/internal/errors"
	"github.com/unclebandit/notification-campaigns/internal/model"
	"github.com/unclebandit/notification-campaigns/internal/repository"
)

// MockStore keeps recipients, campaigns and delivery records in memory and
// implements all three repository interfaces.
type MockStore struct {
	mu         sync.Mutex
	recipients map[int]*model.Recipient
	campaigns  map[int]*model.Campaign
	records    map[int][]model.DeliveryRecord
	nextID     int

	createErr error
}

func NewMockStore() *MockStore {
	return &MockStore{
		recipients: map[int]*model.Recipient{},
		campaigns:  map[int]*model.Campaign{},
		records:    map[int][]model.DeliveryRecord{},
		nextID:     1,
	}
}

func (m *MockStore) addRecipient(email string, handle *string) *model.Recipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &model.Recipient{ID: m.nextID, Email: email, TelegramID: handle, CreatedAt: time.Now()}
	m.recipients[r.ID] = r
	m.nextID++
	return r
}

// ---- recipients ----

func (m *MockStore) Create(ctx context.Context, r *model.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.recipients {
		if existing.Email == r.Email {
			return appErrors.NewConflict("recipient with email %s already exists", r.Email)
		}
	}
	r.ID = m.nextID
	r.CreatedAt = time.Now()
	m.nextID++
	cp := *r
	m.recipients[r.ID] = &cp
	return nil
}

func (m *MockStore) GetByID(ctx context.Context, id int) (*model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok {
		return nil, appErrors.NewRecipientNotFound(id)
	}
	cp := *r
	return &cp, nil
}

func (m *MockStore) GetByEmail(ctx context.Context, email string) (*model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recipients {
		if strings.EqualFold(r.Email, email) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockStore) ListAll(ctx context.Context) ([]model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Recipient{}
	for _, r := range m.recipients {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStore) ExistingIDs(ctx context.Context, ids []int) (map[int]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := map[int]bool{}
	for _, id := range ids {
		if _, ok := m.recipients[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (m *MockStore) Update(ctx context.Context, r *model.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recipients[r.ID]; !ok {
		return appErrors.NewRecipientNotFound(r.ID)
	}
	cp := *r
	m.recipients[r.ID] = &cp
	return nil
}

// Campaigns adapts the store to CampaignRepositoryInterface; the method
// sets of the repositories overlap on GetByID and Create.
func (m *MockStore) Campaigns() *MockCampaignRepo { return &MockCampaignRepo{store: m} }

// Deliveries adapts the store to DeliveryRepositoryInterface.
func (m *MockStore) Deliveries() *MockDeliveryRepo { return &MockDeliveryRepo{store: m} }

type MockCampaignRepo struct {
	store *MockStore
}

func (c *MockCampaignRepo) Create(ctx context.Context, campaign *model.Campaign, recipientIDs []int) error {
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	campaign.ID = len(m.campaigns) + 1
	campaign.CreatedAt = time.Now()
	cp := *campaign
	m.campaigns[campaign.ID] = &cp
	for _, id := range recipientIDs {
		m.records[campaign.ID] = append(m.records[campaign.ID], model.DeliveryRecord{
			CampaignID:  campaign.ID,
			RecipientID: id,
			Status:      model.DeliveryPending,
			CreatedAt:   campaign.CreatedAt,
		})
	}
	return nil
}

func (c *MockCampaignRepo) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	campaign, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *campaign
	return &cp, nil
}

func (c *MockCampaignRepo) ListCampaigns(ctx context.Context, offset, limit int) ([]*model.Campaign, int, error) {
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []*model.Campaign{}
	for _, campaign := range m.campaigns {
		cp := *campaign
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	start := offset
	end := offset + limit
	if start >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

type MockDeliveryRepo struct {
	store *MockStore
}

func (d *MockDeliveryRepo) ListTargets(ctx context.Context, campaignID int) ([]model.DeliveryTarget, error) {
	m := d.store
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.DeliveryTarget{}
	for _, rec := range m.records[campaignID] {
		out = append(out, model.DeliveryTarget{Recipient: *m.recipients[rec.RecipientID], Record: rec})
	}
	return out, nil
}

func (d *MockDeliveryRepo) mark(campaignID, recipientID int, fn func(*model.DeliveryRecord)) error {
	m := d.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records[campaignID] {
		rec := &m.records[campaignID][i]
		if rec.RecipientID == recipientID {
			if rec.Status != model.DeliveryPending {
				return repository.ErrNotPending
			}
			fn(rec)
			return nil
		}
	}
	return errors.New("record not found")
}

func (d *MockDeliveryRepo) MarkSent(ctx context.Context, campaignID, recipientID int, sentAt time.Time) error {
	return d.mark(campaignID, recipientID, func(r *model.DeliveryRecord) {
		r.Status = model.DeliverySent
		r.SentAt = &sentAt
	})
}

func (d *MockDeliveryRepo) MarkFailed(ctx context.Context, campaignID, recipientID int, reason string) error {
	return d.mark(campaignID, recipientID, func(r *model.DeliveryRecord) {
		r.Status = model.DeliveryFailed
		r.LastError = &reason
	})
}

func (d *MockDeliveryRepo) CountByStatus(ctx context.Context, campaignID int) (map[model.DeliveryStatus]int, error) {
	m := d.store
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[model.DeliveryStatus]int{
		model.DeliveryPending: 0,
		model.DeliverySent:    0,
		model.DeliveryFailed:  0,
	}
	for _, rec := range m.records[campaignID] {
		stats[rec.Status]++
	}
	return stats, nil
}

// MockDispatcher records enqueued campaign ids.
type MockDispatcher struct {
	mu  sync.Mutex
	ids []int
	err error
}

func (d *MockDispatcher) Enqueue(ctx context.Context, campaignID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, campaignID)
	return nil
}

func strPtr(s string) *string { return &s }

var (
	_ repository.RecipientRepositoryInterface = (*MockStore)(nil)
	_ repository.CampaignRepositoryInterface  = (*MockCampaignRepo)(nil)
	_ repository.DeliveryRepositoryInterface  = (*MockDeliveryRepo)(nil)
)
