package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/gtd/internal/domain/entities"
	"github.com/taskmaster/gtd/internal/infrastructure/logger"
	"github.com/taskmaster/gtd/internal/ports"
)

type mockItemService struct{ mock.Mock }

func (m *mockItemService) CreateTimeSlot(ctx context.Context, userID uuid.UUID, req ports.CreateTimeSlotRequest) (*entities.TimeSlot, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*entities.TimeSlot)
	return res, args.Error(1)
}

func (m *mockItemService) ListTimeSlots(ctx context.Context, userID uuid.UUID, category string) ([]*entities.TimeSlot, error) {
	args := m.Called(ctx, userID, category)
	res, _ := args.Get(0).([]*entities.TimeSlot)
	return res, args.Error(1)
}

func (m *mockItemService) CreateJobSearch(ctx context.Context, userID uuid.UUID, req ports.CreateJobSearchRequest) (*entities.JobSearch, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*entities.JobSearch)
	return res, args.Error(1)
}

func (m *mockItemService) ListJobSearches(ctx context.Context, userID uuid.UUID, category string) ([]*entities.JobSearch, error) {
	args := m.Called(ctx, userID, category)
	res, _ := args.Get(0).([]*entities.JobSearch)
	return res, args.Error(1)
}

func (m *mockItemService) CreateAdvertising(ctx context.Context, userID uuid.UUID, req ports.CreateAdvertisingRequest) (*entities.Advertising, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*entities.Advertising)
	return res, args.Error(1)
}

func (m *mockItemService) ListAdvertising(ctx context.Context, userID uuid.UUID, category string) ([]*entities.Advertising, error) {
	args := m.Called(ctx, userID, category)
	res, _ := args.Get(0).([]*entities.Advertising)
	return res, args.Error(1)
}

func (m *mockItemService) CreateActivity(ctx context.Context, userID uuid.UUID, req ports.CreateActivityRequest) (*entities.Activity, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*entities.Activity)
	return res, args.Error(1)
}

func (m *mockItemService) ListActivities(ctx context.Context, userID uuid.UUID, category string) ([]*entities.Activity, error) {
	args := m.Called(ctx, userID, category)
	res, _ := args.Get(0).([]*entities.Activity)
	return res, args.Error(1)
}

func TestItemHandler_TimeSlots(t *testing.T) {
	userID := uuid.New()
	svc := &mockItemService{}
	svc.On("CreateTimeSlot", mock.Anything, userID, mock.MatchedBy(func(req ports.CreateTimeSlotRequest) bool {
		return req.StartLocation == "Depot" && req.CostPerHourCents == 5000
	})).Return(&entities.TimeSlot{ID: 1, Slug: "timeslot-depot-1a2b", Category: entities.CategoryInbox}, nil)
	svc.On("ListTimeSlots", mock.Anything, userID, "inbox").Return([]*entities.TimeSlot{{ID: 1}}, nil)
	h := NewItemHandler(svc, logger.NewNop())

	body := `{"date_start":"2024-03-01T00:00:00Z","date_end":"2024-03-02T00:00:00Z",` +
		`"time_start":"08:00","time_end":"16:00","start_location":"Depot","cost_of_1_hour_of_work":5000}`
	c, rec := newContext(http.MethodPost, "/", body, userID)
	require.NoError(t, h.CreateTimeSlot(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "timeslot-depot-1a2b")

	// ends before it starts
	bad := `{"date_start":"2024-03-02T00:00:00Z","date_end":"2024-03-01T00:00:00Z",` +
		`"time_start":"08:00","time_end":"16:00","start_location":"Depot"}`
	c, _ = newContext(http.MethodPost, "/", bad, userID)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, h.CreateTimeSlot(c)))

	for _, clock := range []string{"8 in the morning", "25:00", "08:00:00.000"} {
		bad = `{"date_start":"2024-03-01T00:00:00Z","date_end":"2024-03-02T00:00:00Z",` +
			`"time_start":"` + clock + `","time_end":"16:00","start_location":"Depot"}`
		c, _ = newContext(http.MethodPost, "/", bad, userID)
		assert.Equal(t, http.StatusBadRequest, statusOf(t, h.CreateTimeSlot(c)), clock)
	}

	c, rec = newContext(http.MethodGet, "/?category=inbox", "", userID)
	require.NoError(t, h.ListTimeSlots(c))
	assert.Contains(t, rec.Body.String(), `"count":1`)

	svc.AssertNumberOfCalls(t, "CreateTimeSlot", 1)
}

func TestItemHandler_OtherKinds(t *testing.T) {
	userID := uuid.New()
	svc := &mockItemService{}
	svc.On("CreateJobSearch", mock.Anything, userID, mock.Anything).Return(&entities.JobSearch{ID: 2}, nil)
	svc.On("ListJobSearches", mock.Anything, userID, "later").Return(nil, entities.ErrInvalidCategory)
	svc.On("CreateAdvertising", mock.Anything, userID, mock.Anything).Return(&entities.Advertising{ID: 3}, nil)
	svc.On("ListAdvertising", mock.Anything, userID, "").Return([]*entities.Advertising{}, nil)
	svc.On("CreateActivity", mock.Anything, userID, mock.Anything).Return(&entities.Activity{ID: 4}, nil)
	svc.On("ListActivities", mock.Anything, userID, "").Return([]*entities.Activity{{ID: 4}, {ID: 5}}, nil)
	h := NewItemHandler(svc, logger.NewNop())

	c, rec := newContext(http.MethodPost, "/", `{"title":"Go developer","vacancy_url":"https://jobs.example.com/1"}`, userID)
	require.NoError(t, h.CreateJobSearch(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, _ = newContext(http.MethodPost, "/", `{"title":"Go developer","vacancy_url":"not a url"}`, userID)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, h.CreateJobSearch(c)))

	c, _ = newContext(http.MethodGet, "/?category=later", "", userID)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, h.ListJobSearches(c)))

	c, rec = newContext(http.MethodPost, "/", `{"title":"Garden services"}`, userID)
	require.NoError(t, h.CreateAdvertising(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newContext(http.MethodGet, "/", "", userID)
	require.NoError(t, h.ListAdvertising(c))
	assert.Contains(t, rec.Body.String(), `"count":0`)

	c, rec = newContext(http.MethodPost, "/", `{"title":"Interview","activity_type":"meeting"}`, userID)
	require.NoError(t, h.CreateActivity(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newContext(http.MethodGet, "/", "", userID)
	require.NoError(t, h.ListActivities(c))
	assert.Contains(t, rec.Body.String(), `"count":2`)
}
